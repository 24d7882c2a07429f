// cmd/bridgeprobe/main.go
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/tamzrod/modbus-sensorbridge/internal/probe"
	"github.com/tamzrod/modbus-sensorbridge/internal/status"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:502", "bridge host:port")
	unit := flag.Uint("unit", 1, "modbus unit id")
	base := flag.Uint("base", 0, "holding register base of the sensor")
	co2 := flag.Bool("co2", false, "sensor publishes a CO2 register")
	slot := flag.Int("status-slot", -1, "status slot to read, -1 skips")
	timeout := flag.Duration("timeout", 2*time.Second, "request timeout")
	flag.Parse()

	if *unit > 255 || *base > 65535 || *slot > 3275 {
		fmt.Fprintln(os.Stderr, "bridgeprobe: flag out of range")
		os.Exit(2)
	}

	c, err := probe.New(probe.Config{
		Endpoint: *addr,
		UnitID:   uint8(*unit),
		Timeout:  *timeout,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "bridgeprobe: connect %s: %v\n", *addr, err)
		os.Exit(1)
	}
	defer c.Close()

	v, err := c.ReadValues(uint16(*base), *co2)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bridgeprobe: read values: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("temperature_c=%.1f humidity_pct=%.1f", v.Temperature, v.Humidity)
	if v.HasCO2 {
		fmt.Printf(" co2_ppm=%d", v.CO2)
	}
	fmt.Println()

	if *slot < 0 {
		return
	}
	st, err := c.ReadStatus(uint16(*slot))
	if err != nil {
		fmt.Fprintf(os.Stderr, "bridgeprobe: read status: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("health=%s last_error=%d seconds_since_good=%d misses=%d fresh=%t device=%q\n",
		status.HealthName(st.Health),
		st.LastErrorCode,
		st.SecondsSinceGood,
		st.ConsecutiveMisses,
		st.Fresh,
		st.DeviceName,
	)
}
