// internal/poller/builder.go
package poller

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/i2c/i2creg"

	cfg "github.com/tamzrod/modbus-sensorbridge/internal/config"
	"github.com/tamzrod/modbus-sensorbridge/internal/sensor/scd30"
	"github.com/tamzrod/modbus-sensorbridge/internal/sensor/sim"
)

// Build constructs a Poller and its driver for one sensor.
// The returned closer releases the driver's bus.
// Host drivers (periph host.Init) must be loaded before an I2C sensor is built.
func Build(sc cfg.SensorConfig, log zerolog.Logger, obs Observer) (*Poller, func() error, error) {
	drv, closer, err := buildDriver(sc)
	if err != nil {
		return nil, nil, err
	}

	p, err := New(
		Config{
			SensorID:    sc.ID,
			Interval:    time.Duration(sc.SampleIntervalMs) * time.Millisecond,
			ReadTimeout: time.Duration(sc.ReadTimeoutMs) * time.Millisecond,
			StaleAfter:  sc.StaleAfter,
			CO2:         sc.CO2,
		},
		drv,
		log,
		obs,
	)
	if err != nil {
		_ = closer()
		return nil, nil, err
	}
	return p, closer, nil
}

func buildDriver(sc cfg.SensorConfig) (Driver, func() error, error) {
	switch sc.Driver {
	case cfg.DriverSCD30:
		bus, err := i2creg.Open(sc.I2CBus)
		if err != nil {
			return nil, nil, fmt.Errorf("poller: sensor %q: open i2c bus %q: %w", sc.ID, sc.I2CBus, err)
		}
		dev, err := scd30.New(bus, scd30.Opts{
			Addr:                sc.I2CAddr,
			MeasurementInterval: sc.MeasurementIntervalS,
			TemperatureOffset:   sc.TemperatureOffset,
			AutoSelfCalibration: sc.AutoSelfCalibration,
		})
		if err != nil {
			_ = bus.Close()
			return nil, nil, fmt.Errorf("poller: sensor %q: %w", sc.ID, err)
		}
		closer := func() error {
			_ = dev.Halt()
			return bus.Close()
		}
		return dev, closer, nil

	case cfg.DriverSim:
		s := sim.New(sim.Config{
			Temperature: sc.Sim.Temperature,
			Humidity:    sc.Sim.Humidity,
			CO2:         sc.Sim.CO2,
			FailEvery:   sc.Sim.FailEvery,
		})
		return s, func() error { return nil }, nil

	default:
		return nil, nil, fmt.Errorf("poller: sensor %q: unknown driver %q", sc.ID, sc.Driver)
	}
}
