// internal/publisher/encode.go
package publisher

import (
	"math"

	"github.com/tamzrod/modbus-sensorbridge/internal/poller"
)

// Holding register layout inside one sensor range.
const (
	regTemperature = 0
	regHumidity    = 1
	regCO2         = 2
)

// EncodeTenths stores v with one decimal digit: round(v*10).
// Out-of-range values saturate to 0..65535; NaN encodes as 0.
func EncodeTenths(v float64) uint16 {
	x := math.Round(v * 10)
	switch {
	case math.IsNaN(x) || x <= 0:
		return 0
	case x >= math.MaxUint16:
		return math.MaxUint16
	default:
		return uint16(x)
	}
}

// EncodeHolding converts a reading into its holding register values.
// No IO. No side effects.
func EncodeHolding(r poller.Reading) []uint16 {
	n := 2
	if r.HasCO2 {
		n = 3
	}
	regs := make([]uint16, n)
	regs[regTemperature] = EncodeTenths(r.Temperature)
	regs[regHumidity] = EncodeTenths(r.Humidity)
	if r.HasCO2 {
		regs[regCO2] = r.CO2
	}
	return regs
}
