// internal/sensor/sim/sim.go

// Package sim is a deterministic sensor for hosts without a sensor bus.
package sim

import (
	"errors"
	"sync"
)

// Config sets the base values the sensor reports.
type Config struct {
	Temperature float64
	Humidity    float64
	CO2         uint16
	// FailEvery makes every Nth data-ready query fail; 0 never fails.
	FailEvery int
}

// ErrSimulated is returned by the failing cycles.
var ErrSimulated = errors.New("sim: simulated sensor failure")

// Sensor implements the poller driver capability set, CO2 included.
// Each cycle walks a small fixed pattern around the base values.
type Sensor struct {
	mu    sync.Mutex
	cfg   Config
	cycle int
}

var drift = [...]float64{0, 0.1, 0.2, 0.1, 0, -0.1, -0.2, -0.1}

// New returns a simulated sensor.
func New(cfg Config) *Sensor {
	return &Sensor{cfg: cfg}
}

func (s *Sensor) DataAvailable() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cycle++
	if s.cfg.FailEvery > 0 && s.cycle%s.cfg.FailEvery == 0 {
		return false, ErrSimulated
	}
	return true, nil
}

func (s *Sensor) ReadTemperature() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Temperature + drift[s.cycle%len(drift)], nil
}

func (s *Sensor) ReadHumidity() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Humidity + 2*drift[s.cycle%len(drift)], nil
}

func (s *Sensor) ReadCO2() (uint16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := int(s.cfg.CO2) + int(100*drift[s.cycle%len(drift)])
	if v < 0 {
		v = 0
	}
	return uint16(v), nil
}
