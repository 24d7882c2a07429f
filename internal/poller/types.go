// internal/poller/types.go
package poller

import (
	"sync/atomic"
	"time"
)

// Driver is the capability set every sensor driver provides.
// Calls block on bus I/O; the poller bounds them with its read timeout.
type Driver interface {
	DataAvailable() (bool, error)
	ReadTemperature() (float64, error) // °C
	ReadHumidity() (float64, error)    // %RH
}

// CO2Reader is the extra capability of CO2-capable variants.
type CO2Reader interface {
	ReadCO2() (uint16, error) // ppm
}

// Reading is one sensor-state snapshot.
// Values are last-known-good: a failed cycle never zeroes them.
type Reading struct {
	SensorID string

	Temperature float64
	Humidity    float64
	CO2         uint16
	HasCO2      bool

	// Valid is false until the first good sample.
	Valid bool
	// SampledAt is the time of the last good sample.
	SampledAt time.Time

	// Stale is set once Misses reaches the stale threshold.
	Stale bool
	// Misses counts failed cycles since the last good sample.
	Misses int
	// LastErrorCode is 0 after a good cycle, else the failure code.
	LastErrorCode uint16
}

// Fresh reports whether the values come from a recent good sample.
func (r Reading) Fresh() bool { return r.Valid && !r.Stale }

// Store holds the current Reading of one sensor.
// One writer (the owning poller), any number of readers.
type Store struct {
	p atomic.Pointer[Reading]
}

// Load returns the current snapshot, or a zero Reading before the first cycle.
func (s *Store) Load() Reading {
	if r := s.p.Load(); r != nil {
		return *r
	}
	return Reading{}
}

func (s *Store) store(r Reading) {
	s.p.Store(&r)
}

// Result labels the outcome of one cycle.
type Result string

const (
	ResultOK      Result = "ok"
	ResultNoData  Result = "no_data"
	ResultTimeout Result = "timeout"
	ResultError   Result = "error"
)

// Observer receives acquisition events. It must not block.
type Observer interface {
	SampleTaken(sensor string, result Result)
	StalenessChanged(sensor string, stale bool)
}

type nopObserver struct{}

func (nopObserver) SampleTaken(string, Result)    {}
func (nopObserver) StalenessChanged(string, bool) {}
