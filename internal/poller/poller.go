// internal/poller/poller.go
package poller

import (
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/modbus-sensorbridge/internal/status"
)

// Config is the minimal runtime config the poller needs.
type Config struct {
	SensorID string
	Interval time.Duration
	// ReadTimeout bounds one full driver read (data-ready plus values).
	ReadTimeout time.Duration
	// StaleAfter is the number of consecutive misses that mark the reading stale.
	StaleAfter int
	// CO2 enables the CO2 read; the driver must implement CO2Reader.
	CO2 bool
}

// Poller is a clock-driven reader for one sensor.
// It owns its Store; everyone else reads snapshots.
type Poller struct {
	cfg   Config
	drv   Driver
	co2   CO2Reader
	store *Store
	log   zerolog.Logger
	obs   Observer
	now   func() time.Time

	// pending is the result channel of a driver read that outlived its timeout.
	pending chan sample
}

type sample struct {
	temperature float64
	humidity    float64
	co2         uint16
	err         error
}

// New creates a poller with immutable config.
func New(cfg Config, drv Driver, log zerolog.Logger, obs Observer) (*Poller, error) {
	if cfg.SensorID == "" {
		return nil, errors.New("poller: sensor id required")
	}
	if cfg.Interval <= 0 {
		return nil, errors.New("poller: interval must be > 0")
	}
	if cfg.ReadTimeout <= 0 {
		return nil, errors.New("poller: read timeout must be > 0")
	}
	if cfg.StaleAfter <= 0 {
		return nil, errors.New("poller: stale threshold must be > 0")
	}
	if drv == nil {
		return nil, errors.New("poller: driver required")
	}

	var co2 CO2Reader
	if cfg.CO2 {
		r, ok := drv.(CO2Reader)
		if !ok {
			return nil, errors.New("poller: co2 enabled but driver cannot read co2")
		}
		co2 = r
	}
	if obs == nil {
		obs = nopObserver{}
	}

	p := &Poller{
		cfg:   cfg,
		drv:   drv,
		co2:   co2,
		store: &Store{},
		log:   log.With().Str("component", "poller").Str("sensor", cfg.SensorID).Logger(),
		obs:   obs,
		now:   time.Now,
	}
	p.store.store(Reading{SensorID: cfg.SensorID, HasCO2: cfg.CO2})
	return p, nil
}

// Store returns the snapshot store this poller writes.
func (p *Poller) Store() *Store { return p.store }

// SensorID returns the configured sensor id.
func (p *Poller) SensorID() string { return p.cfg.SensorID }

// SampleOnce performs exactly one acquisition cycle.
// All-or-nothing: any failure leaves the previous values in place
// and only advances the miss counter.
func (p *Poller) SampleOnce() error {
	s := p.read()
	prev := p.store.Load()
	next := prev

	if s.err == nil {
		next.Temperature = s.temperature
		next.Humidity = s.humidity
		next.CO2 = s.co2
		next.Valid = true
		next.SampledAt = p.now()
		next.Misses = 0
		next.Stale = false
		next.LastErrorCode = 0
	} else {
		next.Misses = prev.Misses + 1
		next.Stale = next.Misses >= p.cfg.StaleAfter
		next.LastErrorCode = status.ErrorCode(s.err)
	}

	p.store.store(next)
	p.obs.SampleTaken(p.cfg.SensorID, resultOf(s.err))

	if s.err != nil {
		p.log.Debug().Err(s.err).Int("misses", next.Misses).Msg("sample failed")
	}
	if next.Stale != prev.Stale {
		p.obs.StalenessChanged(p.cfg.SensorID, next.Stale)
		if next.Stale {
			p.log.Warn().Err(s.err).Int("misses", next.Misses).Msg("reading is stale, keeping last good values")
		} else {
			p.log.Info().Msg("reading is fresh again")
		}
	}
	if !prev.Valid && next.Valid {
		p.log.Info().
			Float64("temperature", next.Temperature).
			Float64("humidity", next.Humidity).
			Uint16("co2", next.CO2).
			Msg("first sample acquired")
	}

	return s.err
}

// read runs one bounded driver read.
// Reads never overlap: while a timed-out read is still on the bus,
// later cycles fail fast with ErrReadTimeout.
func (p *Poller) read() sample {
	if p.pending != nil {
		select {
		case <-p.pending:
			// Late result of a timed-out read. Too old to publish.
			p.pending = nil
		default:
			return sample{err: ErrReadTimeout}
		}
	}

	ch := make(chan sample, 1)
	go func() { ch <- p.readDriver() }()

	timer := time.NewTimer(p.cfg.ReadTimeout)
	defer timer.Stop()

	select {
	case s := <-ch:
		return s
	case <-timer.C:
		p.pending = ch
		return sample{err: ErrReadTimeout}
	}
}

func (p *Poller) readDriver() sample {
	ok, err := p.drv.DataAvailable()
	if err != nil {
		return sample{err: wrapDriver("data ready", err)}
	}
	if !ok {
		return sample{err: ErrNoData}
	}

	var s sample
	if s.temperature, err = p.drv.ReadTemperature(); err != nil {
		return sample{err: wrapDriver("read temperature", err)}
	}
	if s.humidity, err = p.drv.ReadHumidity(); err != nil {
		return sample{err: wrapDriver("read humidity", err)}
	}
	if p.co2 != nil {
		if s.co2, err = p.co2.ReadCO2(); err != nil {
			return sample{err: wrapDriver("read co2", err)}
		}
	}
	return s
}
