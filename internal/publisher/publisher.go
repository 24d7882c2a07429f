// internal/publisher/publisher.go
package publisher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/modbus-sensorbridge/internal/poller"
	"github.com/tamzrod/modbus-sensorbridge/internal/registers"
)

// Table is the register table surface the publisher writes.
type Table interface {
	WriteRegisters(space registers.Space, start int, values []uint16) error
	WriteBits(space registers.Space, start int, values []bool) error
}

// Source is one sensor the publisher reads from.
type Source struct {
	SensorID    string
	Store       *poller.Store
	HoldingBase uint16
	// StatusSlot enables the status block when set.
	StatusSlot *uint16
}

// Config is the minimal runtime config the publisher needs.
type Config struct {
	Interval   time.Duration
	DeviceName string
	Sources    []Source
}

// Observer receives publish events. It must not block.
type Observer interface {
	ReadingPublished(r poller.Reading)
	PublishCompleted(err error)
}

type nopObserver struct{}

func (nopObserver) ReadingPublished(poller.Reading) {}
func (nopObserver) PublishCompleted(error)          {}

type source struct {
	Source
	status *statusWriter
}

// Publisher copies sensor snapshots into the register table on its own clock.
type Publisher struct {
	cfg     Config
	tbl     Table
	sources []source
	log     zerolog.Logger
	obs     Observer
	now     func() time.Time
	started time.Time
}

// New creates a publisher with immutable config.
func New(cfg Config, tbl Table, log zerolog.Logger, obs Observer) (*Publisher, error) {
	if tbl == nil {
		return nil, errors.New("publisher: table required")
	}
	if cfg.Interval <= 0 {
		return nil, errors.New("publisher: interval must be > 0")
	}
	if len(cfg.Sources) == 0 {
		return nil, errors.New("publisher: at least one source required")
	}
	if obs == nil {
		obs = nopObserver{}
	}

	p := &Publisher{
		cfg: cfg,
		tbl: tbl,
		log: log.With().Str("component", "publisher").Logger(),
		obs: obs,
		now: time.Now,
	}
	p.started = p.now()

	for _, s := range cfg.Sources {
		if s.SensorID == "" || s.Store == nil {
			return nil, errors.New("publisher: source requires sensor id and store")
		}
		src := source{Source: s}
		if s.StatusSlot != nil {
			src.status = newStatusWriter(*s.StatusSlot, cfg.DeviceName)
		}
		p.sources = append(p.sources, src)
	}
	return p, nil
}

// PublishOnce performs exactly one publish cycle over every source.
// Each sensor's holding range is written in one table call, so readers see
// temperature, humidity and CO2 from the same cycle.
// A sensor that never produced a good sample leaves its holding range untouched.
func (p *Publisher) PublishOnce() error {
	now := p.now()
	var errs []string

	for _, s := range p.sources {
		r := s.Store.Load()

		if r.Valid {
			if err := p.tbl.WriteRegisters(registers.HoldingRegisters, int(s.HoldingBase), EncodeHolding(r)); err != nil {
				errs = append(errs, fmt.Sprintf("sensor=%s holding write failed: %v", s.SensorID, err))
			} else {
				p.obs.ReadingPublished(r)
			}
		}

		if s.status != nil {
			if err := s.status.write(p.tbl, snapshotOf(r, now, p.started), r.Fresh()); err != nil {
				errs = append(errs, fmt.Sprintf("sensor=%s %v", s.SensorID, err))
			}
		}
	}

	var err error
	if len(errs) > 0 {
		err = errors.New("publisher: " + strings.Join(errs, " | "))
	}
	p.obs.PublishCompleted(err)
	return err
}

// Run starts the ticker loop until ctx is done.
// Cadence is independent of sampling.
func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.log.Info().Dur("interval", p.cfg.Interval).Int("sources", len(p.sources)).Msg("publisher started")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.PublishOnce(); err != nil {
				p.log.Error().Err(err).Msg("publish cycle failed")
			}
		}
	}
}
