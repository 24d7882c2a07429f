// cmd/sensorbridge/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"periph.io/x/host/v3"

	"github.com/tamzrod/modbus-sensorbridge/internal/config"
	"github.com/tamzrod/modbus-sensorbridge/internal/logging"
	"github.com/tamzrod/modbus-sensorbridge/internal/metrics"
	"github.com/tamzrod/modbus-sensorbridge/internal/modbus"
	"github.com/tamzrod/modbus-sensorbridge/internal/netstate"
	"github.com/tamzrod/modbus-sensorbridge/internal/poller"
	"github.com/tamzrod/modbus-sensorbridge/internal/publisher"
	"github.com/tamzrod/modbus-sensorbridge/internal/registers"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: sensorbridge <config.yaml>")
		os.Exit(2)
	}

	// --------------------
	// Load + validate config
	// --------------------

	cfg, err := config.Load(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.Bridge.Log, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger setup failed: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error().Err(err).Msg("bridge stopped")
		stop()
		os.Exit(1)
	}
	log.Info().Msg("bridge stopped")
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	b := cfg.Bridge

	if needsHost(b.Sensors) {
		if _, err := host.Init(); err != nil {
			return fmt.Errorf("periph host init: %w", err)
		}
	}

	tbl := registers.New(registers.Capacity{
		DiscreteInputs:   b.Registers.DiscreteInputs,
		Coils:            b.Registers.Coils,
		InputRegisters:   b.Registers.InputRegisters,
		HoldingRegisters: b.Registers.HoldingRegisters,
	})
	reg := metrics.New()

	// --------------------
	// Build per-sensor pollers
	// --------------------

	pollers := make([]*poller.Poller, 0, len(b.Sensors))
	sources := make([]publisher.Source, 0, len(b.Sensors))
	for _, sc := range b.Sensors {
		p, closePoller, err := poller.Build(sc, log, reg)
		if err != nil {
			return fmt.Errorf("poller build failed (sensor=%s): %w", sc.ID, err)
		}
		defer func(id string) {
			if err := closePoller(); err != nil {
				log.Warn().Err(err).Str("sensor", id).Msg("sensor close failed")
			}
		}(sc.ID)

		pollers = append(pollers, p)
		sources = append(sources, publisher.Source{
			SensorID:    sc.ID,
			Store:       p.Store(),
			HoldingBase: sc.HoldingBase,
			StatusSlot:  sc.StatusSlot,
		})
	}

	pub, err := publisher.New(publisher.Config{
		Interval:   time.Duration(b.Publish.IntervalMs) * time.Millisecond,
		DeviceName: b.DeviceName,
		Sources:    sources,
	}, tbl, log, reg)
	if err != nil {
		return err
	}

	srv, err := modbus.New(modbus.Config{
		Address:      b.Modbus.Listen,
		IdleTimeout:  time.Duration(b.Modbus.IdleTimeoutMs) * time.Millisecond,
		WriteTimeout: time.Duration(b.Modbus.WriteTimeoutMs) * time.Millisecond,
	}, tbl, log, reg)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	// ---- acquisition + publishing ----
	for _, p := range pollers {
		p := p
		g.Go(func() error {
			p.Run(ctx)
			return nil
		})
	}
	g.Go(func() error {
		pub.Run(ctx)
		return nil
	})

	// ---- link gate, then modbus server ----
	link := netstate.NewState(b.Link.Interface == "")
	if b.Link.Interface != "" {
		m, err := netstate.NewMonitor(
			b.Link.Interface,
			time.Duration(b.Link.PollIntervalMs)*time.Millisecond,
			link,
			log,
		)
		if err != nil {
			return err
		}
		g.Go(func() error {
			m.Run(ctx)
			return nil
		})
	}
	g.Go(func() error {
		if err := link.Wait(ctx, true); err != nil {
			return nil
		}
		return srv.ListenAndServe(ctx)
	})

	// ---- metrics endpoint ----
	if b.Metrics.Listen != "" {
		hs := &http.Server{
			Addr:              b.Metrics.Listen,
			Handler:           reg.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			log.Info().Str("listen", hs.Addr).Msg("metrics endpoint listening")
			if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return hs.Shutdown(sctx)
		})
	}

	log.Info().
		Str("device", b.DeviceName).
		Int("sensors", len(b.Sensors)).
		Msg("bridge started")

	return g.Wait()
}

func needsHost(sensors []config.SensorConfig) bool {
	for _, sc := range sensors {
		if sc.Driver == config.DriverSCD30 {
			return true
		}
	}
	return false
}
