// internal/netstate/monitor.go
package netstate

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"
)

// Monitor polls one interface and feeds its link state into a State.
type Monitor struct {
	iface    string
	interval time.Duration
	state    *State
	log      zerolog.Logger

	flags func(name string) (net.Flags, error)
}

// NewMonitor creates a monitor for iface.
func NewMonitor(iface string, interval time.Duration, state *State, log zerolog.Logger) (*Monitor, error) {
	if iface == "" {
		return nil, errors.New("netstate: interface required")
	}
	if interval <= 0 {
		return nil, errors.New("netstate: interval must be > 0")
	}
	if state == nil {
		return nil, errors.New("netstate: state required")
	}
	return &Monitor{
		iface:    iface,
		interval: interval,
		state:    state,
		log:      log.With().Str("component", "netstate").Str("interface", iface).Logger(),
		flags:    interfaceFlags,
	}, nil
}

func interfaceFlags(name string) (net.Flags, error) {
	ifi, err := net.InterfaceByName(name)
	if err != nil {
		return 0, fmt.Errorf("netstate: %w", err)
	}
	return ifi.Flags, nil
}

// Check probes the interface once. A missing interface counts as down.
func (m *Monitor) Check() bool {
	f, err := m.flags(m.iface)
	up := err == nil && f&net.FlagUp != 0 && f&net.FlagRunning != 0

	if m.state.Set(up) {
		if up {
			m.log.Info().Msg("link up")
		} else {
			m.log.Warn().Err(err).Msg("link down")
		}
	}
	return up
}

// Run probes on a ticker until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	m.Check()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check()
		}
	}
}
