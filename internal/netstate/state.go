// internal/netstate/state.go
package netstate

import (
	"context"
	"sync"
)

// State is the network link state shared with the components that need it.
// Zero value is "down".
type State struct {
	mu      sync.Mutex
	up      bool
	changed chan struct{} // closed and replaced on each transition
}

// NewState returns a state starting at up.
func NewState(up bool) *State {
	return &State{up: up, changed: make(chan struct{})}
}

// Up reports the current link state.
func (s *State) Up() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.up
}

// Set records the link state and reports whether it changed.
func (s *State) Set(up bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.changed == nil {
		s.changed = make(chan struct{})
	}
	if s.up == up {
		return false
	}
	s.up = up
	close(s.changed)
	s.changed = make(chan struct{})
	return true
}

// Wait blocks until the link state equals want or ctx is done.
func (s *State) Wait(ctx context.Context, want bool) error {
	for {
		s.mu.Lock()
		if s.changed == nil {
			s.changed = make(chan struct{})
		}
		up, ch := s.up, s.changed
		s.mu.Unlock()

		if up == want {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}
