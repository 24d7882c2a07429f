// internal/modbus/server.go
package modbus

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultWriteTimeout = 2 * time.Second
	acceptBackoff       = 100 * time.Millisecond
)

// Config is the server runtime config.
type Config struct {
	// Address is host:port for ListenAndServe, e.g. ":502".
	Address string
	// IdleTimeout closes a connection that sends nothing for this long.
	IdleTimeout time.Duration
	// WriteTimeout bounds one response write.
	WriteTimeout time.Duration
}

// Server is a Modbus TCP slave serving one Store.
//
// Exactly one client connection is active at a time. A new connection
// closes the previous one (and waits for it to finish) before it is served.
// Every connection owns its own receive and transmit buffers.
type Server struct {
	cfg   Config
	store Store
	log   zerolog.Logger
	obs   Observer

	mu     sync.Mutex
	ln     net.Listener
	active *conn
}

// New creates a server with immutable config.
func New(cfg Config, store Store, log zerolog.Logger, obs Observer) (*Server, error) {
	if store == nil {
		return nil, errors.New("modbus server: store required")
	}
	if cfg.IdleTimeout <= 0 {
		return nil, errors.New("modbus server: idle timeout must be > 0")
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if obs == nil {
		obs = NopObserver{}
	}
	return &Server{
		cfg:   cfg,
		store: store,
		log:   log.With().Str("component", "modbus").Logger(),
		obs:   obs,
	}, nil
}

// ListenAndServe binds cfg.Address and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s.cfg.Address == "" {
		return errors.New("modbus server: address required")
	}
	ln, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then closes ln and the
// active connection. It returns nil on context shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	s.log.Info().Str("listen", ln.Addr().String()).Msg("modbus server listening")

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = ln.Close()
		case <-stop:
		}
	}()

	for {
		nc, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.closeActive(CloseShutdown)
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				s.closeActive(CloseShutdown)
				return err
			}

			// Accept failures never touch the table; back off and retry.
			s.log.Warn().Err(err).Msg("accept failed")
			select {
			case <-ctx.Done():
				s.closeActive(CloseShutdown)
				return nil
			case <-time.After(acceptBackoff):
			}
			continue
		}
		s.takeOver(nc)
	}
}

// Addr returns the listener address, or nil before Serve.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Active reports whether a client connection currently holds the slot.
func (s *Server) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active != nil
}

// takeOver installs nc as the single active connection.
func (s *Server) takeOver(nc net.Conn) {
	c := newConn(s, nc)

	s.mu.Lock()
	prev := s.active
	s.active = c
	s.mu.Unlock()

	if prev != nil {
		s.log.Info().
			Str("remote", prev.remote).
			Str("incoming", c.remote).
			Msg("new client supersedes active connection")
		prev.close(CloseSuperseded)
		<-prev.done
	}

	s.obs.ConnectionOpened(c.remote)
	c.log.Info().Msg("client connected")
	go c.serve()
}

// release frees the slot if c still holds it.
func (s *Server) release(c *conn) {
	s.mu.Lock()
	if s.active == c {
		s.active = nil
	}
	s.mu.Unlock()
}

func (s *Server) closeActive(reason CloseReason) {
	s.mu.Lock()
	c := s.active
	s.mu.Unlock()
	if c == nil {
		return
	}
	c.close(reason)
	<-c.done
}
