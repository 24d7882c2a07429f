// internal/modbus/conn.go
package modbus

import (
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// conn is one client connection.
//
// State machine:
//
//	AwaitingHeader -> AwaitingPayload -> Dispatch -> Respond -> AwaitingHeader
//
// Any read/write failure, idle timeout or untrusted frame length ends in Closed.
type conn struct {
	srv    *Server
	nc     net.Conn
	remote string
	log    zerolog.Logger

	// Buffers are owned by this connection only.
	rx [maxADUSize]byte
	tx [maxADUSize]byte

	once   sync.Once
	reason CloseReason
	done   chan struct{}
}

func newConn(s *Server, nc net.Conn) *conn {
	remote := nc.RemoteAddr().String()
	return &conn{
		srv:    s,
		nc:     nc,
		remote: remote,
		log:    s.log.With().Str("remote", remote).Logger(),
		done:   make(chan struct{}),
	}
}

// close is idempotent; the first reason wins.
func (c *conn) close(reason CloseReason) {
	c.once.Do(func() {
		c.reason = reason
		_ = c.nc.Close()
	})
}

func (c *conn) serve() {
	defer close(c.done)

	c.close(c.loop())
	c.srv.release(c)

	c.srv.obs.ConnectionClosed(c.remote, c.reason)
	c.log.Info().Str("reason", string(c.reason)).Msg("client disconnected")
}

func (c *conn) loop() CloseReason {
	for {
		// ---- AwaitingHeader ----
		if err := c.nc.SetReadDeadline(time.Now().Add(c.srv.cfg.IdleTimeout)); err != nil {
			return classify(err)
		}
		if _, err := io.ReadFull(c.nc, c.rx[:mbapSize]); err != nil {
			return classify(err)
		}
		h := decodeHeader(c.rx[:mbapSize])

		// A length we cannot trust means we cannot find the next frame.
		if !h.lengthOK() {
			c.srv.obs.FrameDropped(DropBadLength)
			c.log.Debug().Uint16("length", h.Length).Msg("untrusted MBAP length, closing")
			return CloseProtocol
		}

		// ---- AwaitingPayload ----
		pdu := c.rx[mbapSize : mbapSize+int(h.Length)-1]
		if _, err := io.ReadFull(c.nc, pdu); err != nil {
			return classify(err)
		}

		// Not Modbus: the transaction id means nothing, so no response.
		if h.Protocol != modbusProtID {
			c.srv.obs.FrameDropped(DropProtocolID)
			c.log.Debug().Uint16("protocol", h.Protocol).Msg("dropped frame with foreign protocol id")
			continue
		}

		// ---- Dispatch ----
		n, exc := Dispatch(c.srv.store, pdu, c.tx[mbapSize:])
		fc := FunctionCode(pdu[0])
		c.srv.obs.RequestHandled(fc, exc)
		if e := c.log.Debug(); e.Enabled() {
			e.Uint16("tid", h.Transaction).
				Uint8("unit", h.Unit).
				Str("fc", fc.String()).
				Str("exception", exc.String()).
				Msg("request handled")
		}

		// ---- Respond ----
		resp := header{
			Transaction: h.Transaction,
			Protocol:    modbusProtID,
			Length:      uint16(n + 1),
			Unit:        h.Unit,
		}
		resp.put(c.tx[:mbapSize])

		if err := c.nc.SetWriteDeadline(time.Now().Add(c.srv.cfg.WriteTimeout)); err != nil {
			return CloseIO
		}
		if _, err := c.nc.Write(c.tx[:mbapSize+n]); err != nil {
			c.log.Debug().Err(err).Msg("response write failed")
			return CloseIO
		}
	}
}

// classify names the close reason for a read error.
// Errors caused by close() are overridden by the reason close() recorded.
func classify(err error) CloseReason {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return CloseEOF
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return CloseIdle
	}
	return CloseIO
}
