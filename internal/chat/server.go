// Package chat implements the TCP chat service: the listener, one
// worker per connection, the request router, the domain handlers, and
// the push delivery engine.
package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"parley/server/internal/proto"
	"parley/server/internal/session"
	"parley/server/internal/store"
)

// Server accepts connections and runs one worker per connection. All
// shared state lives in the store and the session registry; the server
// itself only hands out connection ids and the per-group send locks.
type Server struct {
	st       *store.Store
	sessions *session.Registry
	metrics  *Metrics

	nextConnID atomic.Int64

	// sendMu guards sendLocks; the per-group locks themselves keep
	// message-id assignment and fan-out dispatch one critical section.
	sendMu    sync.Mutex
	sendLocks map[int64]*sync.Mutex
}

// NewServer wires the chat service to its store, session registry, and
// metrics collectors.
func NewServer(st *store.Store, sessions *session.Registry, m *Metrics) *Server {
	return &Server{
		st:        st,
		sessions:  sessions,
		metrics:   m,
		sendLocks: make(map[int64]*sync.Mutex),
	}
}

// Serve accepts connections on ln until ctx is cancelled. It returns
// nil on a cancellation-driven shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	slog.Info("listening", "addr", ln.Addr())
	for {
		nc, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go s.handleConn(nc)
	}
}

// handleConn is the per-connection worker: read a record, route it,
// write the response. On any terminal condition it releases the
// session, emits departure pushes for the session's subscription, and
// closes the socket.
func (s *Server) handleConn(nc net.Conn) {
	c := &conn{id: s.nextConnID.Add(1), nc: nc}
	s.metrics.ConnectionsTotal.Inc()
	s.metrics.ConnectionsOpen.Inc()
	slog.Debug("connection opened", "conn", c.id, "remote", nc.RemoteAddr())

	defer func() {
		for _, snap := range s.sessions.RemoveByConn(c.id) {
			s.emitDeparture(snap)
		}
		nc.Close()
		s.metrics.ConnectionsOpen.Dec()
		slog.Debug("connection closed", "conn", c.id)
	}()

	f := proto.NewFramer()
	for {
		rec, err := f.ReadRecord(nc)
		if err != nil {
			if err != io.EOF && !errors.Is(err, net.ErrClosed) {
				slog.Debug("read failed", "conn", c.id, "err", err)
			}
			return
		}
		resp, closeAfter := s.dispatch(c, rec)
		if err := c.reply(resp); err != nil {
			return
		}
		if closeAfter {
			return
		}
	}
}

// RunReaper purges idle-expired sessions every interval until ctx is
// cancelled. Expiry is treated like a disconnect, so the same
// departure pushes are emitted.
func (s *Server) RunReaper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			expired := s.sessions.Reap()
			for _, snap := range expired {
				s.emitDeparture(snap)
			}
			if len(expired) > 0 {
				slog.Info("expired idle sessions", "count", len(expired))
			}
		}
	}
}
