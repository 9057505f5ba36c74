// Package proxy implements the inbound accept loop described in spec §4.5:
// accept one client, mint a client record with a monotonically increasing
// id, and hand it to the dispatcher.
package proxy

import (
	"context"
	"fmt"
	"log"
	"net"
	"sync"
	"sync/atomic"

	"github.com/tcplb/tcplb/internal/dispatch"
	"github.com/tcplb/tcplb/internal/metrics"
	"github.com/tcplb/tcplb/internal/pool"
)

// MaxQueuedConnections records the original's MAX_QUEUED_CONNECTIONS
// listener backlog. Go's net package does not expose a backlog parameter,
// and Listen does not apply this value: the listener's backlog is whatever
// the platform default is (the kernel's somaxconn on Linux).
const MaxQueuedConnections = 100

// Server is the inbound TCP listener and accept loop.
type Server struct {
	dispatcher *dispatch.Dispatcher
	metrics    *metrics.Collector

	listener net.Listener
	nextID   atomic.Uint64

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer builds a Server that dispatches accepted clients through d.
func NewServer(d *dispatch.Dispatcher, m *metrics.Collector) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		dispatcher: d,
		metrics:    m,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Listen starts the inbound listener on the given port (IPv4 wildcard,
// matching spec's "INADDR_ANY, LB_PORT = 1800") and begins the accept loop
// in the background.
func (s *Server) Listen(port int) error {
	addr := fmt.Sprintf("0.0.0.0:%d", port)

	lc := net.ListenConfig{
		Control: setBacklogControl,
	}
	ln, err := lc.Listen(s.ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.listener = ln
	log.Printf("[proxy] listening on %s", addr)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptLoop(ln)
	}()

	return nil
}

// acceptLoop is the accept loop from spec §4.5: accept one client at a
// time, log and continue on error, mint a client record with the next
// monotonically increasing id, and dispatch.
func (s *Server) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
				log.Printf("[proxy] accept error: %v", err)
				continue
			}
		}

		client := &pool.Client{
			ID:       s.nextID.Add(1) - 1,
			Conn:     conn,
			PeerAddr: conn.RemoteAddr(),
		}

		if err := s.dispatcher.Dispatch(client); err != nil {
			log.Printf("[proxy] dispatch rejected client %d: %v", client.ID, err)
			conn.Close()
			if s.metrics != nil {
				s.metrics.RecordDispatchRejected()
			}
			continue
		}
		if s.metrics != nil {
			s.metrics.RecordDispatchAssigned()
		}
	}
}

// Stop closes the listener and waits for the accept loop to exit. Per
// spec.md's "graceful draining" Non-goal, in-flight worker state is not
// drained — only the accept path is stopped.
func (s *Server) Stop() {
	s.cancel()
	if s.listener != nil {
		s.listener.Close()
	}
	s.wg.Wait()
	log.Printf("[proxy] server stopped")
}

