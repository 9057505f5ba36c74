package pool

import (
	"bufio"
	"io"
	"log/slog"

	"github.com/tcplb/tcplb/internal/metrics"
)

// readBufSize is the per-client read cap from spec step 4: "read up to 1023
// bytes from the client socket into a local buffer."
const readBufSize = 1023

// Worker is the long-running per-backend task described in spec §4.3: wait
// for work, multiplex readiness, read ready clients, forward or disconnect.
// There is no terminal state — Run loops until stop is closed.
type Worker struct {
	backend     *Backend
	pollTimeout int // milliseconds
	stop        chan struct{}
	metrics     *metrics.Collector
}

// NewWorker builds the worker for one live backend. pollTimeoutMs is the
// bounded timeout handed to the readiness multiplexer each pass (100ms in
// production, 10000ms in debug, per spec §4.3). m may be nil in tests.
func NewWorker(b *Backend, pollTimeoutMs int, m *metrics.Collector) *Worker {
	return &Worker{
		backend:     b,
		pollTimeout: pollTimeoutMs,
		stop:        make(chan struct{}),
		metrics:     m,
	}
}

// Stop signals Run to exit after its current iteration. Per spec §9, the
// original design has no graceful shutdown; this is new ambient
// infrastructure (see SPEC_FULL.md's carried "graceful process shutdown"
// supplemental feature) — it stops accepting new multiplex passes, it does
// not drain in-flight client state.
func (w *Worker) Stop() {
	close(w.stop)
}

// Run is the worker's main loop, one iteration per spec §4.3 step:
//  1. wait for work (guarded wait on backend.cond)
//  2. readiness multiplex over the first n poll entries
//  3. fall through on error or timeout
//  4. handle each ready client: forward its bytes, or disconnect on EOF
func (w *Worker) Run() {
	name, _, _ := w.backend.Identity()
	for {
		select {
		case <-w.stop:
			return
		default:
		}

		n := w.backend.waitForWork()

		w.backend.pollMu.Lock()
		entries, clients := w.backend.snapshotPollEntries(n)
		w.backend.pollMu.Unlock()

		ready, readyCount, err := pollReady(entries, w.pollTimeout)
		if err != nil {
			slog.Warn("backend poll error", "backend", name, "error", err)
			if w.metrics != nil {
				w.metrics.RecordPollError(name)
			}
			continue
		}
		if readyCount == 0 {
			if w.metrics != nil {
				w.metrics.RecordPollTimeout(name)
			}
			continue
		}

		w.handleReady(entries, clients, ready)
	}
}

// handleReady processes each ready client socket: reads up to readBufSize
// bytes, forwards non-empty reads to the upstream connection framed by
// client id, and disconnects clients that report EOF. Disconnects are
// applied by array index high-to-low so an earlier tail-swap compaction
// doesn't invalidate a later index still pending in this same pass.
func (w *Worker) handleReady(entries []pollEntry, clients []*Client, ready []bool) {
	name, _, _ := w.backend.Identity()

	for i := len(entries) - 1; i >= 0; i-- {
		if !ready[i] {
			continue
		}
		client := clients[i]
		if client == nil {
			continue
		}

		buf := make([]byte, readBufSize)
		nr, err := client.Conn.Read(buf)
		switch {
		case nr == 0 && (err == nil || err == io.EOF):
			w.backend.disconnect(i)
			slog.Info("client disconnected", "backend", name, "client", client.ID)
			if w.metrics != nil {
				w.metrics.RecordWorkerDisconnect(name)
			}
		case nr > 0:
			if werr := w.forward(client, buf[:nr]); werr != nil {
				slog.Warn("forward to upstream failed", "backend", name, "client", client.ID, "error", werr)
			} else if w.metrics != nil {
				w.metrics.RecordWorkerRead(name)
			}
		case err != nil:
			// spec §7: "Client read < 0: log; leave client assigned." A Go
			// Read returning an error with nr == 0 but not io.EOF maps to
			// the original's negative-return path — log and retry next pass.
			slog.Warn("client read error", "backend", name, "client", client.ID, "error", err)
		}
	}
}

// forward writes client's bytes to this backend's upstream socket, wrapped
// in the frame envelope defined in frame.go.
func (w *Worker) forward(client *Client, payload []byte) error {
	w.backend.identityMu.Lock()
	conn := w.backend.Conn
	w.backend.identityMu.Unlock()

	return writeFrame(conn, client.ID, payload)
}

// RunDemux is the second per-backend goroutine: it reads the framed
// response stream coming back from the shared upstream socket and routes
// each frame's payload to the client whose id matches an entry currently in
// assigned. A frame addressed to a client no longer assigned (raced with a
// disconnect) is silently dropped — the client socket is already closed.
func (w *Worker) RunDemux() {
	name, _, _ := w.backend.Identity()
	w.backend.identityMu.Lock()
	conn := w.backend.Conn
	w.backend.identityMu.Unlock()

	r := bufio.NewReader(conn)
	for {
		select {
		case <-w.stop:
			return
		default:
		}

		clientID, payload, err := readFrame(r)
		if err != nil {
			if err != io.EOF {
				slog.Warn("upstream demux read failed", "backend", name, "error", err)
			}
			return
		}

		dst := w.backend.findAssignedClient(clientID)
		if dst == nil {
			continue
		}
		if _, err := dst.Conn.Write(payload); err != nil {
			slog.Warn("writing to client failed", "backend", name, "client", clientID, "error", err)
		}
	}
}

// findAssignedClient scans the assigned array under pollMu for the client
// with the given id. Linear scan matches the array's bounded, small-N
// nature (capacity defaults to 1000, scanned only on backend response
// traffic, not per-byte).
//
// Reads NumConnections without also taking connMu: both Assign and
// disconnect only ever mutate NumConnections while holding pollMu too, so
// holding pollMu alone already excludes concurrent writers here. Taking
// connMu as well would invert the fixed connMu-then-pollMu order those
// callers use and risk a lock-order deadlock against them.
func (b *Backend) findAssignedClient(id uint64) *Client {
	b.pollMu.Lock()
	defer b.pollMu.Unlock()

	n := b.NumConnections
	for i := 0; i < n && i < len(b.assigned); i++ {
		if c := b.assigned[i]; c != nil && c.ID == id {
			return c
		}
	}
	return nil
}
