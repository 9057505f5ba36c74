package pool

import (
	"fmt"
	"net"
	"sync"

	"golang.org/x/sys/unix"
)

// MaxBackends caps the pool's slot count, matching the original program's
// MAX_SERVERS.
const MaxBackends = 10

// DefaultMaxConnections is the per-backend capacity applied when the roster
// loader or config doesn't override it.
const DefaultMaxConnections = 1000

// pollEntry mirrors one element of the original's pollfd array: the fd under
// poll and the events requested of it.
type pollEntry struct {
	fd     int
	events int16
}

// Backend is one upstream server record. Every mutable region is guarded by
// one of three independent locks, matching the original's three sub-locks
// exactly:
//
//   - identityMu guards Name/Address/Port/Conn (written once at bootstrap,
//     read-only for the backend's lifetime afterward).
//   - connMu + cond guards NumConnections and is the condition variable the
//     worker blocks on between dispatches.
//   - pollMu guards the parallel pollEntries/assigned arrays.
//
// The fixed lock order connMu -> pollMu MUST be respected by any caller that
// needs both; Assign and disconnect both take them in that order.
type Backend struct {
	slot int

	identityMu sync.Mutex
	Name       string
	Address    string
	Port       int
	Conn       net.Conn

	connMu         sync.Mutex
	cond           *sync.Cond
	NumConnections int
	maxConnections int

	pollMu      sync.Mutex
	pollEntries []pollEntry
	assigned    []*Client
}

// NewBackend allocates a backend record for the given pool slot with room
// for up to capacity concurrently assigned clients. Identity fields are
// filled in separately under identityMu, matching the construction sequence
// described for the original: allocate first, populate identity later.
func NewBackend(slot int, capacity int) *Backend {
	if capacity <= 0 {
		capacity = DefaultMaxConnections
	}
	b := &Backend{
		slot:           slot,
		maxConnections: capacity,
		pollEntries:    make([]pollEntry, capacity),
		assigned:       make([]*Client, capacity),
	}
	b.cond = sync.NewCond(&b.connMu)
	return b
}

// SetIdentity records the roster-supplied identity fields under identityMu.
func (b *Backend) SetIdentity(name, address string, port int) {
	b.identityMu.Lock()
	defer b.identityMu.Unlock()
	b.Name = name
	b.Address = address
	b.Port = port
}

// SetConn records the dialed upstream socket under identityMu. Read-only
// after this call for the remainder of the backend's life.
func (b *Backend) SetConn(conn net.Conn) {
	b.identityMu.Lock()
	defer b.identityMu.Unlock()
	b.Conn = conn
}

// Identity returns a snapshot of the read-only identity fields, safe to call
// concurrently with the worker and dispatcher.
func (b *Backend) Identity() (name, address string, port int) {
	b.identityMu.Lock()
	defer b.identityMu.Unlock()
	return b.Name, b.Address, b.Port
}

// MaxConnections returns the backend's configured capacity.
func (b *Backend) MaxConnections() int {
	return b.maxConnections
}

// LoadFraction reads NumConnections and maxConnections together under
// connMu and returns the dispatcher's load metric. Matches spec: "compute
// load_i = num_connections_i / max_connections_i under slot i's
// connection-details lock."
func (b *Backend) LoadFraction() float64 {
	b.connMu.Lock()
	defer b.connMu.Unlock()
	if b.maxConnections == 0 {
		return 1.0
	}
	return float64(b.NumConnections) / float64(b.maxConnections)
}

// Assign inserts client into this backend's client set, following the exact
// sequence and lock order the dispatcher is required to use: acquire
// connMu, then pollMu; append at index NumConnections; bump NumConnections;
// signal the workload condition; release pollMu, then connMu.
//
// Returns an error if the backend is already at capacity — the caller
// (Dispatch) is expected to have already excluded at-capacity backends from
// selection, so this is a defensive re-check rather than the primary guard.
func (b *Backend) Assign(c *Client) error {
	b.connMu.Lock()
	defer b.connMu.Unlock()

	b.pollMu.Lock()
	if b.NumConnections >= b.maxConnections {
		b.pollMu.Unlock()
		return fmt.Errorf("backend %q at capacity (%d)", b.Name, b.maxConnections)
	}

	k := b.NumConnections
	fd, err := socketFD(c.Conn)
	if err != nil {
		b.pollMu.Unlock()
		return fmt.Errorf("extracting client socket fd: %w", err)
	}
	b.assigned[k] = c
	b.pollEntries[k] = pollEntry{fd: fd, events: unix.POLLIN}
	b.NumConnections = k + 1

	b.cond.Signal()
	b.pollMu.Unlock()
	return nil
}

// waitForWork blocks until NumConnections > 0, then returns the snapshot
// count. This is the worker's step 1 guarded wait, using the standard Go
// sync.Cond idiom: re-check the predicate in a loop, since Signal can wake a
// goroutine spuriously relative to its own check of the condition.
func (b *Backend) waitForWork() int {
	b.connMu.Lock()
	defer b.connMu.Unlock()
	for b.NumConnections == 0 {
		b.cond.Wait()
	}
	return b.NumConnections
}

// disconnect handles a client EOF at array index i: swaps the tail element
// into position i in both parallel arrays (the compaction the original
// source was missing, which otherwise leaves a stale descriptor behind),
// decrements NumConnections, and closes the client socket. Takes connMu
// then pollMu, the same fixed order Assign uses.
func (b *Backend) disconnect(i int) {
	b.connMu.Lock()
	b.pollMu.Lock()

	n := b.NumConnections
	if n == 0 || i >= n {
		b.pollMu.Unlock()
		b.connMu.Unlock()
		return
	}
	last := n - 1

	client := b.assigned[i]
	if i != last {
		b.assigned[i] = b.assigned[last]
		b.pollEntries[i] = b.pollEntries[last]
	}
	b.assigned[last] = nil
	b.pollEntries[last] = pollEntry{}
	b.NumConnections = last

	b.pollMu.Unlock()
	b.connMu.Unlock()

	if client != nil {
		client.Conn.Close()
	}
}

// snapshotPollEntries copies the first n poll entries for the multiplexer to
// poll outside the lock, and returns the parallel assigned-client slice
// (read-only use by the caller — mutation happens via disconnect/Assign).
func (b *Backend) snapshotPollEntries(n int) ([]pollEntry, []*Client) {
	entries := make([]pollEntry, n)
	clients := make([]*Client, n)
	copy(entries, b.pollEntries[:n])
	copy(clients, b.assigned[:n])
	return entries, clients
}

// teardown releases a backend's resources. Per spec, MUST NOT run once a
// worker holds any of the record's locks; callers only invoke this during
// bootstrap, before any worker is launched.
func (b *Backend) teardown() {
	if b.Conn != nil {
		b.Conn.Close()
	}
	b.pollEntries = nil
	b.assigned = nil
}
