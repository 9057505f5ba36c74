package pool

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tcplb/tcplb/internal/config"
	"github.com/tcplb/tcplb/internal/metrics"
)

// Pool is the fixed-capacity registry of backend records, indexed
// 0..MaxBackends-1 with holes: a slot is nil if its dial failed, or was
// never populated. Per spec §5, the slot array itself is mutated only
// during bootstrap (before any worker exists); steady-state reads from the
// dispatcher and workers need no additional synchronization.
type Pool struct {
	mu       sync.RWMutex
	backends [MaxBackends]*Backend
}

// New builds an empty pool. Roster entries are attached with LoadRoster.
func New() *Pool {
	return &Pool{}
}

// BackendStats is the JSON-friendly snapshot returned by Stats, consumed by
// the admin API's /backends route.
type BackendStats struct {
	Name         string  `json:"name"`
	Address      string  `json:"address"`
	Port         int     `json:"port"`
	Active       int     `json:"active"`
	Capacity     int     `json:"capacity"`
	LoadFraction float64 `json:"load_fraction"`
}

// LoadRoster populates the pool's slots (up to MaxBackends) from the
// parsed roster, allocating a Backend record per entry. Entries beyond
// MaxBackends are ignored — config.LoadRoster already truncates there, but
// the pool enforces its own cap defensively.
func (p *Pool) LoadRoster(specs []config.BackendSpec, defaultCapacity int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, spec := range specs {
		if i >= MaxBackends {
			slog.Warn("roster entry beyond pool capacity, dropped", "name", spec.Name, "slot", i)
			break
		}
		b := NewBackend(i, defaultCapacity)
		b.SetIdentity(spec.Name, spec.Address, spec.Port)
		p.backends[i] = b
	}
}

// DialAll is the dial fan-out from spec §4.2: in parallel, for each live
// slot, dials its upstream address. A slot whose dial fails is torn down
// and cleared rather than left half-initialized. Returns the count of
// slots still live afterward; the caller aborts if it is zero.
//
// Realized with golang.org/x/sync/errgroup without WithContext cancellation
// — each goroutine reports its own outcome independently, since spec
// requires partial success (one backend's failure must never cancel the
// others' in-flight dials).
func (p *Pool) DialAll(dialTimeout time.Duration, m *metrics.Collector) int {
	var g errgroup.Group

	for i := 0; i < MaxBackends; i++ {
		i := i
		p.mu.RLock()
		b := p.backends[i]
		p.mu.RUnlock()
		if b == nil {
			continue
		}

		g.Go(func() error {
			p.dialOne(b, i, dialTimeout, m)
			return nil
		})
	}

	_ = g.Wait()

	return p.LiveCount()
}

// dialOne performs the single-attempt, fail-fast dial for one backend slot.
// Address validation (dotted-quad) already happened at roster parse time;
// this stage only performs the network connect under the backend's
// identity lock, matching spec's "each dial operates under the identity
// lock of its backend."
func (p *Pool) dialOne(b *Backend, slot int, dialTimeout time.Duration, m *metrics.Collector) {
	name, address, port := b.Identity()

	b.identityMu.Lock()
	defer b.identityMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", address, port))
	if err != nil {
		slog.Warn("backend dial failed, dropping from pool", "backend", name, "address", address, "port", port, "error", err)
		if m != nil {
			m.RecordDialFailure(name)
		}
		p.clearSlot(slot)
		return
	}

	b.Conn = conn
	if m != nil {
		m.RecordDialSuccess(name)
	}
	slog.Info("backend dialed", "backend", name, "address", address, "port", port)
}

// clearSlot tears down and empties a pool slot. Only called from the dial
// fan-out, before any worker exists, satisfying the teardown discipline
// spec §4.1 requires.
func (p *Pool) clearSlot(slot int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if b := p.backends[slot]; b != nil {
		b.teardown()
		p.backends[slot] = nil
	}
}

// LiveCount returns the number of non-nil pool slots.
func (p *Pool) LiveCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	n := 0
	for _, b := range p.backends {
		if b != nil {
			n++
		}
	}
	return n
}

// Backends returns the live backend records, for launching one worker per
// backend at bootstrap. Iteration tolerates holes by skipping them, per
// spec §3's pool invariant.
func (p *Pool) Backends() []*Backend {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var live []*Backend
	for _, b := range p.backends {
		if b != nil {
			live = append(live, b)
		}
	}
	return live
}

// Stats returns a snapshot of every live backend's current load, for the
// admin API's /backends and /backends/{name} routes.
func (p *Pool) Stats() []BackendStats {
	backends := p.Backends()
	stats := make([]BackendStats, 0, len(backends))
	for _, b := range backends {
		name, address, port := b.Identity()
		b.connMu.Lock()
		active := b.NumConnections
		cap := b.maxConnections
		b.connMu.Unlock()

		load := 1.0
		if cap > 0 {
			load = float64(active) / float64(cap)
		}
		stats = append(stats, BackendStats{
			Name:         name,
			Address:      address,
			Port:         port,
			Active:       active,
			Capacity:     cap,
			LoadFraction: load,
		})
	}
	return stats
}

// StartStatsLoop starts a background goroutine that pushes every live
// backend's load into m on each tick, for Prometheus scraping between
// dispatch events. Grounded on the teacher's own periodic pool-stats
// reporting loop; returns a stop function that halts the ticker.
func (p *Pool) StartStatsLoop(interval time.Duration, m *metrics.Collector) (stop func()) {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				for _, s := range p.Stats() {
					m.SetBackendLoad(s.Name, s.Active, s.Capacity)
				}
			case <-done:
				return
			}
		}
	}()

	return func() { close(done) }
}
