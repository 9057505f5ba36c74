// Package dispatch implements the least-loaded-fraction client assignment
// described in spec §4.4: scan every live backend, track the minimum load
// fraction seen, and attach the client to that backend's client set.
package dispatch

import (
	"errors"
	"log/slog"

	"github.com/tcplb/tcplb/internal/pool"
)

// ErrNoBackend is returned when no backend qualifies for assignment — every
// live backend is at or above capacity, or the pool has no live backends at
// all. The original source dereferences a null pointer in this case; here
// the client is rejected instead, per spec §9's own fix instruction.
var ErrNoBackend = errors.New("dispatch: no backend available")

// Dispatcher assigns accepted clients to backends.
type Dispatcher struct {
	pool *pool.Pool
}

// New builds a Dispatcher over the given pool.
func New(p *pool.Pool) *Dispatcher {
	return &Dispatcher{pool: p}
}

// Dispatch scans all live backends, selects the minimum load-fraction
// backend, and assigns client to it. Ties are broken in favor of the
// lower-indexed backend — Backends() preserves pool slot order, and the
// scan uses a strict less-than comparison, so the first minimum seen is
// kept exactly as spec requires.
//
// Initial best is 1.0: an empty pool or an all-at-capacity pool both yield
// no selection, matching spec's stated edge case.
func (d *Dispatcher) Dispatch(client *pool.Client) error {
	backends := d.pool.Backends()

	var best *pool.Backend
	bestLoad := 1.0

	for _, b := range backends {
		load := b.LoadFraction()
		if load < bestLoad {
			bestLoad = load
			best = b
		}
	}

	if best == nil {
		slog.Warn("dispatch rejected client, no backend available", "client", client.ID)
		return ErrNoBackend
	}

	if err := best.Assign(client); err != nil {
		slog.Warn("dispatch assign failed", "client", client.ID, "error", err)
		return err
	}

	name, _, _ := best.Identity()
	slog.Info("client dispatched", "client", client.ID, "backend", name, "load", bestLoad)
	return nil
}
