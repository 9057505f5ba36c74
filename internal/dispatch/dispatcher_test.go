package dispatch

import (
	"net"
	"testing"
	"time"

	"github.com/tcplb/tcplb/internal/config"
	"github.com/tcplb/tcplb/internal/pool"
)

func testLoopbackConn(t *testing.T) net.Conn {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err == nil {
			conn.Close()
		}
	}()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	return conn
}

func newTwoBackendPool(t *testing.T, capacity int) *pool.Pool {
	t.Helper()
	ln1, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	defer ln1.Close()
	ln2, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	defer ln2.Close()

	go acceptAndClose(ln1)
	go acceptAndClose(ln2)

	_, port1Str, _ := net.SplitHostPort(ln1.Addr().String())
	_, port2Str, _ := net.SplitHostPort(ln2.Addr().String())

	p := pool.New()
	p.LoadRoster([]config.BackendSpec{
		{Name: "A", Address: "127.0.0.1", Port: atoi(port1Str)},
		{Name: "B", Address: "127.0.0.1", Port: atoi(port2Str)},
	}, capacity)

	live := p.DialAll(time.Second, nil)
	if live != 2 {
		t.Fatalf("expected 2 live backends, got %d", live)
	}
	return p
}

func acceptAndClose(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		go func() {
			buf := make([]byte, 1)
			conn.Read(buf)
			conn.Close()
		}()
	}
}

func atoi(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}

// TestDispatchTwoClientsTwoBackends is spec §8 scenario 1: two empty
// backends of equal capacity, first client goes to the lower-indexed one,
// the second follows least-loaded-fraction to the other.
func TestDispatchTwoClientsTwoBackends(t *testing.T) {
	p := newTwoBackendPool(t, 1000)
	d := New(p)

	c0 := &pool.Client{ID: 0, Conn: testLoopbackConn(t)}
	c1 := &pool.Client{ID: 1, Conn: testLoopbackConn(t)}

	if err := d.Dispatch(c0); err != nil {
		t.Fatalf("dispatch c0 failed: %v", err)
	}
	if err := d.Dispatch(c1); err != nil {
		t.Fatalf("dispatch c1 failed: %v", err)
	}

	stats := p.Stats()
	if stats[0].Active != 1 || stats[1].Active != 1 {
		t.Fatalf("expected each backend to have 1 active client, got %+v", stats)
	}
}

// TestDispatchLoadFractionTieBreak is spec §8 scenario 6: equal capacity,
// both empty, first-arriving client goes to the lower-indexed backend.
func TestDispatchLoadFractionTieBreak(t *testing.T) {
	p := newTwoBackendPool(t, 10)
	d := New(p)

	c := &pool.Client{ID: 0, Conn: testLoopbackConn(t)}
	if err := d.Dispatch(c); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}

	backends := p.Backends()
	name, _, _ := backends[0].Identity()
	if name != "A" {
		t.Fatalf("expected pool slot order preserved with A first, got %s", name)
	}
	if backends[0].NumConnections != 1 {
		t.Errorf("expected backend A to receive the tie-break client, got NumConnections=%d", backends[0].NumConnections)
	}
	if backends[1].NumConnections != 0 {
		t.Errorf("expected backend B untouched, got NumConnections=%d", backends[1].NumConnections)
	}
}

// TestDispatchRejectsWhenAllAtCapacity is the §9 fix: no selection must
// reject the client, not panic.
func TestDispatchRejectsWhenAllAtCapacity(t *testing.T) {
	p := newTwoBackendPool(t, 1)
	d := New(p)

	c0 := &pool.Client{ID: 0, Conn: testLoopbackConn(t)}
	c1 := &pool.Client{ID: 1, Conn: testLoopbackConn(t)}
	c2 := &pool.Client{ID: 2, Conn: testLoopbackConn(t)}

	if err := d.Dispatch(c0); err != nil {
		t.Fatalf("dispatch c0 failed: %v", err)
	}
	if err := d.Dispatch(c1); err != nil {
		t.Fatalf("dispatch c1 failed: %v", err)
	}

	err := d.Dispatch(c2)
	if err != ErrNoBackend {
		t.Fatalf("expected ErrNoBackend, got %v", err)
	}
}

func TestDispatchEmptyPoolRejects(t *testing.T) {
	p := pool.New()
	d := New(p)

	c := &pool.Client{ID: 0, Conn: testLoopbackConn(t)}
	if err := d.Dispatch(c); err != ErrNoBackend {
		t.Fatalf("expected ErrNoBackend on empty pool, got %v", err)
	}
}
