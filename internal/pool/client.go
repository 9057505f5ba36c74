package pool

import "net"

// Client is one accepted inbound connection, minted by the accept loop and
// handed to exactly one backend by the dispatcher.
type Client struct {
	ID       uint64
	Conn     net.Conn
	PeerAddr net.Addr
}
