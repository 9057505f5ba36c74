//go:build unix

package proxy

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// setBacklogControl is the net.ListenConfig.Control callback used by
// Listen. It only sets SO_REUSEADDR (allowing a fast restart to rebind
// before TIME_WAIT expires); it does not touch the accept backlog. Go's net
// package picks the backlog from the kernel's somaxconn at listen(2) time,
// so MaxQueuedConnections is not applied to the listener.
func setBacklogControl(network, address string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}
