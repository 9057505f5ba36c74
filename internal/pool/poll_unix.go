//go:build unix

package pool

import (
	"fmt"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// socketFD extracts the raw file descriptor backing conn, for handing to
// unix.Poll. The returned fd is owned by conn; it must not be closed
// independently of closing conn itself.
func socketFD(conn net.Conn) (int, error) {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return -1, fmt.Errorf("connection type %T does not expose a raw fd", conn)
	}
	rc, err := sc.SyscallConn()
	if err != nil {
		return -1, fmt.Errorf("obtaining syscall conn: %w", err)
	}
	var fd int
	ctrlErr := rc.Control(func(p uintptr) {
		fd = int(p)
	})
	if ctrlErr != nil {
		return -1, fmt.Errorf("reading raw fd: %w", ctrlErr)
	}
	return fd, nil
}

// pollReady is the readiness multiplexer from spec step 2: invoked over the
// first n poll entries requesting read-readiness, with a bounded timeout.
// It returns, for each entry, whether it was read-ready — using a bitwise
// AND against POLLIN, fixing the original source's logical-AND bug where
// every nonzero revents was wrongly treated as readable.
//
// n is the ready-descriptor count reported by poll(2) itself (0 on timeout,
// negative mapped to an error). ready is nil when n <= 0.
func pollReady(entries []pollEntry, timeoutMs int) (ready []bool, n int, err error) {
	if len(entries) == 0 {
		return nil, 0, nil
	}

	fds := make([]unix.PollFd, len(entries))
	for i, e := range entries {
		fds[i] = unix.PollFd{Fd: int32(e.fd), Events: e.events}
	}

	n, err = unix.Poll(fds, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return nil, 0, nil
		}
		return nil, -1, fmt.Errorf("poll: %w", err)
	}
	if n == 0 {
		return nil, 0, nil
	}

	ready = make([]bool, len(fds))
	for i, pfd := range fds {
		ready[i] = pfd.Revents&unix.POLLIN != 0
	}
	return ready, n, nil
}
