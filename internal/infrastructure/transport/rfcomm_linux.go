//go:build linux

package transport

import (
	"context"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	"github.com/bluebridge/bluebridge-go/internal/domain/model"
	"github.com/bluebridge/bluebridge-go/internal/domain/port"
)

// RFCOMMListener is a listening RFCOMM socket. The descriptor is registered
// with the runtime poller, so Accept parks the goroutine instead of a thread
// and Close wakes it.
type RFCOMMListener struct {
	file     *os.File
	endpoint model.Endpoint
	logger   port.Logger

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// ListenRFCOMM binds address and channel and starts listening. Channel 0
// lets the kernel pick a free channel; Endpoint reports the one it chose.
func ListenRFCOMM(address string, channel, backlog int, logger port.Logger) (port.Listener, error) {
	bdaddr, err := ParseBDAddr(address)
	if err != nil {
		return nil, &model.TransportError{Op: "bind", Err: err}
	}

	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.BTPROTO_RFCOMM)
	if err != nil {
		return nil, &model.TransportError{Op: "bind", Err: os.NewSyscallError("socket", err)}
	}

	if err := unix.Bind(fd, &unix.SockaddrRFCOMM{Addr: bdaddr, Channel: uint8(channel)}); err != nil {
		unix.Close(fd)
		return nil, &model.TransportError{Op: "bind", Err: os.NewSyscallError("bind", err)}
	}
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return nil, &model.TransportError{Op: "listen", Err: os.NewSyscallError("listen", err)}
	}

	// The kernel assigns the channel for a wildcard bind at listen time
	resolved := uint8(channel)
	if sa, err := unix.Getsockname(fd); err == nil {
		if rc, ok := sa.(*unix.SockaddrRFCOMM); ok {
			resolved = rc.Channel
		}
	}

	l := &RFCOMMListener{
		file: os.NewFile(uintptr(fd), "rfcomm-listener"),
		endpoint: model.Endpoint{
			Transport: model.TransportModeRFCOMM,
			Address:   FormatBDAddr(bdaddr),
			Channel:   resolved,
		},
		logger: logger,
	}
	logger.Debug("RFCOMM socket listening on %s (backlog %d)", l.endpoint, backlog)
	return l, nil
}

// Accept waits for the next peer. Once ctx ends the socket keeps a past
// read deadline, so later calls fail too; close the listener afterwards.
func (l *RFCOMMListener) Accept(ctx context.Context) (port.Conn, error) {
	if l.closed.Load() {
		return nil, net.ErrClosed
	}
	raw, err := l.file.SyscallConn()
	if err != nil {
		return nil, &model.TransportError{Op: "accept", Err: err}
	}

	// A deadline in the past wakes the parked accept when ctx ends
	stop := context.AfterFunc(ctx, func() {
		l.file.SetReadDeadline(time.Unix(1, 0))
	})
	defer stop()

	var nfd int
	var sa unix.Sockaddr
	var acceptErr error
	err = raw.Read(func(fd uintptr) bool {
		nfd, sa, acceptErr = unix.Accept4(int(fd), unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		return acceptErr != unix.EAGAIN && acceptErr != unix.EINTR
	})
	switch {
	case l.closed.Load():
		if err == nil && acceptErr == nil {
			unix.Close(nfd)
		}
		return nil, net.ErrClosed
	case err != nil && ctx.Err() != nil:
		return nil, ctx.Err()
	case err != nil:
		return nil, &model.TransportError{Op: "accept", Err: err}
	case acceptErr != nil:
		return nil, &model.TransportError{Op: "accept", Err: os.NewSyscallError("accept4", acceptErr)}
	}

	remote := BDAddrAny
	if rc, ok := sa.(*unix.SockaddrRFCOMM); ok {
		remote = FormatBDAddr(rc.Addr)
	}
	return &rfcommConn{
		file:   os.NewFile(uintptr(nfd), "rfcomm-"+remote),
		remote: remote,
	}, nil
}

// Endpoint returns the bound endpoint
func (l *RFCOMMListener) Endpoint() model.Endpoint {
	return l.endpoint
}

// Close releases the socket and unblocks a pending Accept
func (l *RFCOMMListener) Close() error {
	l.closeOnce.Do(func() {
		l.closed.Store(true)
		l.closeErr = l.file.Close()
		l.logger.Debug("RFCOMM socket on %s closed", l.endpoint)
	})
	return l.closeErr
}

// rfcommConn is an accepted RFCOMM stream
type rfcommConn struct {
	file   *os.File
	remote string
}

func (c *rfcommConn) Read(p []byte) (int, error) {
	return c.file.Read(p)
}

func (c *rfcommConn) Write(p []byte) (int, error) {
	return c.file.Write(p)
}

func (c *rfcommConn) Close() error {
	return c.file.Close()
}

func (c *rfcommConn) RemoteAddr() string {
	return c.remote
}

// SetReadDeadline bounds the next Read
func (c *rfcommConn) SetReadDeadline(t time.Time) error {
	return c.file.SetReadDeadline(t)
}

// Ensure RFCOMMListener implements port.Listener
var _ port.Listener = (*RFCOMMListener)(nil)
