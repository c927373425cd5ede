package service

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bluebridge/bluebridge-go/internal/domain/model"
	"github.com/bluebridge/bluebridge-go/internal/domain/port"
)

// fakeConn is an in-memory peer connection. Messages pushed with send are
// returned by Read one at a time; hangUp makes Read return io.EOF.
type fakeConn struct {
	remote   string
	inbox    chan []byte
	closed   chan struct{}
	writeErr error

	mu       sync.Mutex
	pending  []byte
	written  [][]byte
	deadline time.Time

	writes     chan []byte
	closeCount atomic.Int32
	closeOnce  sync.Once
	hangOnce   sync.Once
}

func newFakeConn(remote string) *fakeConn {
	return &fakeConn{
		remote: remote,
		inbox:  make(chan []byte, 16),
		closed: make(chan struct{}),
		writes: make(chan []byte, 16),
	}
}

func (c *fakeConn) send(msg string) { c.inbox <- []byte(msg) }

func (c *fakeConn) hangUp() { c.hangOnce.Do(func() { close(c.inbox) }) }

func (c *fakeConn) Read(p []byte) (int, error) {
	c.mu.Lock()
	if len(c.pending) > 0 {
		n := copy(p, c.pending)
		c.pending = c.pending[n:]
		c.mu.Unlock()
		return n, nil
	}
	deadline := c.deadline
	c.mu.Unlock()

	var timeout <-chan time.Time
	if !deadline.IsZero() {
		timer := time.NewTimer(time.Until(deadline))
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case msg, ok := <-c.inbox:
		if !ok {
			return 0, io.EOF
		}
		n := copy(p, msg)
		c.mu.Lock()
		c.pending = msg[n:]
		c.mu.Unlock()
		return n, nil
	case <-c.closed:
		return 0, net.ErrClosed
	case <-timeout:
		return 0, os.ErrDeadlineExceeded
	}
}

func (c *fakeConn) Write(p []byte) (int, error) {
	select {
	case <-c.closed:
		return 0, net.ErrClosed
	default:
	}
	if c.writeErr != nil {
		return 0, c.writeErr
	}
	data := append([]byte(nil), p...)
	c.mu.Lock()
	c.written = append(c.written, data)
	c.mu.Unlock()
	c.writes <- data
	return len(p), nil
}

func (c *fakeConn) Close() error {
	c.closeCount.Add(1)
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) RemoteAddr() string { return c.remote }

func (c *fakeConn) SetReadDeadline(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deadline = t
	return nil
}

func (c *fakeConn) writtenCopy() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.written...)
}

// fakeForwarder answers from a path table; unknown paths fail like an
// unreachable local service
type fakeForwarder struct {
	mu       sync.Mutex
	bodies   map[string]string
	requests []*model.BridgeRequest
}

func newFakeForwarder(bodies map[string]string) *fakeForwarder {
	return &fakeForwarder{bodies: bodies}
}

func (f *fakeForwarder) Forward(ctx context.Context, request *model.BridgeRequest) (*model.BridgeResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, request)

	if request.HasBody() {
		return &model.BridgeResponse{StatusCode: 200, Body: request.Options}, nil
	}
	body, ok := f.bodies[request.Path]
	if !ok {
		return nil, &model.ForwardError{URL: "http://localhost:8080" + request.Path, Err: errors.New("connection refused")}
	}
	return &model.BridgeResponse{StatusCode: 200, Body: []byte(body)}, nil
}

func (f *fakeForwarder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// fakeListener hands out connections pushed into conns
type fakeListener struct {
	conns      chan port.Conn
	acceptErrs chan error
	closed     chan struct{}
	closeOnce  sync.Once
	closeCount atomic.Int32
	endpoint   model.Endpoint
}

func newFakeListener() *fakeListener {
	return &fakeListener{
		conns:      make(chan port.Conn),
		acceptErrs: make(chan error, 4),
		closed:     make(chan struct{}),
		endpoint: model.Endpoint{
			Transport: model.TransportModeRFCOMM,
			Address:   "AA:BB:CC:DD:EE:FF",
			Channel:   3,
		},
	}
}

func (l *fakeListener) Accept(ctx context.Context) (port.Conn, error) {
	select {
	case err := <-l.acceptErrs:
		return nil, err
	default:
	}
	select {
	case conn := <-l.conns:
		return conn, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-l.closed:
		return nil, net.ErrClosed
	}
}

func (l *fakeListener) Endpoint() model.Endpoint { return l.endpoint }

func (l *fakeListener) Close() error {
	l.closeCount.Add(1)
	l.closeOnce.Do(func() { close(l.closed) })
	return nil
}

type fakeFactory struct {
	listener *fakeListener
	err      error
}

func (f *fakeFactory) Listen(ctx context.Context) (port.Listener, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.listener, nil
}

type fakeAdvertiser struct {
	err          error
	advertised   atomic.Int32
	unregistered atomic.Int32
	last         model.ServiceAdvertisement
}

func (a *fakeAdvertiser) Advertise(ctx context.Context, ad model.ServiceAdvertisement) (port.Registration, error) {
	if a.err != nil {
		return nil, a.err
	}
	a.advertised.Add(1)
	a.last = ad
	return &fakeRegistration{advertiser: a}, nil
}

type fakeRegistration struct {
	advertiser *fakeAdvertiser
}

func (r *fakeRegistration) Unregister() error {
	r.advertiser.unregistered.Add(1)
	return nil
}

// stateRecorder collects lifecycle transitions
type stateRecorder struct {
	mu     sync.Mutex
	states []model.ServiceState
}

func (r *stateRecorder) record(state model.ServiceState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
}

func (r *stateRecorder) all() []model.ServiceState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.ServiceState(nil), r.states...)
}
