package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bluebridge/bluebridge-go/internal/domain/model"
	"github.com/bluebridge/bluebridge-go/internal/domain/port"
)

// acceptBackoff is the pause after a failed accept before trying again
const acceptBackoff = 100 * time.Millisecond

// ServiceHandle owns the resources of a started bridge: the bound listener
// and the published advertisement. Both are released exactly once.
type ServiceHandle struct {
	// Endpoint is the bound endpoint with its resolved channel
	Endpoint model.Endpoint

	listener     port.Listener
	registration port.Registration
	logger       port.Logger

	stopAdOnce sync.Once
	stopAdErr  error
	closeOnce  sync.Once
	closeErr   error
}

// StopAdvertising withdraws the advertisement
func (h *ServiceHandle) StopAdvertising() error {
	h.stopAdOnce.Do(func() {
		if err := h.registration.Unregister(); err != nil {
			h.logger.Warn("Failed to withdraw advertisement: %v", err)
			h.stopAdErr = err
		}
	})
	return h.stopAdErr
}

// Close withdraws the advertisement and releases the listener
func (h *ServiceHandle) Close() error {
	adErr := h.StopAdvertising()
	h.closeOnce.Do(func() {
		h.closeErr = h.listener.Close()
	})
	if h.closeErr != nil {
		return h.closeErr
	}
	return adErr
}

// BridgeService drives the bridge lifecycle:
// Stopped -> Advertising -> Serving -> Draining -> Stopped.
type BridgeService struct {
	config     *model.Config
	factory    port.ListenerFactory
	advertiser port.Advertiser
	handler    *ConnectionHandler
	logger     port.Logger

	mu       sync.Mutex
	state    model.ServiceState
	onState  func(model.ServiceState)
	active   map[uint64]*trackedConn
	draining bool

	nextID atomic.Uint64
	wg     sync.WaitGroup
}

// NewBridgeService creates a new BridgeService instance
func NewBridgeService(config *model.Config, factory port.ListenerFactory, advertiser port.Advertiser, handler *ConnectionHandler, logger port.Logger) *BridgeService {
	return &BridgeService{
		config:     config,
		factory:    factory,
		advertiser: advertiser,
		handler:    handler,
		logger:     logger,
		state:      model.StateStopped,
		active:     make(map[uint64]*trackedConn),
	}
}

// OnStateChange registers fn to be called on every state transition
func (s *BridgeService) OnStateChange(fn func(model.ServiceState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onState = fn
}

// State returns the current lifecycle state
func (s *BridgeService) State() model.ServiceState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *BridgeService) setState(state model.ServiceState) {
	s.mu.Lock()
	s.state = state
	fn := s.onState
	s.mu.Unlock()

	s.logger.Debug("Bridge state: %s", state)
	if fn != nil {
		fn(state)
	}
}

// Start binds the listener and publishes the advertisement. On failure
// everything acquired so far is released and the bridge stays Stopped.
func (s *BridgeService) Start(ctx context.Context) (*ServiceHandle, error) {
	s.mu.Lock()
	if s.state != model.StateStopped {
		state := s.state
		s.mu.Unlock()
		return nil, fmt.Errorf("bridge is already %s", state)
	}
	s.mu.Unlock()
	s.setState(model.StateAdvertising)

	listener, err := s.factory.Listen(ctx)
	if err != nil {
		s.setState(model.StateStopped)
		return nil, err
	}
	endpoint := listener.Endpoint()

	ad, err := model.NewServiceAdvertisement(s.config.ServiceName, s.config.ServiceUUID, endpoint)
	if err != nil {
		listener.Close()
		s.setState(model.StateStopped)
		return nil, err
	}
	ad.Adapter = s.config.Adapter
	ad.Discoverable = s.config.Discoverable

	registration, err := s.advertiser.Advertise(ctx, *ad)
	if err != nil {
		listener.Close()
		s.setState(model.StateStopped)
		return nil, err
	}

	s.logger.Info("Bridge listening on %s, forwarding to %s", endpoint, s.config.BaseURL)
	return &ServiceHandle{
		Endpoint:     endpoint,
		listener:     listener,
		registration: registration,
		logger:       s.logger,
	}, nil
}

// Serve accepts connections until ctx ends or the listener fails, then
// drains: the advertisement is withdrawn, the listener closed, active
// connections closed and waited for. A cancelled ctx is a normal stop.
func (s *BridgeService) Serve(ctx context.Context, handle *ServiceHandle) error {
	s.mu.Lock()
	s.draining = false
	s.mu.Unlock()
	s.setState(model.StateServing)

	// Blocked reads on active connections are released by closing them
	stop := context.AfterFunc(ctx, s.closeActive)
	defer stop()

	var serveErr error
	for {
		conn, err := handle.listener.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			if errors.Is(err, net.ErrClosed) {
				serveErr = &model.TransportError{Op: "accept", Err: err}
				break
			}
			s.logger.Error("Failed to accept connection: %v", err)
			select {
			case <-ctx.Done():
			case <-time.After(acceptBackoff):
			}
			continue
		}
		s.dispatch(ctx, conn)
	}

	if errors.Is(context.Cause(ctx), model.ErrShutdown) {
		s.logger.Info("Shutdown requested, draining")
	}
	s.drain(handle)
	return serveErr
}

// Run starts the bridge and serves until ctx ends
func (s *BridgeService) Run(ctx context.Context) error {
	handle, err := s.Start(ctx)
	if err != nil {
		return err
	}
	return s.Serve(ctx, handle)
}

func (s *BridgeService) dispatch(ctx context.Context, conn port.Conn) {
	info := model.NewConnection(s.nextID.Add(1), conn.RemoteAddr())
	tracked := &trackedConn{Conn: conn}

	s.mu.Lock()
	if s.draining {
		s.mu.Unlock()
		tracked.Close()
		return
	}
	s.active[info.ID] = tracked
	s.mu.Unlock()

	s.logger.Info("Accepted connection %d from %s", info.ID, info.RemoteAddr)

	s.wg.Add(1)
	run := func() {
		defer s.wg.Done()
		defer s.untrack(info.ID)
		if err := s.handler.Handle(ctx, tracked, info); err != nil {
			s.logger.Error("Connection %d from %s failed: %v", info.ID, info.RemoteAddr, err)
		}
	}
	if s.config.Concurrent {
		go run()
		return
	}
	run()
}

func (s *BridgeService) untrack(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, id)
}

// closeActive marks the bridge as draining and closes every active connection
func (s *BridgeService) closeActive() {
	s.mu.Lock()
	s.draining = true
	conns := make([]*trackedConn, 0, len(s.active))
	for _, c := range s.active {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}

func (s *BridgeService) drain(handle *ServiceHandle) {
	s.setState(model.StateDraining)

	if err := handle.StopAdvertising(); err != nil {
		s.logger.Warn("Advertisement not withdrawn cleanly: %v", err)
	}
	if err := handle.Close(); err != nil {
		s.logger.Warn("Listener not closed cleanly: %v", err)
	}
	s.closeActive()
	s.wg.Wait()

	s.setState(model.StateStopped)
	s.logger.Info("Bridge stopped")
}

// trackedConn closes the underlying connection at most once, whether the
// handler or the drain gets there first
type trackedConn struct {
	port.Conn
	once sync.Once
	err  error
}

func (c *trackedConn) Close() error {
	c.once.Do(func() {
		c.err = c.Conn.Close()
	})
	return c.err
}

// SetReadDeadline is forwarded when the underlying connection supports it
func (c *trackedConn) SetReadDeadline(t time.Time) error {
	if d, ok := c.Conn.(readDeadliner); ok {
		return d.SetReadDeadline(t)
	}
	return nil
}
