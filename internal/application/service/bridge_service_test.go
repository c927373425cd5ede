package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bluebridge/bluebridge-go/internal/domain/model"
	"github.com/bluebridge/bluebridge-go/internal/domain/port"
	domainservice "github.com/bluebridge/bluebridge-go/internal/domain/service"
	"github.com/bluebridge/bluebridge-go/internal/infrastructure/bluez"
	"github.com/bluebridge/bluebridge-go/internal/infrastructure/logger"
	"github.com/bluebridge/bluebridge-go/internal/infrastructure/transport"
)

type bridgeFixture struct {
	service    *BridgeService
	listener   *fakeListener
	advertiser *fakeAdvertiser
	forwarder  *fakeForwarder
	states     *stateRecorder
}

func newBridgeFixture(t *testing.T, concurrent bool) *bridgeFixture {
	t.Helper()
	config := model.NewConfig()
	config.Concurrent = concurrent

	f := &bridgeFixture{
		listener:   newFakeListener(),
		advertiser: &fakeAdvertiser{},
		forwarder:  newFakeForwarder(map[string]string{"/status": "OK"}),
		states:     &stateRecorder{},
	}
	handler := newTestHandler(t, f.forwarder, 0)
	f.service = NewBridgeService(config, &fakeFactory{listener: f.listener}, f.advertiser, handler, logger.NewNop())
	f.service.OnStateChange(f.states.record)
	return f
}

func runAsync(ctx context.Context, s *BridgeService) <-chan error {
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	return done
}

func waitForState(t *testing.T, s *BridgeService, state model.ServiceState) {
	t.Helper()
	require.Eventually(t, func() bool { return s.State() == state }, 2*time.Second, 5*time.Millisecond)
}

func TestRun_CancelWhileAccepting(t *testing.T) {
	f := newBridgeFixture(t, false)
	ctx, cancel := context.WithCancelCause(context.Background())
	done := runAsync(ctx, f.service)
	waitForState(t, f.service, model.StateServing)

	cancel(model.ErrShutdown)

	require.NoError(t, waitDone(t, done))
	assert.Equal(t, model.StateStopped, f.service.State())
	assert.Equal(t, int32(1), f.listener.closeCount.Load())
	assert.Equal(t, int32(1), f.advertiser.unregistered.Load())
	assert.Equal(t, []model.ServiceState{
		model.StateAdvertising,
		model.StateServing,
		model.StateDraining,
		model.StateStopped,
	}, f.states.all())
}

func TestRun_AdvertisesResolvedEndpoint(t *testing.T) {
	f := newBridgeFixture(t, false)
	f.listener.endpoint.Channel = 11
	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, f.service)
	waitForState(t, f.service, model.StateServing)

	cancel()
	require.NoError(t, waitDone(t, done))

	assert.Equal(t, int32(1), f.advertiser.advertised.Load())
	assert.Equal(t, uint8(11), f.advertiser.last.Endpoint.Channel)
	assert.Equal(t, model.DefaultServiceUUID, f.advertiser.last.ServiceID.String())
	assert.Equal(t, "hci0", f.advertiser.last.Adapter)
}

func TestRun_CancelDuringActiveConnection(t *testing.T) {
	f := newBridgeFixture(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, f.service)
	waitForState(t, f.service, model.StateServing)

	conn := newFakeConn("peer")
	f.listener.conns <- conn
	conn.send(`{"path":"/status","request":"GET"}`)
	assert.Equal(t, "OK", nextWrite(t, conn))

	// the handler is now blocked reading the next message
	cancel()

	require.NoError(t, waitDone(t, done))
	assert.Equal(t, int32(1), conn.closeCount.Load())
	assert.Equal(t, int32(1), f.listener.closeCount.Load())
	assert.Equal(t, model.StateStopped, f.service.State())
}

func TestRun_SequentialConnections(t *testing.T) {
	f := newBridgeFixture(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := runAsync(ctx, f.service)
	waitForState(t, f.service, model.StateServing)

	for i := 0; i < 3; i++ {
		conn := newFakeConn(fmt.Sprintf("peer-%d", i))
		f.listener.conns <- conn
		conn.send(`{"path":"/status","request":"GET"}`)
		assert.Equal(t, "OK", nextWrite(t, conn))
		conn.hangUp()
		require.Eventually(t, func() bool { return conn.closeCount.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	}

	cancel()
	require.NoError(t, waitDone(t, done))
	assert.Equal(t, 3, f.forwarder.count())
}

func TestRun_ConcurrentConnections(t *testing.T) {
	f := newBridgeFixture(t, true)
	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, f.service)
	waitForState(t, f.service, model.StateServing)

	first := newFakeConn("first")
	second := newFakeConn("second")
	f.listener.conns <- first
	f.listener.conns <- second

	// the second peer is served while the first stays connected
	second.send(`{"path":"/status","request":"GET"}`)
	assert.Equal(t, "OK", nextWrite(t, second))
	first.send(`{"path":"/status","request":"GET"}`)
	assert.Equal(t, "OK", nextWrite(t, first))

	cancel()
	require.NoError(t, waitDone(t, done))
	assert.Equal(t, int32(1), first.closeCount.Load())
	assert.Equal(t, int32(1), second.closeCount.Load())
}

func TestRun_TransientAcceptErrorKeepsServing(t *testing.T) {
	f := newBridgeFixture(t, false)
	f.listener.acceptErrs <- errors.New("temporary failure")
	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, f.service)

	conn := newFakeConn("peer")
	f.listener.conns <- conn
	conn.send(`{"path":"/status","request":"GET"}`)
	assert.Equal(t, "OK", nextWrite(t, conn))

	cancel()
	require.NoError(t, waitDone(t, done))
}

func TestRun_ListenerClosedUnderneath(t *testing.T) {
	f := newBridgeFixture(t, false)
	done := runAsync(context.Background(), f.service)
	waitForState(t, f.service, model.StateServing)

	f.listener.Close()

	err := waitDone(t, done)
	var transportErr *model.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, "accept", transportErr.Op)
	assert.Equal(t, model.StateStopped, f.service.State())
	assert.Equal(t, int32(1), f.advertiser.unregistered.Load())
}

func TestStart_BindFailure(t *testing.T) {
	advertiser := &fakeAdvertiser{}
	bindErr := &model.TransportError{Op: "bind", Err: errors.New("address in use")}
	s := NewBridgeService(model.NewConfig(), &fakeFactory{err: bindErr}, advertiser,
		newTestHandler(t, newFakeForwarder(nil), 0), logger.NewNop())

	_, err := s.Start(context.Background())
	assert.ErrorIs(t, err, bindErr)
	assert.Equal(t, model.StateStopped, s.State())
	assert.Equal(t, int32(0), advertiser.advertised.Load())
}

func TestStart_AdvertiseFailureReleasesListener(t *testing.T) {
	listener := newFakeListener()
	advertiser := &fakeAdvertiser{err: &model.TransportError{Op: "advertise", Err: errors.New("bluetoothd not running")}}
	s := NewBridgeService(model.NewConfig(), &fakeFactory{listener: listener}, advertiser,
		newTestHandler(t, newFakeForwarder(nil), 0), logger.NewNop())

	_, err := s.Start(context.Background())
	var transportErr *model.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, "advertise", transportErr.Op)
	assert.Equal(t, int32(1), listener.closeCount.Load())
	assert.Equal(t, model.StateStopped, s.State())
}

func TestStart_Twice(t *testing.T) {
	f := newBridgeFixture(t, false)
	handle, err := f.service.Start(context.Background())
	require.NoError(t, err)
	defer handle.Close()

	_, err = f.service.Start(context.Background())
	assert.Error(t, err)
}

func TestServiceHandle_CloseIsIdempotent(t *testing.T) {
	f := newBridgeFixture(t, false)
	handle, err := f.service.Start(context.Background())
	require.NoError(t, err)

	require.NoError(t, handle.StopAdvertising())
	require.NoError(t, handle.Close())
	require.NoError(t, handle.Close())

	assert.Equal(t, int32(1), f.advertiser.unregistered.Load())
	assert.Equal(t, int32(1), f.listener.closeCount.Load())
}

// startWebSocketBridge runs a real bridge over the websocket transport
// against a local web application served by httptest.
func startWebSocketBridge(t *testing.T, concurrent bool) (*ServiceHandle, context.CancelFunc, <-chan error) {
	t.Helper()
	app := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/status":
			w.Write([]byte("OK"))
		case r.Method == http.MethodPost && r.URL.Path == "/submit":
			body, _ := io.ReadAll(r.Body)
			w.Write(body)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(app.Close)

	config := model.NewConfig()
	config.Transport = model.TransportModeWebSocket
	config.WebSocketAddress = "127.0.0.1:0"
	config.BaseURL = app.URL
	config.Concurrent = concurrent

	log := logger.NewNop()
	decoder, err := domainservice.NewRequestDecoder(config.Codec)
	require.NoError(t, err)
	forwarder := transport.NewHTTPForwarder(config.BaseURL, config.ContentType, config.ForwardTimeout, log)
	handler := NewConnectionHandler(decoder, forwarder, config.BufferSize, config.IdleTimeout, log)
	s := NewBridgeService(config, transport.NewListenerFactory(config, log), bluez.NewNoopAdvertiser(log), handler, log)

	ctx, cancel := context.WithCancel(context.Background())
	handle, err := s.Start(ctx)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, handle) }()
	return handle, cancel, done
}

func exchange(t *testing.T, conn port.Conn, msg string) string {
	t.Helper()
	_, err := conn.Write([]byte(msg))
	require.NoError(t, err)
	buf := make([]byte, 1024)
	n, err := conn.Read(buf)
	require.NoError(t, err)
	return string(buf[:n])
}

func TestWebSocketBridge_EndToEnd(t *testing.T) {
	handle, cancel, done := startWebSocketBridge(t, false)
	ctx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()

	conn, err := transport.DialWebSocket(ctx, "ws://"+handle.Endpoint.Address+"/")
	require.NoError(t, err)

	assert.Equal(t, "OK", exchange(t, conn, `{"path":"/status","request":"GET"}`))
	assert.Equal(t, "a=1", exchange(t, conn, `{"path":"/submit","request":"POST","options":"a=1"}`))

	// a malformed message is dropped and the connection keeps working
	_, err = conn.Write([]byte("garbage"))
	require.NoError(t, err)
	assert.Equal(t, "OK", exchange(t, conn, `{"path":"/status","request":"GET"}`))

	require.NoError(t, conn.Close())
	cancel()
	require.NoError(t, waitDone(t, done))
}

func TestWebSocketBridge_ConcurrentPeers(t *testing.T) {
	handle, cancel, done := startWebSocketBridge(t, true)
	ctx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()

	url := "ws://" + handle.Endpoint.Address + "/"
	first, err := transport.DialWebSocket(ctx, url)
	require.NoError(t, err)
	defer first.Close()
	second, err := transport.DialWebSocket(ctx, url)
	require.NoError(t, err)
	defer second.Close()

	assert.Equal(t, "OK", exchange(t, second, `{"path":"/status","request":"GET"}`))
	assert.Equal(t, "OK", exchange(t, first, `{"path":"/status","request":"GET"}`))

	// shutdown with both peers still connected
	cancel()
	require.NoError(t, waitDone(t, done))
}
