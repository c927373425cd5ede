package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"

	"github.com/bluebridge/bluebridge-go/internal/domain/model"
	"github.com/bluebridge/bluebridge-go/internal/domain/port"
)

// WebSocketListener accepts peers over WebSocket. It stands in for the
// RFCOMM socket during development: each WebSocket message plays the role of
// one RFCOMM read.
type WebSocketListener struct {
	server   *http.Server
	upgrader websocket.Upgrader
	endpoint model.Endpoint
	logger   port.Logger

	conns     chan *wsConn
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// ListenWebSocket binds address and serves WebSocket upgrades on any path
func ListenWebSocket(address string, bufferSize int, logger port.Logger) (port.Listener, error) {
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return nil, &model.TransportError{Op: "bind", Err: err}
	}

	l := &WebSocketListener{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  bufferSize,
			WriteBufferSize: bufferSize,
			// Phone simulators are served from arbitrary origins
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		endpoint: model.Endpoint{
			Transport: model.TransportModeWebSocket,
			Address:   ln.Addr().String(),
		},
		logger: logger,
		conns:  make(chan *wsConn),
		done:   make(chan struct{}),
	}
	l.server = &http.Server{
		Handler:           http.HandlerFunc(l.handleUpgrade),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := l.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("WebSocket listener on %s stopped: %v", l.endpoint.Address, err)
		}
	}()

	logger.Debug("WebSocket listener on %s", l.endpoint)
	return l, nil
}

// handleUpgrade hands the upgraded connection to Accept. It blocks until the
// connection is taken, which gives the same queueing as a listen backlog.
func (l *WebSocketListener) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	ws, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.logger.Warn("WebSocket upgrade from %s failed: %v", r.RemoteAddr, err)
		return
	}

	conn := newWSConn(ws)
	select {
	case l.conns <- conn:
	case <-l.done:
		conn.Close()
	}
}

// Accept waits for the next peer
func (l *WebSocketListener) Accept(ctx context.Context) (port.Conn, error) {
	select {
	case conn := <-l.conns:
		return conn, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-l.done:
		return nil, net.ErrClosed
	}
}

// Endpoint returns the bound TCP address
func (l *WebSocketListener) Endpoint() model.Endpoint {
	return l.endpoint
}

// Close stops the HTTP server. Connections already accepted stay open.
func (l *WebSocketListener) Close() error {
	l.closeOnce.Do(func() {
		close(l.done)
		l.closeErr = l.server.Close()
	})
	return l.closeErr
}

// wsConn adapts a message-oriented WebSocket to a byte stream
type wsConn struct {
	ws      *websocket.Conn
	remote  string
	pending []byte

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func newWSConn(ws *websocket.Conn) *wsConn {
	return &wsConn{
		ws:     ws,
		remote: ws.RemoteAddr().String(),
	}
}

// DialWebSocket connects to a bridge running the WebSocket transport
func DialWebSocket(ctx context.Context, url string) (port.Conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	return newWSConn(ws), nil
}

// replyQuietPeriod is how long ReadReply waits for more after a full buffer
const replyQuietPeriod = 250 * time.Millisecond

// ReadReply reads one bridge reply. A reply longer than bufferSize arrives
// in several reads, so reading goes on while reads fill the buffer and stops
// at a short read or once the peer stays quiet for replyQuietPeriod.
func ReadReply(ctx context.Context, conn port.Conn, bufferSize int) ([]byte, error) {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	deadliner, _ := conn.(interface{ SetReadDeadline(time.Time) error })
	buf := make([]byte, bufferSize)
	var reply []byte
	for {
		n, err := conn.Read(buf)
		reply = append(reply, buf[:n]...)
		var netErr net.Error
		switch {
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil && len(reply) > 0 && (errors.Is(err, io.EOF) || errors.As(err, &netErr) && netErr.Timeout()):
			return reply, nil
		case err != nil:
			return nil, err
		case n < len(buf):
			return reply, nil
		}
		if deadliner != nil {
			deadliner.SetReadDeadline(time.Now().Add(replyQuietPeriod))
		}
	}
}

// Read returns the next message, or what is left of it when p was too small
func (c *wsConn) Read(p []byte) (int, error) {
	for len(c.pending) == 0 {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				return 0, io.EOF
			}
			return 0, err
		}
		c.pending = data
	}
	n := copy(p, c.pending)
	c.pending = c.pending[n:]
	return n, nil
}

// Write sends p as one message, text when it is valid UTF-8
func (c *wsConn) Write(p []byte) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	messageType := websocket.BinaryMessage
	if utf8.Valid(p) {
		messageType = websocket.TextMessage
	}
	if err := c.ws.WriteMessage(messageType, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close sends a close frame and closes the connection once
func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		// WriteControl may run concurrently with a blocked Write
		c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}

func (c *wsConn) RemoteAddr() string {
	return c.remote
}

// SetReadDeadline bounds the next Read
func (c *wsConn) SetReadDeadline(t time.Time) error {
	return c.ws.SetReadDeadline(t)
}

// Ensure WebSocketListener implements port.Listener
var _ port.Listener = (*WebSocketListener)(nil)
