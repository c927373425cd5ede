package service

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/bluebridge/bluebridge-go/internal/domain/model"
	"github.com/bluebridge/bluebridge-go/internal/domain/port"
)

// readDeadliner is implemented by connections that support an idle timeout
type readDeadliner interface {
	SetReadDeadline(t time.Time) error
}

// ConnectionHandler runs the receive, decode, forward, send loop for one
// connection. A bad message or a failed local call only drops that message.
type ConnectionHandler struct {
	decoder     port.RequestDecoder
	forwarder   port.Forwarder
	bufferSize  int
	idleTimeout time.Duration
	logger      port.Logger
}

// NewConnectionHandler creates a new ConnectionHandler instance
func NewConnectionHandler(decoder port.RequestDecoder, forwarder port.Forwarder, bufferSize int, idleTimeout time.Duration, logger port.Logger) *ConnectionHandler {
	if bufferSize <= 0 {
		bufferSize = model.DefaultBufferSize
	}
	return &ConnectionHandler{
		decoder:     decoder,
		forwarder:   forwarder,
		bufferSize:  bufferSize,
		idleTimeout: idleTimeout,
		logger:      logger,
	}
}

// Handle serves conn until the peer disconnects, the connection fails or
// ctx ends. conn is closed before Handle returns. Only transport failures
// are returned.
func (h *ConnectionHandler) Handle(ctx context.Context, conn port.Conn, info *model.Connection) error {
	log := h.logger.With("connection_id", info.ID, "remote_addr", info.RemoteAddr)
	defer func() {
		if err := conn.Close(); err != nil && !model.IsExpectedClose(err) {
			log.Warn("Failed to close connection: %v", err)
		}
		log.Info("Connection closed after %s (%d exchanges, %d dropped)",
			info.Age().Round(time.Millisecond), info.Exchanges, info.Failures)
	}()

	deadliner, _ := conn.(readDeadliner)
	buf := make([]byte, h.bufferSize)
	for {
		if h.idleTimeout > 0 && deadliner != nil {
			if err := deadliner.SetReadDeadline(time.Now().Add(h.idleTimeout)); err != nil {
				log.Debug("Failed to set read deadline: %v", err)
			}
		}

		n, err := conn.Read(buf)
		if n > 0 {
			if err := h.exchange(ctx, conn, buf[:n], info, log); err != nil {
				return h.ended(ctx, err, log)
			}
		}
		if err != nil {
			if isTimeout(err) {
				log.Info("No message for %s, closing", h.idleTimeout)
				return nil
			}
			return h.ended(ctx, &model.TransportError{Op: "receive", Err: err}, log)
		}
	}
}

// ended classifies the error that stopped the loop
func (h *ConnectionHandler) ended(ctx context.Context, err error, log port.Logger) error {
	switch {
	case ctx.Err() != nil:
		log.Debug("Connection interrupted by shutdown")
		return nil
	case model.IsExpectedClose(err):
		log.Info("Peer disconnected")
		return nil
	default:
		return err
	}
}

// exchange handles one inbound message. Recoverable failures are logged and
// swallowed; a failed send is returned.
func (h *ConnectionHandler) exchange(ctx context.Context, conn port.Conn, raw []byte, info *model.Connection, log port.Logger) error {
	response, err := h.process(ctx, raw, log)
	if err != nil {
		if !model.IsRecoverable(err) {
			return err
		}
		info.Failures++
		log.Warn("Message dropped: %v", err)
		return nil
	}

	info.Exchanges++
	if len(response.Body) == 0 {
		log.Debug("Empty response body (status %d), nothing sent", response.StatusCode)
		return nil
	}
	if _, err := conn.Write(response.Body); err != nil {
		return &model.TransportError{Op: "send", Err: err}
	}
	log.Debug("Sent %d bytes", len(response.Body))
	return nil
}

func (h *ConnectionHandler) process(ctx context.Context, raw []byte, log port.Logger) (*model.BridgeResponse, error) {
	request, err := h.decoder.Decode(raw)
	if err != nil {
		return nil, err
	}
	log.Info("%s %s", request.Method, request.Path)

	response, err := h.forwarder.Forward(ctx, request)
	if err != nil {
		return nil, err
	}
	if response.StatusCode >= 400 {
		log.Warn("Local service answered %d for %s", response.StatusCode, request.Path)
	}
	return response, nil
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
