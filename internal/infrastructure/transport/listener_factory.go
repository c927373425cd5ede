package transport

import (
	"context"
	"fmt"

	"github.com/bluebridge/bluebridge-go/internal/domain/model"
	"github.com/bluebridge/bluebridge-go/internal/domain/port"
)

// ListenerFactory creates the listener for the configured transport mode
type ListenerFactory struct {
	config *model.Config
	logger port.Logger
}

// NewListenerFactory creates a new ListenerFactory instance
func NewListenerFactory(config *model.Config, logger port.Logger) *ListenerFactory {
	return &ListenerFactory{
		config: config,
		logger: logger,
	}
}

// Listen binds the configured endpoint
func (f *ListenerFactory) Listen(ctx context.Context) (port.Listener, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch f.config.Transport {
	case model.TransportModeRFCOMM:
		return ListenRFCOMM(f.config.AdapterAddress, f.config.Channel, f.config.Backlog, f.logger)
	case model.TransportModeWebSocket:
		return ListenWebSocket(f.config.WebSocketAddress, f.config.BufferSize, f.logger)
	default:
		return nil, fmt.Errorf("transport mode not supported: %s", f.config.Transport)
	}
}

// Ensure ListenerFactory implements port.ListenerFactory
var _ port.ListenerFactory = (*ListenerFactory)(nil)
