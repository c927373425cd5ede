//go:build !linux

package transport

import (
	"errors"

	"github.com/bluebridge/bluebridge-go/internal/domain/model"
	"github.com/bluebridge/bluebridge-go/internal/domain/port"
)

// ListenRFCOMM is only available on Linux (BlueZ)
func ListenRFCOMM(address string, channel, backlog int, logger port.Logger) (port.Listener, error) {
	return nil, &model.TransportError{Op: "bind", Err: errors.New("rfcomm transport requires linux, use transport=websocket")}
}
