package port

import (
	"context"

	"github.com/bluebridge/bluebridge-go/internal/domain/model"
)

// RequestDecoder turns one raw inbound message into a request
type RequestDecoder interface {
	// Decode returns a *model.DecodeError when the message is unusable
	Decode(raw []byte) (*model.BridgeRequest, error)
}

// Forwarder performs a request against the local HTTP endpoint
type Forwarder interface {
	// Forward returns a *model.ForwardError when no complete body could be read
	Forward(ctx context.Context, request *model.BridgeRequest) (*model.BridgeResponse, error)
}
