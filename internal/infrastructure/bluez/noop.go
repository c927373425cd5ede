package bluez

import (
	"context"

	"github.com/bluebridge/bluebridge-go/internal/domain/model"
	"github.com/bluebridge/bluebridge-go/internal/domain/port"
)

// NoopAdvertiser is used when advertising is disabled or the transport has
// no SDP (websocket)
type NoopAdvertiser struct {
	logger port.Logger
}

// NewNoopAdvertiser creates a new NoopAdvertiser instance
func NewNoopAdvertiser(logger port.Logger) *NoopAdvertiser {
	return &NoopAdvertiser{logger: logger}
}

// Advertise only logs the endpoint peers should use
func (a *NoopAdvertiser) Advertise(ctx context.Context, ad model.ServiceAdvertisement) (port.Registration, error) {
	a.logger.Info("Service %q not advertised, peers connect to %s", ad.ServiceName, ad.Endpoint)
	return noopRegistration{}, nil
}

type noopRegistration struct{}

func (noopRegistration) Unregister() error { return nil }

// Ensure NoopAdvertiser implements port.Advertiser
var _ port.Advertiser = (*NoopAdvertiser)(nil)
