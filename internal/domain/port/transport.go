package port

import (
	"context"
	"io"

	"github.com/bluebridge/bluebridge-go/internal/domain/model"
)

// Conn is one accepted peer connection. Read returns io.EOF when the peer
// disconnects; Close unblocks a pending Read.
type Conn interface {
	io.ReadWriteCloser

	// RemoteAddr returns the peer address
	RemoteAddr() string
}

// Listener produces accepted connections from a bound endpoint
type Listener interface {
	// Accept blocks until a peer connects, ctx is done, or the listener is closed
	Accept(ctx context.Context) (Conn, error)

	// Endpoint returns the bound endpoint, with the resolved channel
	Endpoint() model.Endpoint

	// Close releases the listening socket. It is idempotent.
	Close() error
}

// ListenerFactory binds a listener for the configured transport
type ListenerFactory interface {
	// Listen binds the endpoint and starts queueing connection attempts
	Listen(ctx context.Context) (Listener, error)
}

// Registration is a published service advertisement
type Registration interface {
	// Unregister withdraws the advertisement. It is idempotent.
	Unregister() error
}

// Advertiser publishes discoverability metadata for a listening endpoint
type Advertiser interface {
	// Advertise registers the service so peers can find it
	Advertise(ctx context.Context, ad model.ServiceAdvertisement) (Registration, error)
}
