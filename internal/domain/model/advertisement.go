package model

import (
	"fmt"

	"github.com/google/uuid"
)

// ServiceState is a step of the bridge lifecycle
type ServiceState string

const (
	// StateStopped means no listener and no advertisement exist
	StateStopped ServiceState = "stopped"
	// StateAdvertising means the listener is bound and the service is being registered
	StateAdvertising ServiceState = "advertising"
	// StateServing means the accept loop is running
	StateServing ServiceState = "serving"
	// StateDraining means shutdown was requested and resources are being released
	StateDraining ServiceState = "draining"
)

// Endpoint is where the listener accepts connections
type Endpoint struct {
	// Transport is the listener kind
	Transport TransportMode
	// Address is the adapter BD_ADDR or the TCP address for websocket
	Address string
	// Channel is the RFCOMM channel (zero for websocket)
	Channel uint8
}

// String returns the endpoint in a log-friendly form
func (e Endpoint) String() string {
	if e.Transport == TransportModeRFCOMM {
		return fmt.Sprintf("rfcomm://%s/%d", e.Address, e.Channel)
	}
	return fmt.Sprintf("%s://%s", e.Transport, e.Address)
}

// ServiceAdvertisement is the discoverability record of a running bridge
type ServiceAdvertisement struct {
	// ServiceName is the human-readable name
	ServiceName string
	// ServiceID is the 128-bit service class identifier
	ServiceID uuid.UUID
	// Adapter is the BlueZ adapter the record is published on
	Adapter string
	// Discoverable asks the adapter to become discoverable as well
	Discoverable bool
	// Endpoint is the listening endpoint peers connect to
	Endpoint Endpoint
}

// NewServiceAdvertisement validates the service id and builds an advertisement
func NewServiceAdvertisement(name, serviceID string, endpoint Endpoint) (*ServiceAdvertisement, error) {
	if name == "" {
		return nil, fmt.Errorf("service name cannot be empty")
	}
	id, err := uuid.Parse(serviceID)
	if err != nil {
		return nil, fmt.Errorf("invalid service uuid %q: %w", serviceID, err)
	}
	return &ServiceAdvertisement{
		ServiceName: name,
		ServiceID:   id,
		Endpoint:    endpoint,
	}, nil
}
