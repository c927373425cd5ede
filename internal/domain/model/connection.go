package model

import "time"

// Connection describes one accepted peer session
type Connection struct {
	// ID is a process-unique sequence number
	ID uint64
	// RemoteAddr is the peer address as reported by the transport
	RemoteAddr string
	// AcceptedAt is when the connection was accepted
	AcceptedAt time.Time
	// Exchanges counts forwarded requests, including ones whose empty
	// response body sent nothing back
	Exchanges int
	// Failures counts messages that were dropped after a decode or forward error
	Failures int
}

// NewConnection creates a new Connection instance
func NewConnection(id uint64, remoteAddr string) *Connection {
	return &Connection{
		ID:         id,
		RemoteAddr: remoteAddr,
		AcceptedAt: time.Now(),
	}
}

// Age returns how long the connection has been open
func (c *Connection) Age() time.Duration {
	return time.Since(c.AcceptedAt)
}
