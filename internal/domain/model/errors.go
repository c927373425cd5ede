package model

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
)

// ErrShutdown is the cause attached to the serve context when a termination
// signal is received. It drives draining and is not reported as a failure.
var ErrShutdown = errors.New("shutdown requested")

// TransportError is a failure of the wireless transport. It is fatal during
// startup and ends the affected connection when it happens mid-loop.
type TransportError struct {
	// Op is the failed operation (bind, listen, accept, advertise, receive, send)
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError means an inbound message could not be turned into a request.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode: %s: %v", e.Reason, e.Err)
	}
	return "decode: " + e.Reason
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ForwardError means the local HTTP call failed before a full body was read.
type ForwardError struct {
	URL string
	Err error
}

func (e *ForwardError) Error() string {
	return fmt.Sprintf("forward %s: %v", e.URL, e.Err)
}

func (e *ForwardError) Unwrap() error { return e.Err }

// IsRecoverable reports whether err only affects the current message
func IsRecoverable(err error) bool {
	var decodeErr *DecodeError
	var forwardErr *ForwardError
	return errors.As(err, &decodeErr) || errors.As(err, &forwardErr)
}

// IsExpectedClose reports whether err is a normal end of a connection: EOF,
// a closed connection or file, broken pipe, reset or aborted connection.
// These are not logged as failures.
func IsExpectedClose(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, os.ErrClosed) {
		return true
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.EPIPE, syscall.ECONNRESET, syscall.ECONNABORTED, syscall.ENOTCONN:
			return true
		}
	}
	return false
}
