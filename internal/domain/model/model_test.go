package model

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMethod(t *testing.T) {
	tests := []struct {
		input string
		want  Method
		ok    bool
	}{
		{"GET", MethodGet, true},
		{"get", MethodGet, true},
		{" Post ", MethodPost, true},
		{"DELETE", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseMethod(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsExpectedClose(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"eof", io.EOF, true},
		{"wrapped eof", fmt.Errorf("read: %w", io.EOF), true},
		{"net closed", net.ErrClosed, true},
		{"file closed", &os.PathError{Op: "read", Path: "rfcomm", Err: os.ErrClosed}, true},
		{"reset", &os.PathError{Op: "read", Path: "rfcomm", Err: syscall.ECONNRESET}, true},
		{"broken pipe", &TransportError{Op: "send", Err: syscall.EPIPE}, true},
		{"host down", syscall.EHOSTDOWN, false},
		{"other", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsExpectedClose(tt.err))
		})
	}
}

func TestIsRecoverable(t *testing.T) {
	assert.True(t, IsRecoverable(&DecodeError{Reason: "empty message"}))
	assert.True(t, IsRecoverable(fmt.Errorf("wrapped: %w", &ForwardError{URL: "http://localhost:8080/", Err: io.ErrUnexpectedEOF})))
	assert.False(t, IsRecoverable(&TransportError{Op: "receive", Err: io.ErrUnexpectedEOF}))
	assert.False(t, IsRecoverable(nil))
}

func TestNewServiceAdvertisement(t *testing.T) {
	endpoint := Endpoint{Transport: TransportModeRFCOMM, Address: "AA:BB:CC:DD:EE:FF", Channel: 3}

	ad, err := NewServiceAdvertisement(DefaultServiceName, DefaultServiceUUID, endpoint)
	require.NoError(t, err)
	assert.Equal(t, DefaultServiceUUID, ad.ServiceID.String())
	assert.Equal(t, "rfcomm://AA:BB:CC:DD:EE:FF/3", ad.Endpoint.String())

	_, err = NewServiceAdvertisement("", DefaultServiceUUID, endpoint)
	assert.Error(t, err)
	_, err = NewServiceAdvertisement(DefaultServiceName, "1101", endpoint)
	assert.Error(t, err)
}

func TestEndpointString_WebSocket(t *testing.T) {
	e := Endpoint{Transport: TransportModeWebSocket, Address: "127.0.0.1:8765"}
	assert.Equal(t, "websocket://127.0.0.1:8765", e.String())
}

func TestNewConfig_KernelPicksChannel(t *testing.T) {
	config := NewConfig()
	assert.Equal(t, 0, config.Channel)
	assert.Equal(t, TransportModeRFCOMM, config.Transport)
	assert.True(t, config.Advertise)
}
