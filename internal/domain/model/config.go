package model

import (
	"os"
	"path/filepath"
	"time"
)

// LogLevel defines logging levels
type LogLevel string

const (
	// LogLevelDebug is the level for debug messages
	LogLevelDebug LogLevel = "debug"
	// LogLevelInfo is the level for informational messages
	LogLevelInfo LogLevel = "info"
	// LogLevelWarn is the level for warning messages
	LogLevelWarn LogLevel = "warn"
	// LogLevelError is the level for error messages
	LogLevelError LogLevel = "error"
)

// TransportMode defines how peers reach the bridge
type TransportMode string

const (
	// TransportModeRFCOMM listens on a Bluetooth RFCOMM channel
	TransportModeRFCOMM TransportMode = "rfcomm"
	// TransportModeWebSocket listens for WebSocket clients on a local TCP address
	TransportModeWebSocket TransportMode = "websocket"
)

// WireCodec names the encoding of inbound request messages
type WireCodec string

const (
	// WireCodecJSON decodes messages as JSON text
	WireCodecJSON WireCodec = "json"
	// WireCodecCBOR decodes messages as CBOR maps
	WireCodecCBOR WireCodec = "cbor"
)

const (
	// DefaultServiceName is the human-readable name in the SDP record
	DefaultServiceName = "BlueBridge"
	// DefaultServiceUUID is the 128-bit service class advertised to peers
	DefaultServiceUUID = "94f39d29-7d6d-437d-973b-fba39e49d4ee"
	// DefaultBaseURL is the local web application the bridge forwards to
	DefaultBaseURL = "http://localhost:8080"
	// DefaultChannel lets the kernel pick a free RFCOMM channel; the SDP
	// record publishes whichever one it chose
	DefaultChannel = 0
	// DefaultBufferSize bounds a single inbound message
	DefaultBufferSize = 1024
)

// Config is the configuration structure for the bridge
type Config struct {
	// Transport selects the listener implementation (rfcomm or websocket)
	Transport TransportMode
	// Adapter is the BlueZ adapter name (hci0)
	Adapter string
	// AdapterAddress is the BD_ADDR to bind (empty for any adapter)
	AdapterAddress string
	// Channel is the RFCOMM channel (0 lets the kernel pick a free one)
	Channel int
	// Backlog is the listen queue depth
	Backlog int
	// BufferSize is the receive buffer size, and so the maximum message size
	BufferSize int
	// ServiceName is the advertised service name
	ServiceName string
	// ServiceUUID is the advertised 128-bit service identifier
	ServiceUUID string
	// Advertise enables SDP registration through BlueZ
	Advertise bool
	// Discoverable makes the adapter discoverable while advertising
	Discoverable bool
	// WebSocketAddress is the listen address for the websocket transport
	WebSocketAddress string
	// BaseURL is the local HTTP endpoint requests are forwarded to
	BaseURL string
	// ForwardTimeout bounds a single local HTTP call
	ForwardTimeout time.Duration
	// ContentType is sent with POST bodies given as plain strings (empty for none)
	ContentType string
	// Codec is the wire encoding of inbound messages
	Codec WireCodec
	// Concurrent handles each accepted connection on its own goroutine
	Concurrent bool
	// IdleTimeout closes a connection that sends nothing for this long (0 waits forever)
	IdleTimeout time.Duration
	// LogLevel is the logging level (debug, info, warn, error)
	LogLevel LogLevel
	// LogFormat is console or json
	LogFormat string
	// LogFile is the path to log file (empty for stderr only)
	LogFile string
}

// NewConfig creates a new Config instance with default values
func NewConfig() *Config {
	return &Config{
		Transport:        TransportModeRFCOMM,
		Adapter:          "hci0",
		AdapterAddress:   "",
		Channel:          DefaultChannel,
		Backlog:          1,
		BufferSize:       DefaultBufferSize,
		ServiceName:      DefaultServiceName,
		ServiceUUID:      DefaultServiceUUID,
		Advertise:        true,
		Discoverable:     false,
		WebSocketAddress: "127.0.0.1:8765",
		BaseURL:          DefaultBaseURL,
		ForwardTimeout:   30 * time.Second,
		ContentType:      "",
		Codec:            WireCodecJSON,
		Concurrent:       false,
		IdleTimeout:      0,
		LogLevel:         LogLevelInfo,
		LogFormat:        "console",
		LogFile:          "",
	}
}

// GetConfigFilePath returns the path to configuration file
func (c *Config) GetConfigFilePath() string {
	// Determine configuration directory based on user
	configDir := "/etc/bluebridge"

	// If not root, use home directory
	if os.Getuid() != 0 {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			configDir = filepath.Join(homeDir, ".bluebridge")
		}
	}

	return filepath.Join(configDir, "config.yaml")
}
