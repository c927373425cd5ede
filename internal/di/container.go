package di

import (
	"fmt"
	"os"

	"github.com/bluebridge/bluebridge-go/internal/application/service"
	"github.com/bluebridge/bluebridge-go/internal/domain/model"
	"github.com/bluebridge/bluebridge-go/internal/domain/port"
	domainservice "github.com/bluebridge/bluebridge-go/internal/domain/service"
	"github.com/bluebridge/bluebridge-go/internal/infrastructure/bluez"
	"github.com/bluebridge/bluebridge-go/internal/infrastructure/config"
	"github.com/bluebridge/bluebridge-go/internal/infrastructure/logger"
	"github.com/bluebridge/bluebridge-go/internal/infrastructure/transport"
)

// Container is a container for dependency injection
type Container struct {
	// Logger
	Logger *logger.Logger

	// Repositories
	ConfigRepository *config.ConfigRepository

	// Services
	ConfigService *service.ConfigService
	BridgeService *service.BridgeService

	// Request pipeline
	Decoder   *domainservice.RequestDecoder
	Forwarder *transport.HTTPForwarder

	// Transport
	ListenerFactory *transport.ListenerFactory
	Advertiser      port.Advertiser

	// Config
	Config *model.Config
}

// NewContainer creates a new Container instance
func NewContainer() *Container {
	return &Container{}
}

// Initialize loads the configuration and builds the logger and the request
// pipeline. The Bluetooth side is built by InitializeBridge.
func (c *Container) Initialize(configPath string, logLevel string) error {
	// Bootstrap logger until the configured one exists
	c.Logger = logger.NewLogger(os.Stderr, "info")
	if logLevel != "" {
		c.Logger.SetLevel(logLevel)
	}

	c.ConfigRepository = config.NewConfigRepository()
	c.ConfigService = service.NewConfigService(c.ConfigRepository, c.Logger)

	var err error
	c.Config, err = c.ConfigService.LoadConfig(configPath)
	if err != nil {
		return err
	}

	// Flag overrides configuration
	if logLevel != "" {
		c.Config.LogLevel = model.LogLevel(logLevel)
	}

	configured, err := logger.New(logger.Options{
		Level:  string(c.Config.LogLevel),
		Format: c.Config.LogFormat,
		File:   c.Config.LogFile,
	})
	if err != nil {
		c.Logger.Error("Failed to create configured logger: %v", err)
	} else {
		c.Logger.Close()
		c.Logger = configured
		c.ConfigService = service.NewConfigService(c.ConfigRepository, c.Logger)
		if c.Config.LogFile != "" {
			c.Logger.Debug("Logs will also be written to file: %s", c.Config.LogFile)
		}
	}

	c.Decoder, err = domainservice.NewRequestDecoder(c.Config.Codec)
	if err != nil {
		return err
	}
	c.Forwarder = transport.NewHTTPForwarder(c.Config.BaseURL, c.Config.ContentType, c.Config.ForwardTimeout, c.Logger)

	return nil
}

// InitializeBridge builds the listener factory, the advertiser and the bridge service
func (c *Container) InitializeBridge() error {
	if c.Config == nil {
		return fmt.Errorf("container not initialized")
	}
	// Command line overrides are applied after Initialize
	if err := config.Validate(c.Config); err != nil {
		return err
	}
	c.Forwarder = transport.NewHTTPForwarder(c.Config.BaseURL, c.Config.ContentType, c.Config.ForwardTimeout, c.Logger)

	switch {
	case c.Config.Transport == model.TransportModeRFCOMM && c.Config.Advertise:
		advertiser, err := bluez.NewAdvertiser(c.Logger)
		if err != nil {
			return &model.TransportError{Op: "advertise", Err: err}
		}
		c.resolveAdapterAddress(advertiser)
		c.Advertiser = advertiser
	default:
		c.Advertiser = bluez.NewNoopAdvertiser(c.Logger)
	}

	c.ListenerFactory = transport.NewListenerFactory(c.Config, c.Logger)
	handler := service.NewConnectionHandler(c.Decoder, c.Forwarder, c.Config.BufferSize, c.Config.IdleTimeout, c.Logger)
	c.BridgeService = service.NewBridgeService(c.Config, c.ListenerFactory, c.Advertiser, handler, c.Logger)

	return nil
}

// resolveAdapterAddress binds to the adapter's own address when none is
// configured, falling back to any adapter when BlueZ cannot tell
func (c *Container) resolveAdapterAddress(advertiser *bluez.Advertiser) {
	if c.Config.AdapterAddress != "" {
		return
	}
	address, err := advertiser.AdapterAddress(c.Config.Adapter)
	if err != nil {
		c.Logger.Warn("Binding to any adapter: %v", err)
		return
	}
	c.Logger.Debug("Adapter %s has address %s", c.Config.Adapter, address)
	c.Config.AdapterAddress = address
}

// Close closes all resources
func (c *Container) Close() {
	// Close logger
	if c.Logger != nil {
		c.Logger.Close()
	}
}
