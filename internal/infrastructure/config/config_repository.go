package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/bluebridge/bluebridge-go/internal/domain/model"
	"github.com/bluebridge/bluebridge-go/internal/domain/port"
)

// EnvPrefix prefixes environment overrides, e.g. BLUEBRIDGE_BASE_URL
const EnvPrefix = "BLUEBRIDGE"

// Keys is the list of recognised configuration keys
var Keys = []string{
	"transport",
	"adapter",
	"adapter_address",
	"channel",
	"backlog",
	"buffer_size",
	"service_name",
	"service_uuid",
	"advertise",
	"discoverable",
	"websocket_address",
	"base_url",
	"forward_timeout",
	"content_type",
	"codec",
	"concurrent",
	"idle_timeout",
	"log_level",
	"log_format",
	"log_file",
}

// ConfigRepository is an implementation of port.ConfigRepository
type ConfigRepository struct{}

// NewConfigRepository creates a new ConfigRepository instance
func NewConfigRepository() *ConfigRepository {
	return &ConfigRepository{}
}

// newViper returns a viper instance seeded with defaults and env overrides
func newViper() *viper.Viper {
	v := viper.New()
	setValues(v.SetDefault, model.NewConfig())
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	return v
}

// Load loads configuration from file
func (r *ConfigRepository) Load(configPath string) (*model.Config, error) {
	// If configPath is empty, look in the default location
	if configPath == "" {
		var err error
		configPath, err = r.GetDefaultPath()
		if err != nil {
			return nil, err
		}
	}

	v := newViper()

	// A missing file leaves defaults and environment overrides in place
	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config := &model.Config{
		Transport:        model.TransportMode(strings.ToLower(v.GetString("transport"))),
		Adapter:          v.GetString("adapter"),
		AdapterAddress:   v.GetString("adapter_address"),
		Channel:          v.GetInt("channel"),
		Backlog:          v.GetInt("backlog"),
		BufferSize:       v.GetInt("buffer_size"),
		ServiceName:      v.GetString("service_name"),
		ServiceUUID:      v.GetString("service_uuid"),
		Advertise:        v.GetBool("advertise"),
		Discoverable:     v.GetBool("discoverable"),
		WebSocketAddress: v.GetString("websocket_address"),
		BaseURL:          v.GetString("base_url"),
		ForwardTimeout:   v.GetDuration("forward_timeout"),
		ContentType:      v.GetString("content_type"),
		Codec:            model.WireCodec(strings.ToLower(v.GetString("codec"))),
		Concurrent:       v.GetBool("concurrent"),
		IdleTimeout:      v.GetDuration("idle_timeout"),
		LogLevel:         model.LogLevel(v.GetString("log_level")),
		LogFormat:        v.GetString("log_format"),
		LogFile:          v.GetString("log_file"),
	}

	if err := Validate(config); err != nil {
		return nil, err
	}
	return config, nil
}

// Save saves configuration to file
func (r *ConfigRepository) Save(config *model.Config, configPath string) error {
	// If configPath is empty, use default location
	if configPath == "" {
		var err error
		configPath, err = r.GetDefaultPath()
		if err != nil {
			return err
		}
	}

	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	setValues(v.Set, config)

	if err := v.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("error saving configuration: %w", err)
	}
	return nil
}

// GetDefaultPath returns the default path for configuration file
func (r *ConfigRepository) GetDefaultPath() (string, error) {
	return model.NewConfig().GetConfigFilePath(), nil
}

func setValues(set func(key string, value interface{}), config *model.Config) {
	set("transport", string(config.Transport))
	set("adapter", config.Adapter)
	set("adapter_address", config.AdapterAddress)
	set("channel", config.Channel)
	set("backlog", config.Backlog)
	set("buffer_size", config.BufferSize)
	set("service_name", config.ServiceName)
	set("service_uuid", config.ServiceUUID)
	set("advertise", config.Advertise)
	set("discoverable", config.Discoverable)
	set("websocket_address", config.WebSocketAddress)
	set("base_url", config.BaseURL)
	set("forward_timeout", config.ForwardTimeout.String())
	set("content_type", config.ContentType)
	set("codec", string(config.Codec))
	set("concurrent", config.Concurrent)
	set("idle_timeout", config.IdleTimeout.String())
	set("log_level", string(config.LogLevel))
	set("log_format", config.LogFormat)
	set("log_file", config.LogFile)
}

// Ensure ConfigRepository implements port.ConfigRepository
var _ port.ConfigRepository = (*ConfigRepository)(nil)
