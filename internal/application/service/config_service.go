package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bluebridge/bluebridge-go/internal/domain/model"
	"github.com/bluebridge/bluebridge-go/internal/domain/port"
)

// ConfigService is a service for managing configuration
type ConfigService struct {
	configRepo port.ConfigRepository
	logger     port.Logger
}

// NewConfigService creates a new ConfigService instance
func NewConfigService(configRepo port.ConfigRepository, logger port.Logger) *ConfigService {
	return &ConfigService{
		configRepo: configRepo,
		logger:     logger,
	}
}

// LoadConfig loads configuration from a file
func (s *ConfigService) LoadConfig(configPath string) (*model.Config, error) {
	// If configPath is empty, use the default path
	if configPath == "" {
		var err error
		configPath, err = s.configRepo.GetDefaultPath()
		if err != nil {
			return nil, fmt.Errorf("failed to get default path: %w", err)
		}
	}

	config, err := s.configRepo.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from %s: %w", configPath, err)
	}

	s.logger.Debug("Configuration loaded from %s", configPath)

	return config, nil
}

// SaveConfig saves configuration to a file
func (s *ConfigService) SaveConfig(config *model.Config, configPath string) error {
	// If configPath is empty, use the default path
	if configPath == "" {
		var err error
		configPath, err = s.configRepo.GetDefaultPath()
		if err != nil {
			return fmt.Errorf("failed to get default path: %w", err)
		}
	}

	if err := s.configRepo.Save(config, configPath); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	s.logger.Info("Configuration saved to %s", configPath)

	return nil
}

// Set updates one configuration key from its textual value
func (s *ConfigService) Set(config *model.Config, key, value string) error {
	switch key {
	case "transport":
		config.Transport = model.TransportMode(strings.ToLower(value))
	case "adapter":
		config.Adapter = value
	case "adapter_address":
		config.AdapterAddress = value
	case "channel":
		return setInt(&config.Channel, key, value)
	case "backlog":
		return setInt(&config.Backlog, key, value)
	case "buffer_size":
		return setInt(&config.BufferSize, key, value)
	case "service_name":
		config.ServiceName = value
	case "service_uuid":
		config.ServiceUUID = value
	case "advertise":
		return setBool(&config.Advertise, key, value)
	case "discoverable":
		return setBool(&config.Discoverable, key, value)
	case "websocket_address":
		config.WebSocketAddress = value
	case "base_url":
		config.BaseURL = strings.TrimRight(value, "/")
	case "forward_timeout":
		return setDuration(&config.ForwardTimeout, key, value)
	case "content_type":
		config.ContentType = value
	case "codec":
		config.Codec = model.WireCodec(strings.ToLower(value))
	case "concurrent":
		return setBool(&config.Concurrent, key, value)
	case "idle_timeout":
		return setDuration(&config.IdleTimeout, key, value)
	case "log_level":
		config.LogLevel = model.LogLevel(value)
	case "log_format":
		config.LogFormat = value
	case "log_file":
		config.LogFile = value
	default:
		return fmt.Errorf("invalid configuration key: %s", key)
	}
	return nil
}

func setInt(dst *int, key, value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("%s must be a number: %w", key, err)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key, value string) error {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("%s must be true or false: %w", key, err)
	}
	*dst = b
	return nil
}

func setDuration(dst *time.Duration, key, value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s must be a duration such as 30s: %w", key, err)
	}
	*dst = d
	return nil
}
