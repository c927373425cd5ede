package config

import (
	"fmt"
	"net/url"

	"github.com/google/uuid"

	"github.com/bluebridge/bluebridge-go/internal/domain/model"
)

// maxRFCOMMChannel is the highest server channel RFCOMM allows
const maxRFCOMMChannel = 30

// Validate checks a configuration for values the bridge cannot run with
func Validate(config *model.Config) error {
	switch config.Transport {
	case model.TransportModeRFCOMM, model.TransportModeWebSocket:
	default:
		return fmt.Errorf("transport not supported: %q", config.Transport)
	}

	if config.Channel < 0 || config.Channel > maxRFCOMMChannel {
		return fmt.Errorf("channel must be between 0 and %d, got %d", maxRFCOMMChannel, config.Channel)
	}
	if config.Backlog < 1 {
		return fmt.Errorf("backlog must be at least 1, got %d", config.Backlog)
	}
	if config.BufferSize < 1 {
		return fmt.Errorf("buffer_size must be positive, got %d", config.BufferSize)
	}
	if _, err := uuid.Parse(config.ServiceUUID); err != nil {
		return fmt.Errorf("invalid service_uuid %q: %w", config.ServiceUUID, err)
	}

	u, err := url.Parse(config.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base_url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("base_url must be an absolute http(s) URL, got %q", config.BaseURL)
	}

	switch config.Codec {
	case model.WireCodecJSON, model.WireCodecCBOR:
	default:
		return fmt.Errorf("codec not supported: %q", config.Codec)
	}

	if config.ForwardTimeout < 0 || config.IdleTimeout < 0 {
		return fmt.Errorf("timeouts cannot be negative")
	}
	return nil
}
