package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bluebridge/bluebridge-go/internal/domain/model"
	"github.com/bluebridge/bluebridge-go/internal/domain/port"
)

// HTTPForwarder is an implementation of port.Forwarder that calls the local
// web application
type HTTPForwarder struct {
	baseURL     string
	contentType string
	client      *http.Client
	logger      port.Logger
}

// NewHTTPForwarder creates a forwarder for baseURL. contentType is sent with
// string POST bodies and may be empty.
func NewHTTPForwarder(baseURL, contentType string, timeout time.Duration, logger port.Logger) *HTTPForwarder {
	return &HTTPForwarder{
		baseURL:     strings.TrimRight(baseURL, "/"),
		contentType: contentType,
		client:      &http.Client{Timeout: timeout},
		logger:      logger,
	}
}

// TargetURL returns the URL a request is sent to
func (f *HTTPForwarder) TargetURL(request *model.BridgeRequest) string {
	return f.baseURL + request.Path
}

// Forward issues the request and reads the whole response body
func (f *HTTPForwarder) Forward(ctx context.Context, request *model.BridgeRequest) (*model.BridgeResponse, error) {
	targetURL := f.TargetURL(request)

	var httpReq *http.Request
	var err error
	if request.HasBody() {
		httpReq, err = http.NewRequestWithContext(ctx, http.MethodPost, targetURL, bytes.NewReader(request.Options))
		if err == nil {
			switch {
			case request.ContentType != "":
				httpReq.Header.Set("Content-Type", request.ContentType)
			case f.contentType != "":
				httpReq.Header.Set("Content-Type", f.contentType)
			}
		}
	} else {
		httpReq, err = http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	}
	if err != nil {
		return nil, &model.ForwardError{URL: targetURL, Err: fmt.Errorf("failed to create local HTTP request: %w", err)}
	}

	f.logger.Debug("Sending %s request to local service: %s", httpReq.Method, targetURL)
	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, &model.ForwardError{URL: targetURL, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &model.ForwardError{URL: targetURL, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	f.logger.Debug("Local service answered %d %s with %d bytes", resp.StatusCode, http.StatusText(resp.StatusCode), len(body))

	return &model.BridgeResponse{
		StatusCode: resp.StatusCode,
		Body:       body,
	}, nil
}

// Ensure HTTPForwarder implements port.Forwarder
var _ port.Forwarder = (*HTTPForwarder)(nil)
