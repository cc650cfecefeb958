package command

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/voltwatch/backend/internal/config"
	"github.com/voltwatch/backend/internal/utils"
	"go.uber.org/zap"
)

// HTTPRelay posts state commands to the relay endpoint exposed by each device
type HTTPRelay struct {
	httpClient *http.Client
	endpoint   string
	logger     *utils.Logger
}

// NewHTTPRelay creates a relay client
func NewHTTPRelay(cfg *config.CommandConfig, logger *utils.Logger) *HTTPRelay {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &HTTPRelay{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     30 * time.Second,
			},
		},
		endpoint: cfg.RelayEndpoint,
		logger:   logger.Named("relay_client"),
	}
}

// StatusError reports a non-2xx answer from a device
type StatusError struct {
	StatusCode int
	Body       string
}

// Error returns the error message
func (e *StatusError) Error() string {
	return fmt.Sprintf("device relay responded %d: %s", e.StatusCode, e.Body)
}

// SendState posts {status, id} to {host}{endpoint}
func (c *HTTPRelay) SendState(ctx context.Context, host string, deviceID uint, running bool) error {
	if host == "" {
		return fmt.Errorf("%w: device %d has no host", ErrDelivery, deviceID)
	}
	url := strings.TrimRight(host, "/") + c.endpoint

	jsonData, err := json.Marshal(NewPayload(deviceID, running))
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("%w: failed to create request: %v", ErrDelivery, err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("Sending state command",
		zap.String("url", url),
		zap.Uint("device_id", deviceID),
		zap.Bool("running", running),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%w: %w", ErrDelivery, &StatusError{StatusCode: resp.StatusCode, Body: string(body)})
	}

	// drain so the connection can be reused
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Close releases idle connections
func (c *HTTPRelay) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
