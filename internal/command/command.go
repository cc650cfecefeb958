// Package command delivers on/off state commands to devices.
package command

import (
	"context"
	"fmt"

	"github.com/voltwatch/backend/internal/config"
	"github.com/voltwatch/backend/internal/utils"
)

// ErrDelivery is wrapped by every transport failure
var ErrDelivery = fmt.Errorf("command delivery failed: %w", utils.ErrDependency)

// Payload is the body sent to a device
type Payload struct {
	Status int  `json:"status"` // 1 on, 0 off
	ID     uint `json:"id"`
}

// NewPayload builds the payload for a desired running state
func NewPayload(deviceID uint, running bool) Payload {
	p := Payload{ID: deviceID}
	if running {
		p.Status = 1
	}
	return p
}

// Transport sends a state command to a single device. Implementations must
// honour ctx cancellation and report failures as errors wrapping ErrDelivery.
type Transport interface {
	SendState(ctx context.Context, host string, deviceID uint, running bool) error
	Close() error
}

// NewTransport creates the transport selected by cfg
func NewTransport(cfg *config.CommandConfig, logger *utils.Logger) (Transport, error) {
	switch cfg.Transport {
	case "http", "":
		return NewHTTPRelay(cfg, logger), nil
	case "mqtt":
		return DialMQTT(&cfg.MQTT, cfg.Timeout, logger)
	default:
		return nil, fmt.Errorf("unsupported command transport: %s", cfg.Transport)
	}
}
