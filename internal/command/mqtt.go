package command

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/voltwatch/backend/internal/config"
	"github.com/voltwatch/backend/internal/utils"
	"go.uber.org/zap"
)

// publisher is the part of mqtt.Client the transport needs
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	IsConnected() bool
	Disconnect(quiesce uint)
}

// MQTTTransport publishes state commands to <prefix>/<deviceID> with QoS 1
type MQTTTransport struct {
	client  publisher
	prefix  string
	timeout time.Duration
	logger  *utils.Logger
}

// DialMQTT connects to the broker and returns a transport
func DialMQTT(cfg *config.MQTTConfig, timeout time.Duration, logger *utils.Logger) (*MQTTTransport, error) {
	log := logger.Named("mqtt")

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(10 * time.Second)
	opts.SetCleanSession(true)

	opts.OnConnect = func(client mqtt.Client) {
		log.Info("Connected to MQTT broker", zap.String("broker", cfg.Broker))
	}
	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		log.Warn("Connection lost to MQTT broker", zap.Error(err))
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(30*time.Second) || token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %v", cfg.Broker, token.Error())
	}

	return newMQTTTransport(client, cfg.TopicPrefix, timeout, log), nil
}

func newMQTTTransport(client publisher, prefix string, timeout time.Duration, logger *utils.Logger) *MQTTTransport {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &MQTTTransport{
		client:  client,
		prefix:  strings.TrimRight(prefix, "/"),
		timeout: timeout,
		logger:  logger,
	}
}

// Topic returns the command topic of a device
func (t *MQTTTransport) Topic(deviceID uint) string {
	return fmt.Sprintf("%s/%d", t.prefix, deviceID)
}

// SendState publishes the payload and waits for the broker acknowledgement.
// The device host is not used; devices subscribe to their own topic.
func (t *MQTTTransport) SendState(ctx context.Context, _ string, deviceID uint, running bool) error {
	if !t.client.IsConnected() {
		return fmt.Errorf("%w: MQTT client not connected", ErrDelivery)
	}

	payload, err := json.Marshal(NewPayload(deviceID, running))
	if err != nil {
		return fmt.Errorf("failed to marshal command: %w", err)
	}

	topic := t.Topic(deviceID)
	token := t.client.Publish(topic, 1, false, payload)

	timer := time.NewTimer(t.timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
	case <-timer.C:
		return fmt.Errorf("%w: publish to %s timed out", ErrDelivery, topic)
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrDelivery, ctx.Err())
	}

	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}

	t.logger.Debug("Published state command", zap.String("topic", topic), zap.Bool("running", running))
	return nil
}

// Close disconnects from the broker
func (t *MQTTTransport) Close() error {
	if t.client.IsConnected() {
		t.client.Disconnect(250)
	}
	return nil
}
