package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/voltwatch/backend/internal/config"
	"github.com/voltwatch/backend/internal/utils"
	"go.uber.org/zap"
)

// Producer provides functionality to produce messages to Kafka topics
type Producer struct {
	producer *kafka.Producer
	logger   *utils.Logger
	config   *config.KafkaConfig
}

// clientConfig builds the librdkafka settings shared by producers and consumers
func clientConfig(cfg *config.KafkaConfig, extra kafka.ConfigMap) (*kafka.ConfigMap, error) {
	kafkaConfig := &kafka.ConfigMap{
		"bootstrap.servers": cfg.Brokers,
	}
	for k, v := range extra {
		if err := kafkaConfig.SetKey(k, v); err != nil {
			return nil, fmt.Errorf("failed to set %s: %w", k, err)
		}
	}

	if cfg.SecurityEnable {
		security := kafka.ConfigMap{
			"security.protocol": "SASL_SSL",
			"sasl.mechanisms":   "PLAIN",
			"sasl.username":     cfg.SecurityUser,
			"sasl.password":     cfg.SecurityPass,
		}
		for k, v := range security {
			if err := kafkaConfig.SetKey(k, v); err != nil {
				return nil, fmt.Errorf("failed to set %s: %w", k, err)
			}
		}
	}
	return kafkaConfig, nil
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg *config.KafkaConfig, clientID string, logger *utils.Logger) (*Producer, error) {
	kafkaLogger := logger.Named("kafka_producer")

	kafkaConfig, err := clientConfig(cfg, kafka.ConfigMap{
		"client.id": clientID,
		"acks":      "all",
	})
	if err != nil {
		return nil, err
	}

	producer, err := kafka.NewProducer(kafkaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	// Start delivery report goroutine
	go func() {
		for e := range producer.Events() {
			if ev, ok := e.(*kafka.Message); ok {
				if ev.TopicPartition.Error != nil {
					kafkaLogger.Error("Failed to deliver message",
						zap.String("topic", *ev.TopicPartition.Topic),
						zap.Error(ev.TopicPartition.Error),
					)
				} else {
					kafkaLogger.Debug("Message delivered",
						zap.String("topic", *ev.TopicPartition.Topic),
						zap.Int32("partition", ev.TopicPartition.Partition),
						zap.Int64("offset", int64(ev.TopicPartition.Offset)),
					)
				}
			}
		}
	}()

	return &Producer{
		producer: producer,
		logger:   kafkaLogger,
		config:   cfg,
	}, nil
}

// Message represents a message to be sent to Kafka. A []byte Value is sent
// verbatim, anything else is encoded as JSON.
type Message struct {
	Key       string
	Value     interface{}
	Timestamp time.Time
	Headers   map[string]string
}

// encode builds the wire message for topic
func encode(topic string, message *Message) (*kafka.Message, error) {
	var valueBytes []byte
	switch v := message.Value.(type) {
	case []byte:
		valueBytes = v
	default:
		var err error
		valueBytes, err = json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message value: %w", err)
		}
	}

	kafkaMessage := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Value:          valueBytes,
		Timestamp:      message.Timestamp,
	}

	if message.Key != "" {
		kafkaMessage.Key = []byte(message.Key)
	}

	if len(message.Headers) > 0 {
		kafkaMessage.Headers = make([]kafka.Header, 0, len(message.Headers))
		for k, v := range message.Headers {
			kafkaMessage.Headers = append(kafkaMessage.Headers, kafka.Header{
				Key:   k,
				Value: []byte(v),
			})
		}
	}
	return kafkaMessage, nil
}

// Produce sends a message to a Kafka topic
func (p *Producer) Produce(topic string, message *Message) error {
	kafkaMessage, err := encode(topic, message)
	if err != nil {
		return err
	}

	p.logger.Debug("Producing message",
		zap.String("topic", topic),
		zap.String("key", message.Key),
	)

	if err := p.producer.Produce(kafkaMessage, nil); err != nil {
		return fmt.Errorf("failed to produce message: %w", err)
	}
	return nil
}

// ProduceSync sends a message to a Kafka topic and waits for the delivery report
func (p *Producer) ProduceSync(topic string, message *Message) error {
	kafkaMessage, err := encode(topic, message)
	if err != nil {
		return err
	}

	deliveryChan := make(chan kafka.Event, 1)
	if err := p.producer.Produce(kafkaMessage, deliveryChan); err != nil {
		return fmt.Errorf("failed to produce message: %w", err)
	}

	e := <-deliveryChan
	m, ok := e.(*kafka.Message)
	if !ok {
		return fmt.Errorf("unexpected delivery event: %v", e)
	}
	if m.TopicPartition.Error != nil {
		return fmt.Errorf("failed to deliver message: %w", m.TopicPartition.Error)
	}
	return nil
}

// Flush flushes the producer's message queue
func (p *Producer) Flush(timeoutMs int) int {
	return p.producer.Flush(timeoutMs)
}

// Close closes the producer and waits for any outstanding messages to be delivered
func (p *Producer) Close() {
	p.logger.Info("Flushing producer before closing")
	remaining := p.producer.Flush(5000)
	if remaining > 0 {
		p.logger.Warn("Failed to deliver all messages during flush", zap.Int("remaining", remaining))
	}

	p.producer.Close()
	p.logger.Info("Kafka producer closed")
}
