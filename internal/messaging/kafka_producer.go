package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"

	"video-share-service/internal/logger"
)

// KafkaProducer publishes envelopes through a synchronous producer.
type KafkaProducer struct {
	producer sarama.SyncProducer
	source   string
	log      logger.Logger
}

// ProducerConfig returns the sarama settings used for every producer.
func ProducerConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_8_1_0
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Return.Successes = true
	return cfg
}

// NewKafkaProducer dials brokers.
func NewKafkaProducer(brokers []string, source string, log logger.Logger) (*KafkaProducer, error) {
	producer, err := sarama.NewSyncProducer(brokers, ProducerConfig())
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return NewKafkaProducerWith(producer, source, log), nil
}

// NewKafkaProducerWith wraps an existing producer.
func NewKafkaProducerWith(producer sarama.SyncProducer, source string, log logger.Logger) *KafkaProducer {
	return &KafkaProducer{producer: producer, source: source, log: log}
}

// Publish sends one message keyed by key so all events of a video share a partition.
func (k *KafkaProducer) Publish(ctx context.Context, topic, key string, msgType MessageType, data interface{}) error {
	msg, err := NewMessage(ctx, msgType, data, k.source)
	if err != nil {
		return err
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	pm := &sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.ByteEncoder(body),
	}
	if key != "" {
		pm.Key = sarama.StringEncoder(key)
	}

	partition, offset, err := k.producer.SendMessage(pm)
	if err != nil {
		return fmt.Errorf("send %s to %s: %w", msgType, topic, err)
	}

	k.log.WithFields(map[string]interface{}{
		"topic":     topic,
		"type":      msgType,
		"partition": partition,
		"offset":    offset,
		"trace_id":  msg.TraceID,
	}).Debug("message published")
	return nil
}

func (k *KafkaProducer) Close() error {
	return k.producer.Close()
}
