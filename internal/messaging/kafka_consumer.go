package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"video-share-service/internal/logger"
)

// KafkaConsumer runs a consumer group and routes messages by topic.
type KafkaConsumer struct {
	group      sarama.ConsumerGroup
	log        logger.Logger
	mu         sync.RWMutex
	handlers   map[string]Handler
	retryDelay time.Duration
}

// DefaultRetryDelay is the pause before a failed record is redelivered.
const DefaultRetryDelay = 5 * time.Second

// ConsumerConfig returns the sarama settings for the consumer group.
func ConsumerConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_8_1_0
	cfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	cfg.Consumer.Return.Errors = true
	return cfg
}

func NewKafkaConsumer(brokers []string, groupID string, log logger.Logger) (*KafkaConsumer, error) {
	group, err := sarama.NewConsumerGroup(brokers, groupID, ConsumerConfig())
	if err != nil {
		return nil, fmt.Errorf("create consumer group %s: %w", groupID, err)
	}
	return newKafkaConsumer(group, log), nil
}

func newKafkaConsumer(group sarama.ConsumerGroup, log logger.Logger) *KafkaConsumer {
	return &KafkaConsumer{group: group, log: log, handlers: make(map[string]Handler), retryDelay: DefaultRetryDelay}
}

// RegisterHandler routes topic to h. Call before Run.
func (c *KafkaConsumer) RegisterHandler(topic string, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[topic] = h
}

func (c *KafkaConsumer) topics() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.handlers))
	for t := range c.handlers {
		out = append(out, t)
	}
	return out
}

// Run consumes until ctx is cancelled. Rebalances restart the session.
func (c *KafkaConsumer) Run(ctx context.Context) error {
	topics := c.topics()
	if len(topics) == 0 {
		return errors.New("no topic handlers registered")
	}

	go func() {
		for err := range c.group.Errors() {
			c.log.WithError(err).Warn("consumer group error")
		}
	}()

	c.log.WithField("topics", topics).Info("kafka consumer started")
	for {
		if err := c.group.Consume(ctx, topics, c); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return fmt.Errorf("consume: %w", err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (c *KafkaConsumer) Close() error {
	return c.group.Close()
}

func (c *KafkaConsumer) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (c *KafkaConsumer) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim handles messages one at a time, so a partition has a single
// in-flight work item. A record is marked only after its handler returns nil.
// On a handler error the claim exits without marking, which ends the session;
// Run then rejoins and the record is delivered again from the committed offset.
func (c *KafkaConsumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := session.Context()
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := c.dispatch(ctx, msg.Topic, msg.Value); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				c.log.WithFields(map[string]interface{}{
					"topic":     msg.Topic,
					"partition": msg.Partition,
					"offset":    msg.Offset,
				}).WithError(err).Warn("record not committed, redelivering in %s", c.retryDelay)
				c.wait(ctx)
				return nil
			}
			session.MarkMessage(msg, "")
		case <-ctx.Done():
			return nil
		}
	}
}

func (c *KafkaConsumer) wait(ctx context.Context) {
	t := time.NewTimer(c.retryDelay)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// dispatch decodes and routes a raw record. Malformed records and records
// for unknown topics return nil so they are committed and skipped.
func (c *KafkaConsumer) dispatch(ctx context.Context, topic string, value []byte) error {
	var msg Message
	if err := json.Unmarshal(value, &msg); err != nil {
		c.log.WithField("topic", topic).WithError(err).Error("dropping malformed message")
		return nil
	}

	c.mu.RLock()
	h, ok := c.handlers[topic]
	c.mu.RUnlock()
	if !ok {
		c.log.WithField("topic", topic).Warn("no handler for topic")
		return nil
	}

	if msg.TraceID != "" {
		ctx = logger.WithTraceID(ctx, msg.TraceID)
	}
	if err := h.HandleMessage(ctx, &msg); err != nil {
		c.log.WithFields(map[string]interface{}{
			"topic": topic,
			"type":  msg.Type,
		}).WithError(err).Error("handler failed")
		return err
	}
	return nil
}
