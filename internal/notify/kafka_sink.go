package notify

import (
	"context"

	"video-share-service/internal/domain/entities"
	"video-share-service/internal/messaging"
)

// KafkaSink publishes progress events to a topic keyed by video id.
type KafkaSink struct {
	publisher messaging.Publisher
	topic     string
}

func NewKafkaSink(publisher messaging.Publisher, topic string) *KafkaSink {
	return &KafkaSink{publisher: publisher, topic: topic}
}

func (s *KafkaSink) Deliver(ctx context.Context, event entities.ProgressEvent) error {
	return s.publisher.Publish(ctx, s.topic, event.VideoID, messaging.TypeProgress, event)
}
