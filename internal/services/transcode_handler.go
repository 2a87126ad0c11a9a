package services

import (
	"context"
	"fmt"

	"video-share-service/internal/domain/entities"
	"video-share-service/internal/logger"
	"video-share-service/internal/messaging"
)

// VideoProcessor is the worker contract. An error means no terminal Result
// exists yet and the item must be delivered again.
type VideoProcessor interface {
	ProcessVideo(ctx context.Context, item entities.WorkItem) (entities.Result, error)
}

// TranscodeJobHandler consumes WorkItems and publishes their terminal Result.
// It returns an error, leaving the offset uncommitted, until that Result is
// published.
type TranscodeJobHandler struct {
	processor   VideoProcessor
	publisher   messaging.Publisher
	resultTopic string
	log         logger.Logger
}

func NewTranscodeJobHandler(processor VideoProcessor, publisher messaging.Publisher, resultTopic string, log logger.Logger) *TranscodeJobHandler {
	return &TranscodeJobHandler{
		processor:   processor,
		publisher:   publisher,
		resultTopic: resultTopic,
		log:         log,
	}
}

func (h *TranscodeJobHandler) HandleMessage(ctx context.Context, msg *messaging.Message) error {
	if msg.Type != messaging.TypeTranscodeRequested {
		h.log.WithField("type", msg.Type).Warn("ignoring unexpected message on work topic")
		return nil
	}

	var item entities.WorkItem
	if err := msg.Decode(&item); err != nil {
		h.log.WithError(err).Error("dropping undecodable work item")
		return nil
	}

	result, err := h.processor.ProcessVideo(ctx, item)
	if err != nil {
		return err
	}

	msgType := messaging.TypeTranscodeCompleted
	if !result.Success {
		msgType = messaging.TypeTranscodeFailed
	}
	if err := h.publisher.Publish(ctx, h.resultTopic, result.VideoID.String(), msgType, result); err != nil {
		return fmt.Errorf("publish result for %s: %w", result.VideoID, err)
	}
	return nil
}
