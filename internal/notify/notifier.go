package notify

import (
	"context"
	"sync"
	"time"

	"video-share-service/internal/domain/entities"
	"video-share-service/internal/logger"
)

// Notifier pushes pipeline checkpoints to the uploader. Implementations must
// not block the caller and never report failure.
type Notifier interface {
	PushProgress(userID, videoID string, status entities.ProgressStatus, percent int)
}

// Sink delivers one event synchronously.
type Sink interface {
	Deliver(ctx context.Context, event entities.ProgressEvent) error
}

// Noop drops every event.
type Noop struct{}

func (Noop) PushProgress(string, string, entities.ProgressStatus, int) {}

// Async queues events for a background goroutine that feeds the Sink.
// When the buffer is full the event is dropped and logged.
type Async struct {
	sink    Sink
	log     logger.Logger
	timeout time.Duration
	events  chan entities.ProgressEvent

	closeOnce sync.Once
	done      chan struct{}
}

// NewAsync starts the delivery goroutine. Call Close to flush and stop it.
func NewAsync(sink Sink, buffer int, log logger.Logger) *Async {
	if buffer < 1 {
		buffer = 1
	}
	a := &Async{
		sink:    sink,
		log:     log,
		timeout: 5 * time.Second,
		events:  make(chan entities.ProgressEvent, buffer),
		done:    make(chan struct{}),
	}
	go a.loop()
	return a
}

func (a *Async) PushProgress(userID, videoID string, status entities.ProgressStatus, percent int) {
	event := entities.ProgressEvent{
		UserID:    userID,
		VideoID:   videoID,
		Status:    status,
		Progress:  clamp(percent),
		Timestamp: time.Now().UTC(),
	}

	defer func() {
		// Send on a closed channel after Close.
		if recover() != nil {
			a.log.WithField("videoId", videoID).Debug("notifier closed, dropping progress event")
		}
	}()

	select {
	case a.events <- event:
	default:
		a.log.WithFields(map[string]interface{}{
			"videoId": videoID,
			"status":  status,
		}).Warn("progress buffer full, dropping event")
	}
}

func (a *Async) loop() {
	defer close(a.done)
	for event := range a.events {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		if err := a.sink.Deliver(ctx, event); err != nil {
			a.log.WithFields(map[string]interface{}{
				"videoId": event.VideoID,
				"status":  event.Status,
			}).WithError(err).Warn("progress delivery failed")
		}
		cancel()
	}
}

// Close drains queued events and stops the goroutine.
func (a *Async) Close() {
	a.closeOnce.Do(func() {
		close(a.events)
	})
	<-a.done
}

func clamp(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}
