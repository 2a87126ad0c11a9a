package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"video-share-service/internal/logger"
)

// MessageType tags the payload carried by a Message.
type MessageType string

const (
	TypeTranscodeRequested MessageType = "video.transcode.requested"
	TypeTranscodeCompleted MessageType = "video.transcode.completed"
	TypeTranscodeFailed    MessageType = "video.transcode.failed"
	TypeProgress           MessageType = "video.progress"
)

// Message is the envelope written to every topic.
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
	Source    string          `json:"source"`
	TraceID   string          `json:"trace_id"`
}

// NewMessage wraps data, reusing the trace id carried by ctx when there is one.
func NewMessage(ctx context.Context, msgType MessageType, data interface{}, source string) (*Message, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	traceID := logger.GetTraceID(ctx)
	if traceID == "" {
		traceID = logger.GenerateTraceID()
	}
	return &Message{
		Type:      msgType,
		Data:      raw,
		Timestamp: time.Now().UTC(),
		Source:    source,
		TraceID:   traceID,
	}, nil
}

// Decode unmarshals the payload into v.
func (m *Message) Decode(v interface{}) error {
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", m.Type, err)
	}
	return nil
}

// Publisher is the queue publish capability.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, msgType MessageType, data interface{}) error
}

// Handler processes one consumed message. A nil return commits the offset.
// A non-nil return leaves it uncommitted and the message is delivered again,
// so handlers return nil for failures that redelivery cannot fix.
type Handler interface {
	HandleMessage(ctx context.Context, msg *Message) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, msg *Message) error

func (f HandlerFunc) HandleMessage(ctx context.Context, msg *Message) error {
	return f(ctx, msg)
}
