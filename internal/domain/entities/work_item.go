package entities

import (
	"time"

	"github.com/google/uuid"
)

// WorkItem describes an uploaded file waiting to be transcoded.
type WorkItem struct {
	VideoID          uuid.UUID `json:"videoId"`
	UserID           string    `json:"userId"`
	OriginalFileName string    `json:"originalFileName"`
	Extension        string    `json:"extension"`
	SourceFilePath   string    `json:"sourceFilePath"`
}

// Result is the single terminal event of a WorkItem.
type Result struct {
	Success     bool           `json:"success"`
	VideoID     uuid.UUID      `json:"videoId"`
	UserID      string         `json:"userId"`
	Qualities   []VideoQuality `json:"qualities,omitempty"`
	Error       string         `json:"error,omitempty"`
	CompletedAt time.Time      `json:"completedAt"`
}

// ProgressStatus is a pipeline checkpoint pushed to the uploader.
type ProgressStatus string

const (
	ProgressUploading            ProgressStatus = "UPLOADING"
	ProgressUploadCompleted      ProgressStatus = "UPLOAD_COMPLETED"
	ProgressTranscodingStarted   ProgressStatus = "TRANSCODING_STARTED"
	ProgressTranscoding          ProgressStatus = "TRANSCODING"
	ProgressTranscodingCompleted ProgressStatus = "TRANSCODING_COMPLETED"
	ProgressError                ProgressStatus = "ERROR"
)

// ProgressEvent is what the notifier publishes.
type ProgressEvent struct {
	UserID    string         `json:"userId"`
	VideoID   string         `json:"videoId"`
	Status    ProgressStatus `json:"status"`
	Progress  int            `json:"progress"`
	Timestamp time.Time      `json:"timestamp"`
}
