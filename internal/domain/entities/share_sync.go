package entities

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// SyncStatus is the processing state of an inbound ShareSync.
type SyncStatus string

const (
	SyncStatusPending   SyncStatus = "PENDING"
	SyncStatusProcessed SyncStatus = "PROCESSED"
	SyncStatusFailed    SyncStatus = "FAILED"
)

// ShareSync stages a share received from another organization until the
// reconciler turns it into a local Share. Terminal once IsProcessed is set.
type ShareSync struct {
	ID                 uuid.UUID      `json:"id" db:"id"`
	VideoID            uuid.UUID      `json:"videoId" db:"video_id"`
	SharedByUserID     string         `json:"sharedByUserId" db:"shared_by_user_id"`
	SharedWithUsername string         `json:"sharedWithUsername" db:"shared_with_username"`
	SharedWithIP       string         `json:"sharedWithIp" db:"shared_with_ip"`
	SourceOrganization string         `json:"sourceOrganization" db:"source_organization"`
	TargetOrganization string         `json:"targetOrganization" db:"target_organization"`
	CreatedAt          time.Time      `json:"createdAt" db:"created_at"`
	ExpiresAt          time.Time      `json:"expiresAt" db:"expires_at"`
	IsProcessed        bool           `json:"isProcessed" db:"is_processed"`
	Status             SyncStatus     `json:"status" db:"status"`
	ErrorMessage       sql.NullString `json:"-" db:"error_message"`
}
