package entities

import (
	"time"

	"github.com/google/uuid"
)

// ShareSyncRequest is posted to a peer's /share-sync endpoint.
type ShareSyncRequest struct {
	VideoID            uuid.UUID `json:"videoId" binding:"required"`
	SharedByUserID     string    `json:"sharedByUserId" binding:"required"`
	SharedWithUsername string    `json:"sharedWithUsername" binding:"required"`
	SharedWithIP       string    `json:"sharedWithIp"`
	SourceOrganization string    `json:"sourceOrganization" binding:"required"`
	CreatedAt          time.Time `json:"createdAt"`
	ExpiresAt          time.Time `json:"expiresAt"`
}

// SyncedQuality describes one artifact already copied to the peer.
type SyncedQuality struct {
	Name        string `json:"name" binding:"required"`
	Height      int    `json:"height"`
	Bitrate     string `json:"bitrate"`
	Preset      string `json:"preset"`
	CRF         int    `json:"crf"`
	ObjectName  string `json:"objectName" binding:"required"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// VideoSyncRequest is posted to a peer's /video-sync endpoint.
type VideoSyncRequest struct {
	VideoID          uuid.UUID       `json:"videoId" binding:"required"`
	SharedByUserID   string          `json:"sharedByUserId" binding:"required"`
	OriginalFileName string          `json:"originalFileName"`
	Extension        string          `json:"extension"`
	CreatedAt        time.Time       `json:"createdAt"`
	Qualities        []SyncedQuality `json:"qualities" binding:"required,dive"`
}

// RevokeSyncRequest is posted to a peer's /share-sync/revoke endpoint.
type RevokeSyncRequest struct {
	VideoID            uuid.UUID `json:"videoId" binding:"required"`
	SharedWithUsername string    `json:"sharedWithUsername" binding:"required"`
}
