package entities

import (
	"time"

	"github.com/google/uuid"
)

// Share grants a username access to a video, possibly at another organization.
type Share struct {
	ID                     uuid.UUID `json:"id" db:"id"`
	VideoID                uuid.UUID `json:"videoId" db:"video_id"`
	SharedByUserID         string    `json:"sharedByUserId" db:"shared_by_user_id"`
	SharedWithUsername     string    `json:"sharedWithUsername" db:"shared_with_username"`
	SharedWithIP           string    `json:"sharedWithIp" db:"shared_with_ip"`
	SharedWithOrganization string    `json:"sharedWithOrganization" db:"shared_with_organization"`
	SameOrganization       bool      `json:"sameOrganization" db:"same_organization"`
	CreatedAt              time.Time `json:"createdAt" db:"created_at"`
	ExpiresAt              time.Time `json:"expiresAt" db:"expires_at"`
	Active                 bool      `json:"active" db:"active"`
}

// CreateShareDTO is the body of a share request.
type CreateShareDTO struct {
	Username string `json:"username" binding:"required"`
	IP       string `json:"ip" binding:"required"`
}
