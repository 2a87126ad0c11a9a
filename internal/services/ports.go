package services

import (
	"context"
	"io"

	"video-share-service/internal/domain/entities"
	"video-share-service/internal/organization"
	"video-share-service/internal/workerpool"
)

// OrganizationResolver is the read-only view of the organization registry.
type OrganizationResolver interface {
	Local() organization.Organization
	Resolve(ip string) (organization.Organization, error)
	EndpointFor(org organization.Organization) (string, bool)
	Parse(id string) (organization.Organization, error)
}

// PeerClient calls another organization's sync surface.
type PeerClient interface {
	UploadFile(ctx context.Context, endpoint, objectName string, body io.Reader, contentType string) error
	SyncVideo(ctx context.Context, endpoint string, payload entities.VideoSyncRequest) error
	SyncShare(ctx context.Context, endpoint string, payload entities.ShareSyncRequest) error
	RevokeShare(ctx context.Context, endpoint string, payload entities.RevokeSyncRequest) error
}

// Executor runs background tasks without blocking the submitter.
type Executor interface {
	Submit(name string, task workerpool.Task) workerpool.Future
}
