package services

import (
	"context"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"video-share-service/internal/domain/entities"
	"video-share-service/internal/domain/repositories"
	"video-share-service/internal/logger"
	"video-share-service/internal/storage"
)

const revokedMessage = "share revoked"

// SyncInboundService is the receiving side of the cross-site protocol. It
// stores what peers send and leaves share creation to the reconciler.
type SyncInboundService struct {
	videos repositories.VideoRepository
	shares repositories.ShareRepository
	syncs  repositories.ShareSyncRepository
	store  storage.ArtifactStore
	orgs   OrganizationResolver
	ttl    time.Duration
	log    logger.Logger
	now    func() time.Time
}

func NewSyncInboundService(
	videos repositories.VideoRepository,
	shares repositories.ShareRepository,
	syncs repositories.ShareSyncRepository,
	store storage.ArtifactStore,
	orgs OrganizationResolver,
	ttl time.Duration,
	log logger.Logger,
) *SyncInboundService {
	return &SyncInboundService{
		videos: videos,
		shares: shares,
		syncs:  syncs,
		store:  store,
		orgs:   orgs,
		ttl:    ttl,
		log:    log.WithField("component", "sync-inbound"),
		now:    time.Now,
	}
}

// ReceiveShareSync stages a share from a peer as a PENDING ShareSync.
func (s *SyncInboundService) ReceiveShareSync(ctx context.Context, req entities.ShareSyncRequest) (*entities.ShareSync, error) {
	if req.VideoID == uuid.Nil || strings.TrimSpace(req.SharedWithUsername) == "" {
		return nil, newError(ErrInvalidInput, "videoId and sharedWithUsername are required", nil)
	}
	source, err := s.orgs.Parse(req.SourceOrganization)
	if err != nil {
		return nil, newError(ErrUnknownOrganization, "unknown source organization "+req.SourceOrganization, err)
	}

	createdAt := req.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now().UTC()
	}
	expiresAt := req.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = createdAt.Add(s.ttl)
	}
	if !expiresAt.After(createdAt) {
		return nil, newError(ErrInvalidInput, "expiresAt must be after createdAt", nil)
	}

	sync := &entities.ShareSync{
		ID:                 uuid.New(),
		VideoID:            req.VideoID,
		SharedByUserID:     req.SharedByUserID,
		SharedWithUsername: strings.TrimSpace(req.SharedWithUsername),
		SharedWithIP:       req.SharedWithIP,
		SourceOrganization: source.String(),
		TargetOrganization: s.orgs.Local().String(),
		CreatedAt:          createdAt,
		ExpiresAt:          expiresAt,
		Status:             entities.SyncStatusPending,
	}
	if err := s.syncs.Create(ctx, sync); err != nil {
		return nil, dbError("store share sync", err)
	}

	s.log.WithFields(map[string]interface{}{
		"syncId":  sync.ID.String(),
		"videoId": sync.VideoID.String(),
		"source":  sync.SourceOrganization,
	}).InfoContext(ctx, "share sync received")
	return sync, nil
}

// ReceiveVideoSync records the replicated video. Every artifact it names
// must already have been uploaded.
func (s *SyncInboundService) ReceiveVideoSync(ctx context.Context, req entities.VideoSyncRequest) (*entities.Video, error) {
	if req.VideoID == uuid.Nil {
		return nil, newError(ErrInvalidInput, "videoId is required", nil)
	}
	if len(req.Qualities) == 0 {
		return nil, newError(ErrInvalidInput, "qualities must not be empty", nil)
	}

	qualities := make(entities.Qualities, 0, len(req.Qualities))
	for _, q := range req.Qualities {
		if err := validateObjectName(q.ObjectName); err != nil {
			return nil, err
		}
		if _, err := s.store.Stat(ctx, q.ObjectName); err != nil {
			return nil, newError(ErrStorageFailed, "artifact "+q.ObjectName+" not available", err)
		}
		qualities = append(qualities, entities.VideoQuality{
			Name:       q.Name,
			Height:     q.Height,
			Bitrate:    q.Bitrate,
			Preset:     q.Preset,
			CRF:        q.CRF,
			ObjectName: q.ObjectName,
		})
	}

	createdAt := req.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now().UTC()
	}
	video := &entities.Video{
		ID:               req.VideoID,
		UserID:           req.SharedByUserID,
		OriginalFileName: req.OriginalFileName,
		Extension:        req.Extension,
		Qualities:        qualities,
		CreatedAt:        createdAt,
		UpdatedAt:        s.now().UTC(),
	}
	if err := s.videos.Upsert(ctx, video); err != nil {
		return nil, dbError("store replicated video", err)
	}
	s.log.WithField("videoId", video.ID.String()).InfoContext(ctx, "video sync received")
	return video, nil
}

// ReceiveFile stores one artifact pushed by a peer under objectName.
func (s *SyncInboundService) ReceiveFile(ctx context.Context, objectName string, body io.Reader, size int64, contentType string) error {
	if err := validateObjectName(objectName); err != nil {
		return err
	}
	if contentType == "" {
		contentType = entities.ContentTypeFor(path.Ext(objectName))
	}
	if err := s.store.Put(ctx, objectName, body, size, contentType); err != nil {
		return newError(ErrStorageFailed, "store "+objectName, err)
	}
	s.log.WithField("objectName", objectName).DebugContext(ctx, "artifact received")
	return nil
}

// ReceiveRevoke deactivates the local shares named by the notice and closes
// pending syncs so the reconciler does not bring them back.
func (s *SyncInboundService) ReceiveRevoke(ctx context.Context, req entities.RevokeSyncRequest) error {
	if req.VideoID == uuid.Nil || strings.TrimSpace(req.SharedWithUsername) == "" {
		return newError(ErrInvalidInput, "videoId and sharedWithUsername are required", nil)
	}
	closed, err := s.syncs.CloseUnprocessed(ctx, req.VideoID, req.SharedWithUsername, revokedMessage)
	if err != nil {
		return dbError("close pending syncs", err)
	}
	deactivated, err := s.shares.DeactivateFor(ctx, req.VideoID, req.SharedWithUsername)
	if err != nil {
		return dbError("deactivate shares", err)
	}
	s.log.WithFields(map[string]interface{}{
		"videoId":     req.VideoID.String(),
		"deactivated": deactivated,
		"closedSyncs": closed,
	}).InfoContext(ctx, "revoke received")
	return nil
}

func validateObjectName(name string) error {
	if name == "" || strings.HasPrefix(name, "/") || strings.Contains(name, "\\") {
		return newError(ErrInvalidInput, "invalid objectName "+name, nil)
	}
	if path.Clean(name) != name {
		return newError(ErrInvalidInput, "invalid objectName "+name, nil)
	}
	for _, part := range strings.Split(name, "/") {
		if part == ".." {
			return newError(ErrInvalidInput, "invalid objectName "+name, nil)
		}
	}
	return nil
}
