package services

import (
	"context"
	"errors"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"video-share-service/internal/domain/entities"
	"video-share-service/internal/domain/repositories"
	"video-share-service/internal/logger"
	"video-share-service/internal/metrics"
	"video-share-service/internal/organization"
	"video-share-service/internal/storage"
	"video-share-service/internal/workerpool"
)

// Sync task phases, used in logs and metrics.
const (
	phaseEndpoint  = "endpoint"
	phaseArtifacts = "artifacts"
	phaseVideo     = "video"
	phaseShare     = "share"
)

// ShareService creates and revokes shares and drives cross-site sync on a
// bounded executor. Callers never wait for cross-site I/O.
type ShareService struct {
	videos   repositories.VideoRepository
	shares   repositories.ShareRepository
	store    storage.ArtifactStore
	orgs     OrganizationResolver
	peers    PeerClient
	executor Executor
	ttl      time.Duration
	metrics  *metrics.Metrics
	log      logger.Logger
	now      func() time.Time
}

func NewShareService(
	videos repositories.VideoRepository,
	shares repositories.ShareRepository,
	store storage.ArtifactStore,
	orgs OrganizationResolver,
	peers PeerClient,
	executor Executor,
	ttl time.Duration,
	m *metrics.Metrics,
	log logger.Logger,
) *ShareService {
	return &ShareService{
		videos:   videos,
		shares:   shares,
		store:    store,
		orgs:     orgs,
		peers:    peers,
		executor: executor,
		ttl:      ttl,
		metrics:  m,
		log:      log.WithField("component", "share-manager"),
		now:      time.Now,
	}
}

// ShareVideo grants targetUsername at the organization owning targetIP access
// to the video. For a cross-site share the returned Future reports the sync
// task; it is nil for a local share.
func (s *ShareService) ShareVideo(ctx context.Context, videoID uuid.UUID, actingUserID, targetUsername, targetIP string) (*entities.Share, workerpool.Future, error) {
	targetUsername = strings.TrimSpace(targetUsername)
	targetIP = strings.TrimSpace(targetIP)
	if targetUsername == "" || targetIP == "" {
		return nil, nil, newError(ErrInvalidInput, "username and ip are required", nil)
	}

	video, err := s.videos.FindByID(ctx, videoID)
	if err != nil {
		return nil, nil, notFoundOr(ErrVideoNotFound, "video "+videoID.String(), err)
	}
	if video.UserID != actingUserID {
		return nil, nil, newError(ErrPermissionDenied, "only the owner can share a video", nil)
	}

	now := s.now().UTC()
	if existing, err := s.shares.FindActive(ctx, videoID, targetUsername); err == nil {
		if existing.ExpiresAt.After(now) {
			return nil, nil, newError(ErrDuplicateShare, "video already shared with "+targetUsername, nil)
		}
		// Expiry does not clear the active flag; retire it so the new grant fits the unique index.
		if _, err := s.shares.Deactivate(ctx, existing.ID); err != nil {
			return nil, nil, dbError("retire expired share", err)
		}
		s.log.WithField("shareId", existing.ID.String()).InfoContext(ctx, "retired expired share")
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return nil, nil, dbError("check existing share", err)
	}

	targetOrg, err := s.orgs.Resolve(targetIP)
	if err != nil {
		return nil, nil, newError(ErrUnknownOrganization, "no organization for "+targetIP, err)
	}

	share := &entities.Share{
		ID:                     uuid.New(),
		VideoID:                videoID,
		SharedByUserID:         actingUserID,
		SharedWithUsername:     targetUsername,
		SharedWithIP:           targetIP,
		SharedWithOrganization: targetOrg.String(),
		SameOrganization:       targetOrg == s.orgs.Local(),
		CreatedAt:              now,
		ExpiresAt:              now.Add(s.ttl),
		Active:                 true,
	}
	if err := s.shares.Create(ctx, share); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, nil, newError(ErrDuplicateShare, "video already shared with "+targetUsername, err)
		}
		return nil, nil, dbError("create share", err)
	}

	s.log.WithFields(map[string]interface{}{
		"shareId":      share.ID.String(),
		"videoId":      videoID.String(),
		"organization": share.SharedWithOrganization,
	}).InfoContext(ctx, "share created")

	if share.SameOrganization {
		return share, nil, nil
	}

	traceID := logger.GetTraceID(ctx)
	syncShare, syncVideo := *share, *video
	future := s.executor.Submit("share-sync:"+share.ID.String(), func(taskCtx context.Context) error {
		if traceID != "" {
			taskCtx = logger.WithTraceID(taskCtx, traceID)
		}
		return s.syncToPeer(taskCtx, &syncShare, &syncVideo, targetOrg)
	})
	return share, future, nil
}

// syncToPeer copies every artifact to the peer and then posts the metadata.
// Any failure stops the task; the local share stays active.
func (s *ShareService) syncToPeer(ctx context.Context, share *entities.Share, video *entities.Video, org organization.Organization) error {
	log := s.log.WithFields(map[string]interface{}{
		"shareId":      share.ID.String(),
		"videoId":      video.ID.String(),
		"organization": org.String(),
	})

	endpoint, ok := s.orgs.EndpointFor(org)
	if !ok {
		log.ErrorContext(ctx, "no sync endpoint configured, share will not be synchronized")
		s.metrics.SyncTask(phaseEndpoint, metrics.OutcomeFailure)
		return newError(ErrUnknownOrganization, "no sync endpoint for "+org.String(), nil)
	}

	for _, q := range video.Qualities {
		if err := s.copyArtifact(ctx, endpoint, q.ObjectName); err != nil {
			log.WithField("objectName", q.ObjectName).WithError(err).ErrorContext(ctx, "artifact copy failed, aborting sync")
			s.metrics.SyncTask(phaseArtifacts, metrics.OutcomeFailure)
			return newError(ErrRemoteFailed, "copy "+q.ObjectName, err)
		}
	}

	videoPayload, err := s.videoSyncPayload(ctx, video)
	if err != nil {
		s.metrics.SyncTask(phaseVideo, metrics.OutcomeFailure)
		return err
	}
	if err := s.peers.SyncVideo(ctx, endpoint, videoPayload); err != nil {
		log.WithError(err).ErrorContext(ctx, "video metadata sync failed")
		s.metrics.SyncTask(phaseVideo, metrics.OutcomeFailure)
		return newError(ErrRemoteFailed, "video sync", err)
	}

	sharePayload := entities.ShareSyncRequest{
		VideoID:            video.ID,
		SharedByUserID:     share.SharedByUserID,
		SharedWithUsername: share.SharedWithUsername,
		SharedWithIP:       share.SharedWithIP,
		SourceOrganization: s.orgs.Local().String(),
		CreatedAt:          share.CreatedAt,
		ExpiresAt:          share.ExpiresAt,
	}
	if err := s.peers.SyncShare(ctx, endpoint, sharePayload); err != nil {
		log.WithError(err).ErrorContext(ctx, "share metadata sync failed")
		s.metrics.SyncTask(phaseShare, metrics.OutcomeFailure)
		return newError(ErrRemoteFailed, "share sync", err)
	}

	s.metrics.SyncTask(phaseShare, metrics.OutcomeSuccess)
	log.InfoContext(ctx, "share sync submitted")
	return nil
}

func (s *ShareService) copyArtifact(ctx context.Context, endpoint, objectName string) error {
	body, err := s.store.Get(ctx, objectName)
	if err != nil {
		return err
	}
	defer body.Close()
	return s.peers.UploadFile(ctx, endpoint, objectName, body, entities.ContentTypeFor(path.Ext(objectName)))
}

func (s *ShareService) videoSyncPayload(ctx context.Context, video *entities.Video) (entities.VideoSyncRequest, error) {
	payload := entities.VideoSyncRequest{
		VideoID:          video.ID,
		SharedByUserID:   video.UserID,
		OriginalFileName: video.OriginalFileName,
		Extension:        video.Extension,
		CreatedAt:        video.CreatedAt,
		Qualities:        make([]entities.SyncedQuality, 0, len(video.Qualities)),
	}
	for _, q := range video.Qualities {
		size, err := s.store.Stat(ctx, q.ObjectName)
		if err != nil {
			return payload, newError(ErrStorageFailed, "stat "+q.ObjectName, err)
		}
		payload.Qualities = append(payload.Qualities, entities.SyncedQuality{
			Name:        q.Name,
			Height:      q.Height,
			Bitrate:     q.Bitrate,
			Preset:      q.Preset,
			CRF:         q.CRF,
			ObjectName:  q.ObjectName,
			ContentType: entities.ContentTypeFor(video.Extension),
			Size:        size,
		})
	}
	return payload, nil
}

// RevokeShare deactivates a share. Revoking an inactive share is a no-op.
// For a cross-site share one best-effort notice is sent to the peer; the
// returned Future reports it and is nil when no notice was sent.
func (s *ShareService) RevokeShare(ctx context.Context, shareID uuid.UUID, actingUserID string) (workerpool.Future, error) {
	share, err := s.shares.FindByID(ctx, shareID)
	if err != nil {
		return nil, notFoundOr(ErrShareNotFound, "share "+shareID.String(), err)
	}
	video, err := s.videos.FindByID(ctx, share.VideoID)
	if err != nil {
		return nil, notFoundOr(ErrVideoNotFound, "video "+share.VideoID.String(), err)
	}
	if video.UserID != actingUserID {
		return nil, newError(ErrPermissionDenied, "only the owner can revoke a share", nil)
	}

	changed, err := s.shares.Deactivate(ctx, shareID)
	if err != nil {
		return nil, dbError("deactivate share", err)
	}
	if !changed {
		return nil, nil
	}

	s.log.WithField("shareId", shareID.String()).InfoContext(ctx, "share revoked")
	if share.SameOrganization {
		return nil, nil
	}

	org := organization.Organization(share.SharedWithOrganization)
	notice := entities.RevokeSyncRequest{VideoID: share.VideoID, SharedWithUsername: share.SharedWithUsername}
	traceID := logger.GetTraceID(ctx)
	return s.executor.Submit("share-revoke:"+shareID.String(), func(taskCtx context.Context) error {
		if traceID != "" {
			taskCtx = logger.WithTraceID(taskCtx, traceID)
		}
		return s.sendRevoke(taskCtx, org, notice)
	}), nil
}

func (s *ShareService) sendRevoke(ctx context.Context, org organization.Organization, notice entities.RevokeSyncRequest) error {
	log := s.log.WithFields(map[string]interface{}{
		"videoId":      notice.VideoID.String(),
		"organization": org.String(),
	})
	endpoint, ok := s.orgs.EndpointFor(org)
	if !ok {
		log.Warn("no sync endpoint configured, revoke not propagated")
		s.metrics.RevokeNotice(metrics.OutcomeSkipped)
		return nil
	}
	if err := s.peers.RevokeShare(ctx, endpoint, notice); err != nil {
		log.WithError(err).WarnContext(ctx, "revoke notice failed")
		s.metrics.RevokeNotice(metrics.OutcomeFailure)
		return newError(ErrRemoteFailed, "revoke notice", err)
	}
	s.metrics.RevokeNotice(metrics.OutcomeSuccess)
	return nil
}

// ListSharesForVideo returns every share of a video, active or not. Owner only.
func (s *ShareService) ListSharesForVideo(ctx context.Context, videoID uuid.UUID, actingUserID string) ([]entities.Share, error) {
	video, err := s.videos.FindByID(ctx, videoID)
	if err != nil {
		return nil, notFoundOr(ErrVideoNotFound, "video "+videoID.String(), err)
	}
	if video.UserID != actingUserID {
		return nil, newError(ErrPermissionDenied, "only the owner can list shares", nil)
	}
	shares, err := s.shares.ListByVideo(ctx, videoID)
	if err != nil {
		return nil, dbError("list shares", err)
	}
	return shares, nil
}

// ListReceivedShares returns the active shares granted to username.
func (s *ShareService) ListReceivedShares(ctx context.Context, username string) ([]entities.Share, error) {
	if strings.TrimSpace(username) == "" {
		return nil, newError(ErrInvalidInput, "username is required", nil)
	}
	shares, err := s.shares.ListActiveByUsername(ctx, username)
	if err != nil {
		return nil, dbError("list received shares", err)
	}
	return shares, nil
}
