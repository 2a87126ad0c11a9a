package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"video-share-service/internal/domain/entities"
	"video-share-service/internal/domain/repositories"
	"video-share-service/internal/logger"
	"video-share-service/internal/messaging"
	"video-share-service/internal/notify"
	"video-share-service/internal/storage"
)

// SupportedExtensions lists the container formats accepted for upload. Each
// must be able to carry the H.264/AAC streams the encoder produces, since
// artifacts keep the source extension.
var SupportedExtensions = map[string]bool{
	".mp4": true,
	".mov": true,
	".mkv": true,
	".avi": true,
	".m4v": true,
}

// Viewer identifies the caller of a read operation.
type Viewer struct {
	UserID   string
	Username string
}

// VideoService accepts uploads and serves video metadata and playback URLs.
type VideoService struct {
	videos     repositories.VideoRepository
	shares     repositories.ShareRepository
	store      storage.ArtifactStore
	publisher  messaging.Publisher
	notifier   notify.Notifier
	workTopic  string
	tempDir    string
	presignTTL time.Duration
	log        logger.Logger
	now        func() time.Time
}

func NewVideoService(
	videos repositories.VideoRepository,
	shares repositories.ShareRepository,
	store storage.ArtifactStore,
	publisher messaging.Publisher,
	notifier notify.Notifier,
	workTopic, tempDir string,
	presignTTL time.Duration,
	log logger.Logger,
) *VideoService {
	if notifier == nil {
		notifier = notify.Noop{}
	}
	return &VideoService{
		videos:     videos,
		shares:     shares,
		store:      store,
		publisher:  publisher,
		notifier:   notifier,
		workTopic:  workTopic,
		tempDir:    tempDir,
		presignTTL: presignTTL,
		log:        log.WithField("component", "video-service"),
		now:        time.Now,
	}
}

// Upload saves the file to the temp directory and enqueues a WorkItem.
// size may be -1 when unknown; progress is then only reported at the ends.
func (s *VideoService) Upload(ctx context.Context, userID, fileName string, body io.Reader, size int64) (*entities.UploadResponse, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	if ext == "" || !SupportedExtensions[ext] {
		return nil, newError(ErrInvalidInput, fmt.Sprintf("unsupported file type %q", ext), nil)
	}

	videoID := uuid.New()
	log := s.log.WithFields(map[string]interface{}{
		"videoId": videoID.String(),
		"userId":  userID,
	})
	s.notifier.PushProgress(userID, videoID.String(), entities.ProgressUploading, 0)

	dir := filepath.Join(s.tempDir, videoID.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, newError(ErrStorageFailed, "create temp dir", err)
	}
	sourcePath := filepath.Join(dir, "source"+ext)

	if err := s.saveSource(sourcePath, body, size, func(percent int) {
		s.notifier.PushProgress(userID, videoID.String(), entities.ProgressUploading, percent)
	}); err != nil {
		_ = os.RemoveAll(dir)
		s.notifier.PushProgress(userID, videoID.String(), entities.ProgressError, 0)
		return nil, newError(ErrStorageFailed, "save upload", err)
	}
	s.notifier.PushProgress(userID, videoID.String(), entities.ProgressUploadCompleted, 100)

	item := entities.WorkItem{
		VideoID:          videoID,
		UserID:           userID,
		OriginalFileName: filepath.Base(fileName),
		Extension:        ext,
		SourceFilePath:   sourcePath,
	}
	if err := s.publisher.Publish(ctx, s.workTopic, videoID.String(), messaging.TypeTranscodeRequested, item); err != nil {
		_ = os.RemoveAll(dir)
		s.notifier.PushProgress(userID, videoID.String(), entities.ProgressError, 0)
		return nil, newError(ErrQueueFailed, "enqueue work item", err)
	}

	log.InfoContext(ctx, "upload queued for transcoding")
	return &entities.UploadResponse{VideoID: videoID, Status: "processing"}, nil
}

func (s *VideoService) saveSource(path string, body io.Reader, size int64, progress func(int)) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	r := &progressReader{r: body, total: size, report: progress, last: -1}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// progressReader reports copy progress in 10% steps.
type progressReader struct {
	r      io.Reader
	total  int64
	read   int64
	last   int
	report func(int)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += int64(n)
	if p.total > 0 {
		percent := int(p.read * 100 / p.total)
		if percent > 100 {
			percent = 100
		}
		step := percent / 10 * 10
		if step > p.last && step < 100 {
			p.last = step
			p.report(step)
		}
	}
	return n, err
}

// GetVideo returns the video to its owner or to a user holding an active,
// unexpired share.
func (s *VideoService) GetVideo(ctx context.Context, videoID uuid.UUID, viewer Viewer) (*entities.Video, error) {
	video, err := s.videos.FindByID(ctx, videoID)
	if err != nil {
		return nil, notFoundOr(ErrVideoNotFound, "video "+videoID.String(), err)
	}
	if err := s.authorize(ctx, video, viewer); err != nil {
		return nil, err
	}
	return video, nil
}

func (s *VideoService) authorize(ctx context.Context, video *entities.Video, viewer Viewer) error {
	if viewer.UserID != "" && video.UserID == viewer.UserID {
		return nil
	}
	if viewer.Username == "" {
		return newError(ErrPermissionDenied, "no access to video", nil)
	}
	share, err := s.shares.FindActive(ctx, video.ID, viewer.Username)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return newError(ErrPermissionDenied, "no access to video", nil)
		}
		return dbError("check share", err)
	}
	if !share.ExpiresAt.After(s.now()) {
		return newError(ErrPermissionDenied, "share expired", nil)
	}
	return nil
}

// PresignedURL returns a time-limited playback URL for one quality.
func (s *VideoService) PresignedURL(ctx context.Context, videoID uuid.UUID, quality string, viewer Viewer) (*entities.VideoURLResponse, error) {
	video, err := s.GetVideo(ctx, videoID, viewer)
	if err != nil {
		return nil, err
	}
	q, ok := video.Qualities.Find(quality)
	if !ok {
		return nil, newError(ErrQualityNotFound, "quality "+quality, nil)
	}
	url, err := s.store.PresignedURL(ctx, q.ObjectName, s.presignTTL)
	if err != nil {
		return nil, newError(ErrStorageFailed, "presign "+q.ObjectName, err)
	}
	return &entities.VideoURLResponse{
		VideoID:   videoID,
		Quality:   q.Name,
		URL:       url,
		ExpiresAt: s.now().UTC().Add(s.presignTTL),
	}, nil
}
