package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"video-share-service/internal/config"
	"video-share-service/internal/domain/entities"
	"video-share-service/internal/domain/repositories"
	"video-share-service/internal/encoder"
	"video-share-service/internal/logger"
	"video-share-service/internal/metrics"
	"video-share-service/internal/notify"
	"video-share-service/internal/retry"
	"video-share-service/internal/storage"
)

// TranscodeService turns a WorkItem into one encoded artifact per ladder
// rung and persists the Video only once every rung has been uploaded.
type TranscodeService struct {
	videos   repositories.VideoRepository
	store    storage.ArtifactStore
	encoder  encoder.Encoder
	notifier notify.Notifier
	ladder   []config.Quality
	tempDir  string
	policy   retry.Policy
	metrics  *metrics.Metrics
	log      logger.Logger
	now      func() time.Time
}

func NewTranscodeService(
	videos repositories.VideoRepository,
	store storage.ArtifactStore,
	enc encoder.Encoder,
	notifier notify.Notifier,
	cfg config.ProcessingConfig,
	m *metrics.Metrics,
	log logger.Logger,
) *TranscodeService {
	if notifier == nil {
		notifier = notify.Noop{}
	}
	return &TranscodeService{
		videos:   videos,
		store:    store,
		encoder:  enc,
		notifier: notifier,
		ladder:   cfg.Qualities,
		tempDir:  cfg.TempDir,
		policy: retry.Policy{
			MaxAttempts:  cfg.Retry.MaxAttempts,
			InitialDelay: cfg.Retry.InitialDelay,
			Multiplier:   cfg.Retry.Multiplier,
			MaxDelay:     cfg.Retry.MaxDelay,
		},
		metrics: m,
		log:     log.WithField("component", "transcoder"),
		now:     time.Now,
	}
}

// outputPath is where the encoder writes a rung before upload.
func (s *TranscodeService) outputPath(item entities.WorkItem, quality string) string {
	return filepath.Join(s.tempDir, item.VideoID.String(), fmt.Sprintf("%s_%s%s", item.VideoID, quality, item.Extension))
}

// ProcessVideo runs the whole job and returns its terminal Result. A job that
// is cut short by ctx returns ErrJobInterrupted instead and leaves the source
// in place for the next delivery. A WorkItem whose Video is already persisted
// completes with the stored Video without encoding again.
func (s *TranscodeService) ProcessVideo(ctx context.Context, item entities.WorkItem) (entities.Result, error) {
	log := s.log.WithFields(map[string]interface{}{
		"videoId": item.VideoID.String(),
		"userId":  item.UserID,
	})
	videoID := item.VideoID.String()
	jobDir := filepath.Join(s.tempDir, videoID)
	total := len(s.ladder)

	qualities := make([]entities.VideoQuality, 0, total)
	outputs := make([]string, 0, total)
	uploaded := make([]string, 0, total)

	fail := func(err error) (entities.Result, error) {
		if ctx.Err() != nil {
			log.WithError(err).WarnContext(ctx, "transcode interrupted")
			s.removeFiles(log, outputs...)
			s.removeObjects(log, uploaded...)
			s.metrics.TranscodeJob(metrics.OutcomeSkipped)
			return entities.Result{}, newError(ErrJobInterrupted, "transcode "+videoID, ctx.Err())
		}
		log.WithError(err).ErrorContext(ctx, "transcode failed")
		s.removeFiles(log, append(outputs, item.SourceFilePath)...)
		s.removeDir(log, jobDir)
		s.removeObjects(log, uploaded...)
		s.notifier.PushProgress(item.UserID, videoID, entities.ProgressError, 0)
		s.metrics.TranscodeJob(metrics.OutcomeFailure)
		return entities.Result{
			Success:     false,
			VideoID:     item.VideoID,
			UserID:      item.UserID,
			Error:       err.Error(),
			CompletedAt: s.now().UTC(),
		}, nil
	}

	existing, err := s.videos.FindByID(ctx, item.VideoID)
	switch {
	case err == nil:
		log.InfoContext(ctx, "video already persisted, skipping redelivered work item")
		return s.complete(log, item, existing.Qualities, outputs), nil
	case !errors.Is(err, repositories.ErrNotFound):
		return fail(dbError("look up video", err))
	}

	log.InfoContext(ctx, "transcoding %s into %d qualities", item.OriginalFileName, total)
	s.notifier.PushProgress(item.UserID, videoID, entities.ProgressTranscodingStarted, 0)

	if total == 0 {
		return fail(newError(ErrInvalidInput, "quality ladder is empty", nil))
	}
	if _, err := os.Stat(item.SourceFilePath); err != nil {
		return fail(newError(ErrInvalidInput, "source file unavailable", err))
	}

	contentType := entities.ContentTypeFor(item.Extension)
	for i, q := range s.ladder {
		out := s.outputPath(item, q.Name)
		params := encoder.Params{Height: q.Height, Bitrate: q.Bitrate, Preset: q.Preset, CRF: q.CRF}

		outputs = append(outputs, out)
		err := s.policy.Do(ctx, func(ctx context.Context) error {
			err := s.encoder.Run(ctx, item.SourceFilePath, out, params)
			if err != nil {
				s.metrics.EncodeAttempt(q.Name, metrics.OutcomeFailure)
				return err
			}
			s.metrics.EncodeAttempt(q.Name, metrics.OutcomeSuccess)
			return nil
		}, func(attempt int, err error) {
			log.WithField("quality", q.Name).WithError(err).Warn("encode attempt %d failed, retrying", attempt)
		})
		if err != nil {
			return fail(newError(ErrEncodeFailed, "encode "+q.Name, err))
		}

		objectName := entities.ObjectName(item.VideoID, q.Name, item.Extension)
		err = s.policy.Do(ctx, func(ctx context.Context) error {
			return storage.PutFile(ctx, s.store, objectName, out, contentType)
		}, func(attempt int, err error) {
			log.WithField("objectName", objectName).WithError(err).Warn("upload attempt %d failed, retrying", attempt)
		})
		if err != nil {
			return fail(newError(ErrStorageFailed, "upload "+objectName, err))
		}
		uploaded = append(uploaded, objectName)

		qualities = append(qualities, entities.VideoQuality{
			Name:       q.Name,
			Height:     q.Height,
			Bitrate:    q.Bitrate,
			Preset:     q.Preset,
			CRF:        q.CRF,
			ObjectName: objectName,
		})

		percent := (i + 1) * 100 / total
		log.WithField("quality", q.Name).DebugContext(ctx, "quality done (%d%%)", percent)
		s.notifier.PushProgress(item.UserID, videoID, entities.ProgressTranscoding, percent)
	}

	now := s.now().UTC()
	video := &entities.Video{
		ID:               item.VideoID,
		UserID:           item.UserID,
		OriginalFileName: item.OriginalFileName,
		Extension:        item.Extension,
		Qualities:        qualities,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.videos.Create(ctx, video); err != nil {
		if !errors.Is(err, repositories.ErrDuplicate) {
			return fail(dbError("persist video", err))
		}
		// A concurrent delivery won; the keys just written belong to its Video.
		uploaded = uploaded[:0]
		existing, err := s.videos.FindByID(ctx, item.VideoID)
		if err != nil {
			return fail(dbError("load persisted video", err))
		}
		log.InfoContext(ctx, "video persisted by another delivery")
		return s.complete(log, item, existing.Qualities, outputs), nil
	}

	return s.complete(log, item, qualities, outputs), nil
}

// complete removes the job's temp files and reports success.
func (s *TranscodeService) complete(log logger.Logger, item entities.WorkItem, qualities []entities.VideoQuality, outputs []string) entities.Result {
	s.removeFiles(log, append(outputs, item.SourceFilePath)...)
	s.removeDir(log, filepath.Join(s.tempDir, item.VideoID.String()))

	s.notifier.PushProgress(item.UserID, item.VideoID.String(), entities.ProgressTranscodingCompleted, 100)
	s.metrics.TranscodeJob(metrics.OutcomeSuccess)
	log.Info("transcode completed")

	return entities.Result{
		Success:     true,
		VideoID:     item.VideoID,
		UserID:      item.UserID,
		Qualities:   qualities,
		CompletedAt: s.now().UTC(),
	}
}

func (s *TranscodeService) removeFiles(log logger.Logger, paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			log.WithField("path", p).WithError(err).Warn("failed to delete temp file")
		}
	}
}

// removeDir deletes the per-job directory if it is empty.
func (s *TranscodeService) removeDir(log logger.Logger, dir string) {
	if err := os.Remove(dir); err != nil && !os.IsNotExist(err) {
		log.WithField("path", dir).WithError(err).Debug("temp dir not removed")
	}
}

// removeObjects deletes artifacts of a failed job. Uses a fresh context so a
// cancelled job still cleans up.
func (s *TranscodeService) removeObjects(log logger.Logger, keys ...string) {
	if len(keys) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, key := range keys {
		if err := s.store.Remove(ctx, key); err != nil {
			log.WithField("objectName", key).WithError(err).Warn("failed to delete orphaned artifact")
		}
	}
}
