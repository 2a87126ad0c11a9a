package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"video-share-service/internal/domain/entities"
	"video-share-service/internal/domain/repositories"
	"video-share-service/internal/logger"
	"video-share-service/internal/metrics"
	"video-share-service/internal/organization"
)

// ReconcileReport summarizes one pass.
type ReconcileReport struct {
	// Skipped is set when another pass was running.
	Skipped bool
	Scanned int
	Created int
	// Existing counts syncs whose share was already materialized.
	Existing int
	Failed   int
}

// SyncReconciler turns pending inbound ShareSyncs into local Shares. Passes
// never overlap and materialization is idempotent, so repeated or concurrent
// passes converge on one active share per sync.
type SyncReconciler struct {
	syncs    repositories.ShareSyncRepository
	shares   repositories.ShareRepository
	local    organization.Organization
	interval time.Duration
	metrics  *metrics.Metrics
	log      logger.Logger
	now      func() time.Time

	running atomic.Bool
	stop    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

func NewSyncReconciler(
	syncs repositories.ShareSyncRepository,
	shares repositories.ShareRepository,
	local organization.Organization,
	interval time.Duration,
	m *metrics.Metrics,
	log logger.Logger,
) *SyncReconciler {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &SyncReconciler{
		syncs:    syncs,
		shares:   shares,
		local:    local,
		interval: interval,
		metrics:  m,
		log:      log.WithField("component", "sync-reconciler"),
		stop:     make(chan struct{}),
		now:      time.Now,
	}
}

// Start runs one pass immediately and then one per interval until Stop or
// ctx is done.
func (r *SyncReconciler) Start(ctx context.Context) {
	r.wg.Add(1)
	go r.loop(ctx)
	r.log.Info("reconciler started, interval %v", r.interval)
}

// Stop waits for the running pass to finish. Safe to call more than once.
func (r *SyncReconciler) Stop() {
	r.once.Do(func() { close(r.stop) })
	r.wg.Wait()
	r.log.Info("reconciler stopped")
}

func (r *SyncReconciler) loop(ctx context.Context) {
	defer r.wg.Done()

	r.tick(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.tick(ctx)
		case <-r.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (r *SyncReconciler) tick(ctx context.Context) {
	if _, err := r.RunOnce(ctx); err != nil {
		r.log.WithError(err).Error("reconcile pass failed")
	}
}

// RunOnce processes every unprocessed sync addressed to the local
// organization. A call made while another pass runs returns a skipped report.
func (r *SyncReconciler) RunOnce(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport
	if !r.running.CompareAndSwap(false, true) {
		report.Skipped = true
		r.metrics.ReconcileRun(metrics.OutcomeSkipped)
		r.log.Debug("previous pass still running, skipping")
		return report, nil
	}
	defer r.running.Store(false)

	pending, err := r.syncs.ListUnprocessed(ctx, r.local.String())
	if err != nil {
		r.metrics.ReconcileRun(metrics.OutcomeFailure)
		return report, dbError("list unprocessed syncs", err)
	}
	report.Scanned = len(pending)

	for i := range pending {
		if ctx.Err() != nil {
			break
		}
		item := &pending[i]
		log := r.log.WithFields(map[string]interface{}{
			"syncId":  item.ID.String(),
			"videoId": item.VideoID.String(),
			"source":  item.SourceOrganization,
		})

		created, err := r.materialize(ctx, item)
		if err != nil {
			report.Failed++
			r.metrics.ReconciledSync(metrics.OutcomeFailure)
			log.WithError(err).Warn("failed to materialize share, will retry")
			if markErr := r.syncs.MarkFailed(ctx, item.ID, err.Error()); markErr != nil {
				log.WithError(markErr).Error("failed to record sync failure")
			}
			continue
		}

		if err := r.syncs.MarkProcessed(ctx, item.ID); err != nil {
			report.Failed++
			r.metrics.ReconciledSync(metrics.OutcomeFailure)
			log.WithError(err).Error("share materialized but sync not marked processed")
			continue
		}

		if created {
			report.Created++
			r.metrics.ReconciledSync(metrics.OutcomeSuccess)
			log.Info("share materialized")
		} else {
			report.Existing++
			r.metrics.ReconciledSync(metrics.OutcomeSkipped)
		}
	}

	r.metrics.ReconcileRun(metrics.OutcomeSuccess)
	if report.Scanned > 0 {
		r.log.Info("reconcile pass done: scanned=%d created=%d existing=%d failed=%d",
			report.Scanned, report.Created, report.Existing, report.Failed)
	}
	return report, ctx.Err()
}

// materialize creates the local share for item unless an equivalent active
// share already exists. It reports whether a row was inserted.
func (r *SyncReconciler) materialize(ctx context.Context, item *entities.ShareSync) (bool, error) {
	existing, err := r.shares.FindActiveFrom(ctx, item.VideoID, item.SharedWithUsername, item.SourceOrganization)
	switch {
	case err == nil && existing.ExpiresAt.After(r.now()):
		return false, nil
	case err == nil:
		if _, err := r.shares.Deactivate(ctx, existing.ID); err != nil {
			return false, err
		}
	case !errors.Is(err, repositories.ErrNotFound):
		return false, err
	}

	share := &entities.Share{
		ID:                     uuid.New(),
		VideoID:                item.VideoID,
		SharedByUserID:         item.SharedByUserID,
		SharedWithUsername:     item.SharedWithUsername,
		SharedWithIP:           item.SharedWithIP,
		SharedWithOrganization: item.SourceOrganization,
		SameOrganization:       false,
		CreatedAt:              item.CreatedAt,
		ExpiresAt:              item.ExpiresAt,
		Active:                 true,
	}
	if err := r.shares.Create(ctx, share); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
