package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"video-share-service/internal/domain/entities"
)

// ShareSyncRepository persists inbound sync records. Only the reconciler and
// the inbound revoke path change their status.
type ShareSyncRepository interface {
	Create(ctx context.Context, sync *entities.ShareSync) error
	ListUnprocessed(ctx context.Context, targetOrg string) ([]entities.ShareSync, error)
	ListBySourceAndStatus(ctx context.Context, sourceOrg string, status entities.SyncStatus) ([]entities.ShareSync, error)
	MarkProcessed(ctx context.Context, id uuid.UUID) error
	// MarkFailed records the error but leaves the record unprocessed so it is retried.
	MarkFailed(ctx context.Context, id uuid.UUID, message string) error
	// CloseUnprocessed terminates pending records for videoID and username.
	CloseUnprocessed(ctx context.Context, videoID uuid.UUID, username, message string) (int64, error)
}

type PostgresShareSyncRepository struct {
	db *sqlx.DB
}

func NewShareSyncRepository(db *sqlx.DB) *PostgresShareSyncRepository {
	return &PostgresShareSyncRepository{db: db}
}

const shareSyncColumns = `id, video_id, shared_by_user_id, shared_with_username, shared_with_ip,
	source_organization, target_organization, created_at, expires_at, is_processed, status, error_message`

func (r *PostgresShareSyncRepository) Create(ctx context.Context, sync *entities.ShareSync) error {
	query := `
		INSERT INTO share_syncs (` + shareSyncColumns + `)
		VALUES (:id, :video_id, :shared_by_user_id, :shared_with_username, :shared_with_ip,
			:source_organization, :target_organization, :created_at, :expires_at, :is_processed,
			:status, :error_message)`

	_, err := r.db.NamedExecContext(ctx, query, sync)
	return translate(err, "insert share sync")
}

func (r *PostgresShareSyncRepository) ListUnprocessed(ctx context.Context, targetOrg string) ([]entities.ShareSync, error) {
	syncs := []entities.ShareSync{}
	query := `SELECT ` + shareSyncColumns + ` FROM share_syncs
		WHERE target_organization = $1 AND NOT is_processed
		ORDER BY created_at`
	if err := r.db.SelectContext(ctx, &syncs, query, targetOrg); err != nil {
		return nil, translate(err, "list unprocessed share syncs")
	}
	return syncs, nil
}

func (r *PostgresShareSyncRepository) ListBySourceAndStatus(ctx context.Context, sourceOrg string, status entities.SyncStatus) ([]entities.ShareSync, error) {
	syncs := []entities.ShareSync{}
	query := `SELECT ` + shareSyncColumns + ` FROM share_syncs
		WHERE source_organization = $1 AND status = $2
		ORDER BY created_at`
	if err := r.db.SelectContext(ctx, &syncs, query, sourceOrg, string(status)); err != nil {
		return nil, translate(err, "list share syncs")
	}
	return syncs, nil
}

func (r *PostgresShareSyncRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE share_syncs SET is_processed = TRUE, status = $2, error_message = NULL
		 WHERE id = $1 AND NOT is_processed`,
		id, string(entities.SyncStatusProcessed))
	return translate(err, "mark share sync processed")
}

func (r *PostgresShareSyncRepository) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE share_syncs SET status = $2, error_message = $3
		 WHERE id = $1 AND NOT is_processed`,
		id, string(entities.SyncStatusFailed), message)
	return translate(err, "mark share sync failed")
}

func (r *PostgresShareSyncRepository) CloseUnprocessed(ctx context.Context, videoID uuid.UUID, username, message string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE share_syncs SET is_processed = TRUE, status = $3, error_message = $4
		 WHERE video_id = $1 AND shared_with_username = $2 AND NOT is_processed`,
		videoID, username, string(entities.SyncStatusFailed), message)
	if err != nil {
		return 0, translate(err, "close share syncs")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("close share syncs: %w", err)
	}
	return n, nil
}
