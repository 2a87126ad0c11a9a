package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"video-share-service/internal/domain/entities"
)

// ShareRepository persists shares. Shares are never deleted; the only
// mutation is deactivation.
type ShareRepository interface {
	Create(ctx context.Context, share *entities.Share) error
	FindByID(ctx context.Context, id uuid.UUID) (*entities.Share, error)
	// FindActive returns the active share of videoID for username.
	FindActive(ctx context.Context, videoID uuid.UUID, username string) (*entities.Share, error)
	// FindActiveFrom narrows FindActive to shares granted by org.
	FindActiveFrom(ctx context.Context, videoID uuid.UUID, username, org string) (*entities.Share, error)
	ListByVideo(ctx context.Context, videoID uuid.UUID) ([]entities.Share, error)
	ListActiveByUsername(ctx context.Context, username string) ([]entities.Share, error)
	// Deactivate reports whether the share was active before the call.
	Deactivate(ctx context.Context, id uuid.UUID) (bool, error)
	// DeactivateFor deactivates every active share of videoID for username.
	DeactivateFor(ctx context.Context, videoID uuid.UUID, username string) (int64, error)
}

type PostgresShareRepository struct {
	db *sqlx.DB
}

func NewShareRepository(db *sqlx.DB) *PostgresShareRepository {
	return &PostgresShareRepository{db: db}
}

const shareColumns = `id, video_id, shared_by_user_id, shared_with_username, shared_with_ip,
	shared_with_organization, same_organization, created_at, expires_at, active`

func (r *PostgresShareRepository) Create(ctx context.Context, share *entities.Share) error {
	query := `
		INSERT INTO shares (` + shareColumns + `)
		VALUES (:id, :video_id, :shared_by_user_id, :shared_with_username, :shared_with_ip,
			:shared_with_organization, :same_organization, :created_at, :expires_at, :active)`

	_, err := r.db.NamedExecContext(ctx, query, share)
	return translate(err, "insert share")
}

func (r *PostgresShareRepository) FindByID(ctx context.Context, id uuid.UUID) (*entities.Share, error) {
	var share entities.Share
	err := r.db.GetContext(ctx, &share, `SELECT `+shareColumns+` FROM shares WHERE id = $1`, id)
	if err != nil {
		return nil, translate(err, "find share")
	}
	return &share, nil
}

func (r *PostgresShareRepository) FindActive(ctx context.Context, videoID uuid.UUID, username string) (*entities.Share, error) {
	var share entities.Share
	query := `SELECT ` + shareColumns + ` FROM shares
		WHERE video_id = $1 AND shared_with_username = $2 AND active
		LIMIT 1`
	if err := r.db.GetContext(ctx, &share, query, videoID, username); err != nil {
		return nil, translate(err, "find active share")
	}
	return &share, nil
}

func (r *PostgresShareRepository) FindActiveFrom(ctx context.Context, videoID uuid.UUID, username, org string) (*entities.Share, error) {
	var share entities.Share
	query := `SELECT ` + shareColumns + ` FROM shares
		WHERE video_id = $1 AND shared_with_username = $2 AND shared_with_organization = $3 AND active
		LIMIT 1`
	if err := r.db.GetContext(ctx, &share, query, videoID, username, org); err != nil {
		return nil, translate(err, "find active share")
	}
	return &share, nil
}

func (r *PostgresShareRepository) ListByVideo(ctx context.Context, videoID uuid.UUID) ([]entities.Share, error) {
	shares := []entities.Share{}
	query := `SELECT ` + shareColumns + ` FROM shares WHERE video_id = $1 ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &shares, query, videoID); err != nil {
		return nil, translate(err, "list shares by video")
	}
	return shares, nil
}

func (r *PostgresShareRepository) ListActiveByUsername(ctx context.Context, username string) ([]entities.Share, error) {
	shares := []entities.Share{}
	query := `SELECT ` + shareColumns + ` FROM shares
		WHERE shared_with_username = $1 AND active ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &shares, query, username); err != nil {
		return nil, translate(err, "list received shares")
	}
	return shares, nil
}

func (r *PostgresShareRepository) Deactivate(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE shares SET active = FALSE WHERE id = $1 AND active`, id)
	if err != nil {
		return false, translate(err, "deactivate share")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deactivate share: %w", err)
	}
	return n > 0, nil
}

func (r *PostgresShareRepository) DeactivateFor(ctx context.Context, videoID uuid.UUID, username string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE shares SET active = FALSE WHERE video_id = $1 AND shared_with_username = $2 AND active`,
		videoID, username)
	if err != nil {
		return 0, translate(err, "deactivate shares")
	}
	return res.RowsAffected()
}
