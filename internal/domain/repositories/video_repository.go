package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"video-share-service/internal/domain/entities"
)

// VideoRepository persists completed videos.
type VideoRepository interface {
	Create(ctx context.Context, video *entities.Video) error
	// Upsert inserts or replaces a video replicated from another organization.
	Upsert(ctx context.Context, video *entities.Video) error
	FindByID(ctx context.Context, id uuid.UUID) (*entities.Video, error)
}

type PostgresVideoRepository struct {
	db *sqlx.DB
}

func NewVideoRepository(db *sqlx.DB) *PostgresVideoRepository {
	return &PostgresVideoRepository{db: db}
}

func (r *PostgresVideoRepository) Create(ctx context.Context, video *entities.Video) error {
	query := `
		INSERT INTO videos (id, user_id, original_file_name, extension, qualities, created_at, updated_at)
		VALUES (:id, :user_id, :original_file_name, :extension, :qualities, :created_at, :updated_at)`

	_, err := r.db.NamedExecContext(ctx, query, video)
	return translate(err, "insert video")
}

func (r *PostgresVideoRepository) Upsert(ctx context.Context, video *entities.Video) error {
	query := `
		INSERT INTO videos (id, user_id, original_file_name, extension, qualities, created_at, updated_at)
		VALUES (:id, :user_id, :original_file_name, :extension, :qualities, :created_at, :updated_at)
		ON CONFLICT (id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			original_file_name = EXCLUDED.original_file_name,
			extension = EXCLUDED.extension,
			qualities = EXCLUDED.qualities,
			updated_at = EXCLUDED.updated_at`

	_, err := r.db.NamedExecContext(ctx, query, video)
	return translate(err, "upsert video")
}

func (r *PostgresVideoRepository) FindByID(ctx context.Context, id uuid.UUID) (*entities.Video, error) {
	query := `
		SELECT id, user_id, original_file_name, extension, qualities, created_at, updated_at
		FROM videos WHERE id = $1`

	var video entities.Video
	if err := r.db.GetContext(ctx, &video, query, id); err != nil {
		return nil, translate(err, "find video")
	}
	return &video, nil
}
