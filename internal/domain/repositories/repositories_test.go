package repositories

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"video-share-service/internal/domain/entities"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "postgres"), mock
}

func TestVideoRepositoryCreateAndFind(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewVideoRepository(db)
	ctx := context.Background()

	id := uuid.New()
	now := time.Now().UTC().Truncate(time.Second)
	video := &entities.Video{
		ID:               id,
		UserID:           "user-1",
		OriginalFileName: "clip.mp4",
		Extension:        ".mp4",
		Qualities: entities.Qualities{
			{Name: "480p", Height: 480, ObjectName: entities.ObjectName(id, "480p", ".mp4")},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO videos")).
		WithArgs(id, "user-1", "clip.mp4", ".mp4", sqlmock.AnyArg(), now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Create(ctx, video))

	rows := sqlmock.NewRows([]string{"id", "user_id", "original_file_name", "extension", "qualities", "created_at", "updated_at"}).
		AddRow(id.String(), "user-1", "clip.mp4", ".mp4", []byte(`[{"name":"480p","height":480,"objectName":"x"}]`), now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM videos WHERE id = $1")).WithArgs(id).WillReturnRows(rows)

	found, err := repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, found.ID)
	require.Len(t, found.Qualities, 1)
	assert.Equal(t, "480p", found.Qualities[0].Name)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVideoRepositoryNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewVideoRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM videos")).WillReturnError(sql.ErrNoRows)
	_, err := repo.FindByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestVideoRepositoryUpsert(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewVideoRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (id) DO UPDATE")).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Upsert(context.Background(), &entities.Video{ID: uuid.New()}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestShareRepositoryCreateDuplicate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewShareRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO shares")).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value"})

	err := repo.Create(context.Background(), &entities.Share{ID: uuid.New(), VideoID: uuid.New()})
	assert.ErrorIs(t, err, ErrDuplicate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestShareRepositoryDeactivate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewShareRepository(db)
	id := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE shares SET active = FALSE WHERE id = $1 AND active")).
		WithArgs(id).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE shares SET active = FALSE WHERE id = $1 AND active")).
		WithArgs(id).WillReturnResult(sqlmock.NewResult(0, 0))

	changed, err := repo.Deactivate(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.Deactivate(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, changed)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestShareRepositoryFindActiveFrom(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewShareRepository(db)
	videoID := uuid.New()
	now := time.Now()

	rows := sqlmock.NewRows([]string{"id", "video_id", "shared_by_user_id", "shared_with_username", "shared_with_ip",
		"shared_with_organization", "same_organization", "created_at", "expires_at", "active"}).
		AddRow(uuid.NewString(), videoID.String(), "owner", "bob", "10.0.0.2", "UNIT_1", false, now, now.Add(time.Hour), true)
	mock.ExpectQuery(regexp.QuoteMeta("shared_with_organization = $3 AND active")).
		WithArgs(videoID, "bob", "UNIT_1").WillReturnRows(rows)

	share, err := repo.FindActiveFrom(context.Background(), videoID, "bob", "UNIT_1")
	require.NoError(t, err)
	assert.Equal(t, "UNIT_1", share.SharedWithOrganization)
	assert.True(t, share.Active)
}

func TestShareRepositoryListActiveByUsernameEmpty(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewShareRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE shared_with_username = $1 AND active")).
		WithArgs("carol").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	shares, err := repo.ListActiveByUsername(context.Background(), "carol")
	require.NoError(t, err)
	assert.NotNil(t, shares)
	assert.Empty(t, shares)
}

func TestShareSyncRepositoryStatusTransitions(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewShareSyncRepository(db)
	ctx := context.Background()
	id := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta("SET status = $2, error_message = $3")).
		WithArgs(id, "FAILED", "video missing").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("SET is_processed = TRUE, status = $2")).
		WithArgs(id, "PROCESSED").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkFailed(ctx, id, "video missing"))
	require.NoError(t, repo.MarkProcessed(ctx, id))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestShareSyncRepositoryListUnprocessed(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewShareSyncRepository(db)
	now := time.Now()

	rows := sqlmock.NewRows([]string{"id", "video_id", "shared_by_user_id", "shared_with_username", "shared_with_ip",
		"source_organization", "target_organization", "created_at", "expires_at", "is_processed", "status", "error_message"}).
		AddRow(uuid.NewString(), uuid.NewString(), "owner", "bob", "", "UNIT_1", "UNIT_2", now, now.Add(time.Hour), false, "PENDING", nil).
		AddRow(uuid.NewString(), uuid.NewString(), "owner", "eve", "", "UNIT_1", "UNIT_2", now, now.Add(time.Hour), false, "FAILED", "boom")
	mock.ExpectQuery(regexp.QuoteMeta("WHERE target_organization = $1 AND NOT is_processed")).
		WithArgs("UNIT_2").WillReturnRows(rows)

	syncs, err := repo.ListUnprocessed(context.Background(), "UNIT_2")
	require.NoError(t, err)
	require.Len(t, syncs, 2)
	assert.Equal(t, entities.SyncStatusPending, syncs[0].Status)
	assert.False(t, syncs[0].ErrorMessage.Valid)
	assert.Equal(t, "boom", syncs[1].ErrorMessage.String)
}

func TestShareSyncRepositoryCloseUnprocessed(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewShareSyncRepository(db)
	videoID := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta("WHERE video_id = $1 AND shared_with_username = $2 AND NOT is_processed")).
		WithArgs(videoID, "bob", "FAILED", "share revoked").
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.CloseUnprocessed(context.Background(), videoID, "bob", "share revoked")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestShareSyncRepositoryListBySourceAndStatus(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewShareSyncRepository(db)
	now := time.Now()

	rows := sqlmock.NewRows([]string{"id", "video_id", "shared_by_user_id", "shared_with_username", "shared_with_ip",
		"source_organization", "target_organization", "created_at", "expires_at", "is_processed", "status", "error_message"}).
		AddRow(uuid.NewString(), uuid.NewString(), "owner", "bob", "", "UNIT_1", "UNIT_2", now, now.Add(time.Hour), false, "FAILED", "disk full")
	mock.ExpectQuery(regexp.QuoteMeta("WHERE source_organization = $1 AND status = $2")).
		WithArgs("UNIT_1", "FAILED").WillReturnRows(rows)

	syncs, err := repo.ListBySourceAndStatus(context.Background(), "UNIT_1", entities.SyncStatusFailed)
	require.NoError(t, err)
	require.Len(t, syncs, 1)
	assert.Equal(t, "disk full", syncs[0].ErrorMessage.String)
	require.NoError(t, mock.ExpectationsWereMet())
}
