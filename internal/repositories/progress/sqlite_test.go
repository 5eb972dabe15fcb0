package progress

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/lexisync/internal/common"
	"github.com/dmitrijs2005/lexisync/internal/models"
	"github.com/dmitrijs2005/lexisync/internal/store/migrations"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	goose.SetBaseFS(migrations.Migrations)
	require.NoError(t, goose.SetDialect("sqlite3"))
	require.NoError(t, goose.UpContext(context.Background(), db, "."))
	return db
}

func newProgress(id, topic, language string) *models.TopicProgress {
	now := time.Unix(1700000000, 0).UTC()
	p := &models.TopicProgress{ID: id, Topic: topic, Language: language}
	p.SyncVersion = 1
	p.CreatedAt = now
	p.UpdatedAt = now
	return p
}

func TestGetByScope(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Save(ctx, newProgress("p1", "food", "en")))
	require.NoError(t, r.Save(ctx, newProgress("p2", "food", "de")))

	got, err := r.GetByScope(ctx, "food", "de")
	require.NoError(t, err)
	assert.Equal(t, "p2", got.ID)

	_, err = r.GetByScope(ctx, "travel", "en")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestSave_Upsert(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	p := newProgress("p1", "food", "en")
	p.TotalReviews = 5
	p.CorrectCount = 4
	p.IncorrectCount = 1
	practiced := time.Unix(1700000500, 0).UTC()
	p.LastPracticedAt = &practiced
	require.NoError(t, r.Save(ctx, p))

	p.TotalReviews = 8
	p.CorrectCount = 7
	p.CurrentStreak = 3
	p.SyncVersion = 2
	require.NoError(t, r.Save(ctx, p))

	got, err := r.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(8), got.TotalReviews)
	assert.Equal(t, int64(3), got.CurrentStreak)
	assert.Equal(t, int64(2), got.SyncVersion)
	require.NotNil(t, got.LastPracticedAt)
	assert.Equal(t, practiced, *got.LastPracticedAt)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM topic_progress`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestList_LiveOnly(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Save(ctx, newProgress("p1", "food", "en")))

	deleted := newProgress("p2", "travel", "en")
	deleted.Deleted = true
	deletedAt := time.Unix(1700000100, 0).UTC()
	deleted.DeletedAt = &deletedAt
	require.NoError(t, r.Save(ctx, deleted))

	got, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "p1", got[0].ID)
}
