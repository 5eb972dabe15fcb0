package settings

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

func newSettings(id string) *models.LearningSettings {
	now := time.Unix(1700000000, 0).UTC()
	s := &models.LearningSettings{
		ID:             id,
		Algorithm:      "leitner",
		NewWordsPerDay: 10,
	}
	s.SyncVersion = 1
	s.CreatedAt = now
	s.UpdatedAt = now
	return s
}

func TestGet_EmptyTable(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)

	_, err := r.Get(context.Background())
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestSave_InsertThenUpdate(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	s := newSettings("ls1")
	require.NoError(t, r.Save(ctx, s))

	got, err := r.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ls1", got.ID)
	assert.Equal(t, int64(10), got.NewWordsPerDay)

	s.NewWordsPerDay = 25
	s.SyncVersion = 2
	require.NoError(t, r.Save(ctx, s))

	got, err = r.GetByID(ctx, "ls1")
	require.NoError(t, err)
	assert.Equal(t, int64(25), got.NewWordsPerDay)
	assert.Equal(t, int64(2), got.SyncVersion)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM learning_settings`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestListDirty(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	s := newSettings("ls1")
	require.NoError(t, r.Save(ctx, s))

	dirty, err := r.ListDirty(ctx)
	require.NoError(t, err)
	require.Len(t, dirty, 1)

	syncedAt := time.Unix(1700000100, 0).UTC()
	s.SyncedAt = &syncedAt
	require.NoError(t, r.Save(ctx, s))

	dirty, err = r.ListDirty(ctx)
	require.NoError(t, err)
	assert.Empty(t, dirty)
}
