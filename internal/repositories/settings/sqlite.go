package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/lexisync/internal/common"
	"github.com/dmitrijs2005/lexisync/internal/dbx"
	"github.com/dmitrijs2005/lexisync/internal/models"
	"github.com/dmitrijs2005/lexisync/internal/timex"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const selectCols = `id, algorithm, new_words_per_day, daily_review_limit,
	auto_advance_seconds, show_failed_in_session, reminder_enabled, reminder_time,
	sync_version, synced_at, deleted, deleted_at, created_at, updated_at`

func (r *SQLiteRepository) Get(ctx context.Context) (*models.LearningSettings, error) {
	query := `SELECT ` + selectCols + ` FROM learning_settings LIMIT 1`
	return r.one(ctx, query)
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.LearningSettings, error) {
	query := `SELECT ` + selectCols + ` FROM learning_settings WHERE id = ?`
	return r.one(ctx, query, id)
}

func (r *SQLiteRepository) one(ctx context.Context, query string, args ...any) (*models.LearningSettings, error) {
	s, err := scanSettings(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get learning settings: %w", err)
	}
	return s, nil
}

func (r *SQLiteRepository) Save(ctx context.Context, s *models.LearningSettings) error {
	query := `INSERT INTO learning_settings
		(id, algorithm, new_words_per_day, daily_review_limit, auto_advance_seconds,
		 show_failed_in_session, reminder_enabled, reminder_time,
		 sync_version, synced_at, deleted, deleted_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			algorithm = excluded.algorithm,
			new_words_per_day = excluded.new_words_per_day,
			daily_review_limit = excluded.daily_review_limit,
			auto_advance_seconds = excluded.auto_advance_seconds,
			show_failed_in_session = excluded.show_failed_in_session,
			reminder_enabled = excluded.reminder_enabled,
			reminder_time = excluded.reminder_time,
			sync_version = excluded.sync_version,
			synced_at = excluded.synced_at,
			deleted = excluded.deleted,
			deleted_at = excluded.deleted_at,
			updated_at = excluded.updated_at`
	_, err := r.db.ExecContext(ctx, query,
		s.ID, s.Algorithm, s.NewWordsPerDay, s.DailyReviewLimit, s.AutoAdvanceSeconds,
		s.ShowFailedInSession, s.ReminderEnabled, s.ReminderTime,
		s.SyncVersion, timex.UnixPtr(s.SyncedAt), s.Deleted, timex.UnixPtr(s.DeletedAt),
		timex.Unix(s.CreatedAt), timex.Unix(s.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert learning settings: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListDirty(ctx context.Context) ([]models.LearningSettings, error) {
	query := `SELECT ` + selectCols + ` FROM learning_settings WHERE synced_at IS NULL`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select learning settings: %w", err)
	}
	defer rows.Close()

	var result []models.LearningSettings
	for rows.Next() {
		s, err := scanSettings(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSettings(row rowScanner) (*models.LearningSettings, error) {
	var (
		s                    models.LearningSettings
		syncedAt, deletedAt  *int64
		createdAt, updatedAt int64
	)
	err := row.Scan(&s.ID, &s.Algorithm, &s.NewWordsPerDay, &s.DailyReviewLimit,
		&s.AutoAdvanceSeconds, &s.ShowFailedInSession, &s.ReminderEnabled,
		&s.ReminderTime, &s.SyncVersion, &syncedAt, &s.Deleted, &deletedAt,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	s.SyncedAt = timex.FromUnixPtr(syncedAt)
	s.DeletedAt = timex.FromUnixPtr(deletedAt)
	s.CreatedAt = timex.FromUnix(createdAt)
	s.UpdatedAt = timex.FromUnix(updatedAt)
	return &s, nil
}
