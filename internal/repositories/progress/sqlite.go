package progress

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

const selectCols = `id, topic, language, total_reviews, correct_count, incorrect_count,
	current_streak, last_practiced_at,
	sync_version, synced_at, deleted, deleted_at, created_at, updated_at`

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.TopicProgress, error) {
	query := `SELECT ` + selectCols + ` FROM topic_progress WHERE id = ?`
	return r.one(ctx, query, id)
}

func (r *SQLiteRepository) GetByScope(ctx context.Context, topic, language string) (*models.TopicProgress, error) {
	query := `SELECT ` + selectCols + ` FROM topic_progress
		WHERE topic = ? AND language = ? AND deleted = 0`
	return r.one(ctx, query, topic, language)
}

func (r *SQLiteRepository) one(ctx context.Context, query string, args ...any) (*models.TopicProgress, error) {
	p, err := scanProgress(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get topic progress: %w", err)
	}
	return p, nil
}

func (r *SQLiteRepository) Save(ctx context.Context, p *models.TopicProgress) error {
	query := `INSERT INTO topic_progress
		(id, topic, language, total_reviews, correct_count, incorrect_count,
		 current_streak, last_practiced_at,
		 sync_version, synced_at, deleted, deleted_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			topic = excluded.topic,
			language = excluded.language,
			total_reviews = excluded.total_reviews,
			correct_count = excluded.correct_count,
			incorrect_count = excluded.incorrect_count,
			current_streak = excluded.current_streak,
			last_practiced_at = excluded.last_practiced_at,
			sync_version = excluded.sync_version,
			synced_at = excluded.synced_at,
			deleted = excluded.deleted,
			deleted_at = excluded.deleted_at,
			updated_at = excluded.updated_at`
	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.Topic, p.Language, p.TotalReviews, p.CorrectCount, p.IncorrectCount,
		p.CurrentStreak, timex.UnixPtr(p.LastPracticedAt),
		p.SyncVersion, timex.UnixPtr(p.SyncedAt), p.Deleted, timex.UnixPtr(p.DeletedAt),
		timex.Unix(p.CreatedAt), timex.Unix(p.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert topic progress: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]models.TopicProgress, error) {
	query := `SELECT ` + selectCols + ` FROM topic_progress WHERE deleted = 0 ORDER BY topic`
	return r.list(ctx, query)
}

func (r *SQLiteRepository) ListDirty(ctx context.Context) ([]models.TopicProgress, error) {
	query := `SELECT ` + selectCols + ` FROM topic_progress WHERE synced_at IS NULL`
	return r.list(ctx, query)
}

func (r *SQLiteRepository) list(ctx context.Context, query string, args ...any) ([]models.TopicProgress, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select topic progress: %w", err)
	}
	defer rows.Close()

	var result []models.TopicProgress
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProgress(row rowScanner) (*models.TopicProgress, error) {
	var (
		p                            models.TopicProgress
		practicedAt, syncedAt, delAt *int64
		createdAt, updatedAt         int64
	)
	err := row.Scan(&p.ID, &p.Topic, &p.Language, &p.TotalReviews, &p.CorrectCount,
		&p.IncorrectCount, &p.CurrentStreak, &practicedAt, &p.SyncVersion, &syncedAt,
		&p.Deleted, &delAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	p.LastPracticedAt = timex.FromUnixPtr(practicedAt)
	p.SyncedAt = timex.FromUnixPtr(syncedAt)
	p.DeletedAt = timex.FromUnixPtr(delAt)
	p.CreatedAt = timex.FromUnix(createdAt)
	p.UpdatedAt = timex.FromUnix(updatedAt)
	return &p, nil
}
