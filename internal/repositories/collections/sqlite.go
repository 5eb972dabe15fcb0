package collections

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

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

const selectCols = `id, name, description, language, is_public, word_count, shared_by,
	sync_version, synced_at, deleted, deleted_at, created_at, updated_at`

func (r *SQLiteRepository) Create(ctx context.Context, c *models.Collection) error {
	query := `INSERT INTO collections
		(id, name, description, language, is_public, word_count, shared_by,
		 sync_version, synced_at, deleted, deleted_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.Name, c.Description, c.Language, c.IsPublic, c.WordCount, c.SharedBy,
		c.SyncVersion, timex.UnixPtr(c.SyncedAt), c.Deleted, timex.UnixPtr(c.DeletedAt),
		timex.Unix(c.CreatedAt), timex.Unix(c.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert collection: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Update(ctx context.Context, c *models.Collection) error {
	query := `UPDATE collections SET name = ?, description = ?, language = ?,
		is_public = ?, word_count = ?, shared_by = ?, sync_version = ?, synced_at = ?,
		deleted = ?, deleted_at = ?, updated_at = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query,
		c.Name, c.Description, c.Language, c.IsPublic, c.WordCount, c.SharedBy,
		c.SyncVersion, timex.UnixPtr(c.SyncedAt), c.Deleted, timex.UnixPtr(c.DeletedAt),
		timex.Unix(c.UpdatedAt), c.ID)
	if err != nil {
		return fmt.Errorf("failed to update collection: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra != 1 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.Collection, error) {
	query := `SELECT ` + selectCols + ` FROM collections WHERE id = ?`
	c, err := scanCollection(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get collection: %w", err)
	}
	return c, nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]models.Collection, error) {
	query := `SELECT ` + selectCols + ` FROM collections WHERE deleted = 0 ORDER BY name`
	return r.list(ctx, query)
}

func (r *SQLiteRepository) ListDirty(ctx context.Context) ([]models.Collection, error) {
	query := `SELECT ` + selectCols + ` FROM collections WHERE synced_at IS NULL`
	return r.list(ctx, query)
}

func (r *SQLiteRepository) list(ctx context.Context, query string, args ...any) ([]models.Collection, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select collections: %w", err)
	}
	defer rows.Close()

	var result []models.Collection
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) SoftDelete(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE collections SET deleted = 1, deleted_at = ?, updated_at = ?,
		sync_version = sync_version + 1, synced_at = NULL WHERE id = ? AND deleted = 0`
	res, err := r.db.ExecContext(ctx, query, timex.Unix(at), timex.Unix(at), id)
	if err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra != 1 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *SQLiteRepository) UpdateWordCount(ctx context.Context, id string) error {
	query := `UPDATE collections SET word_count =
		(SELECT COUNT(*) FROM vocabularies WHERE collection_id = ? AND deleted = 0)
		WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, id, id); err != nil {
		return fmt.Errorf("failed to update word count: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCollection(row rowScanner) (*models.Collection, error) {
	var (
		c         models.Collection
		syncedAt  *int64
		deletedAt *int64
		createdAt int64
		updatedAt int64
	)
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.Language, &c.IsPublic,
		&c.WordCount, &c.SharedBy, &c.SyncVersion, &syncedAt, &c.Deleted,
		&deletedAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	c.SyncedAt = timex.FromUnixPtr(syncedAt)
	c.DeletedAt = timex.FromUnixPtr(deletedAt)
	c.CreatedAt = timex.FromUnix(createdAt)
	c.UpdatedAt = timex.FromUnix(updatedAt)
	return &c, nil
}
