package taxonomy

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

// Table selects which taxonomy table a repository instance operates on.
// The set is closed; table names are never taken from input.
type Table string

const (
	TableTopics Table = "topics"
	TableTags   Table = "tags"
)

// SQLiteRepository implements Repository for one of the two term tables.
type SQLiteRepository struct {
	db    dbx.DBTX
	table Table
}

// NewSQLiteRepository returns a repository bound to the given DBTX and table.
func NewSQLiteRepository(db dbx.DBTX, table Table) *SQLiteRepository {
	return &SQLiteRepository{db: db, table: table}
}

const selectCols = `id, name, sync_version, synced_at, deleted, deleted_at, created_at, updated_at`

func (r *SQLiteRepository) Create(ctx context.Context, t *models.Term) error {
	query := fmt.Sprintf(`INSERT INTO %s
		(id, name, sync_version, synced_at, deleted, deleted_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, r.table)
	_, err := r.db.ExecContext(ctx, query,
		t.ID, t.Name, t.SyncVersion, timex.UnixPtr(t.SyncedAt), t.Deleted,
		timex.UnixPtr(t.DeletedAt), timex.Unix(t.CreatedAt), timex.Unix(t.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert %s term: %w", r.table, err)
	}
	return nil
}

func (r *SQLiteRepository) Update(ctx context.Context, t *models.Term) error {
	query := fmt.Sprintf(`UPDATE %s SET name = ?, sync_version = ?, synced_at = ?,
		deleted = ?, deleted_at = ?, updated_at = ? WHERE id = ?`, r.table)
	res, err := r.db.ExecContext(ctx, query,
		t.Name, t.SyncVersion, timex.UnixPtr(t.SyncedAt), t.Deleted,
		timex.UnixPtr(t.DeletedAt), timex.Unix(t.UpdatedAt), t.ID)
	if err != nil {
		return fmt.Errorf("failed to update %s term: %w", r.table, err)
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

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.Term, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = ?`, selectCols, r.table)
	t, err := scanTerm(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s term: %w", r.table, err)
	}
	return t, nil
}

func (r *SQLiteRepository) GetByName(ctx context.Context, name string) (*models.Term, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE name = ? AND deleted = 0`, selectCols, r.table)
	t, err := scanTerm(r.db.QueryRowContext(ctx, query, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s term: %w", r.table, err)
	}
	return t, nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]models.Term, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE deleted = 0 ORDER BY name`, selectCols, r.table)
	return r.list(ctx, query)
}

func (r *SQLiteRepository) ListDirty(ctx context.Context) ([]models.Term, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE synced_at IS NULL`, selectCols, r.table)
	return r.list(ctx, query)
}

func (r *SQLiteRepository) list(ctx context.Context, query string) ([]models.Term, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select %s terms: %w", r.table, err)
	}
	defer rows.Close()

	var result []models.Term
	for rows.Next() {
		t, err := scanTerm(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) SoftDelete(ctx context.Context, id string, at time.Time) error {
	query := fmt.Sprintf(`UPDATE %s SET deleted = 1, deleted_at = ?, updated_at = ?,
		sync_version = sync_version + 1, synced_at = NULL WHERE id = ? AND deleted = 0`, r.table)
	res, err := r.db.ExecContext(ctx, query, timex.Unix(at), timex.Unix(at), id)
	if err != nil {
		return fmt.Errorf("failed to delete %s term: %w", r.table, err)
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTerm(row rowScanner) (*models.Term, error) {
	var (
		t                    models.Term
		syncedAt, deletedAt  *int64
		createdAt, updatedAt int64
	)
	err := row.Scan(&t.ID, &t.Name, &t.SyncVersion, &syncedAt, &t.Deleted,
		&deletedAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	t.SyncedAt = timex.FromUnixPtr(syncedAt)
	t.DeletedAt = timex.FromUnixPtr(deletedAt)
	t.CreatedAt = timex.FromUnix(createdAt)
	t.UpdatedAt = timex.FromUnix(updatedAt)
	return &t, nil
}
