package shares

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

const selectCols = `id, collection_id, grantee_id, permission,
	sync_version, synced_at, deleted, deleted_at, created_at, updated_at`

func (r *SQLiteRepository) Create(ctx context.Context, s *models.CollectionShare) error {
	query := `INSERT INTO collection_shares
		(id, collection_id, grantee_id, permission,
		 sync_version, synced_at, deleted, deleted_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		s.ID, s.CollectionID, s.GranteeID, s.Permission,
		s.SyncVersion, timex.UnixPtr(s.SyncedAt), s.Deleted, timex.UnixPtr(s.DeletedAt),
		timex.Unix(s.CreatedAt), timex.Unix(s.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert share: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Update(ctx context.Context, s *models.CollectionShare) error {
	query := `UPDATE collection_shares SET collection_id = ?, grantee_id = ?,
		permission = ?, sync_version = ?, synced_at = ?, deleted = ?, deleted_at = ?,
		updated_at = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query,
		s.CollectionID, s.GranteeID, s.Permission, s.SyncVersion,
		timex.UnixPtr(s.SyncedAt), s.Deleted, timex.UnixPtr(s.DeletedAt),
		timex.Unix(s.UpdatedAt), s.ID)
	if err != nil {
		return fmt.Errorf("failed to update share: %w", err)
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

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.CollectionShare, error) {
	query := `SELECT ` + selectCols + ` FROM collection_shares WHERE id = ?`
	return r.one(ctx, query, id)
}

func (r *SQLiteRepository) FindLive(ctx context.Context, collectionID, granteeID string) (*models.CollectionShare, error) {
	query := `SELECT ` + selectCols + ` FROM collection_shares
		WHERE collection_id = ? AND grantee_id = ? AND deleted = 0`
	return r.one(ctx, query, collectionID, granteeID)
}

func (r *SQLiteRepository) one(ctx context.Context, query string, args ...any) (*models.CollectionShare, error) {
	s, err := scanShare(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get share: %w", err)
	}
	return s, nil
}

func (r *SQLiteRepository) ListByCollection(ctx context.Context, collectionID string) ([]models.CollectionShare, error) {
	query := `SELECT ` + selectCols + ` FROM collection_shares
		WHERE collection_id = ? AND deleted = 0`
	return r.list(ctx, query, collectionID)
}

func (r *SQLiteRepository) ListDirty(ctx context.Context) ([]models.CollectionShare, error) {
	query := `SELECT ` + selectCols + ` FROM collection_shares WHERE synced_at IS NULL`
	return r.list(ctx, query)
}

func (r *SQLiteRepository) list(ctx context.Context, query string, args ...any) ([]models.CollectionShare, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select shares: %w", err)
	}
	defer rows.Close()

	var result []models.CollectionShare
	for rows.Next() {
		s, err := scanShare(rows)
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

func (r *SQLiteRepository) SoftDelete(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE collection_shares SET deleted = 1, deleted_at = ?, updated_at = ?,
		sync_version = sync_version + 1, synced_at = NULL WHERE id = ? AND deleted = 0`
	res, err := r.db.ExecContext(ctx, query, timex.Unix(at), timex.Unix(at), id)
	if err != nil {
		return fmt.Errorf("failed to delete share: %w", err)
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

func scanShare(row rowScanner) (*models.CollectionShare, error) {
	var (
		s                    models.CollectionShare
		syncedAt, deletedAt  *int64
		createdAt, updatedAt int64
	)
	err := row.Scan(&s.ID, &s.CollectionID, &s.GranteeID, &s.Permission,
		&s.SyncVersion, &syncedAt, &s.Deleted, &deletedAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	s.SyncedAt = timex.FromUnixPtr(syncedAt)
	s.DeletedAt = timex.FromUnixPtr(deletedAt)
	s.CreatedAt = timex.FromUnix(createdAt)
	s.UpdatedAt = timex.FromUnix(updatedAt)
	return &s, nil
}
