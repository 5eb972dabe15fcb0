package metadata

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/lexisync/internal/dbx"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := r.db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get metadata[%s]: %w", key, err)
	}
	return value, nil
}

func (r *SQLiteRepository) Set(ctx context.Context, key string, value []byte) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set metadata[%s]: %w", key, err)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM metadata WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete metadata[%s]: %w", key, err)
	}
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context) (map[string][]byte, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, value FROM metadata`)
	if err != nil {
		return nil, fmt.Errorf("failed to list metadata: %w", err)
	}
	defer rows.Close()

	result := make(map[string][]byte)
	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan metadata row: %w", err)
		}
		result[key] = value
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate metadata rows: %w", err)
	}

	return result, nil
}

// ListLegacyDeletes returns the residual entries of the deprecated
// hard-delete queue. New code never inserts here.
func (r *SQLiteRepository) ListLegacyDeletes(ctx context.Context) ([]LegacyDelete, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT table_name, row_id, sync_version FROM sync_deletes ORDER BY queued_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list legacy deletes: %w", err)
	}
	defer rows.Close()

	var result []LegacyDelete
	for rows.Next() {
		var d LegacyDelete
		if err := rows.Scan(&d.TableName, &d.RowID, &d.SyncVersion); err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ClearLegacyDelete removes one drained entry after the push confirmed it.
func (r *SQLiteRepository) ClearLegacyDelete(ctx context.Context, tableName, rowID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM sync_deletes WHERE table_name = ? AND row_id = ?`, tableName, rowID)
	if err != nil {
		return fmt.Errorf("failed to clear legacy delete: %w", err)
	}
	return nil
}
