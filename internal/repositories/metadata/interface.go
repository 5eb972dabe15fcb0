// Package metadata persists engine bookkeeping disjoint from the entity
// tables: a key/value metadata table holding the sync checkpoint and
// last-sync timestamp, and the deprecated hard-delete queue drained by the
// change tracker.
package metadata

import (
	"context"
)

// Repository is a small key/value store over the metadata table. The change
// tracker and applier never touch it; only the checkpoint accessors and the
// orchestrator do.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string][]byte, error)

	// ListLegacyDeletes returns residual entries of the deprecated
	// hard-delete queue; ClearLegacyDelete removes one once pushed.
	ListLegacyDeletes(ctx context.Context) ([]LegacyDelete, error)
	ClearLegacyDelete(ctx context.Context, tableName, rowID string) error
}

// LegacyDelete is one residual entry of the deprecated hard-delete queue.
type LegacyDelete struct {
	TableName   string
	RowID       string
	SyncVersion int64
}
