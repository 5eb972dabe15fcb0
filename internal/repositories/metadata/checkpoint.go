package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/dmitrijs2005/lexisync/internal/protocol"
)

// Metadata keys used by the sync engine.
const (
	keyCheckpoint = "sync_checkpoint"
	keyLastSyncAt = "last_sync_at"
)

// CheckpointStore exposes the typed sync bookkeeping on top of the key/value
// repository. The checkpoint is stored verbatim as JSON; the engine never
// interprets it beyond handing it back on the next pull.
type CheckpointStore struct {
	repo Repository
}

// NewCheckpointStore returns a CheckpointStore over the given repository.
func NewCheckpointStore(repo Repository) *CheckpointStore {
	return &CheckpointStore{repo: repo}
}

// Checkpoint returns the stored cursor, or nil when no pull has completed yet
// (meaning the next pull is a full initial sync).
func (s *CheckpointStore) Checkpoint(ctx context.Context) (*protocol.Checkpoint, error) {
	raw, err := s.repo.Get(ctx, keyCheckpoint)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	var cp protocol.Checkpoint
	if err := json.Unmarshal(raw, &cp); err != nil {
		return nil, fmt.Errorf("failed to parse stored checkpoint: %w", err)
	}
	return &cp, nil
}

// SaveCheckpoint persists the cursor received after a successful apply.
func (s *CheckpointStore) SaveCheckpoint(ctx context.Context, cp protocol.Checkpoint) error {
	raw, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}
	return s.repo.Set(ctx, keyCheckpoint, raw)
}

// LastSyncAt returns the unix timestamp of the last successful sync, or nil.
func (s *CheckpointStore) LastSyncAt(ctx context.Context) (*int64, error) {
	raw, err := s.repo.Get(ctx, keyLastSyncAt)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	ts, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse last sync timestamp: %w", err)
	}
	return &ts, nil
}

// SaveLastSyncAt records the completion time of a successful sync.
func (s *CheckpointStore) SaveLastSyncAt(ctx context.Context, ts int64) error {
	return s.repo.Set(ctx, keyLastSyncAt, []byte(strconv.FormatInt(ts, 10)))
}
