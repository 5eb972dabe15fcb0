// Package models defines the local entity types kept in the per-user replica.
// Every synced entity embeds SyncEnvelope, the bookkeeping the engine uses to
// decide what to push and how to apply what it pulls.
package models

import "time"

// SyncEnvelope carries per-row sync metadata shared by all entity tables.
//
// A row with SyncedAt == nil is dirty: its last local mutation has not been
// confirmed by the remote authority and it will be included in the next push.
// Deleted rows are tombstones; they stay in the table until purged so the
// deletion can propagate to other replicas.
type SyncEnvelope struct {
	// SyncVersion is a monotonically increasing local edit counter, starting
	// at 1. The server uses it as the change's version stamp.
	SyncVersion int64

	// SyncedAt is the time of the last confirmed push, nil when dirty.
	SyncedAt *time.Time

	// Deleted marks the row as a soft-delete tombstone.
	Deleted bool

	// DeletedAt is set when Deleted transitions to true.
	DeletedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Dirty reports whether the row must be included in the next push.
func (e SyncEnvelope) Dirty() bool {
	return e.SyncedAt == nil
}
