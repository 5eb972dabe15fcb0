// Package protocol defines the shapes exchanged with the remote sync
// authority: change records pushed from the local replica, pull records
// applied to it, and the opaque checkpoint bounding incremental pulls.
//
// Payloads are a closed set: every synced table has an explicit payload
// struct, and decoding matches exhaustively on the wire table name.
package protocol

import (
	"encoding/json"
	"time"
)

// ChangeRecord is one local change pushed to the remote authority.
// For tombstones Data is intentionally empty: only presence and version
// matter to the server.
type ChangeRecord struct {
	TableName string          `json:"tableName"`
	RowID     string          `json:"rowId"`
	Data      json.RawMessage `json:"data"`
	Version   int64           `json:"version"`
	Deleted   bool            `json:"deleted"`
}

// PullRecord is one remote change received from the authority.
type PullRecord struct {
	TableName string          `json:"tableName"`
	RowID     string          `json:"rowId"`
	Data      json.RawMessage `json:"data"`
	Version   int64           `json:"version"`
	Deleted   bool            `json:"deleted"`
	SyncedAt  *int64          `json:"syncedAt,omitempty"`
}

// Checkpoint is the opaque cursor issued by the authority after a pull. The
// engine stores it verbatim and passes it back on the next request; absence
// means a full initial sync.
type Checkpoint struct {
	UpdatedAt time.Time `json:"updatedAt"`
	ID        string    `json:"id"`
}

// Conflict describes a pushed change the server refused to apply. The engine
// surfaces conflicts without resolving them.
type Conflict struct {
	TableName string `json:"tableName"`
	RowID     string `json:"rowId"`
	Reason    string `json:"reason,omitempty"`
}

// DeltaRequest carries one push/pull cycle: all pending local changes plus
// the checkpoint of the previous pull.
type DeltaRequest struct {
	Changes    []ChangeRecord `json:"changes"`
	Checkpoint *Checkpoint    `json:"checkpoint,omitempty"`
}

// PushResult reports how the server handled the pushed changes.
type PushResult struct {
	Synced    int        `json:"synced"`
	Conflicts []Conflict `json:"conflicts"`
}

// PullResult carries the remote changes since the request checkpoint and the
// new checkpoint to persist after they are durably applied.
type PullResult struct {
	Records    []PullRecord `json:"records"`
	Checkpoint Checkpoint   `json:"checkpoint"`
}

// DeltaResponse is the authority's answer to a DeltaRequest.
type DeltaResponse struct {
	Push *PushResult `json:"push,omitempty"`
	Pull *PullResult `json:"pull,omitempty"`
}
