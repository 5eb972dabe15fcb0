package models

// CollectionShare grants another user read access to a collection.
//
// Among live rows the (CollectionID, GranteeID) pair is unique; a tombstoned
// grant does not block re-granting.
type CollectionShare struct {
	ID           string
	CollectionID string
	GranteeID    string
	Permission   string

	SyncEnvelope
}

// Share permissions.
const (
	PermissionViewer = "viewer"
	PermissionEditor = "editor"
)
