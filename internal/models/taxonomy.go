package models

// Term is a flat taxonomy entry. Topics and tags share this shape but live in
// independent tables and sync as independent rows.
type Term struct {
	ID   string
	Name string

	SyncEnvelope
}
