package models

// Collection groups vocabulary items for one language.
//
// WordCount is a derived aggregate: it must always equal the number of live
// (non-deleted) vocabularies whose CollectionID points here. SharedBy is set
// when the collection was shared to this user by someone else; it is derived
// on pull from the wire ownerId and never pushed as authoritative.
type Collection struct {
	ID          string
	Name        string
	Description string
	Language    string
	IsPublic    bool
	WordCount   int64
	SharedBy    *string

	SyncEnvelope
}

// Owned reports whether the local user owns this collection.
func (c *Collection) Owned() bool {
	return c.SharedBy == nil
}
