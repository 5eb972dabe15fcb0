package protocol

// Wire table names. The set is closed; anything else in a pulled record is a
// protocol error.
const (
	TableCollections      = "collections"
	TableVocabularies     = "vocabularies"
	TableTopics           = "topics"
	TableTags             = "tags"
	TableLearningSettings = "learningSettings"
	TableCollectionShares = "collectionShares"
	TableTopicProgress    = "topicProgress"
)

// SyncedTables lists every synced table in upsert apply order: parents first
// (taxonomy, then collections, then grants), children after, leaf aggregates
// last. Tombstones apply in the reverse order so children go before parents.
var SyncedTables = []string{
	TableTopics,
	TableTags,
	TableCollections,
	TableCollectionShares,
	TableVocabularies,
	TableLearningSettings,
	TableTopicProgress,
}

var upsertRank = func() map[string]int {
	m := make(map[string]int, len(SyncedTables))
	for i, t := range SyncedTables {
		m[t] = i
	}
	return m
}()

// UpsertRank orders upserts parent-first. Unknown tables sort last.
func UpsertRank(tableName string) int {
	if r, ok := upsertRank[tableName]; ok {
		return r
	}
	return len(SyncedTables)
}

// DeleteRank orders tombstones child-first (the reverse of UpsertRank).
// Unknown tables sort last.
func DeleteRank(tableName string) int {
	if r, ok := upsertRank[tableName]; ok {
		return len(SyncedTables) - 1 - r
	}
	return len(SyncedTables)
}

// DBTable maps a wire table name to the local table name. The second result
// is false for unknown tables.
func DBTable(tableName string) (string, bool) {
	switch tableName {
	case TableCollections:
		return "collections", true
	case TableVocabularies:
		return "vocabularies", true
	case TableTopics:
		return "topics", true
	case TableTags:
		return "tags", true
	case TableLearningSettings:
		return "learning_settings", true
	case TableCollectionShares:
		return "collection_shares", true
	case TableTopicProgress:
		return "topic_progress", true
	default:
		return "", false
	}
}
