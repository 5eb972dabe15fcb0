package protocol

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertRank_ParentsBeforeChildren(t *testing.T) {
	assert.Less(t, UpsertRank(TableCollections), UpsertRank(TableVocabularies))
	assert.Less(t, UpsertRank(TableTopics), UpsertRank(TableCollections))
	assert.Less(t, UpsertRank(TableCollections), UpsertRank(TableTopicProgress))
}

func TestDeleteRank_ReversesUpsertOrder(t *testing.T) {
	tables := append([]string(nil), SyncedTables...)
	sort.Slice(tables, func(i, j int) bool {
		return DeleteRank(tables[i]) < DeleteRank(tables[j])
	})

	want := make([]string, len(SyncedTables))
	for i, name := range SyncedTables {
		want[len(SyncedTables)-1-i] = name
	}
	assert.Equal(t, want, tables)
}

func TestRank_UnknownTableSortsLast(t *testing.T) {
	for _, name := range SyncedTables {
		assert.Less(t, UpsertRank(name), UpsertRank("bogus"))
		assert.Less(t, DeleteRank(name), DeleteRank("bogus"))
	}
}

func TestDBTable(t *testing.T) {
	got, ok := DBTable(TableLearningSettings)
	require.True(t, ok)
	assert.Equal(t, "learning_settings", got)

	got, ok = DBTable(TableCollectionShares)
	require.True(t, ok)
	assert.Equal(t, "collection_shares", got)

	_, ok = DBTable("bogus")
	assert.False(t, ok)
}
