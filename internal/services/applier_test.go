package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/lexisync/internal/auth"
	"github.com/dmitrijs2005/lexisync/internal/models"
	"github.com/dmitrijs2005/lexisync/internal/protocol"
	"github.com/dmitrijs2005/lexisync/internal/store"
)

func setupApplier(t *testing.T, userID string) (*Applier, *store.Store) {
	t.Helper()
	st := setupStore(t)
	tokens := &stubTokens{tokens: auth.Tokens{AccessToken: "at", UserID: userID}}
	a := NewApplier(st, tokens, testLogger())
	a.now = fixedClock(1700001000)
	return a, st
}

func pullUpsert(t *testing.T, tableName, rowID string, version int64, payload any) protocol.PullRecord {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return protocol.PullRecord{
		TableName: tableName,
		RowID:     rowID,
		Data:      data,
		Version:   version,
	}
}

func pullDelete(tableName, rowID string, version int64) protocol.PullRecord {
	return protocol.PullRecord{
		TableName: tableName,
		RowID:     rowID,
		Data:      json.RawMessage(`{}`),
		Version:   version,
		Deleted:   true,
	}
}

func TestApply_InsertsInParentFirstOrder(t *testing.T) {
	a, st := setupApplier(t, "user-1")
	ctx := context.Background()

	// Deliberately shuffled: the vocabulary arrives before its collection.
	records := []protocol.PullRecord{
		pullUpsert(t, protocol.TableVocabularies, "v1", 1, protocol.VocabularyPayload{
			ID: "v1", Word: "apple", CollectionID: "c1",
		}),
		pullUpsert(t, protocol.TableCollections, "c1", 1, protocol.CollectionPayload{
			ID: "c1", Name: "Basics", OwnerID: "user-1",
		}),
		pullUpsert(t, protocol.TableTopics, "t1", 1, protocol.TermPayload{ID: "t1", Name: "food"}),
	}
	require.NoError(t, a.ApplyRemoteChanges(ctx, records))

	coll, err := st.Collections.GetByID(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Basics", coll.Name)
	assert.True(t, coll.Owned())
	// Applied rows land already synced and carry the server version.
	require.NotNil(t, coll.SyncedAt)
	assert.Equal(t, int64(1), coll.SyncVersion)
	// Word count was recomputed from the inserted member.
	assert.Equal(t, int64(1), coll.WordCount)

	v, err := st.Vocabularies.GetByID(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, "apple", v.Word)
	require.NotNil(t, v.SyncedAt)
}

func TestApply_SharedByDerivation(t *testing.T) {
	a, st := setupApplier(t, "user-1")
	ctx := context.Background()

	records := []protocol.PullRecord{
		pullUpsert(t, protocol.TableCollections, "mine", 1, protocol.CollectionPayload{
			ID: "mine", Name: "Mine", OwnerID: "user-1",
		}),
		pullUpsert(t, protocol.TableCollections, "theirs", 1, protocol.CollectionPayload{
			ID: "theirs", Name: "Theirs", OwnerID: "user-2",
		}),
	}
	require.NoError(t, a.ApplyRemoteChanges(ctx, records))

	mine, err := st.Collections.GetByID(ctx, "mine")
	require.NoError(t, err)
	assert.Nil(t, mine.SharedBy)

	theirs, err := st.Collections.GetByID(ctx, "theirs")
	require.NoError(t, err)
	require.NotNil(t, theirs.SharedBy)
	assert.Equal(t, "user-2", *theirs.SharedBy)
}

func TestApply_UpdatePreservesCreatedAt(t *testing.T) {
	a, st := setupApplier(t, "user-1")
	ctx := context.Background()

	require.NoError(t, a.ApplyRemoteChanges(ctx, []protocol.PullRecord{
		pullUpsert(t, protocol.TableCollections, "c1", 1, protocol.CollectionPayload{
			ID: "c1", Name: "Old", OwnerID: "user-1", CreatedAt: 1700000000,
		}),
	}))

	require.NoError(t, a.ApplyRemoteChanges(ctx, []protocol.PullRecord{
		pullUpsert(t, protocol.TableCollections, "c1", 2, protocol.CollectionPayload{
			ID: "c1", Name: "New", OwnerID: "user-1", CreatedAt: 1799999999,
		}),
	}))

	got, err := st.Collections.GetByID(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "New", got.Name)
	assert.Equal(t, int64(2), got.SyncVersion)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), got.CreatedAt)
}

func TestApply_CollectionTombstoneCascades(t *testing.T) {
	a, st := setupApplier(t, "user-1")
	ctx := context.Background()

	require.NoError(t, a.ApplyRemoteChanges(ctx, []protocol.PullRecord{
		pullUpsert(t, protocol.TableCollections, "c1", 1, protocol.CollectionPayload{
			ID: "c1", Name: "Basics", OwnerID: "user-1",
		}),
		pullUpsert(t, protocol.TableVocabularies, "v1", 1, protocol.VocabularyPayload{
			ID: "v1", Word: "apple", CollectionID: "c1",
		}),
		pullUpsert(t, protocol.TableVocabularies, "v2", 1, protocol.VocabularyPayload{
			ID: "v2", Word: "pear", CollectionID: "c1",
		}),
	}))

	require.NoError(t, a.ApplyRemoteChanges(ctx, []protocol.PullRecord{
		pullDelete(protocol.TableCollections, "c1", 2),
	}))

	coll, err := st.Collections.GetByID(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, coll.Deleted)
	assert.Equal(t, int64(2), coll.SyncVersion)

	for _, id := range []string{"v1", "v2"} {
		v, err := st.Vocabularies.GetByID(ctx, id)
		require.NoError(t, err)
		assert.True(t, v.Deleted)
		// Cascaded tombstones are not pushed back.
		assert.NotNil(t, v.SyncedAt)
	}

	pending, err := NewTracker(st, testLogger()).PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, pending)
}

func TestApply_VocabularyTombstoneRecountsCollection(t *testing.T) {
	a, st := setupApplier(t, "user-1")
	ctx := context.Background()

	require.NoError(t, a.ApplyRemoteChanges(ctx, []protocol.PullRecord{
		pullUpsert(t, protocol.TableCollections, "c1", 1, protocol.CollectionPayload{
			ID: "c1", Name: "Basics", OwnerID: "user-1",
		}),
		pullUpsert(t, protocol.TableVocabularies, "v1", 1, protocol.VocabularyPayload{
			ID: "v1", Word: "apple", CollectionID: "c1",
		}),
		pullUpsert(t, protocol.TableVocabularies, "v2", 1, protocol.VocabularyPayload{
			ID: "v2", Word: "pear", CollectionID: "c1",
		}),
	}))

	require.NoError(t, a.ApplyRemoteChanges(ctx, []protocol.PullRecord{
		pullDelete(protocol.TableVocabularies, "v2", 2),
	}))

	coll, err := st.Collections.GetByID(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), coll.WordCount)
}

func TestApply_MoveBetweenCollectionsRecountsBoth(t *testing.T) {
	a, st := setupApplier(t, "user-1")
	ctx := context.Background()

	require.NoError(t, a.ApplyRemoteChanges(ctx, []protocol.PullRecord{
		pullUpsert(t, protocol.TableCollections, "c1", 1, protocol.CollectionPayload{
			ID: "c1", Name: "From", OwnerID: "user-1",
		}),
		pullUpsert(t, protocol.TableCollections, "c2", 1, protocol.CollectionPayload{
			ID: "c2", Name: "To", OwnerID: "user-1",
		}),
		pullUpsert(t, protocol.TableVocabularies, "v1", 1, protocol.VocabularyPayload{
			ID: "v1", Word: "apple", CollectionID: "c1",
		}),
	}))

	require.NoError(t, a.ApplyRemoteChanges(ctx, []protocol.PullRecord{
		pullUpsert(t, protocol.TableVocabularies, "v1", 2, protocol.VocabularyPayload{
			ID: "v1", Word: "apple", CollectionID: "c2",
		}),
	}))

	from, err := st.Collections.GetByID(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), from.WordCount)

	to, err := st.Collections.GetByID(ctx, "c2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), to.WordCount)
}

func TestApply_RevivesTombstone(t *testing.T) {
	a, st := setupApplier(t, "user-1")
	ctx := context.Background()

	require.NoError(t, a.ApplyRemoteChanges(ctx, []protocol.PullRecord{
		pullUpsert(t, protocol.TableCollections, "c1", 1, protocol.CollectionPayload{
			ID: "c1", Name: "Basics", OwnerID: "user-1",
		}),
	}))
	require.NoError(t, a.ApplyRemoteChanges(ctx, []protocol.PullRecord{
		pullDelete(protocol.TableCollections, "c1", 2),
	}))
	require.NoError(t, a.ApplyRemoteChanges(ctx, []protocol.PullRecord{
		pullUpsert(t, protocol.TableCollections, "c1", 3, protocol.CollectionPayload{
			ID: "c1", Name: "Back again", OwnerID: "user-1",
		}),
	}))

	got, err := st.Collections.GetByID(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, got.Deleted)
	assert.Equal(t, "Back again", got.Name)
	assert.Equal(t, int64(3), got.SyncVersion)
}

func TestApply_InvalidPayloadRollsBackBatch(t *testing.T) {
	a, st := setupApplier(t, "user-1")
	ctx := context.Background()

	records := []protocol.PullRecord{
		pullUpsert(t, protocol.TableCollections, "c1", 1, protocol.CollectionPayload{
			ID: "c1", Name: "Basics", OwnerID: "user-1",
		}),
		// Missing collectionId fails validation.
		pullUpsert(t, protocol.TableVocabularies, "v1", 1, map[string]string{
			"id": "v1", "word": "apple",
		}),
	}
	err := a.ApplyRemoteChanges(ctx, records)
	require.Error(t, err)

	// The valid collection must not have landed.
	_, err = st.Collections.GetByID(ctx, "c1")
	assert.Error(t, err)
}

func TestApply_UnknownTableSkipped(t *testing.T) {
	a, st := setupApplier(t, "user-1")
	ctx := context.Background()

	records := []protocol.PullRecord{
		pullUpsert(t, "mystery", "x1", 1, map[string]string{"id": "x1"}),
		pullDelete("mystery", "x2", 1),
		pullUpsert(t, protocol.TableCollections, "c1", 1, protocol.CollectionPayload{
			ID: "c1", Name: "Basics", OwnerID: "user-1",
		}),
	}
	require.NoError(t, a.ApplyRemoteChanges(ctx, records))

	_, err := st.Collections.GetByID(ctx, "c1")
	assert.NoError(t, err)
}

func TestApply_RevokeAndRegrantShareInOneBatch(t *testing.T) {
	a, st := setupApplier(t, "user-1")
	ctx := context.Background()

	require.NoError(t, a.ApplyRemoteChanges(ctx, []protocol.PullRecord{
		pullUpsert(t, protocol.TableCollections, "c1", 1, protocol.CollectionPayload{
			ID: "c1", Name: "Basics", OwnerID: "user-1",
		}),
		pullUpsert(t, protocol.TableCollectionShares, "s1", 1, protocol.SharePayload{
			ID: "s1", CollectionID: "c1", GranteeID: "user-2", Permission: models.PermissionViewer,
		}),
	}))

	// The revoke and the replacement grant arrive in the same batch. The
	// new grant must land even though the old one is tombstoned after it.
	require.NoError(t, a.ApplyRemoteChanges(ctx, []protocol.PullRecord{
		pullDelete(protocol.TableCollectionShares, "s1", 2),
		pullUpsert(t, protocol.TableCollectionShares, "s2", 1, protocol.SharePayload{
			ID: "s2", CollectionID: "c1", GranteeID: "user-2", Permission: models.PermissionEditor,
		}),
	}))

	live, err := st.Shares.FindLive(ctx, "c1", "user-2")
	require.NoError(t, err)
	assert.Equal(t, "s2", live.ID)
	assert.Equal(t, models.PermissionEditor, live.Permission)

	old, err := st.Shares.GetByID(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, old.Deleted)
	assert.NotNil(t, old.SyncedAt)

	pending, err := NewTracker(st, testLogger()).PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, pending)
}

func TestApply_RegrantWithoutTombstoneSupersedes(t *testing.T) {
	a, st := setupApplier(t, "user-1")
	ctx := context.Background()

	require.NoError(t, a.ApplyRemoteChanges(ctx, []protocol.PullRecord{
		pullUpsert(t, protocol.TableCollections, "c1", 1, protocol.CollectionPayload{
			ID: "c1", Name: "Basics", OwnerID: "user-1",
		}),
		pullUpsert(t, protocol.TableCollectionShares, "s1", 1, protocol.SharePayload{
			ID: "s1", CollectionID: "c1", GranteeID: "user-2", Permission: models.PermissionViewer,
		}),
	}))

	// The old grant's tombstone never arrives; the new grant alone takes
	// over the (collection, grantee) slot.
	require.NoError(t, a.ApplyRemoteChanges(ctx, []protocol.PullRecord{
		pullUpsert(t, protocol.TableCollectionShares, "s2", 1, protocol.SharePayload{
			ID: "s2", CollectionID: "c1", GranteeID: "user-2", Permission: models.PermissionViewer,
		}),
	}))

	live, err := st.Shares.FindLive(ctx, "c1", "user-2")
	require.NoError(t, err)
	assert.Equal(t, "s2", live.ID)

	old, err := st.Shares.GetByID(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, old.Deleted)
	assert.NotNil(t, old.SyncedAt)

	pending, err := NewTracker(st, testLogger()).PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, pending)
}

func TestApply_ProgressScopeMergesUnpushedCounts(t *testing.T) {
	a, st := setupApplier(t, "user-1")
	ctx := context.Background()

	localPracticed := time.Unix(1700000800, 0).UTC()
	local := &models.TopicProgress{
		ID:              "local-p",
		Topic:           "food",
		Language:        "en",
		TotalReviews:    3,
		CorrectCount:    2,
		IncorrectCount:  1,
		CurrentStreak:   2,
		LastPracticedAt: &localPracticed,
	}
	local.SyncVersion = 1
	local.CreatedAt = localPracticed
	local.UpdatedAt = localPracticed
	require.NoError(t, st.Progress.Save(ctx, local))

	// Another device's aggregate for the same scope arrives under its own
	// id before the local row was ever pushed.
	remotePracticed := int64(1700000400)
	require.NoError(t, a.ApplyRemoteChanges(ctx, []protocol.PullRecord{
		pullUpsert(t, protocol.TableTopicProgress, "remote-p1", 1, protocol.ProgressPayload{
			ID: "remote-p1", Topic: "food", Language: "en",
			TotalReviews: 5, CorrectCount: 4, IncorrectCount: 1, CurrentStreak: 4,
			LastPracticedAt: &remotePracticed,
		}),
	}))

	got, err := st.Progress.GetByScope(ctx, "food", "en")
	require.NoError(t, err)
	assert.Equal(t, "remote-p1", got.ID)
	assert.Equal(t, int64(8), got.TotalReviews)
	assert.Equal(t, int64(6), got.CorrectCount)
	assert.Equal(t, int64(2), got.IncorrectCount)
	// Local practice is the more recent, so its streak wins.
	assert.Equal(t, int64(2), got.CurrentStreak)
	require.NotNil(t, got.LastPracticedAt)
	assert.Equal(t, localPracticed, *got.LastPracticedAt)
	// The merged counts still need to reach the server.
	assert.Nil(t, got.SyncedAt)
	assert.Equal(t, int64(2), got.SyncVersion)

	old, err := st.Progress.GetByID(ctx, "local-p")
	require.NoError(t, err)
	assert.True(t, old.Deleted)
	assert.NotNil(t, old.SyncedAt)

	pending, err := NewTracker(st, testLogger()).PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pending)
}

func TestApply_ProgressScopeSupersedesSyncedLocal(t *testing.T) {
	a, st := setupApplier(t, "user-1")
	ctx := context.Background()

	syncedAt := time.Unix(1700000000, 0).UTC()
	local := &models.TopicProgress{
		ID:           "local-p",
		Topic:        "food",
		Language:     "en",
		TotalReviews: 3,
	}
	local.SyncVersion = 1
	local.SyncedAt = &syncedAt
	local.CreatedAt = syncedAt
	local.UpdatedAt = syncedAt
	require.NoError(t, st.Progress.Save(ctx, local))

	require.NoError(t, a.ApplyRemoteChanges(ctx, []protocol.PullRecord{
		pullUpsert(t, protocol.TableTopicProgress, "remote-p1", 3, protocol.ProgressPayload{
			ID: "remote-p1", Topic: "food", Language: "en", TotalReviews: 9,
		}),
	}))

	// Already-pushed counts are the server's to reconcile; the pulled row
	// replaces the local one verbatim.
	got, err := st.Progress.GetByScope(ctx, "food", "en")
	require.NoError(t, err)
	assert.Equal(t, "remote-p1", got.ID)
	assert.Equal(t, int64(9), got.TotalReviews)
	assert.Equal(t, int64(3), got.SyncVersion)
	assert.NotNil(t, got.SyncedAt)

	old, err := st.Progress.GetByID(ctx, "local-p")
	require.NoError(t, err)
	assert.True(t, old.Deleted)

	pending, err := NewTracker(st, testLogger()).PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, pending)
}

func TestApply_EmptyBatchIsNoop(t *testing.T) {
	a, _ := setupApplier(t, "user-1")
	require.NoError(t, a.ApplyRemoteChanges(context.Background(), nil))
}

func TestApply_AllTables(t *testing.T) {
	a, st := setupApplier(t, "user-1")
	ctx := context.Background()

	practiced := int64(1700000500)
	records := []protocol.PullRecord{
		pullUpsert(t, protocol.TableCollections, "c1", 1, protocol.CollectionPayload{
			ID: "c1", Name: "Basics", OwnerID: "user-1",
		}),
		pullUpsert(t, protocol.TableCollectionShares, "s1", 1, protocol.SharePayload{
			ID: "s1", CollectionID: "c1", GranteeID: "user-2", Permission: models.PermissionViewer,
		}),
		pullUpsert(t, protocol.TableTags, "tag1", 1, protocol.TermPayload{ID: "tag1", Name: "beginner"}),
		pullUpsert(t, protocol.TableLearningSettings, "ls1", 1, protocol.SettingsPayload{
			ID: "ls1", Algorithm: "sm2", NewWordsPerDay: 15,
		}),
		pullUpsert(t, protocol.TableTopicProgress, "p1", 1, protocol.ProgressPayload{
			ID: "p1", Topic: "food", Language: "en", TotalReviews: 7, LastPracticedAt: &practiced,
		}),
	}
	require.NoError(t, a.ApplyRemoteChanges(ctx, records))

	share, err := st.Shares.FindLive(ctx, "c1", "user-2")
	require.NoError(t, err)
	assert.Equal(t, "s1", share.ID)

	tag, err := st.Tags.GetByName(ctx, "beginner")
	require.NoError(t, err)
	assert.Equal(t, "tag1", tag.ID)

	ls, err := st.Settings.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sm2", ls.Algorithm)
	assert.Equal(t, int64(15), ls.NewWordsPerDay)

	p, err := st.Progress.GetByScope(ctx, "food", "en")
	require.NoError(t, err)
	assert.Equal(t, int64(7), p.TotalReviews)
	require.NotNil(t, p.LastPracticedAt)
	assert.Equal(t, time.Unix(practiced, 0).UTC(), *p.LastPracticedAt)
}
