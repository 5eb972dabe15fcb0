package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/lexisync/internal/auth"
	"github.com/dmitrijs2005/lexisync/internal/models"
	"github.com/dmitrijs2005/lexisync/internal/protocol"
	"github.com/dmitrijs2005/lexisync/internal/store"
)

// fakeAPI scripts the remote authority for syncer tests.
type fakeAPI struct {
	lastReq  *protocol.DeltaRequest
	resp     *protocol.DeltaResponse
	deltaErr error

	refreshed auth.Tokens
	refresh   error
}

func (f *fakeAPI) Delta(_ context.Context, _ string, req protocol.DeltaRequest) (*protocol.DeltaResponse, error) {
	f.lastReq = &req
	if f.deltaErr != nil {
		return nil, f.deltaErr
	}
	if f.resp != nil {
		return f.resp, nil
	}
	return &protocol.DeltaResponse{}, nil
}

func (f *fakeAPI) Refresh(_ context.Context, _ string) (auth.Tokens, error) {
	if f.refresh != nil {
		return auth.Tokens{}, f.refresh
	}
	return f.refreshed, nil
}

func setupSyncer(t *testing.T, api *fakeAPI) (*Syncer, *store.Store, *stubTokens) {
	t.Helper()
	st := setupStore(t)
	// A JWT-shaped token with no exp claim, which AccessTokenExpired treats
	// as not expired, so the session does not attempt a refresh.
	const freshJWT = "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.e30."
	tokens := &stubTokens{tokens: auth.Tokens{AccessToken: freshJWT, RefreshToken: "rt", UserID: "user-1"}}
	s := NewSyncer(st, tokens, api, testLogger(), "https://sync.example.com", 0)
	s.now = fixedClock(1700003000)
	s.applier.now = s.now
	return s, st, tokens
}

func TestSyncNow_NotConfigured(t *testing.T) {
	st := setupStore(t)
	tokens := &stubTokens{}
	s := NewSyncer(st, tokens, &fakeAPI{}, testLogger(), "", 0)

	res := s.SyncNow(context.Background())
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "not configured")
}

func TestSyncNow_NotAuthenticated(t *testing.T) {
	s, _, tokens := setupSyncer(t, &fakeAPI{})
	tokens.tokens = auth.Tokens{}

	res := s.SyncNow(context.Background())
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "not authenticated")
}

func TestSyncNow_PushPullCycle(t *testing.T) {
	api := &fakeAPI{
		resp: &protocol.DeltaResponse{
			Push: &protocol.PushResult{Synced: 1},
			Pull: &protocol.PullResult{
				Records: []protocol.PullRecord{{
					TableName: protocol.TableCollections,
					RowID:     "remote-c1",
					Data:      mustJSON(protocol.CollectionPayload{ID: "remote-c1", Name: "Pulled", OwnerID: "user-2"}),
					Version:   1,
				}},
				Checkpoint: protocol.Checkpoint{
					UpdatedAt: time.Unix(1700003000, 0).UTC(),
					ID:        "remote-c1",
				},
			},
		},
	}
	s, st, _ := setupSyncer(t, api)
	ctx := context.Background()

	catalog := NewCatalog(st, testLogger())
	local, err := catalog.CreateCollection(ctx, "Local", "", "en", false)
	require.NoError(t, err)

	res := s.SyncNow(ctx)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, 1, res.Pushed)
	assert.Equal(t, 1, res.Pulled)
	assert.Equal(t, 0, res.Conflicts)
	assert.Equal(t, int64(1700003000), res.SyncedAt)

	// The local change went out.
	require.NotNil(t, api.lastReq)
	require.Len(t, api.lastReq.Changes, 1)
	assert.Equal(t, local.ID, api.lastReq.Changes[0].RowID)
	assert.Nil(t, api.lastReq.Checkpoint)

	// And was confirmed.
	gotLocal, err := st.Collections.GetByID(ctx, local.ID)
	require.NoError(t, err)
	assert.False(t, gotLocal.Dirty())

	// The pulled collection landed, shared-by derived.
	pulled, err := st.Collections.GetByID(ctx, "remote-c1")
	require.NoError(t, err)
	require.NotNil(t, pulled.SharedBy)
	assert.Equal(t, "user-2", *pulled.SharedBy)

	// Checkpoint and last-sync bookkeeping advanced.
	cp, err := st.Checkpoints.Checkpoint(ctx)
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, "remote-c1", cp.ID)

	last, err := st.Checkpoints.LastSyncAt(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, int64(1700003000), *last)
}

func TestSyncNow_SendsStoredCheckpoint(t *testing.T) {
	api := &fakeAPI{}
	s, st, _ := setupSyncer(t, api)
	ctx := context.Background()

	want := protocol.Checkpoint{UpdatedAt: time.Unix(1700000000, 0).UTC(), ID: "row-9"}
	require.NoError(t, st.Checkpoints.SaveCheckpoint(ctx, want))

	res := s.SyncNow(ctx)
	require.True(t, res.Success, res.Error)
	require.NotNil(t, api.lastReq.Checkpoint)
	assert.Equal(t, want, *api.lastReq.Checkpoint)
}

func TestSyncNow_DeltaFailureKeepsChangesPending(t *testing.T) {
	api := &fakeAPI{deltaErr: errors.New("server unreachable")}
	s, st, _ := setupSyncer(t, api)
	ctx := context.Background()

	catalog := NewCatalog(st, testLogger())
	_, err := catalog.CreateCollection(ctx, "Local", "", "en", false)
	require.NoError(t, err)

	res := s.SyncNow(ctx)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "unreachable")

	pending, err := NewTracker(st, testLogger()).PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pending)
}

func TestSyncNow_ApplyFailureDoesNotAdvanceCheckpoint(t *testing.T) {
	api := &fakeAPI{
		resp: &protocol.DeltaResponse{
			Pull: &protocol.PullResult{
				Records: []protocol.PullRecord{{
					TableName: protocol.TableVocabularies,
					RowID:     "v1",
					Data:      json.RawMessage(`{"id":"v1"}`), // no collectionId
					Version:   1,
				}},
				Checkpoint: protocol.Checkpoint{ID: "should-not-persist"},
			},
		},
	}
	s, st, _ := setupSyncer(t, api)
	ctx := context.Background()

	res := s.SyncNow(ctx)
	assert.False(t, res.Success)

	cp, err := st.Checkpoints.Checkpoint(ctx)
	require.NoError(t, err)
	assert.Nil(t, cp)
}

func TestSyncNow_RefreshesExpiredToken(t *testing.T) {
	api := &fakeAPI{
		refreshed: auth.Tokens{AccessToken: "at-2", RefreshToken: "rt-2", UserID: "user-1"},
	}
	s, _, tokens := setupSyncer(t, api)
	// "not-a-jwt" parses as expired, forcing a refresh.
	tokens.tokens = auth.Tokens{AccessToken: "not-a-jwt", RefreshToken: "rt-1", UserID: "user-1"}

	res := s.SyncNow(context.Background())
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "at-2", tokens.tokens.AccessToken)
	require.Len(t, tokens.saved, 1)
}

func TestSyncNow_RefreshFailure(t *testing.T) {
	api := &fakeAPI{refresh: errors.New("refresh token revoked")}
	s, _, tokens := setupSyncer(t, api)
	tokens.tokens = auth.Tokens{AccessToken: "not-a-jwt", RefreshToken: "rt-1", UserID: "user-1"}

	res := s.SyncNow(context.Background())
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "revoked")
}

func TestSyncNow_ReportsConflicts(t *testing.T) {
	api := &fakeAPI{
		resp: &protocol.DeltaResponse{
			Push: &protocol.PushResult{
				Synced: 0,
				Conflicts: []protocol.Conflict{
					{TableName: protocol.TableCollections, RowID: "c1", Reason: "stale version"},
				},
			},
		},
	}
	s, st, _ := setupSyncer(t, api)
	ctx := context.Background()

	catalog := NewCatalog(st, testLogger())
	_, err := catalog.CreateCollection(ctx, "Local", "", "en", false)
	require.NoError(t, err)

	res := s.SyncNow(ctx)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, 1, res.Conflicts)

	// Nothing confirmed, so the change stays pending for the next session.
	pending, err := NewTracker(st, testLogger()).PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pending)
}

func TestSyncWithProgress_ReportsStages(t *testing.T) {
	api := &fakeAPI{
		resp: &protocol.DeltaResponse{
			Pull: &protocol.PullResult{Checkpoint: protocol.Checkpoint{ID: "x"}},
		},
	}
	s, _, _ := setupSyncer(t, api)

	var stages []string
	res := s.SyncWithProgress(context.Background(), func(stage string) {
		stages = append(stages, stage)
	})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, []string{StageAuthenticating, StagePushing, StagePulling, StageCheckpointing}, stages)
}

func TestStatus(t *testing.T) {
	s, st, _ := setupSyncer(t, &fakeAPI{})
	ctx := context.Background()

	got, err := s.Status(ctx)
	require.NoError(t, err)
	assert.True(t, got.Configured)
	assert.True(t, got.Authenticated)
	assert.Nil(t, got.LastSyncAt)
	assert.Equal(t, 0, got.PendingChanges)

	catalog := NewCatalog(st, testLogger())
	_, err = catalog.CreateCollection(ctx, "Local", "", "en", false)
	require.NoError(t, err)

	got, err = s.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, got.PendingChanges)
}

func TestPurge_RemovesOnlyConfirmedExpiredTombstones(t *testing.T) {
	s, st, _ := setupSyncer(t, &fakeAPI{})
	ctx := context.Background()

	now := s.now().UTC()
	old := now.Add(-90 * 24 * time.Hour)
	recent := now.Add(-time.Hour)

	insert := func(id string, deletedAt time.Time, synced bool) {
		c := &models.Collection{ID: id, Name: id}
		c.SyncVersion = 2
		c.Deleted = true
		c.DeletedAt = &deletedAt
		c.CreatedAt = old
		c.UpdatedAt = deletedAt
		if synced {
			c.SyncedAt = &deletedAt
		}
		require.NoError(t, st.Collections.Create(ctx, c))
	}
	insert("expired-synced", old, true)
	insert("expired-dirty", old, false)
	insert("recent-synced", recent, true)

	n, err := s.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Unconfirmed and fresh tombstones survive.
	_, err = st.Collections.GetByID(ctx, "expired-dirty")
	assert.NoError(t, err)
	_, err = st.Collections.GetByID(ctx, "recent-synced")
	assert.NoError(t, err)
	_, err = st.Collections.GetByID(ctx, "expired-synced")
	assert.Error(t, err)
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
