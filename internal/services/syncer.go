package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/lexisync/internal/auth"
	"github.com/dmitrijs2005/lexisync/internal/common"
	"github.com/dmitrijs2005/lexisync/internal/logging"
	"github.com/dmitrijs2005/lexisync/internal/protocol"
	"github.com/dmitrijs2005/lexisync/internal/remote"
	"github.com/dmitrijs2005/lexisync/internal/store"
	"github.com/dmitrijs2005/lexisync/internal/timex"
)

// Stages reported to the progress callback during a sync session.
const (
	StageAuthenticating = "authenticating"
	StagePushing        = "pushing"
	StagePulling        = "pulling"
	StageCheckpointing  = "checkpointing"
)

// DefaultPurgeRetention is how long confirmed tombstones are kept before the
// opportunistic purge removes them.
const DefaultPurgeRetention = 60 * 24 * time.Hour

// SyncResult summarizes one sync session. Failures are reported in-band:
// Success is false and Error holds the reason, so callers always get counts
// for whatever part of the session completed.
type SyncResult struct {
	Pushed    int    `json:"pushed"`
	Pulled    int    `json:"pulled"`
	Conflicts int    `json:"conflicts"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	SyncedAt  int64  `json:"syncedAt"`
}

// SyncStatus is a snapshot of the engine's sync state for display.
type SyncStatus struct {
	Configured     bool   `json:"configured"`
	Authenticated  bool   `json:"authenticated"`
	LastSyncAt     *int64 `json:"lastSyncAt,omitempty"`
	PendingChanges int    `json:"pendingChanges"`
	ServerURL      string `json:"serverUrl,omitempty"`
}

// ProgressFunc receives stage transitions during a sync session. It may be
// nil.
type ProgressFunc func(stage string)

// Syncer orchestrates full sync sessions: refresh credentials, push pending
// changes, pull and apply remote ones, advance the checkpoint.
type Syncer struct {
	st        *store.Store
	tracker   *Tracker
	applier   *Applier
	tokens    auth.Provider
	client    remote.API
	log       logging.Logger
	serverURL string
	retention time.Duration
	now       func() time.Time
}

// NewSyncer wires a Syncer from its collaborators. retention <= 0 selects
// DefaultPurgeRetention.
func NewSyncer(st *store.Store, tokens auth.Provider, client remote.API, log logging.Logger, serverURL string, retention time.Duration) *Syncer {
	if retention <= 0 {
		retention = DefaultPurgeRetention
	}
	return &Syncer{
		st:        st,
		tracker:   NewTracker(st, log),
		applier:   NewApplier(st, tokens, log),
		tokens:    tokens,
		client:    client,
		log:       log,
		serverURL: serverURL,
		retention: retention,
		now:       time.Now,
	}
}

// SyncNow runs one sync session without progress reporting.
func (s *Syncer) SyncNow(ctx context.Context) SyncResult {
	return s.SyncWithProgress(ctx, nil)
}

// SyncWithProgress runs one full sync session. It never returns an error;
// every failure mode is folded into the result so a UI can render it
// directly.
func (s *Syncer) SyncWithProgress(ctx context.Context, report ProgressFunc) SyncResult {
	progress := func(stage string) {
		if report != nil {
			report(stage)
		}
	}
	fail := func(stage string, err error) SyncResult {
		s.log.Error(ctx, "sync failed", "stage", stage, "error", err.Error())
		return SyncResult{Error: err.Error()}
	}

	if s.serverURL == "" {
		return fail(StageAuthenticating, common.ErrorNotConfigured)
	}

	progress(StageAuthenticating)
	tk, err := s.ensureFreshTokens(ctx)
	if err != nil {
		return fail(StageAuthenticating, err)
	}
	if !tk.HasCredentials() {
		return fail(StageAuthenticating, common.ErrorNotAuthenticated)
	}

	progress(StagePushing)
	changes, err := s.tracker.PendingChanges(ctx, tk.UserID)
	if err != nil {
		return fail(StagePushing, err)
	}
	cp, err := s.st.Checkpoints.Checkpoint(ctx)
	if err != nil {
		return fail(StagePushing, err)
	}

	resp, err := s.client.Delta(ctx, tk.AccessToken, protocol.DeltaRequest{
		Changes:    changes,
		Checkpoint: cp,
	})
	if err != nil {
		return fail(StagePushing, err)
	}

	now := s.now().UTC()
	result := SyncResult{SyncedAt: timex.Unix(now)}

	if resp.Push != nil {
		result.Pushed = resp.Push.Synced
		result.Conflicts = len(resp.Push.Conflicts)
		for _, c := range resp.Push.Conflicts {
			s.log.Warn(ctx, "push conflict", "table", c.TableName, "row", c.RowID, "reason", c.Reason)
		}
		if resp.Push.Synced > 0 {
			if err := s.tracker.MarkSynced(ctx, changes, now); err != nil {
				return fail(StagePushing, err)
			}
		}
	}

	if resp.Pull != nil {
		progress(StagePulling)
		result.Pulled = len(resp.Pull.Records)
		if err := s.applier.ApplyRemoteChanges(ctx, resp.Pull.Records); err != nil {
			return fail(StagePulling, err)
		}

		// The checkpoint only advances after the batch is durably applied;
		// crashing between the two re-pulls the same batch, which is safe
		// because applying is idempotent.
		progress(StageCheckpointing)
		if err := s.st.Checkpoints.SaveCheckpoint(ctx, resp.Pull.Checkpoint); err != nil {
			return fail(StageCheckpointing, err)
		}
	}

	if err := s.st.Checkpoints.SaveLastSyncAt(ctx, result.SyncedAt); err != nil {
		return fail(StageCheckpointing, err)
	}

	if n, err := s.Purge(ctx); err != nil {
		s.log.Warn(ctx, "tombstone purge failed", "error", err.Error())
	} else if n > 0 {
		s.log.Debug(ctx, "purged confirmed tombstones", "count", n)
	}

	result.Success = true
	s.log.Info(ctx, "sync completed",
		"pushed", result.Pushed, "pulled", result.Pulled, "conflicts", result.Conflicts)
	return result
}

// ensureFreshTokens returns the stored token set, refreshing the access token
// first when it is expired and a refresh token is available.
func (s *Syncer) ensureFreshTokens(ctx context.Context) (auth.Tokens, error) {
	tk, err := s.tokens.Tokens(ctx)
	if err != nil {
		return auth.Tokens{}, err
	}
	if !tk.HasCredentials() {
		return tk, nil
	}
	if !auth.AccessTokenExpired(tk.AccessToken, s.now()) {
		return tk, nil
	}
	if tk.RefreshToken == "" {
		return tk, fmt.Errorf("access token expired and no refresh token is stored")
	}

	fresh, err := s.client.Refresh(ctx, tk.RefreshToken)
	if err != nil {
		return auth.Tokens{}, fmt.Errorf("failed to refresh access token: %w", err)
	}
	if fresh.UserID == "" {
		fresh.UserID = tk.UserID
	}
	if err := s.tokens.Save(ctx, fresh); err != nil {
		return auth.Tokens{}, err
	}
	return fresh, nil
}

// Status reports the engine's current sync state.
func (s *Syncer) Status(ctx context.Context) (*SyncStatus, error) {
	tk, err := s.tokens.Tokens(ctx)
	if err != nil {
		return nil, err
	}
	last, err := s.st.Checkpoints.LastSyncAt(ctx)
	if err != nil {
		return nil, err
	}
	pending, err := s.tracker.PendingCount(ctx)
	if err != nil {
		return nil, err
	}
	return &SyncStatus{
		Configured:     s.serverURL != "",
		Authenticated:  tk.HasCredentials(),
		LastSyncAt:     last,
		PendingChanges: pending,
		ServerURL:      s.serverURL,
	}, nil
}

// Purge hard-deletes tombstones whose deletion was confirmed pushed longer
// ago than the retention window. This is the only path that removes rows.
func (s *Syncer) Purge(ctx context.Context) (int, error) {
	cutoff := timex.Unix(s.now().UTC().Add(-s.retention))
	total := 0
	for _, tableName := range protocol.SyncedTables {
		dbTable, _ := protocol.DBTable(tableName)
		query := fmt.Sprintf(
			`DELETE FROM %s WHERE deleted = 1 AND synced_at IS NOT NULL AND deleted_at < ?`, dbTable)
		res, err := s.st.DB.ExecContext(ctx, query, cutoff)
		if err != nil {
			return total, fmt.Errorf("failed to purge %s: %w", dbTable, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			total += int(n)
		}
	}
	return total, nil
}
