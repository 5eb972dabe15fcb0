package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dmitrijs2005/lexisync/internal/auth"
	"github.com/dmitrijs2005/lexisync/internal/common"
	"github.com/dmitrijs2005/lexisync/internal/dbx"
	"github.com/dmitrijs2005/lexisync/internal/logging"
	"github.com/dmitrijs2005/lexisync/internal/models"
	"github.com/dmitrijs2005/lexisync/internal/protocol"
	"github.com/dmitrijs2005/lexisync/internal/repositories/collections"
	"github.com/dmitrijs2005/lexisync/internal/repositories/progress"
	"github.com/dmitrijs2005/lexisync/internal/repositories/settings"
	"github.com/dmitrijs2005/lexisync/internal/repositories/shares"
	"github.com/dmitrijs2005/lexisync/internal/repositories/taxonomy"
	"github.com/dmitrijs2005/lexisync/internal/repositories/vocabularies"
	"github.com/dmitrijs2005/lexisync/internal/store"
	"github.com/dmitrijs2005/lexisync/internal/timex"
)

// Applier lands a pulled batch on the local replica. All writes for one call
// happen inside a single transaction spanning every affected table; either
// the whole batch applies or none of it does, so the caller can safely
// re-pull from the same checkpoint after a failure.
type Applier struct {
	st     *store.Store
	tokens auth.Provider
	log    logging.Logger
	now    func() time.Time
}

// NewApplier returns an Applier over the given store and token provider.
func NewApplier(st *store.Store, tokens auth.Provider, log logging.Logger) *Applier {
	return &Applier{st: st, tokens: tokens, log: log, now: time.Now}
}

// txRepos bundles the repositories rebound to one transaction.
type txRepos struct {
	collections  collections.Repository
	vocabularies vocabularies.Repository
	topics       taxonomy.Repository
	tags         taxonomy.Repository
	settings     settings.Repository
	shares       shares.Repository
	progress     progress.Repository
	tx           dbx.DBTX
}

// ApplyRemoteChanges applies one pulled batch. Upserts go parent-first,
// tombstones child-first, and word counts of every touched collection are
// recomputed at the end. The current user id is resolved before the
// transaction opens; the transaction itself performs no I/O beyond store
// reads and writes.
func (a *Applier) ApplyRemoteChanges(ctx context.Context, records []protocol.PullRecord) error {
	if len(records) == 0 {
		return nil
	}

	tk, err := a.tokens.Tokens(ctx)
	if err != nil {
		return fmt.Errorf("failed to resolve current user: %w", err)
	}
	currentUser := tk.UserID
	now := a.now().UTC()

	var upserts, tombstones []protocol.PullRecord
	for _, rec := range records {
		if rec.Deleted {
			tombstones = append(tombstones, rec)
		} else {
			upserts = append(upserts, rec)
		}
	}
	sort.SliceStable(upserts, func(i, j int) bool {
		return protocol.UpsertRank(upserts[i].TableName) < protocol.UpsertRank(upserts[j].TableName)
	})
	sort.SliceStable(tombstones, func(i, j int) bool {
		return protocol.DeleteRank(tombstones[i].TableName) < protocol.DeleteRank(tombstones[j].TableName)
	})

	return dbx.WithTx(ctx, a.st.DB, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repos := &txRepos{
			collections:  collections.NewSQLiteRepository(tx),
			vocabularies: vocabularies.NewSQLiteRepository(tx),
			topics:       taxonomy.NewSQLiteRepository(tx, taxonomy.TableTopics),
			tags:         taxonomy.NewSQLiteRepository(tx, taxonomy.TableTags),
			settings:     settings.NewSQLiteRepository(tx),
			shares:       shares.NewSQLiteRepository(tx),
			progress:     progress.NewSQLiteRepository(tx),
			tx:           tx,
		}

		// Collection ids whose word_count needs recomputing after the batch.
		affected := make(map[string]struct{})

		for _, rec := range upserts {
			if err := a.applyUpsert(ctx, repos, rec, currentUser, now, affected); err != nil {
				return err
			}
		}

		for _, rec := range tombstones {
			if err := a.applyTombstone(ctx, repos, rec, now, affected); err != nil {
				return err
			}
			if rec.TableName == protocol.TableCollections {
				delete(affected, rec.RowID)
			}
		}

		for id := range affected {
			c, err := repos.collections.GetByID(ctx, id)
			if errors.Is(err, common.ErrorNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if c.Deleted {
				continue
			}
			if err := repos.collections.UpdateWordCount(ctx, id); err != nil {
				return err
			}
		}
		return nil
	})
}

func (a *Applier) applyUpsert(ctx context.Context, repos *txRepos, rec protocol.PullRecord, currentUser string, now time.Time, affected map[string]struct{}) error {
	switch rec.TableName {
	case protocol.TableCollections:
		return a.upsertCollection(ctx, repos, rec, currentUser, now)
	case protocol.TableVocabularies:
		return a.upsertVocabulary(ctx, repos, rec, now, affected)
	case protocol.TableTopics:
		return a.upsertTerm(ctx, repos.topics, rec, now)
	case protocol.TableTags:
		return a.upsertTerm(ctx, repos.tags, rec, now)
	case protocol.TableLearningSettings:
		return a.upsertSettings(ctx, repos, rec, now)
	case protocol.TableCollectionShares:
		return a.upsertShare(ctx, repos, rec, now)
	case protocol.TableTopicProgress:
		return a.upsertProgress(ctx, repos, rec, now)
	default:
		a.log.Warn(ctx, "skipping pulled record for unknown table", "table", rec.TableName, "row", rec.RowID)
		return nil
	}
}

// upsertCollection inserts or updates a pulled collection and derives the
// sharing marker: an ownerId naming someone else means the collection is
// shared to this user; our own id (or none) means we own it.
func (a *Applier) upsertCollection(ctx context.Context, repos *txRepos, rec protocol.PullRecord, currentUser string, now time.Time) error {
	p, err := protocol.DecodeCollection(rec.Data)
	if err != nil {
		return err
	}

	var sharedBy *string
	if p.OwnerID != "" && p.OwnerID != currentUser {
		sharedBy = &p.OwnerID
	}

	existing, err := repos.collections.GetByID(ctx, rec.RowID)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return err
	}

	c := &models.Collection{
		ID:          rec.RowID,
		Name:        p.Name,
		Description: p.Description,
		Language:    p.Language,
		IsPublic:    p.IsPublic,
		WordCount:   p.WordCount,
		SharedBy:    sharedBy,
	}
	c.SyncVersion = rec.Version
	c.SyncedAt = &now
	c.CreatedAt = timex.FromUnix(p.CreatedAt)
	c.UpdatedAt = timex.FromUnix(p.UpdatedAt)

	if existing == nil {
		return repos.collections.Create(ctx, c)
	}
	c.CreatedAt = existing.CreatedAt
	return repos.collections.Update(ctx, c)
}

func (a *Applier) upsertVocabulary(ctx context.Context, repos *txRepos, rec protocol.PullRecord, now time.Time, affected map[string]struct{}) error {
	p, err := protocol.DecodeVocabulary(rec.Data)
	if err != nil {
		return err
	}

	existing, err := repos.vocabularies.GetByID(ctx, rec.RowID)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return err
	}

	// Both sides of a move need their counts refreshed.
	affected[p.CollectionID] = struct{}{}
	if existing != nil && existing.CollectionID != p.CollectionID {
		affected[existing.CollectionID] = struct{}{}
	}

	v := &models.Vocabulary{
		ID:               rec.RowID,
		Word:             p.Word,
		WordType:         p.WordType,
		Level:            p.Level,
		IPA:              p.IPA,
		AudioURL:         p.AudioURL,
		Concept:          p.Concept,
		Language:         p.Language,
		CollectionID:     p.CollectionID,
		Definitions:      p.Definitions,
		ExampleSentences: p.ExampleSentences,
		Topics:           p.Topics,
		Tags:             p.Tags,
		RelatedWords:     p.RelatedWords,
	}
	v.SyncVersion = rec.Version
	v.SyncedAt = &now
	v.CreatedAt = timex.FromUnix(p.CreatedAt)
	v.UpdatedAt = timex.FromUnix(p.UpdatedAt)

	if existing == nil {
		return repos.vocabularies.Create(ctx, v)
	}
	v.CreatedAt = existing.CreatedAt
	return repos.vocabularies.Update(ctx, v)
}

func (a *Applier) upsertTerm(ctx context.Context, repo taxonomy.Repository, rec protocol.PullRecord, now time.Time) error {
	p, err := protocol.DecodeTerm(rec.TableName, rec.Data)
	if err != nil {
		return err
	}

	existing, err := repo.GetByID(ctx, rec.RowID)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return err
	}

	term := &models.Term{ID: rec.RowID, Name: p.Name}
	term.SyncVersion = rec.Version
	term.SyncedAt = &now
	term.CreatedAt = timex.FromUnix(p.CreatedAt)
	term.UpdatedAt = timex.FromUnix(p.UpdatedAt)

	if existing == nil {
		return repo.Create(ctx, term)
	}
	term.CreatedAt = existing.CreatedAt
	return repo.Update(ctx, term)
}

func (a *Applier) upsertSettings(ctx context.Context, repos *txRepos, rec protocol.PullRecord, now time.Time) error {
	p, err := protocol.DecodeSettings(rec.Data)
	if err != nil {
		return err
	}

	s := &models.LearningSettings{
		ID:                  rec.RowID,
		Algorithm:           p.Algorithm,
		NewWordsPerDay:      p.NewWordsPerDay,
		DailyReviewLimit:    p.DailyReviewLimit,
		AutoAdvanceSeconds:  p.AutoAdvanceSeconds,
		ShowFailedInSession: p.ShowFailedInSession,
		ReminderEnabled:     p.ReminderEnabled,
		ReminderTime:        p.ReminderTime,
	}
	s.SyncVersion = rec.Version
	s.SyncedAt = &now
	s.CreatedAt = timex.FromUnix(p.CreatedAt)
	s.UpdatedAt = timex.FromUnix(p.UpdatedAt)
	return repos.settings.Save(ctx, s)
}

func (a *Applier) upsertShare(ctx context.Context, repos *txRepos, rec protocol.PullRecord, now time.Time) error {
	p, err := protocol.DecodeShare(rec.Data)
	if err != nil {
		return err
	}

	existing, err := repos.shares.GetByID(ctx, rec.RowID)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return err
	}

	// Only one live grant may exist per (collection, grantee). A different
	// row may still hold that slot when the batch carries a revoke plus a
	// re-grant under a new id, since its tombstone applies after the
	// upserts. The pulled grant supersedes it either way.
	live, err := repos.shares.FindLive(ctx, p.CollectionID, p.GranteeID)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return err
	}
	if live != nil && live.ID != rec.RowID {
		live.Deleted = true
		live.DeletedAt = &now
		live.SyncedAt = &now
		live.UpdatedAt = now
		if err := repos.shares.Update(ctx, live); err != nil {
			return err
		}
	}

	s := &models.CollectionShare{
		ID:           rec.RowID,
		CollectionID: p.CollectionID,
		GranteeID:    p.GranteeID,
		Permission:   p.Permission,
	}
	s.SyncVersion = rec.Version
	s.SyncedAt = &now
	s.CreatedAt = timex.FromUnix(p.CreatedAt)
	s.UpdatedAt = timex.FromUnix(p.UpdatedAt)

	if existing == nil {
		return repos.shares.Create(ctx, s)
	}
	s.CreatedAt = existing.CreatedAt
	return repos.shares.Update(ctx, s)
}

func (a *Applier) upsertProgress(ctx context.Context, repos *txRepos, rec protocol.PullRecord, now time.Time) error {
	p, err := protocol.DecodeProgress(rec.Data)
	if err != nil {
		return err
	}

	tp := &models.TopicProgress{
		ID:              rec.RowID,
		Topic:           p.Topic,
		Language:        p.Language,
		TotalReviews:    p.TotalReviews,
		CorrectCount:    p.CorrectCount,
		IncorrectCount:  p.IncorrectCount,
		CurrentStreak:   p.CurrentStreak,
		LastPracticedAt: timex.FromUnixPtr(p.LastPracticedAt),
	}
	tp.SyncVersion = rec.Version
	tp.SyncedAt = &now
	tp.CreatedAt = timex.FromUnix(p.CreatedAt)
	tp.UpdatedAt = timex.FromUnix(p.UpdatedAt)

	// Another device may have started its own aggregate for this
	// (topic, language) under a different id. The pulled row takes over
	// the scope; counts the local row never managed to push are folded in
	// and go out as a regular dirty edit on the next session.
	local, err := repos.progress.GetByScope(ctx, p.Topic, p.Language)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return err
	}
	if local != nil && local.ID != rec.RowID {
		if local.SyncedAt == nil {
			tp.TotalReviews += local.TotalReviews
			tp.CorrectCount += local.CorrectCount
			tp.IncorrectCount += local.IncorrectCount
			if local.LastPracticedAt != nil &&
				(tp.LastPracticedAt == nil || local.LastPracticedAt.After(*tp.LastPracticedAt)) {
				tp.LastPracticedAt = local.LastPracticedAt
				tp.CurrentStreak = local.CurrentStreak
			}
			tp.SyncVersion = rec.Version + 1
			tp.SyncedAt = nil
		}
		local.Deleted = true
		local.DeletedAt = &now
		local.SyncedAt = &now
		local.UpdatedAt = now
		if err := repos.progress.Save(ctx, local); err != nil {
			return err
		}
	}
	return repos.progress.Save(ctx, tp)
}

// applyTombstone lands a remote deletion as a local tombstone stamped synced,
// so it is not pushed back. Collection tombstones cascade over their live
// members first; vocabulary tombstones mark their collection for recount.
func (a *Applier) applyTombstone(ctx context.Context, repos *txRepos, rec protocol.PullRecord, now time.Time, affected map[string]struct{}) error {
	dbTable, ok := protocol.DBTable(rec.TableName)
	if !ok {
		a.log.Warn(ctx, "skipping tombstone for unknown table", "table", rec.TableName, "row", rec.RowID)
		return nil
	}

	switch rec.TableName {
	case protocol.TableCollections:
		if _, err := repos.vocabularies.TombstoneByCollection(ctx, rec.RowID, now); err != nil {
			return err
		}
	case protocol.TableVocabularies:
		v, err := repos.vocabularies.GetByID(ctx, rec.RowID)
		if err != nil && !errors.Is(err, common.ErrorNotFound) {
			return err
		}
		if v != nil {
			affected[v.CollectionID] = struct{}{}
		}
	}

	ts := timex.Unix(now)
	query := fmt.Sprintf(`UPDATE %s SET deleted = 1, deleted_at = ?, updated_at = ?,
		sync_version = ?, synced_at = ? WHERE id = ?`, dbTable)
	if _, err := repos.tx.ExecContext(ctx, query, ts, ts, rec.Version, ts, rec.RowID); err != nil {
		return fmt.Errorf("failed to apply %s tombstone: %w", dbTable, err)
	}
	return nil
}
