// Package services wires the repositories into the sync engine proper: the
// change tracker, the remote change applier, the local CRUD catalog and the
// session orchestrator.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/lexisync/internal/dbx"
	"github.com/dmitrijs2005/lexisync/internal/logging"
	"github.com/dmitrijs2005/lexisync/internal/protocol"
	"github.com/dmitrijs2005/lexisync/internal/repositories/metadata"
	"github.com/dmitrijs2005/lexisync/internal/store"
	"github.com/dmitrijs2005/lexisync/internal/timex"
)

// Tracker finds rows whose last local mutation has not been confirmed pushed
// and projects them into wire change records. Scanning is read-only and
// idempotent: until a push is confirmed, every scan returns the same set.
type Tracker struct {
	st  *store.Store
	log logging.Logger
}

// NewTracker returns a Tracker over the given store.
func NewTracker(st *store.Store, log logging.Logger) *Tracker {
	return &Tracker{st: st, log: log}
}

// PendingChanges collects every dirty row across all synced tables. userID
// stamps ownership on collection upserts: a collection the user owns is
// pushed with ownerId = userID, one shared to them with ownerId = sharer.
func (t *Tracker) PendingChanges(ctx context.Context, userID string) ([]protocol.ChangeRecord, error) {
	var records []protocol.ChangeRecord

	// Residual tombstones from the deprecated hard-delete queue go first so
	// old deletions propagate before anything referencing them is pushed.
	legacy, err := t.st.Metadata.ListLegacyDeletes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to drain legacy delete queue: %w", err)
	}
	for _, d := range legacy {
		records = append(records, protocol.DeleteChange(d.TableName, d.RowID, d.SyncVersion))
	}

	colls, err := t.st.Collections.ListDirty(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to scan collections: %w", err)
	}
	for i := range colls {
		c := &colls[i]
		if c.Deleted {
			records = append(records, protocol.DeleteChange(protocol.TableCollections, c.ID, c.SyncVersion))
			continue
		}
		ownerID := userID
		if c.SharedBy != nil {
			ownerID = *c.SharedBy
		}
		rec, err := protocol.CollectionChange(c, ownerID)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	vocabs, err := t.st.Vocabularies.ListDirty(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to scan vocabularies: %w", err)
	}
	for i := range vocabs {
		v := &vocabs[i]
		if v.Deleted {
			records = append(records, protocol.DeleteChange(protocol.TableVocabularies, v.ID, v.SyncVersion))
			continue
		}
		rec, err := protocol.VocabularyChange(v)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	topicRecords, err := t.termChanges(ctx, protocol.TableTopics)
	if err != nil {
		return nil, err
	}
	records = append(records, topicRecords...)

	tagRecords, err := t.termChanges(ctx, protocol.TableTags)
	if err != nil {
		return nil, err
	}
	records = append(records, tagRecords...)

	shareList, err := t.st.Shares.ListDirty(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to scan shares: %w", err)
	}
	for i := range shareList {
		s := &shareList[i]
		if s.Deleted {
			records = append(records, protocol.DeleteChange(protocol.TableCollectionShares, s.ID, s.SyncVersion))
			continue
		}
		rec, err := protocol.ShareChange(s)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	settingsList, err := t.st.Settings.ListDirty(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to scan learning settings: %w", err)
	}
	for i := range settingsList {
		s := &settingsList[i]
		if s.Deleted {
			records = append(records, protocol.DeleteChange(protocol.TableLearningSettings, s.ID, s.SyncVersion))
			continue
		}
		rec, err := protocol.SettingsChange(s)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	progressList, err := t.st.Progress.ListDirty(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to scan topic progress: %w", err)
	}
	for i := range progressList {
		p := &progressList[i]
		if p.Deleted {
			records = append(records, protocol.DeleteChange(protocol.TableTopicProgress, p.ID, p.SyncVersion))
			continue
		}
		rec, err := protocol.ProgressChange(p)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, nil
}

func (t *Tracker) termChanges(ctx context.Context, tableName string) ([]protocol.ChangeRecord, error) {
	repo := t.st.Topics
	if tableName == protocol.TableTags {
		repo = t.st.Tags
	}
	terms, err := repo.ListDirty(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", tableName, err)
	}
	var records []protocol.ChangeRecord
	for i := range terms {
		term := &terms[i]
		if term.Deleted {
			records = append(records, protocol.DeleteChange(tableName, term.ID, term.SyncVersion))
			continue
		}
		rec, err := protocol.TermChange(tableName, term)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// PendingCount counts dirty rows across all synced tables without building
// change records.
func (t *Tracker) PendingCount(ctx context.Context) (int, error) {
	count := 0
	for _, tableName := range protocol.SyncedTables {
		dbTable, _ := protocol.DBTable(tableName)
		query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE synced_at IS NULL`, dbTable)
		var n int
		if err := t.st.DB.QueryRowContext(ctx, query).Scan(&n); err != nil {
			return 0, fmt.Errorf("failed to count pending rows in %s: %w", dbTable, err)
		}
		count += n
	}
	return count, nil
}

// MarkSynced confirms a pushed change set in one transaction: live rows get
// synced_at stamped and their version bumped past the server-confirmed one;
// tombstones only get synced_at (their version was final at delete time).
// Drained legacy-queue entries are cleared.
func (t *Tracker) MarkSynced(ctx context.Context, records []protocol.ChangeRecord, at time.Time) error {
	ts := timex.Unix(at)
	return dbx.WithTx(ctx, t.st.DB, nil, func(ctx context.Context, tx dbx.DBTX) error {
		meta := metadata.NewSQLiteRepository(tx)
		for _, rec := range records {
			dbTable, ok := protocol.DBTable(rec.TableName)
			if !ok {
				t.log.Warn(ctx, "skipping unknown table in pushed set", "table", rec.TableName)
				continue
			}
			if rec.Deleted {
				query := fmt.Sprintf(`UPDATE %s SET synced_at = ? WHERE id = ?`, dbTable)
				if _, err := tx.ExecContext(ctx, query, ts, rec.RowID); err != nil {
					return fmt.Errorf("failed to mark %s tombstone synced: %w", dbTable, err)
				}
				if err := meta.ClearLegacyDelete(ctx, rec.TableName, rec.RowID); err != nil {
					return err
				}
				continue
			}
			query := fmt.Sprintf(
				`UPDATE %s SET synced_at = ?, sync_version = sync_version + 1 WHERE id = ?`, dbTable)
			if _, err := tx.ExecContext(ctx, query, ts, rec.RowID); err != nil {
				return fmt.Errorf("failed to mark %s row synced: %w", dbTable, err)
			}
		}
		return nil
	})
}
