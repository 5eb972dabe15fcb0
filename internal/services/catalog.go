package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/lexisync/internal/common"
	"github.com/dmitrijs2005/lexisync/internal/dbx"
	"github.com/dmitrijs2005/lexisync/internal/logging"
	"github.com/dmitrijs2005/lexisync/internal/models"
	"github.com/dmitrijs2005/lexisync/internal/repositories/collections"
	"github.com/dmitrijs2005/lexisync/internal/repositories/progress"
	"github.com/dmitrijs2005/lexisync/internal/repositories/taxonomy"
	"github.com/dmitrijs2005/lexisync/internal/repositories/vocabularies"
	"github.com/dmitrijs2005/lexisync/internal/store"
)

// Catalog is the local mutation surface. Every write it performs is a local
// edit: new rows start at version 1 and dirty, edits bump the version and
// clear synced_at, so the tracker picks them up on the next push.
type Catalog struct {
	st  *store.Store
	log logging.Logger
	now func() time.Time
}

// NewCatalog returns a Catalog over the given store.
func NewCatalog(st *store.Store, log logging.Logger) *Catalog {
	return &Catalog{st: st, log: log, now: time.Now}
}

func (c *Catalog) stampNew(e *models.SyncEnvelope, now time.Time) {
	e.SyncVersion = 1
	e.SyncedAt = nil
	e.CreatedAt = now
	e.UpdatedAt = now
}

func (c *Catalog) stampEdit(e *models.SyncEnvelope, now time.Time) {
	e.SyncVersion++
	e.SyncedAt = nil
	e.UpdatedAt = now
}

// CreateCollection inserts a new owned collection and returns it.
func (c *Catalog) CreateCollection(ctx context.Context, name, description, language string, isPublic bool) (*models.Collection, error) {
	now := c.now().UTC()
	coll := &models.Collection{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		Language:    language,
		IsPublic:    isPublic,
	}
	c.stampNew(&coll.SyncEnvelope, now)
	if err := c.st.Collections.Create(ctx, coll); err != nil {
		return nil, err
	}
	return coll, nil
}

// UpdateCollection rewrites a collection's user-editable fields.
func (c *Catalog) UpdateCollection(ctx context.Context, id, name, description, language string, isPublic bool) (*models.Collection, error) {
	coll, err := c.st.Collections.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if coll.Deleted {
		return nil, fmt.Errorf("collection %s: %w", id, common.ErrorNotFound)
	}
	coll.Name = name
	coll.Description = description
	coll.Language = language
	coll.IsPublic = isPublic
	c.stampEdit(&coll.SyncEnvelope, c.now().UTC())
	if err := c.st.Collections.Update(ctx, coll); err != nil {
		return nil, err
	}
	return coll, nil
}

// DeleteCollection tombstones a collection and all of its live items in one
// transaction. The cascade is a local edit: every tombstone is dirty and will
// be pushed, unlike the pull-side cascade which lands already synced.
func (c *Catalog) DeleteCollection(ctx context.Context, id string) error {
	now := c.now().UTC()
	return dbx.WithTx(ctx, c.st.DB, nil, func(ctx context.Context, tx dbx.DBTX) error {
		collRepo := collections.NewSQLiteRepository(tx)
		vocabRepo := vocabularies.NewSQLiteRepository(tx)

		items, err := vocabRepo.ListByCollection(ctx, id)
		if err != nil {
			return err
		}
		for i := range items {
			if err := vocabRepo.SoftDelete(ctx, items[i].ID, now); err != nil {
				return err
			}
		}
		return collRepo.SoftDelete(ctx, id, now)
	})
}

// CreateVocabulary inserts a new item, refreshes the collection's word count
// and registers any new topics or tags as taxonomy rows, all in one
// transaction.
func (c *Catalog) CreateVocabulary(ctx context.Context, v *models.Vocabulary) (*models.Vocabulary, error) {
	if v.CollectionID == "" {
		return nil, errors.New("vocabulary requires a collection")
	}
	now := c.now().UTC()
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	c.stampNew(&v.SyncEnvelope, now)

	err := dbx.WithTx(ctx, c.st.DB, nil, func(ctx context.Context, tx dbx.DBTX) error {
		collRepo := collections.NewSQLiteRepository(tx)
		vocabRepo := vocabularies.NewSQLiteRepository(tx)

		coll, err := collRepo.GetByID(ctx, v.CollectionID)
		if err != nil {
			return err
		}
		if coll.Deleted {
			return fmt.Errorf("collection %s: %w", v.CollectionID, common.ErrorNotFound)
		}
		if err := vocabRepo.Create(ctx, v); err != nil {
			return err
		}
		if err := collRepo.UpdateWordCount(ctx, v.CollectionID); err != nil {
			return err
		}
		if err := c.ensureTerms(ctx, taxonomy.NewSQLiteRepository(tx, taxonomy.TableTopics), v.Topics, now); err != nil {
			return err
		}
		return c.ensureTerms(ctx, taxonomy.NewSQLiteRepository(tx, taxonomy.TableTags), v.Tags, now)
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// UpdateVocabulary rewrites an item. When the edit moves it to another
// collection both word counts are refreshed.
func (c *Catalog) UpdateVocabulary(ctx context.Context, v *models.Vocabulary) (*models.Vocabulary, error) {
	now := c.now().UTC()
	err := dbx.WithTx(ctx, c.st.DB, nil, func(ctx context.Context, tx dbx.DBTX) error {
		collRepo := collections.NewSQLiteRepository(tx)
		vocabRepo := vocabularies.NewSQLiteRepository(tx)

		existing, err := vocabRepo.GetByID(ctx, v.ID)
		if err != nil {
			return err
		}
		if existing.Deleted {
			return fmt.Errorf("vocabulary %s: %w", v.ID, common.ErrorNotFound)
		}

		v.SyncEnvelope = existing.SyncEnvelope
		c.stampEdit(&v.SyncEnvelope, now)
		if err := vocabRepo.Update(ctx, v); err != nil {
			return err
		}

		if err := collRepo.UpdateWordCount(ctx, v.CollectionID); err != nil {
			return err
		}
		if existing.CollectionID != v.CollectionID {
			if err := collRepo.UpdateWordCount(ctx, existing.CollectionID); err != nil {
				return err
			}
		}
		if err := c.ensureTerms(ctx, taxonomy.NewSQLiteRepository(tx, taxonomy.TableTopics), v.Topics, now); err != nil {
			return err
		}
		return c.ensureTerms(ctx, taxonomy.NewSQLiteRepository(tx, taxonomy.TableTags), v.Tags, now)
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// DeleteVocabulary tombstones one item and refreshes its collection's count.
func (c *Catalog) DeleteVocabulary(ctx context.Context, id string) error {
	now := c.now().UTC()
	return dbx.WithTx(ctx, c.st.DB, nil, func(ctx context.Context, tx dbx.DBTX) error {
		collRepo := collections.NewSQLiteRepository(tx)
		vocabRepo := vocabularies.NewSQLiteRepository(tx)

		v, err := vocabRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if v.Deleted {
			return fmt.Errorf("vocabulary %s: %w", id, common.ErrorNotFound)
		}
		if err := vocabRepo.SoftDelete(ctx, id, now); err != nil {
			return err
		}
		return collRepo.UpdateWordCount(ctx, v.CollectionID)
	})
}

// ensureTerms registers any name not yet present as a live taxonomy row.
func (c *Catalog) ensureTerms(ctx context.Context, repo taxonomy.Repository, names []string, now time.Time) error {
	for _, name := range names {
		if name == "" {
			continue
		}
		_, err := repo.GetByName(ctx, name)
		if err == nil {
			continue
		}
		if !errors.Is(err, common.ErrorNotFound) {
			return err
		}
		term := &models.Term{ID: uuid.NewString(), Name: name}
		c.stampNew(&term.SyncEnvelope, now)
		if err := repo.Create(ctx, term); err != nil {
			return err
		}
	}
	return nil
}

// ShareCollection grants granteeID access to a collection. A live duplicate
// grant is rejected; a tombstoned one does not block re-granting.
func (c *Catalog) ShareCollection(ctx context.Context, collectionID, granteeID, permission string) (*models.CollectionShare, error) {
	if permission == "" {
		permission = models.PermissionViewer
	}

	coll, err := c.st.Collections.GetByID(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	if coll.Deleted {
		return nil, fmt.Errorf("collection %s: %w", collectionID, common.ErrorNotFound)
	}

	if _, err := c.st.Shares.FindLive(ctx, collectionID, granteeID); err == nil {
		return nil, fmt.Errorf("collection %s already shared with %s: %w", collectionID, granteeID, common.ErrorDuplicateGrant)
	} else if !errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}

	s := &models.CollectionShare{
		ID:           uuid.NewString(),
		CollectionID: collectionID,
		GranteeID:    granteeID,
		Permission:   permission,
	}
	c.stampNew(&s.SyncEnvelope, c.now().UTC())
	if err := c.st.Shares.Create(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// RevokeShare tombstones the live grant for (collectionID, granteeID).
func (c *Catalog) RevokeShare(ctx context.Context, collectionID, granteeID string) error {
	s, err := c.st.Shares.FindLive(ctx, collectionID, granteeID)
	if err != nil {
		return err
	}
	return c.st.Shares.SoftDelete(ctx, s.ID, c.now().UTC())
}

// SaveSettings writes the preference singleton, creating it on first use.
func (c *Catalog) SaveSettings(ctx context.Context, s *models.LearningSettings) (*models.LearningSettings, error) {
	now := c.now().UTC()
	existing, err := c.st.Settings.Get(ctx)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}
	if existing == nil {
		if s.ID == "" {
			s.ID = uuid.NewString()
		}
		c.stampNew(&s.SyncEnvelope, now)
	} else {
		s.ID = existing.ID
		s.SyncEnvelope = existing.SyncEnvelope
		c.stampEdit(&s.SyncEnvelope, now)
	}
	if err := c.st.Settings.Save(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// RecordPractice folds one practice round into the (topic, language) rollup,
// creating the row on first practice.
func (c *Catalog) RecordPractice(ctx context.Context, topic, language string, correct, incorrect int64) (*models.TopicProgress, error) {
	now := c.now().UTC()

	var p *models.TopicProgress
	err := dbx.WithTx(ctx, c.st.DB, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := progress.NewSQLiteRepository(tx)

		existing, err := repo.GetByScope(ctx, topic, language)
		if err != nil && !errors.Is(err, common.ErrorNotFound) {
			return err
		}
		if existing == nil {
			p = &models.TopicProgress{
				ID:       uuid.NewString(),
				Topic:    topic,
				Language: language,
			}
			c.stampNew(&p.SyncEnvelope, now)
		} else {
			p = existing
			c.stampEdit(&p.SyncEnvelope, now)
		}

		p.TotalReviews += correct + incorrect
		p.CorrectCount += correct
		p.IncorrectCount += incorrect
		if incorrect > 0 {
			p.CurrentStreak = 0
		} else {
			p.CurrentStreak += correct
		}
		p.LastPracticedAt = &now
		return repo.Save(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}
