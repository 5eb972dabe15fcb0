package vocabularies

import (
	"context"
	"time"

	"github.com/dmitrijs2005/lexisync/internal/models"
)

// Repository describes persistence operations for vocabulary items.
type Repository interface {
	// Create inserts a vocabulary with its envelope exactly as given.
	Create(ctx context.Context, v *models.Vocabulary) error

	// Update rewrites all mutable columns, envelope included, as given.
	Update(ctx context.Context, v *models.Vocabulary) error

	// GetByID returns the row even when tombstoned.
	GetByID(ctx context.Context, id string) (*models.Vocabulary, error)

	// ListByCollection returns the live items of one collection.
	ListByCollection(ctx context.Context, collectionID string) ([]models.Vocabulary, error)

	// ListDirty returns every row, tombstones included, not yet confirmed pushed.
	ListDirty(ctx context.Context) ([]models.Vocabulary, error)

	// SoftDelete tombstones a live item as a local edit (version bumped,
	// synced_at cleared).
	SoftDelete(ctx context.Context, id string, at time.Time) error

	// TombstoneByCollection tombstones every live item of a collection as an
	// applied remote change: rows keep their version and are stamped synced so
	// the cascade is not pushed back. Returns the ids it tombstoned.
	TombstoneByCollection(ctx context.Context, collectionID string, at time.Time) ([]string, error)

	// CountLiveByCollection counts live items referencing the collection.
	CountLiveByCollection(ctx context.Context, collectionID string) (int64, error)
}
