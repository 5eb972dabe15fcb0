package collections

import (
	"context"
	"time"

	"github.com/dmitrijs2005/lexisync/internal/models"
)

// Repository describes persistence operations for collections.
// Implementations are backed by the local SQLite replica.
type Repository interface {
	// Create inserts a collection with its envelope exactly as given.
	Create(ctx context.Context, c *models.Collection) error

	// Update rewrites all mutable columns, envelope included, as given.
	Update(ctx context.Context, c *models.Collection) error

	// GetByID returns the row even when tombstoned; callers distinguish a
	// deleted collection from a missing one via the Deleted flag.
	GetByID(ctx context.Context, id string) (*models.Collection, error)

	// List returns live collections only.
	List(ctx context.Context) ([]models.Collection, error)

	// ListDirty returns every row, tombstones included, whose last local
	// mutation has not been confirmed pushed.
	ListDirty(ctx context.Context) ([]models.Collection, error)

	// SoftDelete tombstones a live collection as a local edit: the version is
	// bumped and synced_at cleared so the deletion is pushed on the next sync.
	SoftDelete(ctx context.Context, id string, at time.Time) error

	// UpdateWordCount recomputes word_count from the live vocabularies that
	// reference the collection.
	UpdateWordCount(ctx context.Context, id string) error
}
