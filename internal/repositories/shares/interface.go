// Package shares persists sharing grants linking a collection to a grantee.
package shares

import (
	"context"
	"time"

	"github.com/dmitrijs2005/lexisync/internal/models"
)

// Repository describes persistence operations for sharing grants.
type Repository interface {
	Create(ctx context.Context, s *models.CollectionShare) error
	Update(ctx context.Context, s *models.CollectionShare) error

	// GetByID returns the row even when tombstoned.
	GetByID(ctx context.Context, id string) (*models.CollectionShare, error)

	// FindLive returns the live grant for (collectionID, granteeID), or
	// common.ErrorNotFound. At most one such row exists.
	FindLive(ctx context.Context, collectionID, granteeID string) (*models.CollectionShare, error)

	// ListByCollection returns live grants for one collection.
	ListByCollection(ctx context.Context, collectionID string) ([]models.CollectionShare, error)

	// ListDirty returns rows not yet confirmed pushed, tombstones included.
	ListDirty(ctx context.Context) ([]models.CollectionShare, error)

	// SoftDelete tombstones a live grant as a local edit.
	SoftDelete(ctx context.Context, id string, at time.Time) error
}
