// Package progress persists per-topic practice rollups.
package progress

import (
	"context"

	"github.com/dmitrijs2005/lexisync/internal/models"
)

// Repository describes persistence operations for topic progress aggregates.
type Repository interface {
	// GetByID returns the row even when tombstoned.
	GetByID(ctx context.Context, id string) (*models.TopicProgress, error)

	// GetByScope returns the live aggregate for (topic, language).
	GetByScope(ctx context.Context, topic, language string) (*models.TopicProgress, error)

	// Save inserts or rewrites the row with its envelope exactly as given.
	Save(ctx context.Context, p *models.TopicProgress) error

	// List returns live aggregates only.
	List(ctx context.Context) ([]models.TopicProgress, error)

	// ListDirty returns rows not yet confirmed pushed, tombstones included.
	ListDirty(ctx context.Context) ([]models.TopicProgress, error)
}
