// Package settings persists the user-scoped learning-settings singleton.
package settings

import (
	"context"

	"github.com/dmitrijs2005/lexisync/internal/models"
)

// Repository describes persistence operations for the settings singleton.
type Repository interface {
	// Get returns the singleton row if present, tombstoned or not.
	// Returns common.ErrorNotFound when no row exists yet.
	Get(ctx context.Context) (*models.LearningSettings, error)

	// GetByID returns the row with the given id.
	GetByID(ctx context.Context, id string) (*models.LearningSettings, error)

	// Save inserts or rewrites the row with its envelope exactly as given.
	Save(ctx context.Context, s *models.LearningSettings) error

	// ListDirty returns the row when it has unconfirmed local changes.
	ListDirty(ctx context.Context) ([]models.LearningSettings, error)
}
