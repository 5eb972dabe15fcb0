// Package taxonomy persists the two independent flat term tables (topics and
// tags). Both share one row shape, so a single repository type serves either
// table depending on which constructor bound it.
package taxonomy

import (
	"context"
	"time"

	"github.com/dmitrijs2005/lexisync/internal/models"
)

// Repository describes persistence operations for one taxonomy table.
type Repository interface {
	Create(ctx context.Context, t *models.Term) error
	Update(ctx context.Context, t *models.Term) error

	// GetByID returns the row even when tombstoned.
	GetByID(ctx context.Context, id string) (*models.Term, error)

	// GetByName returns the live term with the given name, used for global
	// dedup when items carry denormalized term arrays.
	GetByName(ctx context.Context, name string) (*models.Term, error)

	// List returns live terms only.
	List(ctx context.Context) ([]models.Term, error)

	// ListDirty returns rows not yet confirmed pushed, tombstones included.
	ListDirty(ctx context.Context) ([]models.Term, error)

	// SoftDelete tombstones a live term as a local edit.
	SoftDelete(ctx context.Context, id string, at time.Time) error
}
