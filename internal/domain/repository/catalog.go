package repository

import (
	"context"

	"github.com/hweng-dev/adsplice/internal/domain/model"
)

// AdCatalog defines read access to the advertisement catalog.
// Implementations should be provided by the infrastructure layer (e.g., PostgreSQL).
// The catalog is owned by an external collaborator; this service never writes it.
type AdCatalog interface {
	// ListActive returns all enabled creatives.
	// Returns an empty slice when no creatives are active; that is not an error.
	ListActive(ctx context.Context) ([]*model.AdCreative, error)

	// GetByID retrieves a single creative by its identifier.
	// Returns ErrCreativeNotFound if the creative does not exist.
	GetByID(ctx context.Context, id string) (*model.AdCreative, error)
}
