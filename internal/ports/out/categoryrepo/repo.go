package categoryrepo

import (
	"context"
	"time"

	"github.com/Overland-East-Bay/stockroom/internal/domain"
)

// Category is the persistence shape used by the category repository.
type Category struct {
	ID    domain.ServerID
	Owner domain.OwnerID

	Name        string
	NameKey     string
	Description *string

	// ProductCount is computed on reads and ignored on writes.
	ProductCount int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Repository provides access to persisted categories.
//
// List returns categories ordered by name key ascending.
type Repository interface {
	Create(ctx context.Context, c Category) error
	Update(ctx context.Context, c Category) error
	Delete(ctx context.Context, owner domain.OwnerID, id domain.ServerID) error

	Get(ctx context.Context, owner domain.OwnerID, id domain.ServerID) (Category, error)
	List(ctx context.Context, owner domain.OwnerID, offset, limit int) ([]Category, int, error)

	NameTaken(ctx context.Context, owner domain.OwnerID, nameKey string, exclude *domain.ServerID) (bool, error)
}
