package productrepo

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Overland-East-Bay/stockroom/internal/domain"
)

// Product is the persistence shape used by the product repository.
type Product struct {
	ID    domain.ServerID
	Owner domain.OwnerID

	Name string
	// NameKey is the case-folded normalized name; unique per owner.
	NameKey     string
	Description *string
	Price       decimal.Decimal
	Stock       int
	Unit        string

	CategoryID *domain.ServerID
	// CategoryName is filled on reads when CategoryID is set.
	CategoryName *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

type Sale struct {
	ID        string
	ProductID domain.ServerID
	Owner     domain.OwnerID
	Quantity  int
	SoldAt    time.Time
}

// Repository provides access to persisted products.
//
// Every method is scoped to one owner; products of other owners behave as if
// they do not exist. List returns products newest first (CreatedAt desc, then ID).
type Repository interface {
	Create(ctx context.Context, p Product) error
	Update(ctx context.Context, p Product) error
	Delete(ctx context.Context, owner domain.OwnerID, id domain.ServerID) error

	Get(ctx context.Context, owner domain.OwnerID, id domain.ServerID) (Product, error)
	List(ctx context.Context, owner domain.OwnerID, offset, limit int) ([]Product, int, error)

	// NameTaken reports whether another product (not exclude) has nameKey.
	NameTaken(ctx context.Context, owner domain.OwnerID, nameKey string, exclude *domain.ServerID) (bool, error)

	// RecordSale stores s and decrements the product's stock atomically.
	RecordSale(ctx context.Context, s Sale) error
	CountSales(ctx context.Context, owner domain.OwnerID, id domain.ServerID) (int, error)
}
