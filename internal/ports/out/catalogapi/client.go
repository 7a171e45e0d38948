package catalogapi

import (
	"context"

	"github.com/Overland-East-Bay/stockroom/internal/domain"
)

// Client is the transport to the catalog API. All durable state lives behind it.
type Client interface {
	ListProducts(ctx context.Context, q domain.ListQuery) (domain.Page[domain.Product], error)
	GetProduct(ctx context.Context, id domain.ServerID) (domain.Product, error)
	// CreateProduct submits a new product. token is sent as the idempotency key so
	// a retried submission cannot create a duplicate.
	CreateProduct(ctx context.Context, token domain.CorrelationToken, f domain.ProductFields) (domain.Product, error)
	UpdateProduct(ctx context.Context, id domain.ServerID, c domain.ProductChanges) (domain.Product, error)
	DeleteProduct(ctx context.Context, id domain.ServerID) error
	CheckProductName(ctx context.Context, name string, excludeID *domain.ServerID) (bool, error)

	ListCategories(ctx context.Context, q domain.ListQuery) (domain.Page[domain.Category], error)
	GetCategory(ctx context.Context, id domain.ServerID) (domain.Category, error)
	CreateCategory(ctx context.Context, token domain.CorrelationToken, f domain.CategoryFields) (domain.Category, error)
	UpdateCategory(ctx context.Context, id domain.ServerID, c domain.CategoryChanges) (domain.Category, error)
	DeleteCategory(ctx context.Context, id domain.ServerID) error
	CheckCategoryName(ctx context.Context, name string, excludeID *domain.ServerID) (bool, error)
}
