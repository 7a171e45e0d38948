package inventory

import (
	"context"
	"time"

	"github.com/Overland-East-Bay/stockroom/internal/domain"
	"github.com/Overland-East-Bay/stockroom/internal/ports/out/catalogapi"
	"github.com/Overland-East-Bay/stockroom/internal/ports/out/viewcache"
)

type productResource struct {
	cache viewcache.Cache
}

func (productResource) Kind() domain.ResourceKind { return domain.ResourceProducts }

func (productResource) IDOf(p domain.Product) domain.EntityID { return p.ID }

func (r productResource) Placeholder(id domain.PendingID, f domain.ProductFields, now time.Time) domain.Product {
	p := domain.Product{
		ID:          id,
		Name:        f.Name,
		Description: f.Description,
		Price:       f.Price,
		Stock:       f.Stock,
		Unit:        f.Unit,
		CategoryID:  f.CategoryID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if f.CategoryID != nil {
		p.Category = lookupCategory(r.cache, *f.CategoryID)
	}
	return p
}

// Apply resolves the new category reference up front, since the projection runs
// under the cache lock and cannot read other views.
func (r productResource) Apply(c domain.ProductChanges) func(domain.Product) domain.Product {
	var ref *domain.CategoryRef
	if c.CategoryID.IsSpecified() && !c.CategoryID.IsNull() {
		ref = lookupCategory(r.cache, c.CategoryID.Value())
	}
	return func(p domain.Product) domain.Product {
		out := p.WithChanges(c)
		if out.Category == nil && ref != nil && out.CategoryID != nil && *out.CategoryID == ref.ID {
			cp := *ref
			out.Category = &cp
		}
		return out
	}
}

func (productResource) SetUpdating(p domain.Product, on bool) domain.Product {
	p.Updating = on
	return p
}

// lookupCategory resolves a category reference from whatever category views are
// cached: the detail view first, then the list, then the session. It returns nil
// when the category is not cached.
func lookupCategory(cache viewcache.Cache, id domain.ServerID) *domain.CategoryRef {
	ref := func(c domain.Category) *domain.CategoryRef {
		if r, ok := c.Ref(); ok {
			return &r
		}
		return nil
	}
	if c, ok := viewcache.PeekAs[*domain.Category](cache, viewcache.DetailKey(domain.ResourceCategories, id)); ok && c != nil {
		return ref(*c)
	}
	if p, ok := viewcache.PeekAs[*domain.Page[domain.Category]](cache, viewcache.ListKey(domain.ResourceCategories)); ok && p != nil {
		for _, c := range p.Items {
			if domain.IsServerID(c.ID, id) {
				return ref(c)
			}
		}
	}
	if s, ok := viewcache.PeekAs[[]domain.Category](cache, viewcache.SessionKey(domain.ResourceCategories)); ok {
		for _, c := range s {
			if domain.IsServerID(c.ID, id) {
				return ref(c)
			}
		}
	}
	return nil
}

type categoryResource struct{}

func (categoryResource) Kind() domain.ResourceKind { return domain.ResourceCategories }

func (categoryResource) IDOf(c domain.Category) domain.EntityID { return c.ID }

func (categoryResource) Placeholder(id domain.PendingID, f domain.CategoryFields, now time.Time) domain.Category {
	return domain.Category{
		ID:          id,
		Name:        f.Name,
		Description: f.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (categoryResource) Apply(ch domain.CategoryChanges) func(domain.Category) domain.Category {
	return func(c domain.Category) domain.Category { return c.WithChanges(ch) }
}

func (categoryResource) SetUpdating(c domain.Category, on bool) domain.Category {
	c.Updating = on
	return c
}

type productRemote struct{ api catalogapi.Client }

func (r productRemote) Create(ctx context.Context, token domain.CorrelationToken, f domain.ProductFields) (domain.Product, error) {
	return r.api.CreateProduct(ctx, token, f)
}

func (r productRemote) Update(ctx context.Context, id domain.ServerID, c domain.ProductChanges) (domain.Product, error) {
	return r.api.UpdateProduct(ctx, id, c)
}

func (r productRemote) Delete(ctx context.Context, id domain.ServerID) error {
	return r.api.DeleteProduct(ctx, id)
}

type categoryRemote struct{ api catalogapi.Client }

func (r categoryRemote) Create(ctx context.Context, token domain.CorrelationToken, f domain.CategoryFields) (domain.Category, error) {
	return r.api.CreateCategory(ctx, token, f)
}

func (r categoryRemote) Update(ctx context.Context, id domain.ServerID, c domain.CategoryChanges) (domain.Category, error) {
	return r.api.UpdateCategory(ctx, id, c)
}

func (r categoryRemote) Delete(ctx context.Context, id domain.ServerID) error {
	return r.api.DeleteCategory(ctx, id)
}
