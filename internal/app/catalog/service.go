// Package catalog is the server side of the catalog API: product and category
// records scoped per owner, name uniqueness, delete refusal while dependents
// exist, and sales.
package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/Overland-East-Bay/stockroom/internal/domain"
	"github.com/Overland-East-Bay/stockroom/internal/ports/out/categoryrepo"
	clockport "github.com/Overland-East-Bay/stockroom/internal/ports/out/clock"
	"github.com/Overland-East-Bay/stockroom/internal/ports/out/productrepo"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
	// MaxNameLength bounds product and category names, in runes.
	MaxNameLength = 120
)

type Service struct {
	products   productrepo.Repository
	categories categoryrepo.Repository
	clk        clockport.Clock

	newID func() domain.ServerID
}

func NewService(products productrepo.Repository, categories categoryrepo.Repository, clk clockport.Clock) *Service {
	return &Service{
		products:   products,
		categories: categories,
		clk:        clk,
		newID: func() domain.ServerID {
			return domain.ServerID(uuid.NewString())
		},
	}
}

// Sale is a recorded sale of a product.
type Sale struct {
	ID        string
	ProductID domain.ServerID
	Quantity  int
	SoldAt    time.Time
}

// pageWindow resolves a 1-based page query to an offset and limit.
func pageWindow(q domain.ListQuery) (page, limit, offset int) {
	page, limit = q.Page, q.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return page, limit, (page - 1) * limit
}

func checkName(name string) *Error {
	if name == "" {
		return validationError("invalid name", map[string]any{"name": "must be non-empty"})
	}
	if len([]rune(name)) > MaxNameLength {
		return validationError("invalid name", map[string]any{"name": "must be at most 120 characters"})
	}
	return nil
}

func (s *Service) now() time.Time { return s.clk.Now().UTC() }

// --- products ---

func (s *Service) ListProducts(ctx context.Context, owner domain.OwnerID, q domain.ListQuery) (domain.Page[domain.Product], error) {
	page, limit, offset := pageWindow(q)
	ps, total, err := s.products.List(ctx, owner, offset, limit)
	if err != nil {
		return domain.Page[domain.Product]{}, err
	}
	items := make([]domain.Product, 0, len(ps))
	for _, p := range ps {
		items = append(items, productToDomain(p))
	}
	return domain.Page[domain.Product]{Items: items, Total: total, Page: page, Limit: limit}, nil
}

func (s *Service) GetProduct(ctx context.Context, owner domain.OwnerID, id domain.ServerID) (domain.Product, error) {
	p, err := s.products.Get(ctx, owner, id)
	if err != nil {
		if errors.Is(err, productrepo.ErrNotFound) {
			return domain.Product{}, notFound("product")
		}
		return domain.Product{}, err
	}
	return productToDomain(p), nil
}

func (s *Service) CreateProduct(ctx context.Context, owner domain.OwnerID, f domain.ProductFields) (domain.Product, error) {
	f.Name = domain.Normalize(f.Name)
	f.Unit = domain.Normalize(f.Unit)
	if f.Unit == "" {
		f.Unit = domain.DefaultUnit
	}
	if err := validateProduct(f.Name, f.Price.IsNegative(), f.Stock); err != nil {
		return domain.Product{}, err
	}
	if err := s.ensureProductNameFree(ctx, owner, f.Name, nil); err != nil {
		return domain.Product{}, err
	}

	now := s.now()
	p := productrepo.Product{
		ID:          s.newID(),
		Owner:       owner,
		Name:        f.Name,
		NameKey:     domain.NameKey(f.Name),
		Description: normalizeDescription(f.Description),
		Price:       f.Price,
		Stock:       f.Stock,
		Unit:        f.Unit,
		CategoryID:  f.CategoryID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.products.Create(ctx, p); err != nil {
		return domain.Product{}, s.mapProductWriteErr(p.Name, err)
	}
	return s.GetProduct(ctx, owner, p.ID)
}

func (s *Service) UpdateProduct(ctx context.Context, owner domain.OwnerID, id domain.ServerID, c domain.ProductChanges) (domain.Product, error) {
	existing, err := s.products.Get(ctx, owner, id)
	if err != nil {
		if errors.Is(err, productrepo.ErrNotFound) {
			return domain.Product{}, notFound("product")
		}
		return domain.Product{}, err
	}
	if c.Name.IsSpecified() {
		if c.Name.IsNull() {
			return domain.Product{}, validationError("invalid name", map[string]any{"name": "must be non-empty"})
		}
		c.Name = domain.Some(domain.Normalize(c.Name.Value()))
	}
	if c.Price.IsSpecified() && c.Price.IsNull() {
		return domain.Product{}, validationError("invalid price", map[string]any{"price": "cannot be null"})
	}
	if c.Stock.IsSpecified() && c.Stock.IsNull() {
		return domain.Product{}, validationError("invalid stock", map[string]any{"stock": "cannot be null"})
	}
	if c.Unit.IsSpecified() {
		unit := ""
		if !c.Unit.IsNull() {
			unit = domain.Normalize(c.Unit.Value())
		}
		if unit == "" {
			unit = domain.DefaultUnit
		}
		c.Unit = domain.Some(unit)
	}

	next := productToDomain(existing).WithChanges(c)
	if err := validateProduct(next.Name, next.Price.IsNegative(), next.Stock); err != nil {
		return domain.Product{}, err
	}
	if next.Name != existing.Name {
		if err := s.ensureProductNameFree(ctx, owner, next.Name, &id); err != nil {
			return domain.Product{}, err
		}
	}

	p := existing
	p.Name = next.Name
	p.NameKey = domain.NameKey(next.Name)
	p.Description = normalizeDescription(next.Description)
	p.Price = next.Price
	p.Stock = next.Stock
	p.Unit = next.Unit
	p.CategoryID = next.CategoryID
	p.UpdatedAt = s.now()
	if err := s.products.Update(ctx, p); err != nil {
		return domain.Product{}, s.mapProductWriteErr(p.Name, err)
	}
	return s.GetProduct(ctx, owner, id)
}

func (s *Service) DeleteProduct(ctx context.Context, owner domain.OwnerID, id domain.ServerID) error {
	if _, err := s.products.Get(ctx, owner, id); err != nil {
		if errors.Is(err, productrepo.ErrNotFound) {
			return notFound("product")
		}
		return err
	}
	sales, err := s.products.CountSales(ctx, owner, id)
	if err != nil {
		return err
	}
	if sales > 0 {
		return productHasSales(sales)
	}
	if err := s.products.Delete(ctx, owner, id); err != nil {
		switch {
		case errors.Is(err, productrepo.ErrNotFound):
			return notFound("product")
		case errors.Is(err, productrepo.ErrHasSales):
			n, _ := s.products.CountSales(ctx, owner, id)
			return productHasSales(n)
		}
		return err
	}
	return nil
}

// CheckProductName reports whether name is free for owner, ignoring exclude.
// A name that normalizes to empty is never unique.
func (s *Service) CheckProductName(ctx context.Context, owner domain.OwnerID, name string, exclude *domain.ServerID) (bool, error) {
	key := domain.NameKey(name)
	if key == "" {
		return false, nil
	}
	taken, err := s.products.NameTaken(ctx, owner, key, exclude)
	if err != nil {
		return false, err
	}
	return !taken, nil
}

// RecordSale sells quantity units of a product, decrementing its stock.
func (s *Service) RecordSale(ctx context.Context, owner domain.OwnerID, id domain.ServerID, quantity int) (Sale, error) {
	if quantity <= 0 {
		return Sale{}, validationError("invalid quantity", map[string]any{"quantity": "must be positive"})
	}
	sale := productrepo.Sale{
		ID:        uuid.NewString(),
		ProductID: id,
		Owner:     owner,
		Quantity:  quantity,
		SoldAt:    s.now(),
	}
	if err := s.products.RecordSale(ctx, sale); err != nil {
		switch {
		case errors.Is(err, productrepo.ErrNotFound):
			return Sale{}, notFound("product")
		case errors.Is(err, productrepo.ErrInsufficientStock):
			return Sale{}, &Error{
				Status:  409,
				Code:    CodeInsufficientStock,
				Message: "Not enough stock to record this sale",
				Details: map[string]any{"quantity": quantity},
			}
		}
		return Sale{}, err
	}
	return Sale{ID: sale.ID, ProductID: id, Quantity: quantity, SoldAt: sale.SoldAt}, nil
}

func (s *Service) ensureProductNameFree(ctx context.Context, owner domain.OwnerID, name string, exclude *domain.ServerID) error {
	taken, err := s.products.NameTaken(ctx, owner, domain.NameKey(name), exclude)
	if err != nil {
		return err
	}
	if taken {
		return nameConflict("product", name)
	}
	return nil
}

func (s *Service) mapProductWriteErr(name string, err error) error {
	switch {
	case errors.Is(err, productrepo.ErrNameTaken):
		return nameConflict("product", name)
	case errors.Is(err, productrepo.ErrCategoryNotFound):
		return validationError("unknown category", map[string]any{"categoryId": "does not exist"})
	case errors.Is(err, productrepo.ErrNotFound):
		return notFound("product")
	}
	return err
}

func productHasSales(n int) *Error {
	return &Error{
		Status:  409,
		Code:    CodeDependencyConflict,
		Message: "Cannot delete product with existing sales history",
		Details: map[string]any{"sales": n},
	}
}

func validateProduct(name string, negativePrice bool, stock int) *Error {
	if err := checkName(name); err != nil {
		return err
	}
	details := map[string]any{}
	if negativePrice {
		details["price"] = "must be non-negative"
	}
	if stock < 0 {
		details["stock"] = "must be non-negative"
	}
	if len(details) > 0 {
		return validationError("invalid product", details)
	}
	return nil
}

func normalizeDescription(d *string) *string {
	if d == nil {
		return nil
	}
	v := domain.Normalize(*d)
	if v == "" {
		return nil
	}
	return &v
}

func productToDomain(p productrepo.Product) domain.Product {
	out := domain.Product{
		ID:          p.ID,
		OwnerID:     p.Owner,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Stock:       p.Stock,
		Unit:        p.Unit,
		CategoryID:  p.CategoryID,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if p.CategoryID != nil && p.CategoryName != nil {
		out.Category = &domain.CategoryRef{ID: *p.CategoryID, Name: *p.CategoryName}
	}
	return out.Clone()
}
