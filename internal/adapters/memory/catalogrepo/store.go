package catalogrepo

import (
	"context"
	"sort"
	"sync"

	"github.com/Overland-East-Bay/stockroom/internal/domain"
	"github.com/Overland-East-Bay/stockroom/internal/ports/out/categoryrepo"
	"github.com/Overland-East-Bay/stockroom/internal/ports/out/productrepo"
)

type ownedID struct {
	owner domain.OwnerID
	id    domain.ServerID
}

type ownedName struct {
	owner domain.OwnerID
	key   string
}

// Store is an in-memory catalog holding products, categories and sales under one
// lock, so cross-entity rules (category references, dependents on delete) are
// checked atomically. Products and Categories return its repository views.
//
// It is safe for concurrent use.
type Store struct {
	mu sync.RWMutex

	products       map[ownedID]productrepo.Product
	productByName  map[ownedName]domain.ServerID
	categories     map[ownedID]categoryrepo.Category
	categoryByName map[ownedName]domain.ServerID
	sales          map[ownedID][]productrepo.Sale
}

func NewStore() *Store {
	return &Store{
		products:       make(map[ownedID]productrepo.Product),
		productByName:  make(map[ownedName]domain.ServerID),
		categories:     make(map[ownedID]categoryrepo.Category),
		categoryByName: make(map[ownedName]domain.ServerID),
		sales:          make(map[ownedID][]productrepo.Sale),
	}
}

func (s *Store) Products() *ProductRepo { return &ProductRepo{s: s} }

func (s *Store) Categories() *CategoryRepo { return &CategoryRepo{s: s} }

// ProductRepo implements productrepo.Repository over a Store.
type ProductRepo struct{ s *Store }

var _ productrepo.Repository = (*ProductRepo)(nil)

func (r *ProductRepo) Create(ctx context.Context, p productrepo.Product) error {
	_ = ctx
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.productByName[ownedName{p.Owner, p.NameKey}]; ok {
		return productrepo.ErrNameTaken
	}
	if err := s.checkCategoryLocked(p.Owner, p.CategoryID); err != nil {
		return err
	}
	p.CategoryName = nil
	s.products[ownedID{p.Owner, p.ID}] = cloneProduct(p)
	s.productByName[ownedName{p.Owner, p.NameKey}] = p.ID
	return nil
}

func (r *ProductRepo) Update(ctx context.Context, p productrepo.Product) error {
	_ = ctx
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	k := ownedID{p.Owner, p.ID}
	existing, ok := s.products[k]
	if !ok {
		return productrepo.ErrNotFound
	}
	if id, ok := s.productByName[ownedName{p.Owner, p.NameKey}]; ok && id != p.ID {
		return productrepo.ErrNameTaken
	}
	if err := s.checkCategoryLocked(p.Owner, p.CategoryID); err != nil {
		return err
	}
	delete(s.productByName, ownedName{p.Owner, existing.NameKey})
	p.CategoryName = nil
	p.CreatedAt = existing.CreatedAt
	s.products[k] = cloneProduct(p)
	s.productByName[ownedName{p.Owner, p.NameKey}] = p.ID
	return nil
}

func (r *ProductRepo) Delete(ctx context.Context, owner domain.OwnerID, id domain.ServerID) error {
	_ = ctx
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	k := ownedID{owner, id}
	p, ok := s.products[k]
	if !ok {
		return productrepo.ErrNotFound
	}
	if len(s.sales[k]) > 0 {
		return productrepo.ErrHasSales
	}
	delete(s.products, k)
	delete(s.productByName, ownedName{owner, p.NameKey})
	return nil
}

func (r *ProductRepo) Get(ctx context.Context, owner domain.OwnerID, id domain.ServerID) (productrepo.Product, error) {
	_ = ctx
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[ownedID{owner, id}]
	if !ok {
		return productrepo.Product{}, productrepo.ErrNotFound
	}
	return s.withCategoryNameLocked(p), nil
}

func (r *ProductRepo) List(ctx context.Context, owner domain.OwnerID, offset, limit int) ([]productrepo.Product, int, error) {
	_ = ctx
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]productrepo.Product, 0)
	for k, p := range s.products {
		if k.owner == owner {
			all = append(all, p)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})
	total := len(all)
	all = window(all, offset, limit)
	out := make([]productrepo.Product, 0, len(all))
	for _, p := range all {
		out = append(out, s.withCategoryNameLocked(p))
	}
	return out, total, nil
}

func (r *ProductRepo) NameTaken(ctx context.Context, owner domain.OwnerID, nameKey string, exclude *domain.ServerID) (bool, error) {
	_ = ctx
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.productByName[ownedName{owner, nameKey}]
	if !ok {
		return false, nil
	}
	return exclude == nil || *exclude != id, nil
}

func (r *ProductRepo) RecordSale(ctx context.Context, sale productrepo.Sale) error {
	_ = ctx
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	k := ownedID{sale.Owner, sale.ProductID}
	p, ok := s.products[k]
	if !ok {
		return productrepo.ErrNotFound
	}
	if p.Stock < sale.Quantity {
		return productrepo.ErrInsufficientStock
	}
	p.Stock -= sale.Quantity
	p.UpdatedAt = sale.SoldAt
	s.products[k] = p
	s.sales[k] = append(s.sales[k], sale)
	return nil
}

func (r *ProductRepo) CountSales(ctx context.Context, owner domain.OwnerID, id domain.ServerID) (int, error) {
	_ = ctx
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	k := ownedID{owner, id}
	if _, ok := s.products[k]; !ok {
		return 0, productrepo.ErrNotFound
	}
	return len(s.sales[k]), nil
}

func (s *Store) checkCategoryLocked(owner domain.OwnerID, id *domain.ServerID) error {
	if id == nil {
		return nil
	}
	if _, ok := s.categories[ownedID{owner, *id}]; !ok {
		return productrepo.ErrCategoryNotFound
	}
	return nil
}

func (s *Store) withCategoryNameLocked(p productrepo.Product) productrepo.Product {
	out := cloneProduct(p)
	out.CategoryName = nil
	if p.CategoryID != nil {
		if c, ok := s.categories[ownedID{p.Owner, *p.CategoryID}]; ok {
			name := c.Name
			out.CategoryName = &name
		}
	}
	return out
}

// CategoryRepo implements categoryrepo.Repository over a Store.
type CategoryRepo struct{ s *Store }

var _ categoryrepo.Repository = (*CategoryRepo)(nil)

func (r *CategoryRepo) Create(ctx context.Context, c categoryrepo.Category) error {
	_ = ctx
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.categoryByName[ownedName{c.Owner, c.NameKey}]; ok {
		return categoryrepo.ErrNameTaken
	}
	c.ProductCount = 0
	s.categories[ownedID{c.Owner, c.ID}] = cloneCategory(c)
	s.categoryByName[ownedName{c.Owner, c.NameKey}] = c.ID
	return nil
}

func (r *CategoryRepo) Update(ctx context.Context, c categoryrepo.Category) error {
	_ = ctx
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	k := ownedID{c.Owner, c.ID}
	existing, ok := s.categories[k]
	if !ok {
		return categoryrepo.ErrNotFound
	}
	if id, ok := s.categoryByName[ownedName{c.Owner, c.NameKey}]; ok && id != c.ID {
		return categoryrepo.ErrNameTaken
	}
	delete(s.categoryByName, ownedName{c.Owner, existing.NameKey})
	c.ProductCount = 0
	c.CreatedAt = existing.CreatedAt
	s.categories[k] = cloneCategory(c)
	s.categoryByName[ownedName{c.Owner, c.NameKey}] = c.ID
	return nil
}

func (r *CategoryRepo) Delete(ctx context.Context, owner domain.OwnerID, id domain.ServerID) error {
	_ = ctx
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	k := ownedID{owner, id}
	c, ok := s.categories[k]
	if !ok {
		return categoryrepo.ErrNotFound
	}
	if s.productCountLocked(owner, id) > 0 {
		return categoryrepo.ErrHasProducts
	}
	delete(s.categories, k)
	delete(s.categoryByName, ownedName{owner, c.NameKey})
	return nil
}

func (r *CategoryRepo) Get(ctx context.Context, owner domain.OwnerID, id domain.ServerID) (categoryrepo.Category, error) {
	_ = ctx
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.categories[ownedID{owner, id}]
	if !ok {
		return categoryrepo.Category{}, categoryrepo.ErrNotFound
	}
	out := cloneCategory(c)
	out.ProductCount = s.productCountLocked(owner, id)
	return out, nil
}

func (r *CategoryRepo) List(ctx context.Context, owner domain.OwnerID, offset, limit int) ([]categoryrepo.Category, int, error) {
	_ = ctx
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]categoryrepo.Category, 0)
	for k, c := range s.categories {
		if k.owner == owner {
			all = append(all, c)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].NameKey != all[j].NameKey {
			return all[i].NameKey < all[j].NameKey
		}
		return all[i].ID < all[j].ID
	})
	total := len(all)
	all = window(all, offset, limit)
	out := make([]categoryrepo.Category, 0, len(all))
	for _, c := range all {
		cc := cloneCategory(c)
		cc.ProductCount = s.productCountLocked(owner, c.ID)
		out = append(out, cc)
	}
	return out, total, nil
}

func (r *CategoryRepo) NameTaken(ctx context.Context, owner domain.OwnerID, nameKey string, exclude *domain.ServerID) (bool, error) {
	_ = ctx
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.categoryByName[ownedName{owner, nameKey}]
	if !ok {
		return false, nil
	}
	return exclude == nil || *exclude != id, nil
}

func (s *Store) productCountLocked(owner domain.OwnerID, categoryID domain.ServerID) int {
	n := 0
	for k, p := range s.products {
		if k.owner == owner && p.CategoryID != nil && *p.CategoryID == categoryID {
			n++
		}
	}
	return n
}

func window[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func cloneProduct(p productrepo.Product) productrepo.Product {
	out := p
	if p.Description != nil {
		v := *p.Description
		out.Description = &v
	}
	if p.CategoryID != nil {
		v := *p.CategoryID
		out.CategoryID = &v
	}
	if p.CategoryName != nil {
		v := *p.CategoryName
		out.CategoryName = &v
	}
	return out
}

func cloneCategory(c categoryrepo.Category) categoryrepo.Category {
	out := c
	if c.Description != nil {
		v := *c.Description
		out.Description = &v
	}
	return out
}
