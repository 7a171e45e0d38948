package catalog

import (
	"context"
	"errors"

	"github.com/Overland-East-Bay/stockroom/internal/domain"
	"github.com/Overland-East-Bay/stockroom/internal/ports/out/categoryrepo"
)

func (s *Service) ListCategories(ctx context.Context, owner domain.OwnerID, q domain.ListQuery) (domain.Page[domain.Category], error) {
	page, limit, offset := pageWindow(q)
	cs, total, err := s.categories.List(ctx, owner, offset, limit)
	if err != nil {
		return domain.Page[domain.Category]{}, err
	}
	items := make([]domain.Category, 0, len(cs))
	for _, c := range cs {
		items = append(items, categoryToDomain(c))
	}
	return domain.Page[domain.Category]{Items: items, Total: total, Page: page, Limit: limit}, nil
}

func (s *Service) GetCategory(ctx context.Context, owner domain.OwnerID, id domain.ServerID) (domain.Category, error) {
	c, err := s.categories.Get(ctx, owner, id)
	if err != nil {
		if errors.Is(err, categoryrepo.ErrNotFound) {
			return domain.Category{}, notFound("category")
		}
		return domain.Category{}, err
	}
	return categoryToDomain(c), nil
}

func (s *Service) CreateCategory(ctx context.Context, owner domain.OwnerID, f domain.CategoryFields) (domain.Category, error) {
	f.Name = domain.Normalize(f.Name)
	if err := checkName(f.Name); err != nil {
		return domain.Category{}, err
	}
	if err := s.ensureCategoryNameFree(ctx, owner, f.Name, nil); err != nil {
		return domain.Category{}, err
	}

	now := s.now()
	c := categoryrepo.Category{
		ID:          s.newID(),
		Owner:       owner,
		Name:        f.Name,
		NameKey:     domain.NameKey(f.Name),
		Description: normalizeDescription(f.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.categories.Create(ctx, c); err != nil {
		if errors.Is(err, categoryrepo.ErrNameTaken) {
			return domain.Category{}, nameConflict("category", c.Name)
		}
		return domain.Category{}, err
	}
	return s.GetCategory(ctx, owner, c.ID)
}

func (s *Service) UpdateCategory(ctx context.Context, owner domain.OwnerID, id domain.ServerID, ch domain.CategoryChanges) (domain.Category, error) {
	existing, err := s.categories.Get(ctx, owner, id)
	if err != nil {
		if errors.Is(err, categoryrepo.ErrNotFound) {
			return domain.Category{}, notFound("category")
		}
		return domain.Category{}, err
	}
	if ch.Name.IsSpecified() {
		if ch.Name.IsNull() {
			return domain.Category{}, validationError("invalid name", map[string]any{"name": "must be non-empty"})
		}
		ch.Name = domain.Some(domain.Normalize(ch.Name.Value()))
	}
	next := categoryToDomain(existing).WithChanges(ch)
	if err := checkName(next.Name); err != nil {
		return domain.Category{}, err
	}
	if next.Name != existing.Name {
		if err := s.ensureCategoryNameFree(ctx, owner, next.Name, &id); err != nil {
			return domain.Category{}, err
		}
	}

	c := existing
	c.Name = next.Name
	c.NameKey = domain.NameKey(next.Name)
	c.Description = normalizeDescription(next.Description)
	c.UpdatedAt = s.now()
	if err := s.categories.Update(ctx, c); err != nil {
		switch {
		case errors.Is(err, categoryrepo.ErrNameTaken):
			return domain.Category{}, nameConflict("category", c.Name)
		case errors.Is(err, categoryrepo.ErrNotFound):
			return domain.Category{}, notFound("category")
		}
		return domain.Category{}, err
	}
	return s.GetCategory(ctx, owner, id)
}

func (s *Service) DeleteCategory(ctx context.Context, owner domain.OwnerID, id domain.ServerID) error {
	c, err := s.categories.Get(ctx, owner, id)
	if err != nil {
		if errors.Is(err, categoryrepo.ErrNotFound) {
			return notFound("category")
		}
		return err
	}
	if c.ProductCount > 0 {
		return categoryHasProducts(c.ProductCount)
	}
	if err := s.categories.Delete(ctx, owner, id); err != nil {
		switch {
		case errors.Is(err, categoryrepo.ErrNotFound):
			return notFound("category")
		case errors.Is(err, categoryrepo.ErrHasProducts):
			n := 0
			if c, err := s.categories.Get(ctx, owner, id); err == nil {
				n = c.ProductCount
			}
			return categoryHasProducts(n)
		}
		return err
	}
	return nil
}

func (s *Service) CheckCategoryName(ctx context.Context, owner domain.OwnerID, name string, exclude *domain.ServerID) (bool, error) {
	key := domain.NameKey(name)
	if key == "" {
		return false, nil
	}
	taken, err := s.categories.NameTaken(ctx, owner, key, exclude)
	if err != nil {
		return false, err
	}
	return !taken, nil
}

func (s *Service) ensureCategoryNameFree(ctx context.Context, owner domain.OwnerID, name string, exclude *domain.ServerID) error {
	taken, err := s.categories.NameTaken(ctx, owner, domain.NameKey(name), exclude)
	if err != nil {
		return err
	}
	if taken {
		return nameConflict("category", name)
	}
	return nil
}

func categoryHasProducts(n int) *Error {
	return &Error{
		Status:  409,
		Code:    CodeDependencyConflict,
		Message: "Cannot delete category that still has products",
		Details: map[string]any{"products": n},
	}
}

func categoryToDomain(c categoryrepo.Category) domain.Category {
	return domain.Category{
		ID:           c.ID,
		OwnerID:      c.Owner,
		Name:         c.Name,
		Description:  c.Description,
		ProductCount: c.ProductCount,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}.Clone()
}
