// Package dto defines the catalog API's JSON wire types and their conversion to
// and from domain values. Both the HTTP server and the HTTP client use it.
package dto

import (
	"fmt"
	"time"

	"github.com/oapi-codegen/nullable"
	"github.com/shopspring/decimal"

	"github.com/Overland-East-Bay/stockroom/internal/domain"
)

// Envelope wraps every successful response body.
type Envelope[T any] struct {
	Data T `json:"data"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error     string                            `json:"error"`
	Code      string                            `json:"code"`
	Details   nullable.Nullable[map[string]any] `json:"details,omitempty"`
	RequestID nullable.Nullable[string]         `json:"requestId,omitempty"`
}

type Page[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

type CategoryRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description *string         `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Unit        string          `json:"unit"`
	CategoryID  *string         `json:"categoryId"`
	Category    *CategoryRef    `json:"category"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

type Category struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  *string   `json:"description"`
	ProductCount int       `json:"productCount"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type CreateProductRequest struct {
	Name        string          `json:"name"`
	Description *string         `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Unit        string          `json:"unit,omitempty"`
	CategoryID  *string         `json:"categoryId,omitempty"`
}

// UpdateProductRequest is a partial update: omitted fields are unchanged and
// explicit nulls clear optional fields.
type UpdateProductRequest struct {
	Name        nullable.Nullable[string]          `json:"name,omitempty"`
	Description nullable.Nullable[string]          `json:"description,omitempty"`
	Price       nullable.Nullable[decimal.Decimal] `json:"price,omitempty"`
	Stock       nullable.Nullable[int]             `json:"stock,omitempty"`
	Unit        nullable.Nullable[string]          `json:"unit,omitempty"`
	CategoryID  nullable.Nullable[string]          `json:"categoryId,omitempty"`
}

type CreateCategoryRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
}

type UpdateCategoryRequest struct {
	Name        nullable.Nullable[string] `json:"name,omitempty"`
	Description nullable.Nullable[string] `json:"description,omitempty"`
}

type CheckNameResponse struct {
	IsUnique bool `json:"isUnique"`
}

type RecordSaleRequest struct {
	Quantity int `json:"quantity"`
}

type Sale struct {
	ID        string    `json:"id"`
	ProductID string    `json:"productId"`
	Quantity  int       `json:"quantity"`
	SoldAt    time.Time `json:"soldAt"`
}

func serverIDString(id domain.EntityID) (string, error) {
	switch v := id.(type) {
	case domain.ServerID:
		return string(v), nil
	case domain.PendingID:
		return "", fmt.Errorf("entity %s is not confirmed", v)
	default:
		return "", fmt.Errorf("unknown entity id %T", id)
	}
}

func idPtrString(p *domain.ServerID) *string {
	if p == nil {
		return nil
	}
	s := string(*p)
	return &s
}

func stringPtrID(p *string) *domain.ServerID {
	if p == nil {
		return nil
	}
	id := domain.ServerID(*p)
	return &id
}

func ProductFromDomain(p domain.Product) (Product, error) {
	id, err := serverIDString(p.ID)
	if err != nil {
		return Product{}, err
	}
	out := Product{
		ID:          id,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Stock:       p.Stock,
		Unit:        p.Unit,
		CategoryID:  idPtrString(p.CategoryID),
		CreatedAt:   p.CreatedAt.UTC(),
		UpdatedAt:   p.UpdatedAt.UTC(),
	}
	if p.Category != nil {
		out.Category = &CategoryRef{ID: string(p.Category.ID), Name: p.Category.Name}
	}
	return out, nil
}

func (p Product) ToDomain() domain.Product {
	out := domain.Product{
		ID:          domain.ServerID(p.ID),
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Stock:       p.Stock,
		Unit:        p.Unit,
		CategoryID:  stringPtrID(p.CategoryID),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if p.Category != nil {
		out.Category = &domain.CategoryRef{ID: domain.ServerID(p.Category.ID), Name: p.Category.Name}
	}
	return out
}

func CategoryFromDomain(c domain.Category) (Category, error) {
	id, err := serverIDString(c.ID)
	if err != nil {
		return Category{}, err
	}
	return Category{
		ID:           id,
		Name:         c.Name,
		Description:  c.Description,
		ProductCount: c.ProductCount,
		CreatedAt:    c.CreatedAt.UTC(),
		UpdatedAt:    c.UpdatedAt.UTC(),
	}, nil
}

func (c Category) ToDomain() domain.Category {
	return domain.Category{
		ID:           domain.ServerID(c.ID),
		Name:         c.Name,
		Description:  c.Description,
		ProductCount: c.ProductCount,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

func PageToDomain[T, E any](p Page[T], conv func(T) E) domain.Page[E] {
	items := make([]E, 0, len(p.Items))
	for _, it := range p.Items {
		items = append(items, conv(it))
	}
	return domain.Page[E]{Items: items, Total: p.Total, Page: p.Page, Limit: p.Limit}
}

func PageFromDomain[E, T any](p domain.Page[E], conv func(E) (T, error)) (Page[T], error) {
	items := make([]T, 0, len(p.Items))
	for _, it := range p.Items {
		v, err := conv(it)
		if err != nil {
			return Page[T]{}, err
		}
		items = append(items, v)
	}
	return Page[T]{Items: items, Total: p.Total, Page: p.Page, Limit: p.Limit}, nil
}

func CreateProductFromFields(f domain.ProductFields) CreateProductRequest {
	return CreateProductRequest{
		Name:        f.Name,
		Description: f.Description,
		Price:       f.Price,
		Stock:       f.Stock,
		Unit:        f.Unit,
		CategoryID:  idPtrString(f.CategoryID),
	}
}

// Fields returns the request as domain fields. Values are not validated here.
func (r CreateProductRequest) Fields() domain.ProductFields {
	return domain.ProductFields{
		Name:        r.Name,
		Description: r.Description,
		Price:       r.Price,
		Stock:       r.Stock,
		Unit:        r.Unit,
		CategoryID:  stringPtrID(r.CategoryID),
	}
}

func UpdateProductFromChanges(c domain.ProductChanges) UpdateProductRequest {
	return UpdateProductRequest{
		Name:        toNullable(c.Name),
		Description: toNullable(c.Description),
		Price:       toNullable(c.Price),
		Stock:       toNullable(c.Stock),
		Unit:        toNullable(c.Unit),
		CategoryID:  toNullable(mapOptional(c.CategoryID, func(id domain.ServerID) string { return string(id) })),
	}
}

func (r UpdateProductRequest) Changes() domain.ProductChanges {
	return domain.ProductChanges{
		Name:        fromNullable(r.Name),
		Description: fromNullable(r.Description),
		Price:       fromNullable(r.Price),
		Stock:       fromNullable(r.Stock),
		Unit:        fromNullable(r.Unit),
		CategoryID:  mapOptional(fromNullable(r.CategoryID), func(s string) domain.ServerID { return domain.ServerID(s) }),
	}
}

func CreateCategoryFromFields(f domain.CategoryFields) CreateCategoryRequest {
	return CreateCategoryRequest{Name: f.Name, Description: f.Description}
}

func (r CreateCategoryRequest) Fields() domain.CategoryFields {
	return domain.CategoryFields{Name: r.Name, Description: r.Description}
}

func UpdateCategoryFromChanges(c domain.CategoryChanges) UpdateCategoryRequest {
	return UpdateCategoryRequest{
		Name:        toNullable(c.Name),
		Description: toNullable(c.Description),
	}
}

func (r UpdateCategoryRequest) Changes() domain.CategoryChanges {
	return domain.CategoryChanges{
		Name:        fromNullable(r.Name),
		Description: fromNullable(r.Description),
	}
}

func toNullable[T any](o domain.Optional[T]) nullable.Nullable[T] {
	switch {
	case !o.IsSpecified():
		return nullable.Nullable[T]{}
	case o.IsNull():
		return nullable.NewNullNullable[T]()
	default:
		return nullable.NewNullableWithValue(o.Value())
	}
}

func fromNullable[T any](n nullable.Nullable[T]) domain.Optional[T] {
	if !n.IsSpecified() {
		return domain.Unspecified[T]()
	}
	if n.IsNull() {
		return domain.Null[T]()
	}
	v, err := n.Get()
	if err != nil {
		return domain.Unspecified[T]()
	}
	return domain.Some(v)
}

func mapOptional[A, B any](o domain.Optional[A], f func(A) B) domain.Optional[B] {
	switch {
	case !o.IsSpecified():
		return domain.Unspecified[B]()
	case o.IsNull():
		return domain.Null[B]()
	default:
		return domain.Some(f(o.Value()))
	}
}
