package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	memcatalog "github.com/Overland-East-Bay/stockroom/internal/adapters/memory/catalogrepo"
	memclock "github.com/Overland-East-Bay/stockroom/internal/adapters/memory/clock"
	"github.com/Overland-East-Bay/stockroom/internal/domain"
)

const owner = domain.OwnerID("owner-1")

func newTestService(t *testing.T) *Service {
	t.Helper()
	store := memcatalog.NewStore()
	clk := memclock.NewManualClock(time.Unix(100, 0).UTC())
	return NewService(store.Products(), store.Categories(), clk)
}

func requireAppError(t *testing.T, err error, status int, code string) *Error {
	t.Helper()
	ae := (*Error)(nil)
	if !errors.As(err, &ae) || ae.Status != status || ae.Code != code {
		t.Fatalf("err=%v (type=%T), want %s %d", err, err, code, status)
	}
	return ae
}

func strPtr(s string) *string { return &s }

func TestService_CreateProduct_NormalizesAndDefaults(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)

	p, err := svc.CreateProduct(context.Background(), owner, domain.ProductFields{
		Name:        "  Blue   Mug ",
		Description: strPtr("   "),
		Price:       decimal.RequireFromString("4.50"),
	})
	if err != nil {
		t.Fatalf("CreateProduct err=%v", err)
	}
	if p.Name != "Blue Mug" || p.Unit != domain.DefaultUnit || p.Description != nil {
		t.Fatalf("unexpected product: %+v", p)
	}
	if _, ok := p.ID.(domain.ServerID); !ok {
		t.Fatalf("id=%v, want ServerID", p.ID)
	}
	if !p.CreatedAt.Equal(time.Unix(100, 0)) {
		t.Fatalf("createdAt=%v", p.CreatedAt)
	}
}

func TestService_CreateProduct_NameConflictIsCaseInsensitive(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.CreateProduct(ctx, owner, domain.ProductFields{Name: "Blue Mug"}); err != nil {
		t.Fatalf("CreateProduct err=%v", err)
	}
	_, err := svc.CreateProduct(ctx, owner, domain.ProductFields{Name: "blue  mug"})
	ae := requireAppError(t, err, 409, CodeNameConflict)
	if ae.Message != `A product named "blue mug" already exists` {
		t.Fatalf("message=%q", ae.Message)
	}

	// Other owners are unaffected.
	if _, err := svc.CreateProduct(ctx, "owner-2", domain.ProductFields{Name: "Blue Mug"}); err != nil {
		t.Fatalf("CreateProduct other owner err=%v", err)
	}
}

func TestService_CreateProduct_Validation(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)

	_, err := svc.CreateProduct(context.Background(), owner, domain.ProductFields{Name: "  "})
	requireAppError(t, err, 422, CodeValidation)

	_, err = svc.CreateProduct(context.Background(), owner, domain.ProductFields{Name: "Mug", Stock: -1})
	ae := requireAppError(t, err, 422, CodeValidation)
	if ae.Details["stock"] == nil {
		t.Fatalf("details=%v, want stock", ae.Details)
	}

	missing := domain.ServerID("nope")
	_, err = svc.CreateProduct(context.Background(), owner, domain.ProductFields{Name: "Mug", CategoryID: &missing})
	ae = requireAppError(t, err, 422, CodeValidation)
	if ae.Details["categoryId"] == nil {
		t.Fatalf("details=%v, want categoryId", ae.Details)
	}
}

func TestService_UpdateProduct_PartialAndCategoryRef(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)
	ctx := context.Background()

	cat, err := svc.CreateCategory(ctx, owner, domain.CategoryFields{Name: "Drinkware"})
	if err != nil {
		t.Fatalf("CreateCategory err=%v", err)
	}
	catID := cat.ID.(domain.ServerID)
	p, err := svc.CreateProduct(ctx, owner, domain.ProductFields{Name: "Mug", Description: strPtr("ceramic"), Stock: 3})
	if err != nil {
		t.Fatalf("CreateProduct err=%v", err)
	}
	id := p.ID.(domain.ServerID)

	got, err := svc.UpdateProduct(ctx, owner, id, domain.ProductChanges{
		CategoryID:  domain.Some(catID),
		Description: domain.Null[string](),
	})
	if err != nil {
		t.Fatalf("UpdateProduct err=%v", err)
	}
	if got.Name != "Mug" || got.Stock != 3 || got.Description != nil {
		t.Fatalf("unexpected product: %+v", got)
	}
	if got.Category == nil || got.Category.Name != "Drinkware" {
		t.Fatalf("category=%+v, want Drinkware", got.Category)
	}

	c, err := svc.GetCategory(ctx, owner, catID)
	if err != nil || c.ProductCount != 1 {
		t.Fatalf("GetCategory count=%d err=%v", c.ProductCount, err)
	}
}

func TestService_UpdateProduct_RenameChecksOthersOnly(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)
	ctx := context.Background()

	a, _ := svc.CreateProduct(ctx, owner, domain.ProductFields{Name: "Alpha"})
	if _, err := svc.CreateProduct(ctx, owner, domain.ProductFields{Name: "Beta"}); err != nil {
		t.Fatalf("CreateProduct err=%v", err)
	}
	id := a.ID.(domain.ServerID)

	// Case-only rename of itself is allowed.
	if _, err := svc.UpdateProduct(ctx, owner, id, domain.ProductChanges{Name: domain.Some("ALPHA")}); err != nil {
		t.Fatalf("UpdateProduct self rename err=%v", err)
	}
	_, err := svc.UpdateProduct(ctx, owner, id, domain.ProductChanges{Name: domain.Some("beta")})
	requireAppError(t, err, 409, CodeNameConflict)

	_, err = svc.UpdateProduct(ctx, owner, "missing", domain.ProductChanges{Name: domain.Some("x")})
	requireAppError(t, err, 404, CodeNotFound)
}

func TestService_DeleteProduct_RefusedWithSales(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)
	ctx := context.Background()

	p, _ := svc.CreateProduct(ctx, owner, domain.ProductFields{Name: "Mug", Stock: 5})
	id := p.ID.(domain.ServerID)

	sale, err := svc.RecordSale(ctx, owner, id, 2)
	if err != nil {
		t.Fatalf("RecordSale err=%v", err)
	}
	if sale.Quantity != 2 || sale.ProductID != id {
		t.Fatalf("sale=%+v", sale)
	}
	got, _ := svc.GetProduct(ctx, owner, id)
	if got.Stock != 3 {
		t.Fatalf("stock=%d, want 3", got.Stock)
	}

	err = svc.DeleteProduct(ctx, owner, id)
	ae := requireAppError(t, err, 409, CodeDependencyConflict)
	if ae.Message != "Cannot delete product with existing sales history" || ae.Details["sales"] != 1 {
		t.Fatalf("err=%+v", ae)
	}

	_, err = svc.RecordSale(ctx, owner, id, 99)
	requireAppError(t, err, 409, CodeInsufficientStock)
	_, err = svc.RecordSale(ctx, owner, id, 0)
	requireAppError(t, err, 422, CodeValidation)
}

func TestService_DeleteCategory_RefusedWithProducts(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)
	ctx := context.Background()

	cat, _ := svc.CreateCategory(ctx, owner, domain.CategoryFields{Name: "Drinkware"})
	catID := cat.ID.(domain.ServerID)
	p, err := svc.CreateProduct(ctx, owner, domain.ProductFields{Name: "Mug", CategoryID: &catID})
	if err != nil {
		t.Fatalf("CreateProduct err=%v", err)
	}

	err = svc.DeleteCategory(ctx, owner, catID)
	ae := requireAppError(t, err, 409, CodeDependencyConflict)
	if ae.Details["products"] != 1 {
		t.Fatalf("details=%v", ae.Details)
	}

	if err := svc.DeleteProduct(ctx, owner, p.ID.(domain.ServerID)); err != nil {
		t.Fatalf("DeleteProduct err=%v", err)
	}
	if err := svc.DeleteCategory(ctx, owner, catID); err != nil {
		t.Fatalf("DeleteCategory err=%v", err)
	}
	err = svc.DeleteCategory(ctx, owner, catID)
	requireAppError(t, err, 404, CodeNotFound)
}

func TestService_CheckName(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)
	ctx := context.Background()

	p, _ := svc.CreateProduct(ctx, owner, domain.ProductFields{Name: "Blue Mug"})
	id := p.ID.(domain.ServerID)

	cases := []struct {
		name    string
		exclude *domain.ServerID
		want    bool
	}{
		{"Red Mug", nil, true},
		{" blue   MUG ", nil, false},
		{"Blue Mug", &id, true},
		{"   ", nil, false},
	}
	for _, tc := range cases {
		got, err := svc.CheckProductName(ctx, owner, tc.name, tc.exclude)
		if err != nil {
			t.Fatalf("CheckProductName(%q) err=%v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("CheckProductName(%q)=%v, want %v", tc.name, got, tc.want)
		}
	}

	if ok, _ := svc.CheckCategoryName(ctx, owner, "Blue Mug", nil); !ok {
		t.Fatalf("category names are independent of product names")
	}
}

func TestService_ListProducts_Paging(t *testing.T) {
	t.Parallel()
	store := memcatalog.NewStore()
	clk := memclock.NewManualClock(time.Unix(100, 0).UTC())
	svc := NewService(store.Products(), store.Categories(), clk)
	ctx := context.Background()

	for _, name := range []string{"a", "b", "c"} {
		if _, err := svc.CreateProduct(ctx, owner, domain.ProductFields{Name: name}); err != nil {
			t.Fatalf("CreateProduct err=%v", err)
		}
		clk.Advance(time.Second)
	}

	page, err := svc.ListProducts(ctx, owner, domain.ListQuery{Page: 2, Limit: 2})
	if err != nil {
		t.Fatalf("ListProducts err=%v", err)
	}
	if page.Total != 3 || page.Page != 2 || page.Limit != 2 || len(page.Items) != 1 || page.Items[0].Name != "a" {
		t.Fatalf("page=%+v", page)
	}

	page, _ = svc.ListProducts(ctx, owner, domain.ListQuery{Limit: 1000})
	if page.Page != 1 || page.Limit != MaxPageLimit || page.Items[0].Name != "c" {
		t.Fatalf("page=%+v, want newest first with clamped limit", page)
	}
}
