package contracttest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Overland-East-Bay/stockroom/internal/domain"
	categoryrepoport "github.com/Overland-East-Bay/stockroom/internal/ports/out/categoryrepo"
	idempotencyport "github.com/Overland-East-Bay/stockroom/internal/ports/out/idempotency"
	productrepoport "github.com/Overland-East-Bay/stockroom/internal/ports/out/productrepo"
)

type CleanupFunc = func()

type CatalogReposFactory func(t *testing.T) (productrepoport.Repository, categoryrepoport.Repository, CleanupFunc)
type IdemStoreFactory func(t *testing.T) (idempotencyport.Store, CleanupFunc)

func RunIdempotencyStore(t *testing.T, newStore IdemStoreFactory) {
	t.Helper()
	ctx := context.Background()

	store, cleanup := newStore(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	fp := idempotencyport.Fingerprint{
		Key:    idempotencyport.Key("k-" + uuid.NewString()),
		Owner:  domain.OwnerID("owner-" + uuid.NewString()),
		Method: "POST",
		Route:  "/products",
	}
	if _, ok, err := store.Get(ctx, fp); err != nil || ok {
		t.Fatalf("Get before Put: ok=%v err=%v", ok, err)
	}

	rec := idempotencyport.Record{
		BodyHash:    "hash-abc",
		StatusCode:  201,
		ContentType: "application/json",
		Body:        []byte(`{"data":{}}`),
		CreatedAt:   time.Now().UTC().Truncate(time.Microsecond),
	}
	if err := store.Put(ctx, fp, rec); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := store.Get(ctx, fp)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatalf("expected ok=true")
	}
	if got.BodyHash != "hash-abc" || got.StatusCode != 201 || string(got.Body) != `{"data":{}}` {
		t.Fatalf("unexpected record: %+v", got)
	}

	// Overwrite semantics.
	rec2 := rec
	rec2.BodyHash = "hash-def"
	if err := store.Put(ctx, fp, rec2); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	got, ok, err = store.Get(ctx, fp)
	if err != nil || !ok || got.BodyHash != "hash-def" {
		t.Fatalf("expected overwritten record, got ok=%v err=%v hash=%q", ok, err, got.BodyHash)
	}

	// Scoped by route.
	other := fp
	other.Route = "/categories"
	if _, ok, err := store.Get(ctx, other); err != nil || ok {
		t.Fatalf("record leaked across routes: ok=%v err=%v", ok, err)
	}
}

// RunCatalogRepos exercises products and categories together, since product
// category references and delete refusals span both.
func RunCatalogRepos(t *testing.T, newRepos CatalogReposFactory) {
	t.Helper()
	ctx := context.Background()

	products, categories, cleanup := newRepos(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	owner := domain.OwnerID("owner-" + uuid.NewString())
	otherOwner := domain.OwnerID("owner-" + uuid.NewString())
	now := time.Unix(3000, 0).UTC()

	catID := domain.ServerID(uuid.NewString())
	if err := categories.Create(ctx, categoryrepoport.Category{
		ID: catID, Owner: owner, Name: "Drinks", NameKey: "drinks", CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("Create category: %v", err)
	}
	if err := categories.Create(ctx, categoryrepoport.Category{
		ID: domain.ServerID(uuid.NewString()), Owner: owner, Name: "DRINKS", NameKey: "drinks", CreatedAt: now, UpdatedAt: now,
	}); !errors.Is(err, categoryrepoport.ErrNameTaken) {
		t.Fatalf("expected ErrNameTaken, got %v", err)
	}
	// Names are unique per owner only.
	if err := categories.Create(ctx, categoryrepoport.Category{
		ID: domain.ServerID(uuid.NewString()), Owner: otherOwner, Name: "Drinks", NameKey: "drinks", CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("Create category for other owner: %v", err)
	}

	mugID := domain.ServerID(uuid.NewString())
	mug := productrepoport.Product{
		ID:         mugID,
		Owner:      owner,
		Name:       "Blue Mug",
		NameKey:    "blue mug",
		Price:      decimal.RequireFromString("9.99"),
		Stock:      5,
		Unit:       "pcs",
		CategoryID: &catID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := products.Create(ctx, mug); err != nil {
		t.Fatalf("Create product: %v", err)
	}
	got, err := products.Get(ctx, owner, mugID)
	if err != nil {
		t.Fatalf("Get product: %v", err)
	}
	if got.CategoryName == nil || *got.CategoryName != "Drinks" || !got.Price.Equal(mug.Price) {
		t.Fatalf("unexpected product: %+v", got)
	}
	if _, err := products.Get(ctx, otherOwner, mugID); !errors.Is(err, productrepoport.ErrNotFound) {
		t.Fatalf("expected ErrNotFound across owners, got %v", err)
	}

	missing := domain.ServerID(uuid.NewString())
	bad := mug
	bad.ID = domain.ServerID(uuid.NewString())
	bad.NameKey = "other"
	bad.CategoryID = &missing
	if err := products.Create(ctx, bad); !errors.Is(err, productrepoport.ErrCategoryNotFound) {
		t.Fatalf("expected ErrCategoryNotFound, got %v", err)
	}

	dup := mug
	dup.ID = domain.ServerID(uuid.NewString())
	if err := products.Create(ctx, dup); !errors.Is(err, productrepoport.ErrNameTaken) {
		t.Fatalf("expected ErrNameTaken, got %v", err)
	}
	taken, err := products.NameTaken(ctx, owner, "blue mug", nil)
	if err != nil || !taken {
		t.Fatalf("NameTaken=%v err=%v, want true", taken, err)
	}
	taken, err = products.NameTaken(ctx, owner, "blue mug", &mugID)
	if err != nil || taken {
		t.Fatalf("NameTaken excluding self=%v err=%v, want false", taken, err)
	}

	c, err := categories.Get(ctx, owner, catID)
	if err != nil || c.ProductCount != 1 {
		t.Fatalf("category count=%d err=%v, want 1", c.ProductCount, err)
	}
	if err := categories.Delete(ctx, owner, catID); !errors.Is(err, categoryrepoport.ErrHasProducts) {
		t.Fatalf("expected ErrHasProducts, got %v", err)
	}

	// Rename keeps the name index consistent.
	renamed := mug
	renamed.Name, renamed.NameKey = "Big Mug", "big mug"
	renamed.UpdatedAt = now.Add(time.Minute)
	if err := products.Update(ctx, renamed); err != nil {
		t.Fatalf("Update product: %v", err)
	}
	if taken, _ := products.NameTaken(ctx, owner, "blue mug", nil); taken {
		t.Fatalf("old name still taken after rename")
	}

	// Sales decrement stock and block deletion.
	if err := products.RecordSale(ctx, productrepoport.Sale{
		ID: uuid.NewString(), ProductID: mugID, Owner: owner, Quantity: 10, SoldAt: now,
	}); !errors.Is(err, productrepoport.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if err := products.RecordSale(ctx, productrepoport.Sale{
		ID: uuid.NewString(), ProductID: mugID, Owner: owner, Quantity: 2, SoldAt: now,
	}); err != nil {
		t.Fatalf("RecordSale: %v", err)
	}
	got, _ = products.Get(ctx, owner, mugID)
	if got.Stock != 3 {
		t.Fatalf("stock=%d, want 3", got.Stock)
	}
	if n, err := products.CountSales(ctx, owner, mugID); err != nil || n != 1 {
		t.Fatalf("CountSales=%d err=%v, want 1", n, err)
	}
	if err := products.Delete(ctx, owner, mugID); !errors.Is(err, productrepoport.ErrHasSales) {
		t.Fatalf("expected ErrHasSales, got %v", err)
	}

	// A product without sales can be deleted, freeing its category.
	teaID := domain.ServerID(uuid.NewString())
	if err := products.Create(ctx, productrepoport.Product{
		ID: teaID, Owner: owner, Name: "Tea", NameKey: "tea", Unit: "pcs", CreatedAt: now.Add(time.Second), UpdatedAt: now,
	}); err != nil {
		t.Fatalf("Create tea: %v", err)
	}
	list, total, err := products.List(ctx, owner, 0, 10)
	if err != nil || total != 2 || len(list) != 2 || list[0].ID != teaID {
		t.Fatalf("List total=%d len=%d err=%v first=%v, want newest first", total, len(list), err, list)
	}
	page2, total, err := products.List(ctx, owner, 1, 1)
	if err != nil || total != 2 || len(page2) != 1 || page2[0].ID != mugID {
		t.Fatalf("List offset=1 limit=1 got %v total=%d err=%v", page2, total, err)
	}
	if err := products.Delete(ctx, owner, teaID); err != nil {
		t.Fatalf("Delete tea: %v", err)
	}
	if err := products.Delete(ctx, owner, teaID); !errors.Is(err, productrepoport.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}

	cs, total, err := categories.List(ctx, owner, 0, 10)
	if err != nil || total != 1 || len(cs) != 1 || cs[0].ProductCount != 1 {
		t.Fatalf("categories List=%v total=%d err=%v", cs, total, err)
	}
}
