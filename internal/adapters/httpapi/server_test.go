package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Overland-East-Bay/stockroom/internal/adapters/httpapi/dto"
	memcatalog "github.com/Overland-East-Bay/stockroom/internal/adapters/memory/catalogrepo"
	memclock "github.com/Overland-East-Bay/stockroom/internal/adapters/memory/clock"
	memidempotency "github.com/Overland-East-Bay/stockroom/internal/adapters/memory/idempotency"
	"github.com/Overland-East-Bay/stockroom/internal/app/catalog"
)

const testOwner = "owner-1"

func newTestRouter(t *testing.T, defaultOwner string) http.Handler {
	t.Helper()
	store := memcatalog.NewStore()
	clk := memclock.NewManualClock(time.Unix(1700000000, 0).UTC())
	svc := catalog.NewService(store.Products(), store.Categories(), clk)
	srv := NewServer(svc, memidempotency.NewStore(0, nil), nil)
	return NewRouterWithOptions(srv, RouterOptions{AuthMiddleware: NewDevAuthMiddleware(defaultOwner)})
}

type call struct {
	method  string
	path    string
	body    string
	headers map[string]string
}

func do(t *testing.T, h http.Handler, c call) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Buffer
	if c.body != "" {
		body = bytes.NewBufferString(c.body)
	} else {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(c.method, c.path, body)
	req.Header.Set(HeaderSubject, testOwner)
	if c.body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeData[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var env dto.Envelope[T]
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v body=%s", err, rec.Body.String())
	}
	return env.Data
}

func requireError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) dto.ErrorResponse {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status=%d want=%d body=%s", rec.Code, status, rec.Body.String())
	}
	var er dto.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &er); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if er.Code != code {
		t.Fatalf("code=%q want=%q body=%s", er.Code, code, rec.Body.String())
	}
	return er
}

func TestProducts_CreateGetAndNameConflict(t *testing.T) {
	t.Parallel()
	h := newTestRouter(t, "")

	rec := do(t, h, call{method: http.MethodPost, path: "/products", body: `{"name":"  Blue  Mug ","price":"4.5","stock":3}`})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	p := decodeData[dto.Product](t, rec)
	if p.Name != "Blue Mug" || p.Unit != "pcs" || p.Stock != 3 || p.ID == "" {
		t.Fatalf("product=%+v", p)
	}

	rec = do(t, h, call{method: http.MethodGet, path: "/products/" + p.ID})
	if rec.Code != http.StatusOK || decodeData[dto.Product](t, rec).ID != p.ID {
		t.Fatalf("get: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, h, call{method: http.MethodPost, path: "/products", body: `{"name":"blue mug"}`})
	er := requireError(t, rec, http.StatusConflict, "NAME_CONFLICT")
	if er.Error != `A product named "blue mug" already exists` {
		t.Fatalf("error=%q", er.Error)
	}

	rec = do(t, h, call{method: http.MethodGet, path: "/products/does-not-exist"})
	requireError(t, rec, http.StatusNotFound, "NOT_FOUND")
}

func TestProducts_IdempotentCreate(t *testing.T) {
	t.Parallel()
	h := newTestRouter(t, "")
	key := map[string]string{HeaderIdempotencyKey: "1700000000000000001"}

	first := do(t, h, call{method: http.MethodPost, path: "/products", body: `{"name":"Mug"}`, headers: key})
	if first.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", first.Code, first.Body.String())
	}
	// Whitespace-only differences canonicalize to the same body.
	replay := do(t, h, call{method: http.MethodPost, path: "/products", body: `{"name":" Mug "}`, headers: key})
	if replay.Code != http.StatusCreated || replay.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatalf("replay: %d headers=%v", replay.Code, replay.Header())
	}
	if decodeData[dto.Product](t, replay).ID != decodeData[dto.Product](t, first).ID {
		t.Fatalf("replay returned a different product")
	}

	rec := do(t, h, call{method: http.MethodPost, path: "/products", body: `{"name":"Cup"}`, headers: key})
	requireError(t, rec, http.StatusConflict, "IDEMPOTENCY_KEY_REUSE")

	list := do(t, h, call{method: http.MethodGet, path: "/products"})
	if page := decodeData[dto.Page[dto.Product]](t, list); page.Total != 1 {
		t.Fatalf("total=%d, want 1", page.Total)
	}
}

func TestProducts_UpdatePartial(t *testing.T) {
	t.Parallel()
	h := newTestRouter(t, "")

	p := decodeData[dto.Product](t, do(t, h, call{method: http.MethodPost, path: "/products", body: `{"name":"Mug","description":"ceramic","stock":2}`}))

	rec := do(t, h, call{method: http.MethodPut, path: "/products/" + p.ID, body: `{"description":null,"price":"7.25"}`})
	if rec.Code != http.StatusOK {
		t.Fatalf("update: %d %s", rec.Code, rec.Body.String())
	}
	got := decodeData[dto.Product](t, rec)
	if got.Description != nil || got.Price.String() != "7.25" || got.Stock != 2 || got.Name != "Mug" {
		t.Fatalf("updated=%+v", got)
	}

	rec = do(t, h, call{method: http.MethodPut, path: "/products/" + p.ID, body: `{"stock":-4}`})
	requireError(t, rec, http.StatusUnprocessableEntity, "VALIDATION_ERROR")
}

func TestProducts_DeleteWithSalesIsRefused(t *testing.T) {
	t.Parallel()
	h := newTestRouter(t, "")

	p := decodeData[dto.Product](t, do(t, h, call{method: http.MethodPost, path: "/products", body: `{"name":"Mug","stock":5}`}))

	rec := do(t, h, call{method: http.MethodPost, path: "/products/" + p.ID + "/sales", body: `{"quantity":2}`})
	if rec.Code != http.StatusCreated {
		t.Fatalf("sale: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, h, call{method: http.MethodDelete, path: "/products/" + p.ID})
	er := requireError(t, rec, http.StatusConflict, "DEPENDENCY_CONFLICT")
	details, err := er.Details.Get()
	if err != nil || details["sales"] != float64(1) {
		t.Fatalf("details=%v err=%v", details, err)
	}
	if er.Error != "Cannot delete product with existing sales history" {
		t.Fatalf("error=%q", er.Error)
	}

	q := decodeData[dto.Product](t, do(t, h, call{method: http.MethodPost, path: "/products", body: `{"name":"Cup"}`}))
	rec = do(t, h, call{method: http.MethodDelete, path: "/products/" + q.ID})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: %d %s", rec.Code, rec.Body.String())
	}
}

func TestCheckName(t *testing.T) {
	t.Parallel()
	h := newTestRouter(t, "")

	c := decodeData[dto.Category](t, do(t, h, call{method: http.MethodPost, path: "/categories", body: `{"name":"Drinkware"}`}))

	rec := do(t, h, call{method: http.MethodGet, path: "/categories/check-name?name=drinkware"})
	if rec.Code != http.StatusOK || decodeData[dto.CheckNameResponse](t, rec).IsUnique {
		t.Fatalf("check-name taken: %d %s", rec.Code, rec.Body.String())
	}
	rec = do(t, h, call{method: http.MethodGet, path: "/categories/check-name?name=Drinkware&excludeId=" + c.ID})
	if !decodeData[dto.CheckNameResponse](t, rec).IsUnique {
		t.Fatalf("check-name excluding self: %s", rec.Body.String())
	}
	rec = do(t, h, call{method: http.MethodGet, path: "/products/check-name?name=Drinkware"})
	if !decodeData[dto.CheckNameResponse](t, rec).IsUnique {
		t.Fatalf("product names are separate from category names")
	}

	rec = do(t, h, call{method: http.MethodGet, path: "/products/check-name"})
	requireError(t, rec, http.StatusUnprocessableEntity, "VALIDATION_ERROR")
}

func TestCategories_DeleteWithProductsIsRefused(t *testing.T) {
	t.Parallel()
	h := newTestRouter(t, "")

	c := decodeData[dto.Category](t, do(t, h, call{method: http.MethodPost, path: "/categories", body: `{"name":"Drinkware"}`}))
	rec := do(t, h, call{method: http.MethodPost, path: "/products", body: `{"name":"Mug","categoryId":"` + c.ID + `"}`})
	p := decodeData[dto.Product](t, rec)
	if p.Category == nil || p.Category.Name != "Drinkware" {
		t.Fatalf("category ref=%+v", p.Category)
	}

	rec = do(t, h, call{method: http.MethodDelete, path: "/categories/" + c.ID})
	requireError(t, rec, http.StatusConflict, "DEPENDENCY_CONFLICT")

	rec = do(t, h, call{method: http.MethodGet, path: "/categories/" + c.ID})
	if got := decodeData[dto.Category](t, rec); got.ProductCount != 1 {
		t.Fatalf("productCount=%d", got.ProductCount)
	}
}

func TestList_PagingParams(t *testing.T) {
	t.Parallel()
	h := newTestRouter(t, "")

	for _, name := range []string{"a", "b", "c"} {
		do(t, h, call{method: http.MethodPost, path: "/categories", body: `{"name":"` + name + `"}`})
	}
	rec := do(t, h, call{method: http.MethodGet, path: "/categories?page=2&limit=2"})
	page := decodeData[dto.Page[dto.Category]](t, rec)
	if page.Total != 3 || page.Page != 2 || len(page.Items) != 1 || page.Items[0].Name != "c" {
		t.Fatalf("page=%+v", page)
	}

	rec = do(t, h, call{method: http.MethodGet, path: "/categories?page=abc"})
	requireError(t, rec, http.StatusUnprocessableEntity, "VALIDATION_ERROR")
}

func TestMalformedBody_400(t *testing.T) {
	t.Parallel()
	h := newTestRouter(t, "")

	rec := do(t, h, call{method: http.MethodPost, path: "/products", body: `{`})
	er := requireError(t, rec, http.StatusBadRequest, "BAD_REQUEST")
	if !strings.Contains(er.Error, "malformed") {
		t.Fatalf("error=%q", er.Error)
	}
}
