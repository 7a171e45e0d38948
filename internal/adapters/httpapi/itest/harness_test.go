package itest

import (
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Overland-East-Bay/stockroom/internal/adapters/httpapi"
	"github.com/Overland-East-Bay/stockroom/internal/adapters/httpclient"
	memcatalog "github.com/Overland-East-Bay/stockroom/internal/adapters/memory/catalogrepo"
	memclock "github.com/Overland-East-Bay/stockroom/internal/adapters/memory/clock"
	memidempotency "github.com/Overland-East-Bay/stockroom/internal/adapters/memory/idempotency"
	memnotify "github.com/Overland-East-Bay/stockroom/internal/adapters/memory/notify"
	memviewcache "github.com/Overland-East-Bay/stockroom/internal/adapters/memory/viewcache"
	pgcatalog "github.com/Overland-East-Bay/stockroom/internal/adapters/postgres/catalogrepo"
	pgidempotency "github.com/Overland-East-Bay/stockroom/internal/adapters/postgres/idempotency"
	pgtestutil "github.com/Overland-East-Bay/stockroom/internal/adapters/postgres/testutil"
	"github.com/Overland-East-Bay/stockroom/internal/app/catalog"
	"github.com/Overland-East-Bay/stockroom/internal/app/inventory"
	"github.com/Overland-East-Bay/stockroom/internal/platform/clock"
	categoryrepoport "github.com/Overland-East-Bay/stockroom/internal/ports/out/categoryrepo"
	idempotencyport "github.com/Overland-East-Bay/stockroom/internal/ports/out/idempotency"
	productrepoport "github.com/Overland-East-Bay/stockroom/internal/ports/out/productrepo"
)

type backend string

const (
	backendMemory   backend = "memory"
	backendPostgres backend = "postgres"
)

func backendsFromEnv(t *testing.T) []backend {
	t.Helper()
	switch strings.ToLower(strings.TrimSpace(os.Getenv("ITEST_BACKEND"))) {
	case "", "memory":
		return []backend{backendMemory}
	case "postgres":
		return []backend{backendPostgres}
	case "all":
		return []backend{backendMemory, backendPostgres}
	default:
		t.Fatalf("unknown ITEST_BACKEND value (expected memory|postgres|all)")
		return nil
	}
}

// forEachBackend runs fn once per configured storage backend.
func forEachBackend(t *testing.T, fn func(t *testing.T, b backend)) {
	t.Helper()
	for _, b := range backendsFromEnv(t) {
		b := b
		t.Run(string(b), func(t *testing.T) { fn(t, b) })
	}
}

type testServer struct {
	baseURL string
}

func newTestServer(t *testing.T, b backend) *testServer {
	t.Helper()

	var (
		products   productrepoport.Repository
		categories categoryrepoport.Repository
		idemStore  idempotencyport.Store
	)

	switch b {
	case backendPostgres:
		pool := pgtestutil.OpenMigratedPool(t)
		products = pgcatalog.NewProductRepo(pool)
		categories = pgcatalog.NewCategoryRepo(pool)
		idemStore = pgidempotency.NewStore(pool, time.Hour)
	case backendMemory:
		store := memcatalog.NewStore()
		products = store.Products()
		categories = store.Categories()
		idemStore = memidempotency.NewStore(time.Hour, nil)
	default:
		t.Fatalf("unknown backend: %s", b)
	}

	clk := memclock.NewManualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	svc := catalog.NewService(products, categories, clk)
	api := httpapi.NewServer(svc, idemStore, nil)

	// Empty default owner: every request must carry X-Debug-Subject.
	handler := httpapi.NewRouterWithOptions(api, httpapi.RouterOptions{AuthMiddleware: httpapi.NewDevAuthMiddleware("")})

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &testServer{baseURL: srv.URL}
}

type client struct {
	api   *httpclient.Client
	inv   *inventory.Service
	cache *memviewcache.Cache
	notes *memnotify.Recorder
}

// newClient returns an inventory service for a fresh owner, so tests sharing a
// Postgres database do not see each other's rows.
func (s *testServer) newClient(t *testing.T) *client {
	t.Helper()
	api, err := httpclient.New(httpclient.Config{
		BaseURL: s.baseURL,
		Timeout: 5 * time.Second,
		Owner:   "itest-" + uuid.NewString(),
	}, nil)
	if err != nil {
		t.Fatalf("httpclient.New: %v", err)
	}
	c := &client{
		api:   api,
		cache: memviewcache.NewCache(nil),
		notes: memnotify.NewRecorder(),
	}
	c.inv = inventory.New(api, c.cache, clock.NewSystemClock(), inventory.Options{
		Notifier:       c.notes,
		NameCheckDelay: 20 * time.Millisecond,
	})
	return c
}
