package optimistic

import (
	"context"
	"testing"
	"time"

	memclock "github.com/Overland-East-Bay/stockroom/internal/adapters/memory/clock"
	memnotify "github.com/Overland-East-Bay/stockroom/internal/adapters/memory/notify"
	memviewcache "github.com/Overland-East-Bay/stockroom/internal/adapters/memory/viewcache"
	"github.com/Overland-East-Bay/stockroom/internal/domain"
	"github.com/Overland-East-Bay/stockroom/internal/ports/out/viewcache"
)

// item is a minimal entity used to exercise the coordinator generically.
type item struct {
	ID       domain.EntityID
	Name     string
	Qty      int
	Updating bool
}

type itemFields struct {
	Name string
	Qty  int
}

type itemChanges struct {
	Name *string
	Qty  *int
}

type itemResource struct{}

func (itemResource) Kind() domain.ResourceKind { return domain.ResourceProducts }
func (itemResource) IDOf(e item) domain.EntityID { return e.ID }
func (itemResource) SetUpdating(e item, on bool) item { e.Updating = on; return e }

func (itemResource) Placeholder(id domain.PendingID, f itemFields, _ time.Time) item {
	return item{ID: id, Name: f.Name, Qty: f.Qty}
}

func (itemResource) Apply(ch itemChanges) func(item) item {
	return func(e item) item {
		if ch.Name != nil {
			e.Name = *ch.Name
		}
		if ch.Qty != nil {
			e.Qty = *ch.Qty
		}
		return e
	}
}

type fakeRemote struct {
	create func(ctx context.Context, token domain.CorrelationToken, f itemFields) (item, error)
	update func(ctx context.Context, id domain.ServerID, ch itemChanges) (item, error)
	del    func(ctx context.Context, id domain.ServerID) error
}

func (r *fakeRemote) Create(ctx context.Context, token domain.CorrelationToken, f itemFields) (item, error) {
	return r.create(ctx, token, f)
}

func (r *fakeRemote) Update(ctx context.Context, id domain.ServerID, ch itemChanges) (item, error) {
	return r.update(ctx, id, ch)
}

func (r *fakeRemote) Delete(ctx context.Context, id domain.ServerID) error {
	return r.del(ctx, id)
}

type harness struct {
	coord  *Coordinator[item, itemFields, itemChanges]
	cache  *memviewcache.Cache
	remote *fakeRemote
	notes  *memnotify.Recorder
	clk    *memclock.ManualClock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		cache:  memviewcache.NewCache(nil),
		remote: &fakeRemote{},
		notes:  memnotify.NewRecorder(),
		clk:    memclock.NewManualClock(time.Unix(1700000000, 0).UTC()),
	}
	h.coord = New[item, itemFields, itemChanges](itemResource{}, h.remote, h.cache, h.clk, Options{Notifier: h.notes})
	return h
}

var (
	sessionKey = viewcache.SessionKey(domain.ResourceProducts)
	listKey    = viewcache.ListKey(domain.ResourceProducts)
)

func detailKey(id domain.ServerID) viewcache.Key {
	return viewcache.DetailKey(domain.ResourceProducts, id)
}

func (h *harness) seed(key viewcache.Key, v any) {
	h.cache.Write(key, func(viewcache.Entry) viewcache.Entry { return viewcache.Has(v) })
}

func (h *harness) session() []item {
	s, _ := viewcache.PeekAs[[]item](h.cache, sessionKey)
	return s
}

func (h *harness) page() *domain.Page[item] {
	p, _ := viewcache.PeekAs[*domain.Page[item]](h.cache, listKey)
	return p
}

func confirmed(id, name string, qty int) item {
	return item{ID: domain.ServerID(id), Name: name, Qty: qty}
}

func strp(s string) *string { return &s }
func intp(n int) *int { return &n }
