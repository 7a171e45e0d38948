package optimistic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Overland-East-Bay/stockroom/internal/domain"
	"github.com/Overland-East-Bay/stockroom/internal/ports/out/catalogapi"
	"github.com/Overland-East-Bay/stockroom/internal/ports/out/viewcache"
)

func TestCreate_PlaceholderThenInPlaceReplace(t *testing.T) {
	h := newHarness(t)
	existing := confirmed("a", "Alpha", 1)
	h.seed(sessionKey, []item{existing})
	page := &domain.Page[item]{Items: []item{existing}, Total: 1}
	h.seed(listKey, page)

	started, release := make(chan struct{}), make(chan struct{})
	h.remote.create = func(_ context.Context, token domain.CorrelationToken, f itemFields) (item, error) {
		close(started)
		<-release
		return confirmed("b", f.Name, f.Qty), nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := h.coord.Create(context.Background(), itemFields{Name: "Blue Mug", Qty: 2})
		done <- err
	}()

	<-started
	during := h.session()
	require.Len(t, during, 2)
	_, pending := during[0].ID.(domain.PendingID)
	assert.True(t, pending, "placeholder should be first and pending")
	assert.Equal(t, "Blue Mug", during[0].Name)
	assert.Same(t, page, h.page(), "list view must not be touched at create time")

	close(release)
	require.NoError(t, <-done)

	after := h.session()
	require.Len(t, after, 2)
	assert.Equal(t, confirmed("b", "Blue Mug", 2), after[0])
	assert.Equal(t, existing, after[1])
	assert.True(t, h.cache.Peek(listKey).Stale, "list should be invalidated")
}

func TestCreate_FailureRestoresSnapshotReference(t *testing.T) {
	h := newHarness(t)
	before := []item{confirmed("a", "Alpha", 1)}
	h.seed(sessionKey, before)
	h.seed(listKey, &domain.Page[item]{Items: before, Total: 1})

	h.remote.create = func(context.Context, domain.CorrelationToken, itemFields) (item, error) {
		return item{}, errors.New("dial tcp: network is unreachable")
	}

	_, err := h.coord.Create(context.Background(), itemFields{Name: "Blue Mug"})
	require.Error(t, err)
	assert.True(t, IsTransportFailure(err))

	assert.True(t, sameRef(before, h.cache.Peek(sessionKey).Value), "session must be reference-identical to its snapshot")
	assert.False(t, h.cache.Peek(listKey).Stale, "failed create must not invalidate the list")
	assert.Equal(t, []string{"Failed to create product"}, h.notes.Errors())
}

func TestCreate_OfflineOnEmptySessionLeavesItEmpty(t *testing.T) {
	h := newHarness(t)
	started, release := make(chan struct{}), make(chan struct{})
	h.remote.create = func(context.Context, domain.CorrelationToken, itemFields) (item, error) {
		close(started)
		<-release
		return item{}, errors.New("offline")
	}

	done := make(chan error, 1)
	go func() {
		_, err := h.coord.Create(context.Background(), itemFields{Name: "Blue Mug", Qty: 0})
		done <- err
	}()
	<-started
	require.Len(t, h.session(), 1)
	assert.Equal(t, "Blue Mug", h.session()[0].Name)

	close(release)
	require.Error(t, <-done)
	assert.False(t, h.cache.Peek(sessionKey).Present)
	assert.Len(t, h.notes.Errors(), 1)
}

func TestCreate_ConcurrentOutOfOrderEachReplacesOwnPlaceholder(t *testing.T) {
	h := newHarness(t)
	const n = 5

	var mu sync.Mutex
	gates := make(map[string]chan struct{}, n)
	for i := 0; i < n; i++ {
		gates[fmt.Sprintf("mug-%d", i)] = make(chan struct{})
	}
	arrived := make(chan string, n)
	h.remote.create = func(_ context.Context, _ domain.CorrelationToken, f itemFields) (item, error) {
		mu.Lock()
		g := gates[f.Name]
		mu.Unlock()
		arrived <- f.Name
		<-g
		return confirmed("id-"+f.Name, f.Name, f.Qty), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := h.coord.Create(context.Background(), itemFields{Name: fmt.Sprintf("mug-%d", i), Qty: i})
			assert.NoError(t, err)
		}(i)
	}
	for i := 0; i < n; i++ {
		<-arrived
	}
	require.Len(t, h.session(), n)

	// Settle in reverse submission order.
	for i := n - 1; i >= 0; i-- {
		close(gates[fmt.Sprintf("mug-%d", i)])
	}
	wg.Wait()

	got := h.session()
	require.Len(t, got, n)
	seen := make(map[string]int)
	for _, it := range got {
		id, ok := it.ID.(domain.ServerID)
		require.True(t, ok, "no placeholder may survive: %+v", it)
		assert.Equal(t, domain.ServerID("id-"+it.Name), id, "cross-replacement detected")
		seen[it.Name]++
	}
	for name, count := range seen {
		assert.Equal(t, 1, count, "%s appears %d times", name, count)
	}
	assert.Len(t, seen, n)
}

func TestCreate_RollbackKeepsConcurrentPlaceholder(t *testing.T) {
	h := newHarness(t)
	failGate, okGate := make(chan struct{}), make(chan struct{})
	arrived := make(chan string, 2)
	h.remote.create = func(_ context.Context, _ domain.CorrelationToken, f itemFields) (item, error) {
		arrived <- f.Name
		if f.Name == "Red Mug" {
			<-failGate
			return item{}, errors.New("boom")
		}
		<-okGate
		return confirmed("g", f.Name, 0), nil
	}

	errs := make(chan error, 2)
	go func() { _, err := h.coord.Create(context.Background(), itemFields{Name: "Red Mug"}); errs <- err }()
	<-arrived
	go func() { _, err := h.coord.Create(context.Background(), itemFields{Name: "Green Mug"}); errs <- err }()
	<-arrived
	require.Len(t, h.session(), 2)

	close(failGate)
	require.Error(t, <-errs)
	during := h.session()
	require.Len(t, during, 1, "only the failed placeholder may be removed")
	assert.Equal(t, "Green Mug", during[0].Name)

	close(okGate)
	require.NoError(t, <-errs)
	assert.Equal(t, []item{confirmed("g", "Green Mug", 0)}, h.session())
}

func TestUpdate_AppliesEverywhereThenReconciles(t *testing.T) {
	h := newHarness(t)
	orig := confirmed("p1", "Mug", 1)
	other := confirmed("p2", "Cup", 5)
	d := orig
	h.seed(detailKey("p1"), &d)
	h.seed(listKey, &domain.Page[item]{Items: []item{other, orig}, Total: 2})
	h.seed(sessionKey, []item{orig})

	started, release := make(chan struct{}), make(chan struct{})
	h.remote.update = func(_ context.Context, id domain.ServerID, ch itemChanges) (item, error) {
		close(started)
		<-release
		// Server computes quantity differently from the optimistic guess.
		return confirmed(string(id), *ch.Name, 42), nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := h.coord.Update(context.Background(), "p1", itemChanges{Name: strp("Big Mug"), Qty: intp(2)})
		done <- err
	}()
	<-started

	det, ok := viewcache.PeekAs[*item](h.cache, detailKey("p1"))
	require.True(t, ok)
	assert.Equal(t, "Big Mug", det.Name)
	assert.Equal(t, "Big Mug", h.page().Items[1].Name)
	assert.False(t, h.page().Items[1].Updating)
	assert.Equal(t, other, h.page().Items[0])
	assert.True(t, h.session()[0].Updating, "session copy carries the updating marker")
	assert.Equal(t, 2, h.session()[0].Qty)

	close(release)
	require.NoError(t, <-done)

	want := confirmed("p1", "Big Mug", 42)
	det, _ = viewcache.PeekAs[*item](h.cache, detailKey("p1"))
	assert.Equal(t, want, *det)
	assert.Equal(t, want, h.page().Items[1])
	assert.Equal(t, []item{want}, h.session())
	assert.True(t, h.cache.Peek(detailKey("p1")).Stale)
	assert.True(t, h.cache.Peek(listKey).Stale)
	assert.False(t, h.cache.Peek(sessionKey).Stale)
}

func TestUpdate_FailureRestoresEverySnapshotByReference(t *testing.T) {
	h := newHarness(t)
	orig := confirmed("p1", "Mug", 1)
	d := orig
	det := &d
	page := &domain.Page[item]{Items: []item{orig}, Total: 1}
	sess := []item{orig}
	h.seed(detailKey("p1"), det)
	h.seed(listKey, page)
	h.seed(sessionKey, sess)

	h.remote.update = func(context.Context, domain.ServerID, itemChanges) (item, error) {
		return item{}, &catalogapi.APIError{Status: http.StatusConflict, Code: catalogapi.CodeNameConflict, Message: "A product named \"Cup\" already exists"}
	}

	_, err := h.coord.Update(context.Background(), "p1", itemChanges{Name: strp("Cup")})
	require.Error(t, err)
	assert.True(t, IsValidationConflict(err))

	assert.Same(t, det, h.cache.Peek(detailKey("p1")).Value)
	assert.Same(t, page, h.cache.Peek(listKey).Value)
	assert.True(t, sameRef(sess, h.cache.Peek(sessionKey).Value))
	for _, it := range h.session() {
		assert.False(t, it.Updating, "no updating marker may survive settlement")
	}
	assert.Equal(t, []string{`A product named "Cup" already exists`}, h.notes.Errors())
}

func TestUpdate_FailureRestoresInvalidatedDetail(t *testing.T) {
	h := newHarness(t)
	orig := confirmed("p1", "Mug", 1)
	d := orig
	det := &d
	h.seed(detailKey("p1"), det)
	h.seed(listKey, &domain.Page[item]{Items: []item{orig}, Total: 1})

	h.remote.update = func(context.Context, domain.ServerID, itemChanges) (item, error) {
		// A concurrent mutation marks the views stale before this one settles.
		h.cache.Invalidate(viewcache.ForResource(domain.ResourceProducts))
		return item{}, errors.New("offline")
	}

	_, err := h.coord.Update(context.Background(), "p1", itemChanges{Name: strp("Cup")})
	require.Error(t, err)

	e := h.cache.Peek(detailKey("p1"))
	assert.Same(t, det, e.Value)
	assert.True(t, e.Stale)
	require.NotNil(t, h.page())
	assert.Equal(t, "Mug", h.page().Items[0].Name)
}

func TestUpdate_SuccessNoticeNamesResource(t *testing.T) {
	h := newHarness(t)
	h.seed(detailKey("p1"), &item{ID: domain.ServerID("p1"), Name: "Mug"})
	h.remote.update = func(_ context.Context, id domain.ServerID, ch itemChanges) (item, error) {
		return confirmed(string(id), *ch.Name, 0), nil
	}

	_, err := h.coord.Update(context.Background(), "p1", itemChanges{Name: strp("Cup")})
	require.NoError(t, err)

	notices := h.notes.Notices()
	require.NotEmpty(t, notices)
	assert.Equal(t, "Product updated", notices[len(notices)-1].Message)
}

func TestUpdate_SameEntityIsSerialized(t *testing.T) {
	h := newHarness(t)
	h.seed(sessionKey, []item{confirmed("p1", "Mug", 1)})

	var mu sync.Mutex
	inFlight, maxInFlight := 0, 0
	firstStarted, releaseFirst := make(chan struct{}), make(chan struct{})
	var calls int
	h.remote.update = func(_ context.Context, id domain.ServerID, ch itemChanges) (item, error) {
		mu.Lock()
		calls++
		call := calls
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()
		if call == 1 {
			close(firstStarted)
			<-releaseFirst
		}
		mu.Lock()
		inFlight--
		mu.Unlock()
		return confirmed(string(id), *ch.Name, 1), nil
	}

	errs := make(chan error, 2)
	go func() { _, err := h.coord.Update(context.Background(), "p1", itemChanges{Name: strp("A")}); errs <- err }()
	<-firstStarted
	go func() { _, err := h.coord.Update(context.Background(), "p1", itemChanges{Name: strp("B")}); errs <- err }()

	require.Eventually(t, func() bool { return h.coord.locks.held("p1") == 2 }, time.Second, time.Millisecond)
	close(releaseFirst)
	require.NoError(t, <-errs)
	require.NoError(t, <-errs)

	assert.Equal(t, 1, maxInFlight)
	assert.Equal(t, "B", h.session()[0].Name)
	assert.Equal(t, 0, h.coord.locks.held("p1"))
}

func TestUpdate_ContextCancelledWhileAwaitingRollsBack(t *testing.T) {
	h := newHarness(t)
	sess := []item{confirmed("p1", "Mug", 1)}
	h.seed(sessionKey, sess)

	ctx, cancel := context.WithCancel(context.Background())
	h.remote.update = func(ctx context.Context, _ domain.ServerID, _ itemChanges) (item, error) {
		cancel()
		<-ctx.Done()
		return item{}, ctx.Err()
	}

	_, err := h.coord.Update(ctx, "p1", itemChanges{Name: strp("X")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.True(t, sameRef(sess, h.cache.Peek(sessionKey).Value))
}

func TestDelete_RemovesThenInvalidates(t *testing.T) {
	h := newHarness(t)
	a, b := confirmed("a", "A", 1), confirmed("b", "B", 1)
	d := b
	h.seed(detailKey("b"), &d)
	h.seed(listKey, &domain.Page[item]{Items: []item{a, b}, Total: 2})
	h.seed(sessionKey, []item{b})

	started, release := make(chan struct{}), make(chan struct{})
	h.remote.del = func(context.Context, domain.ServerID) error {
		close(started)
		<-release
		return nil
	}
	done := make(chan error, 1)
	go func() { done <- h.coord.Delete(context.Background(), "b") }()

	<-started
	assert.Equal(t, []item{a}, h.page().Items)
	assert.Equal(t, 1, h.page().Total)
	assert.Empty(t, h.session())

	close(release)
	require.NoError(t, <-done)
	assert.True(t, h.cache.Peek(listKey).Stale)
	assert.False(t, h.cache.Peek(detailKey("b")).Present)
}

func TestDelete_DependencyConflictRestoresListAndSurfacesReason(t *testing.T) {
	h := newHarness(t)
	page := &domain.Page[item]{Items: []item{confirmed("a", "A", 1), confirmed("b", "B", 1)}, Total: 2}
	h.seed(listKey, page)

	h.remote.del = func(context.Context, domain.ServerID) error {
		return &catalogapi.APIError{
			Status:  http.StatusConflict,
			Code:    catalogapi.CodeDependencyConflict,
			Message: "Cannot delete product with existing sales history",
			Details: map[string]any{"sales": float64(3)},
		}
	}

	err := h.coord.Delete(context.Background(), "a")
	require.Error(t, err)
	assert.True(t, IsDependencyConflict(err))
	var oe *Error
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, "Cannot delete product with existing sales history", oe.Message)
	assert.Equal(t, float64(3), oe.Details["sales"])

	assert.Same(t, page, h.cache.Peek(listKey).Value)
	assert.Equal(t, []string{"Cannot delete product with existing sales history"}, h.notes.Errors())
}

func TestDelete_RollbackReinsertsAtOriginalPositionWhenListChanged(t *testing.T) {
	h := newHarness(t)
	a, b, c := confirmed("a", "A", 1), confirmed("b", "B", 1), confirmed("c", "C", 1)
	h.seed(listKey, &domain.Page[item]{Items: []item{a, b, c}, Total: 3})

	started, release := make(chan struct{}), make(chan struct{})
	h.remote.del = func(context.Context, domain.ServerID) error {
		close(started)
		<-release
		return errors.New("boom")
	}
	done := make(chan error, 1)
	go func() { done <- h.coord.Delete(context.Background(), "b") }()
	<-started

	// A concurrent writer replaces the page while the delete is in flight.
	c2 := confirmed("c", "C2", 9)
	h.seed(listKey, &domain.Page[item]{Items: []item{a, c2}, Total: 2})

	close(release)
	require.Error(t, <-done)
	assert.Equal(t, []item{a, b, c2}, h.page().Items)
	assert.Equal(t, 3, h.page().Total)
}

func TestCreate_CancelsInFlightListRead(t *testing.T) {
	h := newHarness(t)
	loadStarted := make(chan struct{})
	loadCtxDone := make(chan struct{})
	readDone := make(chan error, 1)
	go func() {
		_, err := h.cache.Read(context.Background(), listKey, func(ctx context.Context) (any, error) {
			close(loadStarted)
			<-ctx.Done()
			close(loadCtxDone)
			return nil, ctx.Err()
		})
		readDone <- err
	}()
	<-loadStarted

	h.remote.create = func(_ context.Context, _ domain.CorrelationToken, f itemFields) (item, error) {
		return confirmed("x", f.Name, 0), nil
	}
	_, err := h.coord.Create(context.Background(), itemFields{Name: "X"})
	require.NoError(t, err)

	select {
	case <-loadCtxDone:
	case <-time.After(time.Second):
		t.Fatal("in-flight list read was not cancelled")
	}
	assert.ErrorIs(t, <-readDone, viewcache.ErrCanceled)
}

func TestTokenSource_DistinctWithinOneTick(t *testing.T) {
	h := newHarness(t)
	src := NewTokenSource(h.clk)
	a, b, c := src.Next(), src.Next(), src.Next()
	assert.Less(t, int64(a), int64(b))
	assert.Less(t, int64(b), int64(c))
	assert.Equal(t, h.clk.Now().UnixNano(), int64(a))
}
