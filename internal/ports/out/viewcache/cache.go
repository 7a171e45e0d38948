package viewcache

import (
	"context"
	"errors"
	"fmt"

	"github.com/Overland-East-Bay/stockroom/internal/domain"
)

// View names one of the cached projections kept per resource.
type View string

const (
	// ViewDetail holds a single entity (value type *E) keyed by server id.
	ViewDetail View = "detail"
	// ViewList holds the default browsable page (value type *domain.Page[E]).
	ViewList View = "list"
	// ViewSession holds entities touched during the current creation workflow
	// (value type []E). It is never loaded from the server.
	ViewSession View = "session"
)

// Key addresses one cached view. Only detail keys carry an ID.
type Key struct {
	Resource domain.ResourceKind
	View     View
	ID       domain.ServerID
}

func DetailKey(r domain.ResourceKind, id domain.ServerID) Key {
	return Key{Resource: r, View: ViewDetail, ID: id}
}

func ListKey(r domain.ResourceKind) Key { return Key{Resource: r, View: ViewList} }

func SessionKey(r domain.ResourceKind) Key { return Key{Resource: r, View: ViewSession} }

func (k Key) String() string {
	if k.ID != "" {
		return fmt.Sprintf("%s/%s/%s", k.Resource, k.View, k.ID)
	}
	return fmt.Sprintf("%s/%s", k.Resource, k.View)
}

// Predicate selects keys for bulk operations.
type Predicate func(Key) bool

// Exactly matches a single key.
func Exactly(k Key) Predicate { return func(o Key) bool { return o == k } }

// ForResource matches every view of a resource.
func ForResource(r domain.ResourceKind) Predicate {
	return func(k Key) bool { return k.Resource == r }
}

// ForView matches every key of one view kind of a resource (all detail keys, say).
func ForView(r domain.ResourceKind, v View) Predicate {
	return func(k Key) bool { return k.Resource == r && k.View == v }
}

// AnyOf matches keys accepted by any of ps.
func AnyOf(ps ...Predicate) Predicate {
	return func(k Key) bool {
		for _, p := range ps {
			if p(k) {
				return true
			}
		}
		return false
	}
}

// Entry is the state of one cell: a value, or absence. A stale entry is still
// readable through Peek but is refetched by the next Read.
type Entry struct {
	Value   any
	Present bool
	Stale   bool
}

// Absent is the Entry of a cell that holds no value.
var Absent = Entry{}

// Has returns a present Entry holding v.
func Has(v any) Entry { return Entry{Value: v, Present: true} }

// Loader fetches the authoritative value of a view.
type Loader func(ctx context.Context) (any, error)

// ErrCanceled is returned by Read when its load was cancelled and no cached value
// exists to fall back on.
var ErrCanceled = errors.New("view read canceled")

// Cache is the key-addressed async cache the mutation engine keeps consistent.
//
// Every operation on a single key is atomic from the caller's perspective. Values
// stored in the cache must be treated as immutable: writers build a new value and
// replace the cell via Write.
type Cache interface {
	// Read returns the cached value, loading it when absent or invalidated.
	// Concurrent reads of one key share a load. A load that is cancelled, or that
	// completes after a newer write to the key, never replaces the cell.
	Read(ctx context.Context, key Key, load Loader) (any, error)

	// Peek returns the cell without loading.
	Peek(key Key) Entry

	// Write atomically replaces the cell with update(current) and returns the new
	// entry. Writing Absent removes the value. Every write fences loads that
	// started before it.
	Write(key Key, update func(Entry) Entry) Entry

	// CancelInFlight cancels loads for matching keys and fences their results.
	CancelInFlight(match Predicate)

	// Invalidate marks matching cells stale so the next Read refetches, and fences
	// loads already in flight. Values stay readable through Peek until then.
	Invalidate(match Predicate)

	// Remove drops matching cells entirely.
	Remove(match Predicate)
}

// ReadAs is Read with a typed result.
func ReadAs[T any](ctx context.Context, c Cache, key Key, load func(context.Context) (T, error)) (T, error) {
	v, err := c.Read(ctx, key, func(ctx context.Context) (any, error) { return load(ctx) })
	if err != nil {
		var zero T
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("view %s holds %T", key, v)
	}
	return t, nil
}

// PeekAs is Peek with a typed result. ok is false when the cell is absent or holds
// a different type.
func PeekAs[T any](c Cache, key Key) (T, bool) {
	e := c.Peek(key)
	if !e.Present {
		var zero T
		return zero, false
	}
	t, ok := e.Value.(T)
	return t, ok
}
