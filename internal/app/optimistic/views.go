package optimistic

import (
	"reflect"

	"github.com/Overland-East-Bay/stockroom/internal/domain"
	"github.com/Overland-East-Bay/stockroom/internal/ports/out/viewcache"
)

// View values are never modified in place; every helper here returns a new slice
// or page so snapshots taken earlier stay intact.

func sessionOf[E any](e viewcache.Entry) []E {
	if !e.Present {
		return nil
	}
	s, _ := e.Value.([]E)
	return s
}

func pageOf[E any](e viewcache.Entry) (*domain.Page[E], bool) {
	if !e.Present {
		return nil, false
	}
	p, ok := e.Value.(*domain.Page[E])
	return p, ok && p != nil
}

func detailOf[E any](e viewcache.Entry) (*E, bool) {
	if !e.Present {
		return nil, false
	}
	d, ok := e.Value.(*E)
	return d, ok && d != nil
}

func prepend[E any](items []E, v E) []E {
	out := make([]E, 0, len(items)+1)
	out = append(out, v)
	return append(out, items...)
}

func replaceAt[E any](items []E, i int, v E) []E {
	out := make([]E, len(items))
	copy(out, items)
	out[i] = v
	return out
}

func removeAt[E any](items []E, i int) []E {
	out := make([]E, 0, len(items)-1)
	out = append(out, items[:i]...)
	return append(out, items[i+1:]...)
}

func insertAt[E any](items []E, i int, v E) []E {
	if i > len(items) {
		i = len(items)
	}
	out := make([]E, 0, len(items)+1)
	out = append(out, items[:i]...)
	out = append(out, v)
	return append(out, items[i:]...)
}

func withItems[E any](p *domain.Page[E], items []E, totalDelta int) *domain.Page[E] {
	out := *p
	out.Items = items
	out.Total += totalDelta
	if out.Total < 0 {
		out.Total = 0
	}
	return &out
}

// fresh returns a present, non-stale entry holding v. Optimistic values are
// fresh so that a read during the mutation serves them instead of refetching.
func fresh(v any) viewcache.Entry { return viewcache.Has(v) }

// keep returns cur with the value replaced, preserving staleness.
func keep(cur viewcache.Entry, v any) viewcache.Entry {
	return viewcache.Entry{Value: v, Present: true, Stale: cur.Stale}
}

// restoreDetail puts st's snapshot back into a detail cell that still holds the
// value st wrote, even if the cell was invalidated since.
func restoreDetail(cur viewcache.Entry, st stage) viewcache.Entry {
	if !cur.Present || !sameRef(cur.Value, st.applied.Value) {
		return cur
	}
	return keep(cur, st.snapshot.Value)
}

// sameEntry reports whether a and b are the identical cell state: same presence,
// same staleness and reference-identical values.
func sameEntry(a, b viewcache.Entry) bool {
	if a.Present != b.Present || a.Stale != b.Stale {
		return false
	}
	if !a.Present {
		return true
	}
	return sameRef(a.Value, b.Value)
}

func sameRef(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	case reflect.Slice:
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
	default:
		return va.Comparable() && va.Equal(vb)
	}
}
