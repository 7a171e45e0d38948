package viewcache

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/Overland-East-Bay/stockroom/internal/platform/logging"
	"github.com/Overland-East-Bay/stockroom/internal/ports/out/viewcache"
)

var errFenced = errors.New("load superseded")

// Cache is an in-memory implementation of viewcache.Cache.
// It is safe for concurrent use.
//
// Each cell carries a generation drawn from a cache-wide monotonic counter. Writes,
// invalidations, cancellations and removals move a cell to a new generation; a
// load commits its result only if the cell is still at the generation the load
// started from.
type Cache struct {
	mu    sync.Mutex
	cells map[viewcache.Key]*cell
	gen   uint64

	group singleflight.Group
	log   logrus.FieldLogger
}

type cell struct {
	entry    viewcache.Entry
	gen      uint64
	inflight *load
}

type load struct {
	gen    uint64
	ctx    context.Context
	cancel context.CancelFunc
}

// NewCache returns an empty cache. A nil logger discards output.
func NewCache(log logrus.FieldLogger) *Cache {
	if log == nil {
		log = logging.Discard()
	}
	return &Cache{
		cells: make(map[viewcache.Key]*cell),
		log:   log,
	}
}

func (c *Cache) nextGenLocked() uint64 {
	c.gen++
	return c.gen
}

func (c *Cache) cellLocked(key viewcache.Key) *cell {
	cl, ok := c.cells[key]
	if !ok {
		cl = &cell{gen: c.nextGenLocked()}
		c.cells[key] = cl
	}
	return cl
}

func (c *Cache) Read(ctx context.Context, key viewcache.Key, loader viewcache.Loader) (any, error) {
	c.mu.Lock()
	cl := c.cellLocked(key)
	if cl.entry.Present && !cl.entry.Stale {
		v := cl.entry.Value
		c.mu.Unlock()
		return v, nil
	}
	if cl.inflight == nil || cl.inflight.gen != cl.gen {
		// Loads are shared between readers, so they must outlive any one caller.
		lctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		cl.inflight = &load{gen: cl.gen, ctx: lctx, cancel: cancel}
	}
	ld := cl.inflight
	c.mu.Unlock()

	ch := c.group.DoChan(key.String()+"#"+strconv.FormatUint(ld.gen, 10), func() (any, error) {
		v, err := loader(ld.ctx)
		return c.commit(key, ld, v, err)
	})

	select {
	case res := <-ch:
		if errors.Is(res.Err, errFenced) {
			if e := c.Peek(key); e.Present {
				return e.Value, nil
			}
			return nil, viewcache.ErrCanceled
		}
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Cache) commit(key viewcache.Key, ld *load, v any, loadErr error) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cl := c.cells[key]
	if cl != nil && cl.inflight == ld {
		cl.inflight = nil
	}
	fenced := cl == nil || cl.gen != ld.gen || ld.ctx.Err() != nil
	ld.cancel()
	if fenced {
		c.log.WithFields(logrus.Fields{"key": key.String(), "gen": ld.gen}).Debug("discarding superseded view load")
		return nil, errFenced
	}
	if loadErr != nil {
		return nil, loadErr
	}
	cl.entry = viewcache.Has(v)
	return v, nil
}

func (c *Cache) Peek(key viewcache.Key) viewcache.Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cl, ok := c.cells[key]; ok {
		return cl.entry
	}
	return viewcache.Absent
}

func (c *Cache) Write(key viewcache.Key, update func(viewcache.Entry) viewcache.Entry) viewcache.Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	cl := c.cellLocked(key)
	next := update(cl.entry)
	if !next.Present {
		next = viewcache.Absent
	}
	cl.entry = next
	cl.gen = c.nextGenLocked()
	return next
}

func (c *Cache) CancelInFlight(match viewcache.Predicate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, cl := range c.cells {
		if !match(key) || cl.inflight == nil {
			continue
		}
		cl.inflight.cancel()
		cl.inflight = nil
		cl.gen = c.nextGenLocked()
		c.log.WithField("key", key.String()).Debug("cancelled in-flight view load")
	}
}

func (c *Cache) Invalidate(match viewcache.Predicate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, cl := range c.cells {
		if !match(key) {
			continue
		}
		if cl.inflight != nil {
			cl.inflight.cancel()
			cl.inflight = nil
		}
		if cl.entry.Present {
			cl.entry.Stale = true
		}
		cl.gen = c.nextGenLocked()
	}
}

func (c *Cache) Remove(match viewcache.Predicate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, cl := range c.cells {
		if !match(key) {
			continue
		}
		if cl.inflight != nil {
			cl.inflight.cancel()
		}
		delete(c.cells, key)
	}
}
