package optimistic

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/Overland-East-Bay/stockroom/internal/domain"
	"github.com/Overland-East-Bay/stockroom/internal/platform/logging"
	clockport "github.com/Overland-East-Bay/stockroom/internal/ports/out/clock"
	"github.com/Overland-East-Bay/stockroom/internal/ports/out/notify"
	"github.com/Overland-East-Bay/stockroom/internal/ports/out/viewcache"
)

// Options configures a Coordinator. Zero values are usable.
type Options struct {
	Notifier notify.Notifier
	Log      logrus.FieldLogger
	// Tokens may be shared between coordinators; nil creates a private source.
	Tokens *TokenSource
}

// Coordinator runs optimistic create/update/delete for one resource kind.
// It is safe for concurrent use.
type Coordinator[E, C, P any] struct {
	res      Resource[E, C, P]
	remote   Remote[E, C, P]
	cache    viewcache.Cache
	clk      clockport.Clock
	notifier notify.Notifier
	log      logrus.FieldLogger
	tokens   *TokenSource
	locks    *entityLocks
}

func New[E, C, P any](res Resource[E, C, P], remote Remote[E, C, P], cache viewcache.Cache, clk clockport.Clock, opts Options) *Coordinator[E, C, P] {
	c := &Coordinator[E, C, P]{
		res:      res,
		remote:   remote,
		cache:    cache,
		clk:      clk,
		notifier: opts.Notifier,
		log:      opts.Log,
		tokens:   opts.Tokens,
		locks:    newEntityLocks(),
	}
	if c.notifier == nil {
		c.notifier = notify.Discard{}
	}
	if c.log == nil {
		c.log = logging.Discard()
	}
	if c.tokens == nil {
		c.tokens = NewTokenSource(clk)
	}
	return c
}

func (c *Coordinator[E, C, P]) Kind() domain.ResourceKind { return c.res.Kind() }

// stage is one view touched by a mutation: its pre-mutation snapshot and the value
// the mutation wrote.
type stage struct {
	key      viewcache.Key
	snapshot viewcache.Entry
	applied  viewcache.Entry
}

// apply snapshots key and writes project(snapshot) in one atomic cache write.
func (c *Coordinator[E, C, P]) apply(key viewcache.Key, project func(cur viewcache.Entry) viewcache.Entry) stage {
	st := stage{key: key}
	st.applied = c.cache.Write(key, func(cur viewcache.Entry) viewcache.Entry {
		st.snapshot = cur
		return project(cur)
	})
	return st
}

// rollback restores st.snapshot if the view is untouched since this mutation
// wrote it; otherwise it applies inverse to the current value.
func (c *Coordinator[E, C, P]) rollback(st stage, inverse func(cur viewcache.Entry) viewcache.Entry) {
	c.cache.Write(st.key, func(cur viewcache.Entry) viewcache.Entry {
		if sameEntry(cur, st.applied) {
			return st.snapshot
		}
		return inverse(cur)
	})
}

func (c *Coordinator[E, C, P]) indexOfServerID(items []E, id domain.ServerID) int {
	for i, e := range items {
		if domain.IsServerID(c.res.IDOf(e), id) {
			return i
		}
	}
	return -1
}

func (c *Coordinator[E, C, P]) indexOfToken(items []E, token domain.CorrelationToken) int {
	for i, e := range items {
		if domain.IsPendingToken(c.res.IDOf(e), token) {
			return i
		}
	}
	return -1
}

func (c *Coordinator[E, C, P]) fail(ctx context.Context, op Op, log logrus.FieldLogger, err error) error {
	oe := Classify(c.res.Kind(), op, err)
	log.WithFields(logrus.Fields{"kind": oe.Kind, "error": err}).Warn("mutation rolled back")
	c.notifier.Notify(ctx, notify.Notice{Level: notify.LevelError, Message: oe.Message})
	return oe
}

func (c *Coordinator[E, C, P]) succeed(ctx context.Context, op Op, log logrus.FieldLogger) {
	log.Info("mutation confirmed")
	c.notifier.Notify(ctx, notify.Notice{
		Level:   notify.LevelSuccess,
		Message: fmt.Sprintf("%s %sd", capitalize(c.res.Kind().Singular()), op),
	})
}

func capitalize(s string) string {
	return cases.Title(language.Und, cases.NoLower).String(s)
}

// Create prepends a placeholder to the session view, submits fields, and replaces
// the placeholder (matched by correlation token only) with the server entity. The
// list view is not touched until success, when it is invalidated.
func (c *Coordinator[E, C, P]) Create(ctx context.Context, fields C) (E, error) {
	kind := c.res.Kind()
	sessionKey := viewcache.SessionKey(kind)
	listKey := viewcache.ListKey(kind)

	c.cache.CancelInFlight(viewcache.AnyOf(viewcache.Exactly(sessionKey), viewcache.Exactly(listKey)))

	token := c.tokens.Next()
	log := c.log.WithFields(logrus.Fields{"resource": kind, "op": OpCreate, "token": token})
	placeholder := c.res.Placeholder(domain.PendingID{Token: token}, fields, c.clk.Now())

	session := c.apply(sessionKey, func(cur viewcache.Entry) viewcache.Entry {
		return fresh(prepend(sessionOf[E](cur), placeholder))
	})
	log.Debug("placeholder applied")

	created, err := c.remote.Create(ctx, token, fields)
	if err != nil {
		c.rollback(session, func(cur viewcache.Entry) viewcache.Entry {
			items := sessionOf[E](cur)
			if i := c.indexOfToken(items, token); i >= 0 {
				return keep(cur, removeAt(items, i))
			}
			return cur
		})
		var zero E
		return zero, c.fail(ctx, OpCreate, log, err)
	}

	c.cache.Write(sessionKey, func(cur viewcache.Entry) viewcache.Entry {
		items := sessionOf[E](cur)
		if i := c.indexOfToken(items, token); i >= 0 {
			return keep(cur, replaceAt(items, i, created))
		}
		return cur
	})
	c.cache.Invalidate(viewcache.Exactly(listKey))
	c.succeed(ctx, OpCreate, log.WithField("id", c.res.IDOf(created)))
	return created, nil
}

// Update applies changes to every view holding id, marks the session copy as
// updating, and on success overwrites each copy with the server entity.
func (c *Coordinator[E, C, P]) Update(ctx context.Context, id domain.ServerID, changes P) (E, error) {
	kind := c.res.Kind()
	log := c.log.WithFields(logrus.Fields{"resource": kind, "op": OpUpdate, "id": id})
	var zero E

	unlock, err := c.locks.Lock(ctx, id)
	if err != nil {
		return zero, c.fail(ctx, OpUpdate, log, err)
	}
	defer unlock()

	detailKey := viewcache.DetailKey(kind, id)
	listKey := viewcache.ListKey(kind)
	sessionKey := viewcache.SessionKey(kind)

	c.cache.CancelInFlight(viewcache.ForResource(kind))

	// Resolved before any cache write: the projection runs under the cache lock.
	project := c.res.Apply(changes)

	detail := c.apply(detailKey, func(cur viewcache.Entry) viewcache.Entry {
		d, ok := detailOf[E](cur)
		if !ok {
			return cur
		}
		next := project(*d)
		return fresh(&next)
	})
	list := c.apply(listKey, func(cur viewcache.Entry) viewcache.Entry {
		p, ok := pageOf[E](cur)
		if !ok {
			return cur
		}
		i := c.indexOfServerID(p.Items, id)
		if i < 0 {
			return cur
		}
		return fresh(withItems(p, replaceAt(p.Items, i, project(p.Items[i])), 0))
	})
	session := c.apply(sessionKey, func(cur viewcache.Entry) viewcache.Entry {
		items := sessionOf[E](cur)
		i := c.indexOfServerID(items, id)
		if i < 0 {
			return cur
		}
		next := c.res.SetUpdating(project(items[i]), true)
		return fresh(replaceAt(items, i, next))
	})
	log.Debug("optimistic diff applied")

	updated, err := c.remote.Update(ctx, id, changes)
	if err != nil {
		c.rollback(detail, func(cur viewcache.Entry) viewcache.Entry {
			return restoreDetail(cur, detail)
		})
		c.rollback(list, func(cur viewcache.Entry) viewcache.Entry {
			return c.restoreInPage(cur, list.snapshot, id)
		})
		c.rollback(session, func(cur viewcache.Entry) viewcache.Entry {
			return c.restoreInSession(cur, session.snapshot, id)
		})
		return zero, c.fail(ctx, OpUpdate, log, err)
	}

	updated = c.res.SetUpdating(updated, false)
	c.cache.Write(detailKey, func(cur viewcache.Entry) viewcache.Entry {
		if _, ok := detailOf[E](cur); !ok {
			return cur
		}
		v := updated
		return keep(cur, &v)
	})
	c.cache.Write(listKey, func(cur viewcache.Entry) viewcache.Entry {
		p, ok := pageOf[E](cur)
		if !ok {
			return cur
		}
		if i := c.indexOfServerID(p.Items, id); i >= 0 {
			return keep(cur, withItems(p, replaceAt(p.Items, i, updated), 0))
		}
		return cur
	})
	c.cache.Write(sessionKey, func(cur viewcache.Entry) viewcache.Entry {
		items := sessionOf[E](cur)
		if i := c.indexOfServerID(items, id); i >= 0 {
			return keep(cur, replaceAt(items, i, updated))
		}
		return cur
	})
	c.cache.Invalidate(viewcache.AnyOf(viewcache.Exactly(detailKey), viewcache.Exactly(listKey)))
	c.succeed(ctx, OpUpdate, log)
	return updated, nil
}

// Delete removes id from the list and session views, submits, and on success
// invalidates the list and drops the detail view.
func (c *Coordinator[E, C, P]) Delete(ctx context.Context, id domain.ServerID) error {
	kind := c.res.Kind()
	log := c.log.WithFields(logrus.Fields{"resource": kind, "op": OpDelete, "id": id})

	unlock, err := c.locks.Lock(ctx, id)
	if err != nil {
		return c.fail(ctx, OpDelete, log, err)
	}
	defer unlock()

	detailKey := viewcache.DetailKey(kind, id)
	listKey := viewcache.ListKey(kind)
	sessionKey := viewcache.SessionKey(kind)

	c.cache.CancelInFlight(viewcache.ForResource(kind))

	list := c.apply(listKey, func(cur viewcache.Entry) viewcache.Entry {
		p, ok := pageOf[E](cur)
		if !ok {
			return cur
		}
		i := c.indexOfServerID(p.Items, id)
		if i < 0 {
			return cur
		}
		return fresh(withItems(p, removeAt(p.Items, i), -1))
	})
	session := c.apply(sessionKey, func(cur viewcache.Entry) viewcache.Entry {
		items := sessionOf[E](cur)
		i := c.indexOfServerID(items, id)
		if i < 0 {
			return cur
		}
		return fresh(removeAt(items, i))
	})
	log.Debug("optimistic removal applied")

	if err := c.remote.Delete(ctx, id); err != nil {
		c.rollback(list, func(cur viewcache.Entry) viewcache.Entry {
			return c.reinsertInPage(cur, list.snapshot, id)
		})
		c.rollback(session, func(cur viewcache.Entry) viewcache.Entry {
			return c.reinsertInSession(cur, session.snapshot, id)
		})
		return c.fail(ctx, OpDelete, log, err)
	}

	c.cache.Invalidate(viewcache.Exactly(listKey))
	c.cache.Remove(viewcache.Exactly(detailKey))
	c.succeed(ctx, OpDelete, log)
	return nil
}

// restoreInPage puts the snapshot's copy of id back into the current page.
func (c *Coordinator[E, C, P]) restoreInPage(cur, snap viewcache.Entry, id domain.ServerID) viewcache.Entry {
	p, ok := pageOf[E](cur)
	sp, sok := pageOf[E](snap)
	if !ok || !sok {
		return cur
	}
	si := c.indexOfServerID(sp.Items, id)
	i := c.indexOfServerID(p.Items, id)
	if si < 0 || i < 0 {
		return cur
	}
	return keep(cur, withItems(p, replaceAt(p.Items, i, sp.Items[si]), 0))
}

func (c *Coordinator[E, C, P]) restoreInSession(cur, snap viewcache.Entry, id domain.ServerID) viewcache.Entry {
	items, prev := sessionOf[E](cur), sessionOf[E](snap)
	si := c.indexOfServerID(prev, id)
	i := c.indexOfServerID(items, id)
	if si < 0 || i < 0 {
		return cur
	}
	return keep(cur, replaceAt(items, i, prev[si]))
}

// reinsertInPage puts the snapshot's copy of id back at its old position.
func (c *Coordinator[E, C, P]) reinsertInPage(cur, snap viewcache.Entry, id domain.ServerID) viewcache.Entry {
	p, ok := pageOf[E](cur)
	sp, sok := pageOf[E](snap)
	if !ok || !sok {
		return cur
	}
	si := c.indexOfServerID(sp.Items, id)
	if si < 0 || c.indexOfServerID(p.Items, id) >= 0 {
		return cur
	}
	return keep(cur, withItems(p, insertAt(p.Items, si, sp.Items[si]), 1))
}

func (c *Coordinator[E, C, P]) reinsertInSession(cur, snap viewcache.Entry, id domain.ServerID) viewcache.Entry {
	items, prev := sessionOf[E](cur), sessionOf[E](snap)
	si := c.indexOfServerID(prev, id)
	if si < 0 || c.indexOfServerID(items, id) >= 0 {
		return cur
	}
	return keep(cur, insertAt(items, si, prev[si]))
}
