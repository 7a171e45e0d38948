package clock

import (
	"sort"
	"sync"
	"time"

	clockport "github.com/Overland-East-Bay/stockroom/internal/ports/out/clock"
)

// ManualClock is a deterministic clock for tests. Time only moves when Advance or
// Set is called; timers due at or before the new time fire synchronously, in
// deadline order, on the caller's goroutine.
//
// It is safe for concurrent use.
type ManualClock struct {
	mu     sync.Mutex
	now    time.Time
	nextID int64
	timers map[int64]*manualTimer
}

type manualTimer struct {
	c   *ManualClock
	id  int64
	at  time.Time
	f   func()
	seq int64
}

func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start, timers: make(map[int64]*manualTimer)}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) AfterFunc(d time.Duration, f func()) clockport.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	t := &manualTimer{c: c, id: c.nextID, at: c.now.Add(d), f: f, seq: c.nextID}
	c.timers[t.id] = t
	return t
}

// Pending returns the number of timers that have not fired or been stopped.
func (c *ManualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// Advance moves time forward by d and fires due timers.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()
	c.Set(target)
}

// Set moves time to t (never backwards) and fires due timers. Timers scheduled
// by fired callbacks are honoured if they are also due.
func (c *ManualClock) Set(t time.Time) {
	for {
		c.mu.Lock()
		due := c.dueLocked(t)
		if due == nil {
			if t.After(c.now) {
				c.now = t
			}
			c.mu.Unlock()
			return
		}
		delete(c.timers, due.id)
		if due.at.After(c.now) {
			c.now = due.at
		}
		c.mu.Unlock()
		due.f()
	}
}

func (c *ManualClock) dueLocked(t time.Time) *manualTimer {
	var due []*manualTimer
	for _, tm := range c.timers {
		if !tm.at.After(t) {
			due = append(due, tm)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].at.Equal(due[j].at) {
			return due[i].seq < due[j].seq
		}
		return due[i].at.Before(due[j].at)
	})
	return due[0]
}

func (t *manualTimer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	if _, ok := t.c.timers[t.id]; !ok {
		return false
	}
	delete(t.c.timers, t.id)
	return true
}
