package notify

import (
	"context"
	"sync"

	"github.com/Overland-East-Bay/stockroom/internal/ports/out/notify"
)

// Recorder keeps every notice in delivery order.
// It is safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	notices []notify.Notice
}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Notify(ctx context.Context, n notify.Notice) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

// Notices returns a copy of the recorded notices.
func (r *Recorder) Notices() []notify.Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notify.Notice, len(r.notices))
	copy(out, r.notices)
	return out
}

// Errors returns the messages of error-level notices.
func (r *Recorder) Errors() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, n := range r.notices {
		if n.Level == notify.LevelError {
			out = append(out, n.Message)
		}
	}
	return out
}
