package namecheck

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Overland-East-Bay/stockroom/internal/domain"
	"github.com/Overland-East-Bay/stockroom/internal/platform/logging"
	clockport "github.com/Overland-East-Bay/stockroom/internal/ports/out/clock"
)

const DefaultDelay = 500 * time.Millisecond

// Checker asks the server whether name is free for the current owner, ignoring
// exclude.
type Checker interface {
	CheckName(ctx context.Context, name string, exclude *domain.ServerID) (bool, error)
}

type CheckerFunc func(ctx context.Context, name string, exclude *domain.ServerID) (bool, error)

func (f CheckerFunc) CheckName(ctx context.Context, name string, exclude *domain.ServerID) (bool, error) {
	return f(ctx, name, exclude)
}

type Options struct {
	// Original is the name being edited; nil when creating.
	Original  *string
	ExcludeID *domain.ServerID
	// Delay defaults to DefaultDelay.
	Delay time.Duration
	// OnChange is called, outside any lock, whenever the result may have changed.
	OnChange func(Result)
	Log      logrus.FieldLogger
}

// Validator debounces candidate names and runs at most one check per distinct
// normalized candidate. It is safe for concurrent use.
type Validator struct {
	checker  Checker
	clk      clockport.Clock
	delay    time.Duration
	onChange func(Result)
	log      logrus.FieldLogger

	mu        sync.Mutex
	state     State
	candidate string
	timer     clockport.Timer
	cancel    context.CancelFunc
	closed    bool

	wg    sync.WaitGroup
	spawn func(func())
}

func New(checker Checker, clk clockport.Clock, opts Options) *Validator {
	v := &Validator{
		checker:  checker,
		clk:      clk,
		delay:    opts.Delay,
		onChange: opts.OnChange,
		log:      opts.Log,
		state:    NewState(opts.Original, opts.ExcludeID),
		spawn:    func(f func()) { go f() },
	}
	if opts.Original != nil {
		v.candidate = *opts.Original
	}
	if v.delay <= 0 {
		v.delay = DefaultDelay
	}
	if v.log == nil {
		v.log = logging.Discard()
	}
	return v
}

// SetCandidate records the latest raw input and restarts the debounce timer.
func (v *Validator) SetCandidate(raw string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.candidate = raw
	if v.timer != nil {
		v.timer.Stop()
	}
	v.timer = v.clk.AfterFunc(v.delay, v.evaluate)
}

// Flush evaluates the current candidate now, skipping the remaining delay.
func (v *Validator) Flush() {
	v.mu.Lock()
	if v.timer != nil {
		v.timer.Stop()
		v.timer = nil
	}
	v.mu.Unlock()
	v.evaluate()
}

// Retry re-runs a check that failed with a transport error.
func (v *Validator) Retry() {
	v.mu.Lock()
	if v.state.Phase != PhaseError {
		v.mu.Unlock()
		return
	}
	v.state = v.state.Retry()
	v.mu.Unlock()
	v.evaluate()
}

func (v *Validator) Result() Result {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state.Result()
}

// Close stops the timer, cancels a running check and waits for it to return.
func (v *Validator) Close() {
	v.mu.Lock()
	v.closed = true
	if v.timer != nil {
		v.timer.Stop()
		v.timer = nil
	}
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
	v.mu.Unlock()
	v.wg.Wait()
}

func (v *Validator) evaluate() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	prev := v.state.Phase
	next, chk := v.state.Settle(v.candidate)
	v.state = next
	v.timer = nil

	if chk == nil {
		if next.Phase == PhaseNeutral && v.cancel != nil {
			v.cancel()
			v.cancel = nil
		}
		res := next.Result()
		v.mu.Unlock()
		if next.Phase != prev {
			v.changed(res)
		}
		return
	}

	if v.cancel != nil {
		v.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	v.cancel = cancel
	v.wg.Add(1)
	res := next.Result()
	v.mu.Unlock()

	v.log.WithFields(logrus.Fields{"name": chk.Name, "seq": chk.Seq}).Debug("checking name")
	v.changed(res)
	v.spawn(func() {
		defer v.wg.Done()
		v.run(ctx, cancel, *chk)
	})
}

func (v *Validator) run(ctx context.Context, cancel context.CancelFunc, chk Check) {
	defer cancel()
	unique, err := v.checker.CheckName(ctx, chk.Name, chk.ExcludeID)

	v.mu.Lock()
	before := v.state
	v.state = v.state.Resolve(chk.Seq, unique, err)
	resolved := v.state.Phase != before.Phase
	res := v.state.Result()
	v.mu.Unlock()

	if !resolved {
		return
	}
	if err != nil {
		v.log.WithFields(logrus.Fields{"name": chk.Name, "error": err}).Warn("name check failed")
	}
	v.changed(res)
}

func (v *Validator) changed(r Result) {
	if v.onChange != nil {
		v.onChange(r)
	}
}
