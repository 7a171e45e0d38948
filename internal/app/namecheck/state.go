// Package namecheck gates name submission on a debounced, asynchronous
// uniqueness check.
//
// State is a pure value; Validator drives it from keystrokes, a debounce timer
// and a Checker.
package namecheck

import (
	"github.com/Overland-East-Bay/stockroom/internal/domain"
)

type Phase int

const (
	PhaseNeutral Phase = iota
	PhaseChecking
	PhaseAvailable
	PhaseConflict
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseNeutral:
		return "neutral"
	case PhaseChecking:
		return "checking"
	case PhaseAvailable:
		return "available"
	case PhaseConflict:
		return "conflict"
	case PhaseError:
		return "error"
	default:
		return "unknown"
	}
}

// Check is one existence query the caller must run and feed back via Resolve.
type Check struct {
	Name      string
	ExcludeID *domain.ServerID
	Seq       uint64
}

// State is the validator's state machine. The zero value is a Neutral state for
// a new entity (no original name).
type State struct {
	Phase Phase
	Err   error

	original    string
	hasOriginal bool
	exclude     *domain.ServerID

	// lastChecked is the normalized name of the most recent check issued.
	lastChecked string
	hasLast     bool

	// seq identifies the current check; responses carrying another seq are stale.
	seq uint64
}

// NewState returns a Neutral state. original is the entity's current name when
// editing (nil when creating); exclude is the id the server must ignore.
func NewState(original *string, exclude *domain.ServerID) State {
	s := State{exclude: exclude}
	if original != nil {
		s.original = domain.Normalize(*original)
		s.hasOriginal = true
	}
	return s
}

// LastChecked returns the normalized name of the latest check, if any.
func (s State) LastChecked() (string, bool) { return s.lastChecked, s.hasLast }

// Settle evaluates a debounced candidate. It returns the next state and, when a
// network check is required, the check to run.
func (s State) Settle(candidate string) (State, *Check) {
	name := domain.Normalize(candidate)

	if name == "" || (s.hasOriginal && name == s.original) {
		return s.neutral(), nil
	}
	if s.hasLast && name == s.lastChecked {
		return s, nil
	}

	s.seq++
	s.Phase = PhaseChecking
	s.Err = nil
	s.lastChecked, s.hasLast = name, true
	return s, &Check{Name: name, ExcludeID: s.exclude, Seq: s.seq}
}

// Resolve applies the outcome of the check identified by seq. Outcomes of
// superseded checks are ignored.
func (s State) Resolve(seq uint64, unique bool, err error) State {
	if seq != s.seq || s.Phase != PhaseChecking {
		return s
	}
	switch {
	case err != nil:
		s.Phase = PhaseError
		s.Err = err
		// Unresolved: the same name must be checked again.
		s.hasLast = false
	case unique:
		s.Phase = PhaseAvailable
	default:
		s.Phase = PhaseConflict
	}
	return s
}

// Retry re-arms a failed state so the next Settle of the same name issues a
// fresh check. Other phases are returned unchanged.
func (s State) Retry() State {
	if s.Phase == PhaseError {
		s.hasLast = false
	}
	return s
}

func (s State) neutral() State {
	s.seq++ // fences any check still in flight
	s.Phase = PhaseNeutral
	s.Err = nil
	s.lastChecked, s.hasLast = "", false
	return s
}

// Result is the externally visible summary of a State.
type Result struct {
	IsChecking bool
	IsUnique   bool
	Err        error
	// HasChecked is true once Available, Conflict or Error was reached for the
	// current candidate.
	HasChecked bool
}

func (s State) Result() Result {
	switch s.Phase {
	case PhaseChecking:
		return Result{IsChecking: true}
	case PhaseAvailable:
		return Result{IsUnique: true, HasChecked: true}
	case PhaseConflict:
		return Result{HasChecked: true}
	case PhaseError:
		return Result{Err: s.Err, HasChecked: true}
	default:
		return Result{IsUnique: true}
	}
}

// BlocksSubmit reports whether a form must not be submitted. A pending check
// always blocks; a conflict or failed check blocks only when the name changed.
func (r Result) BlocksSubmit(nameChanged bool) bool {
	if r.IsChecking {
		return true
	}
	return nameChanged && r.HasChecked && !r.IsUnique
}
