package clock

import "time"

// Clock provides time to the application.
// Using an interface enables deterministic tests via a controllable implementation.
type Clock interface {
	Now() time.Time
	// AfterFunc calls f on its own goroutine (or, for test clocks, when time is
	// advanced past d) and returns a Timer that can cancel the call.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a cancellable pending call created by Clock.AfterFunc.
type Timer interface {
	// Stop prevents the call from firing. It reports whether the call was stopped
	// before it fired.
	Stop() bool
}
