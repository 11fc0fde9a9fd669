package auth

import (
	"time"
)

// Timer is a pending scheduled call.
type Timer interface {
	// Stop prevents the call if it has not started yet.
	Stop() bool
}

// Scheduler arms the refresh timer. The default runs f on its own goroutine
// via time.AfterFunc; tests substitute a manual scheduler.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// refreshDelay returns how long to wait before refreshing a credential with
// remaining access token lifetime, given the safety margin.
func refreshDelay(remaining, margin time.Duration) time.Duration {
	if d := remaining - margin; d > 0 {
		return d
	}
	return 0
}
