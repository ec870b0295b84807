package authz

import (
	"context"
	"time"
)

// RecheckState is the state of a bounded recheck.
type RecheckState int

const (
	RecheckIdle RecheckState = iota
	RecheckRetrying
	// RecheckSucceeded means a conclusive result arrived, granted or not.
	RecheckSucceeded
	RecheckGaveUp
)

func (s RecheckState) String() string {
	switch s {
	case RecheckIdle:
		return "idle"
	case RecheckRetrying:
		return "retrying"
	case RecheckSucceeded:
		return "succeeded"
	case RecheckGaveUp:
		return "gave_up"
	default:
		return "unknown"
	}
}

// Recheck is a caller-owned retry budget for transient denials: at most
// Attempts checks, the n-th wait being n*Step. It is not safe for concurrent use.
type Recheck struct {
	attempts int
	step     time.Duration
	state    RecheckState
	n        int
}

// NewRecheck constructs a Recheck. Non-positive values fall back to 3 attempts
// and a 250ms step.
func NewRecheck(attempts int, step time.Duration) *Recheck {
	if attempts <= 0 {
		attempts = 3
	}
	if step <= 0 {
		step = 250 * time.Millisecond
	}
	return &Recheck{attempts: attempts, step: step}
}

// State returns the current state.
func (r *Recheck) State() RecheckState { return r.state }

// Attempts returns how many results have been observed.
func (r *Recheck) Attempts() int { return r.n }

// Observe feeds one check result. It returns the wait before the next check
// and whether another check should run.
func (r *Recheck) Observe(res Result) (time.Duration, bool) {
	if r.state == RecheckSucceeded || r.state == RecheckGaveUp {
		return 0, false
	}
	r.n++
	if !res.Transient() {
		r.state = RecheckSucceeded
		return 0, false
	}
	if r.n >= r.attempts {
		r.state = RecheckGaveUp
		return 0, false
	}
	r.state = RecheckRetrying
	return time.Duration(r.n) * r.step, true
}

// Run drives check through the state machine, sleeping between attempts.
// Cancellation of ctx ends the loop with the last result and RecheckGaveUp.
func (r *Recheck) Run(ctx context.Context, check func(context.Context) Result) Result {
	for {
		res := check(ctx)
		wait, again := r.Observe(res)
		if !again {
			return res
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			r.state = RecheckGaveUp
			return res
		case <-timer.C:
		}
	}
}
