package scheduler

import (
	"runtime/debug"
)

// fiberState tracks whether a fiber's goroutine has finished, independent
// of the Job-level state machine — it exists purely so fiberSwitch and
// fiberFree can enforce the primitive's contract (never switch to a freed fiber,
// never free the current fiber).
type fiberState int32

const (
	fiberAlive fiberState = iota
	fiberFinished
	fiberFreed
)

// fiber is the scheduler's "create / switch / free" coroutine primitive,
// implemented as one goroutine gated by a pair of unbuffered baton
// channels. At most one of {scheduler, this fiber's goroutine} is ever
// runnable: fiberSwitch hands the baton to the fiber and blocks until it is
// handed back, so the single-threaded cooperative model holds by
// construction, without any lock a caller could misuse.
type fiber struct {
	resume  chan struct{} // scheduler -> fiber: "run a slice"
	yielded chan struct{} // fiber -> scheduler: "I'm suspended"
	cancel  chan struct{} // scheduler -> fiber: "you will never be switched to, exit"
	state   fiberState
}

// fiberNew allocates a fiber bound to entry. entry runs on the fiber's own
// goroutine and must call back into fiberSwitch-compatible yield points
// (via the owning Job) to hand control back. The fiber does not start
// running until the first fiberSwitch into it; if fiberCancel is called
// first instead, the goroutine exits without ever invoking entry.
func fiberNew(entry func()) *fiber {
	f := &fiber{
		resume:  make(chan struct{}),
		yielded: make(chan struct{}),
		cancel:  make(chan struct{}),
	}
	go func() {
		select {
		case <-f.resume:
		case <-f.cancel:
			return
		}
		defer func() {
			f.state = fiberFinished
			f.yielded <- struct{}{}
		}()
		entry()
	}()
	return f
}

// fiberCancel unblocks a fiber's goroutine that has never been switched to,
// so it can exit instead of parking on resume forever. Only valid before
// any fiberSwitch into f — callers that switched even once must let the
// fiber run to completion instead.
func fiberCancel(f *fiber) {
	close(f.cancel)
}

// fiberSwitch saves the caller's place (implicitly — the caller is the
// scheduler goroutine, which simply blocks) and resumes target. It returns
// once target has yielded back or finished.
func fiberSwitch(target *fiber) {
	if target.state == fiberFreed {
		panic(newSchedulerError("switched to a freed fiber"))
	}
	target.resume <- struct{}{}
	<-target.yielded
}

// fiberYield is called from inside the running fiber's own goroutine to
// hand control back to whoever called fiberSwitch into it, then blocks
// until resumed again.
func fiberYield(f *fiber) {
	f.yielded <- struct{}{}
	<-f.resume
}

// fiberFree releases a fiber. It must never be called on the currently
// running fiber — the to_kill handoff (see Scheduler.takeJobReference and
// Scheduler.dispatch) exists precisely so the fiber is freed only from the
// scheduler's goroutine, after switching away from it.
func fiberFree(f *fiber) {
	if f.state == fiberAlive {
		panic(newSchedulerError("freed a fiber that is still alive"))
	}
	f.state = fiberFreed
}

// stackMarginBytes is the default threshold below which
// fiberStackRemaining reports exhaustion. Go goroutine stacks grow
// dynamically and the runtime exposes no direct "bytes remaining" query,
// so this is an approximation: it samples the current goroutine's captured
// stack trace size against a configured ceiling rather than true reserved
// stack headroom.
const stackMarginBytes = 1 << 20

// fiberStackRemaining approximates bytes of headroom left on the calling
// goroutine's stack, for Job.CheckStackSpace's near-exhaustion check.
func fiberStackRemaining(ceiling int) int {
	used := len(debug.Stack())
	remaining := ceiling - used
	if remaining < 0 {
		return 0
	}
	return remaining
}
