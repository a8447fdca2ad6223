// Package scheduler implements the cooperative fiber scheduler: a
// single-threaded, deterministic round-robin of user-level jobs whose
// suspension points are explicit yields, whose lifetimes are coordinated
// by the to_kill_ handoff, and whose blocking/freezing/termination is
// controlled by a hierarchical stack of tags.
package scheduler

import (
	"sync"
	"time"

	"simplejvm/internal/clock"
)

// Stats receives scheduler lifecycle events. Implementations must be
// goroutine-safe: Yield is reported from the yielding job's own goroutine
// (while the scheduler goroutine is blocked in fiberSwitch), JobCreated from
// whichever goroutine calls Scheduler.NewJob, and the other events from the
// goroutine driving RunCycle.
type Stats interface {
	JobCreated()
	JobCompleted()
	ContextSwitch()
	Yield()
	CycleCompleted(cycle uint64)
}

// Config tunes the scheduler and its fibers.
type Config struct {
	// FiberStackBytes is the approximate stack margin checked by
	// Job.CheckStackSpace (see fiber.go for the approximation's caveats).
	FiberStackBytes int
	// TickInterval bounds how long RunUntilEmpty idles between cycles when
	// nothing is immediately dispatchable but jobs are sleeping.
	TickInterval time.Duration
	// IdleWaitEnabled allows RunUntilEmpty to sleep the host goroutine
	// during an idle cycle instead of busy-looping.
	// Only takes effect when the scheduler is driven by clock.System.
	IdleWaitEnabled bool
}

// DefaultConfig returns safe tunables usable with no configuration file.
func DefaultConfig() Config {
	return Config{
		FiberStackBytes: stackMarginBytes,
		TickInterval:    time.Millisecond,
		IdleWaitEnabled: true,
	}
}

// Scheduler owns the run queue and drives cycles. It is not safe to share
// a Scheduler across OS threads that both call RunCycle; AddJob, tag
// mutation, and AsyncThrow are safe to call from any goroutine.
type Scheduler struct {
	mu sync.Mutex

	jobs    []*Job
	pending []*Job
	toKill  *Job

	currentJob  *Job
	currentTime int64
	cycle       uint64

	progressLastCycle bool

	clk    clock.Clock
	config Config
	stats  Stats
}

// NewScheduler creates a scheduler driven by clk, using cfg for fiber and
// idle-wait tuning.
func NewScheduler(clk clock.Clock, cfg Config) *Scheduler {
	return &Scheduler{clk: clk, config: cfg}
}

// SetStats installs an optional metrics sink. Pass nil to disable.
func (s *Scheduler) SetStats(stats Stats) {
	s.mu.Lock()
	s.stats = stats
	s.mu.Unlock()
}

func (s *Scheduler) noteYield() {
	s.mu.Lock()
	stats := s.stats
	s.mu.Unlock()
	if stats != nil {
		stats.Yield()
	}
}

// NewJob is a convenience wrapper around scheduler.NewJob(s, ...).
func (s *Scheduler) NewJob(name string, work WorkFunc) *Job {
	j := NewJob(s, name, work)
	s.mu.Lock()
	stats := s.stats
	s.mu.Unlock()
	if stats != nil {
		stats.JobCreated()
	}
	return j
}

// AddJob registers j in the pending set. j must
// be freshly constructed (state ToStart); calling it twice on the same job
// is an invariant violation.
func (s *Scheduler) AddJob(j *Job) {
	if j.State() != ToStart {
		panic(newSchedulerError("start_job called on a job that already started"))
	}
	s.mu.Lock()
	s.pending = append(s.pending, j)
	s.mu.Unlock()
}

// CurrentJob returns the job currently executing, or nil while scheduler
// code runs.
func (s *Scheduler) CurrentJob() *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentJob
}

// CurrentTime returns the time sampled at the start of the current cycle.
func (s *Scheduler) CurrentTime() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentTime
}

// Now samples the scheduler's clock directly, bypassing the per-cycle
// cache CurrentTime reads from. Callers computing a deadline before the
// first RunCycle (e.g. a timer armed right after spawning) need this
// instead of CurrentTime, which reads 0 until a cycle has run.
func (s *Scheduler) Now() int64 {
	return s.clk.Now()
}

// Cycle returns the monotonically increasing cycle counter.
func (s *Scheduler) Cycle() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cycle
}

// JobCount returns the number of jobs currently tracked (run queue plus
// not-yet-merged pending jobs).
func (s *Scheduler) JobCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs) + len(s.pending)
}

// takeJobReference implements the to_kill_ handoff: it
// atomically swaps the scheduler's to_kill_ slot with j's self-reference.
// Precondition: to_kill_ is nil (enforced as an invariant violation panic,
// since two jobs terminating "simultaneously" is impossible under the
// single-fiber-running-at-a-time model this scheduler enforces).
func (s *Scheduler) takeJobReference(j *Job) {
	self := j.takeSelf()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.toKill != nil {
		panic(newSchedulerError("to_kill slot already occupied"))
	}
	s.toKill = self
}

// clearToKill drops the scheduler's reference to the last-terminated job.
// Whether this frees the job depends on whether any other strong
// reference still exists; the GC decides.
func (s *Scheduler) clearToKill() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toKill = nil
}

// applyTagEffects implements the per-job tag scan: stopped
// beats blocked beats frozen in priority, and only the effect is queued —
// unwinding is the job's own responsibility once it observes the
// exception at its next yield.
func (s *Scheduler) applyTagEffects(j *Job) {
	if t, ok := j.stoppedTag(); ok {
		j.AsyncThrow(NewStopException(t))
	} else if j.Blocked() && !j.NonInterruptible() {
		if t, ok := j.blockingTag(); ok {
			j.AsyncThrow(NewBlockedException(t))
		}
	}

	wasFrozen := j.FrozenSince() != 0
	isFrozen := j.Frozen()
	switch {
	case isFrozen && !wasFrozen:
		j.setFrozenSince(s.currentTime)
	case !isFrozen && wasFrozen:
		j.accumulateTimeShift(s.currentTime)
	}
}

// dispatch switches into j's fiber for one slice and performs the
// post-switch bookkeeping: dropping the to_kill reference, waking joiners
// of a job that just terminated, and freeing its fiber.
func (s *Scheduler) dispatch(j *Job) {
	s.mu.Lock()
	s.currentJob = j
	stats := s.stats
	s.mu.Unlock()

	fiberSwitch(j.fib)

	s.mu.Lock()
	s.currentJob = nil
	s.mu.Unlock()

	s.clearToKill()
	if stats != nil {
		stats.ContextSwitch()
	}

	if j.State() == Zombie {
		for _, waiter := range j.takeWakers() {
			if waiter.State() == Joining {
				waiter.setState(Running)
			}
		}
		fiberFree(j.fib)
		if stats != nil {
			stats.JobCompleted()
		}
	}
}

// RunCycle executes exactly one scheduler cycle: sample the clock, merge
// pending jobs, scan for dispatchability, dispatch each ready job once,
// and wake sleepers/waiters for the next cycle. It is the unit of
// progress exposed to embedders that want to drive the scheduler
// themselves (e.g. from a host event loop) rather than call
// RunUntilEmpty.
func (s *Scheduler) RunCycle() {
	s.mu.Lock()
	s.currentTime = s.clk.Now()
	s.jobs = append(s.jobs, s.pending...)
	s.pending = s.pending[:0]
	snapshot := append([]*Job(nil), s.jobs...)
	prevProgress := s.progressLastCycle
	stats := s.stats
	s.mu.Unlock()

	progressThisCycle := false
	alive := make([]*Job, 0, len(snapshot))

	for _, j := range snapshot {
		if j.State() == Zombie {
			continue
		}

		s.applyTagEffects(j)

		dispatchable := false
		switch j.State() {
		case Sleeping:
			dispatchable = s.currentTime >= j.Deadline()
		case Joining:
			dispatchable = false
		case Waiting:
			dispatchable = prevProgress
		default:
			dispatchable = true
		}
		if j.hasPendingException() {
			// A queued exception (async throw, a linked peer's death, a
			// stopped tag) must reach the job at its next resume point even
			// if its deadline or wake condition has not fired.
			dispatchable = true
		}
		if j.Frozen() {
			dispatchable = false
		}

		if dispatchable {
			s.dispatch(j)
			if !j.SideEffectFree() {
				progressThisCycle = true
			}
		}

		if j.State() != Zombie {
			alive = append(alive, j)
		}
	}

	s.mu.Lock()
	s.jobs = alive
	s.progressLastCycle = progressThisCycle
	s.cycle++
	cycle := s.cycle
	s.mu.Unlock()

	if stats != nil {
		stats.CycleCompleted(cycle)
	}
}

// RunUntilEmpty drives RunCycle until no job remains, queued or pending.
// Between cycles where nothing was dispatchable but some job is sleeping,
// it optionally idles the host rather than
// busy-spinning — only when config.IdleWaitEnabled and the scheduler is
// driven by the real wall clock; a fake clock in tests never advances on
// its own, so idling would hang forever.
func (s *Scheduler) RunUntilEmpty() {
	_, realClock := s.clk.(clock.System)
	for {
		s.RunCycle()

		s.mu.Lock()
		empty := len(s.jobs) == 0 && len(s.pending) == 0
		var nextDeadline int64
		haveSleepers := false
		runnable := len(s.pending) > 0
		if !empty {
			for _, j := range s.jobs {
				switch j.State() {
				case Sleeping:
					d := j.Deadline()
					if !haveSleepers || d < nextDeadline {
						nextDeadline = d
						haveSleepers = true
					}
				case ToStart, Running:
					runnable = true
				case Waiting:
					runnable = runnable || s.progressLastCycle
				}
				if j.hasPendingException() {
					runnable = true
				}
			}
		}
		idleEnabled := s.config.IdleWaitEnabled
		now := s.currentTime
		s.mu.Unlock()

		if empty {
			return
		}
		if realClock && idleEnabled && haveSleepers && !runnable && nextDeadline > now {
			wait := time.Duration(nextDeadline-now) * time.Microsecond
			if wait > s.config.TickInterval {
				wait = s.config.TickInterval
			}
			if wait > 0 {
				time.Sleep(wait)
			}
		}
	}
}

// unscheduleJob scrubs j from every list the scheduler might still
// reference it in: the run queue, the not-yet-merged pending set, any
// peer's toWakeUp list, and any peer's links. It protects against a job
// being dropped outside the normal terminate flow, e.g. an owner
// discarding a job before it ever started.
func (s *Scheduler) unscheduleJob(j *Job) {
	s.mu.Lock()
	s.jobs = removeJob(s.jobs, j)
	s.pending = removeJob(s.pending, j)
	s.mu.Unlock()

	links, wakers := j.snapshotLinksAndWakers()
	for _, peer := range links {
		j.Unlink(peer)
	}
	for _, peer := range wakers {
		peer.removeWaker(j)
	}
	j.takeWakers()
}

// Abandon discards j outside the normal terminate flow: it scrubs j from
// every list the scheduler or a peer might reference it in, then frees
// its fiber. Only valid while j has not yet started running (state
// ToStart) — a job already mid-lifecycle must terminate through work()
// returning, not be torn down from outside.
func (s *Scheduler) Abandon(j *Job) {
	if j.State() != ToStart {
		panic(newSchedulerError("Abandon called on a job past ToStart"))
	}
	s.unscheduleJob(j)
	// ToStart means fiberSwitch was never called on j.fib, so its goroutine
	// is still parked in its initial select — fiberCancel lets it exit
	// instead of leaking for the rest of the process's life.
	fiberCancel(j.fib)
	j.fib.state = fiberFinished
	fiberFree(j.fib)
}

func removeJob(list []*Job, target *Job) []*Job {
	out := list[:0]
	for _, j := range list {
		if j != target {
			out = append(out, j)
		}
	}
	return out
}
