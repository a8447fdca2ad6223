package scheduler

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/google/uuid"
)

// State is one of the six states a Job can be in. A job is in the
// Scheduler's run queue iff its state is not Zombie.
type State int32

const (
	ToStart State = iota
	Running
	Sleeping
	Waiting
	Joining
	Zombie
)

func (s State) String() string {
	switch s {
	case ToStart:
		return "TO_START"
	case Running:
		return "RUNNING"
	case Sleeping:
		return "SLEEPING"
	case Waiting:
		return "WAITING"
	case Joining:
		return "JOINING"
	case Zombie:
		return "ZOMBIE"
	default:
		return "UNKNOWN"
	}
}

// WorkFunc is the body a Job executes; Go has no subclassing, so the body
// is supplied as a function rather than an overridden method.
type WorkFunc func(j *Job) error

// Job is one fiber plus the scheduler-visible metadata: state, deadline,
// tag stack, links, pending exception.
type Job struct {
	mu sync.Mutex

	id        uuid.UUID
	name      string
	scheduler *Scheduler
	work      WorkFunc
	fib       *fiber

	state       State
	deadline    int64 // meaningful only while state == Sleeping
	frozenSince int64 // 0 iff not currently frozen
	timeShift   int64 // microseconds subtracted to get this job's "unfrozen" time

	tags     []Tag
	links    map[*Job]struct{}
	toWakeUp map[*Job]struct{}

	pendingException error
	currentException error

	nonInterruptible bool
	sideEffectFree   bool

	// self is the job's strong reference to itself, held from construction
	// until terminateCleanup. Nilling it models dropping the job's own
	// last owning reference.
	self *Job
}

// NewJob constructs a fresh job bound to s, with an empty tag stack and
// state ToStart. It is forbidden to call this from inside a running job's
// own fiber; callers are responsible for that discipline.
func NewJob(s *Scheduler, name string, work WorkFunc) *Job {
	j := &Job{
		id:        uuid.New(),
		name:      name,
		scheduler: s,
		work:      work,
		state:     ToStart,
		links:     make(map[*Job]struct{}),
		toWakeUp:  make(map[*Job]struct{}),
	}
	j.self = j
	j.fib = fiberNew(j.runBody)
	return j
}

// NewJobFrom constructs a job derived from model: it inherits model's
// scheduler and a copy of model's tag stack.
func NewJobFrom(model *Job, name string, work WorkFunc) *Job {
	model.mu.Lock()
	tags := append([]Tag(nil), model.tags...)
	model.mu.Unlock()

	j := &Job{
		id:        uuid.New(),
		name:      name,
		scheduler: model.scheduler,
		work:      work,
		state:     ToStart,
		tags:      tags,
		links:     make(map[*Job]struct{}),
		toWakeUp:  make(map[*Job]struct{}),
	}
	j.self = j
	j.fib = fiberNew(j.runBody)
	return j
}

// ID returns the job's stable identifier, used for metrics labels and
// logging only — scheduling and equality use Go pointer identity.
func (j *Job) ID() uuid.UUID { return j.id }

// Name returns the job's symbol.
func (j *Job) Name() string { return j.name }

func (j *Job) String() string {
	return fmt.Sprintf("Job[%s:%s:%s]", j.id.String()[:8], j.name, j.State())
}

// State atomically reads the job's state.
func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

func (j *Job) setState(s State) {
	j.mu.Lock()
	j.state = s
	j.mu.Unlock()
}

// Deadline returns the job's sleep deadline (meaningful only while
// State() == Sleeping).
func (j *Job) Deadline() int64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.deadline
}

// TimeShift returns the accumulated microseconds this job has spent with a
// frozen tag on its stack.
func (j *Job) TimeShift() int64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.timeShift
}

// FrozenSince returns the timestamp at which the job's current frozen
// window began, or 0 if it is not currently frozen.
func (j *Job) FrozenSince() int64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.frozenSince
}

// SetNonInterruptible toggles whether BlockedException delivery is
// deferred. StopException is always delivered regardless: stop is
// termination, not pause.
func (j *Job) SetNonInterruptible(v bool) {
	j.mu.Lock()
	j.nonInterruptible = v
	j.mu.Unlock()
}

// NonInterruptible reports the current flag.
func (j *Job) NonInterruptible() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.nonInterruptible
}

// SetSideEffectFree marks whether this job's progress can influence other
// jobs' observability; the Scheduler only wakes Waiting jobs after a cycle
// in which some dispatched job was not side-effect-free.
func (j *Job) SetSideEffectFree(v bool) {
	j.mu.Lock()
	j.sideEffectFree = v
	j.mu.Unlock()
}

// SideEffectFree reports the current flag.
func (j *Job) SideEffectFree() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.sideEffectFree
}

// Tags returns a snapshot of the job's tag stack, oldest first.
func (j *Job) Tags() []Tag {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]Tag(nil), j.tags...)
}

// PushTag pushes a tag onto the job's stack. If the tag is already
// effectively stopped, a StopException is queued immediately — the job
// will see it at its next yield.
func (j *Job) PushTag(t Tag) {
	j.mu.Lock()
	j.tags = append(j.tags, t)
	j.mu.Unlock()
	if t.Stopped() {
		j.AsyncThrow(NewStopException(t))
	}
}

// PopTag pops and returns the top of the job's tag stack.
func (j *Job) PopTag() Tag {
	j.mu.Lock()
	defer j.mu.Unlock()
	n := len(j.tags)
	if n == 0 {
		panic(newSchedulerError("pop from empty tag stack"))
	}
	t := j.tags[n-1]
	j.tags = j.tags[:n-1]
	return t
}

// UnwindTo pops tags until and including t, leaving the stack at whatever
// was below t. It is a no-op if t is not on the stack. This is the
// mechanical half of the stop-unwind contract; deciding *when*
// to unwind (typically: on catching a StopException for t) is the job's
// own work() body's responsibility.
func (j *Job) UnwindTo(t Tag) {
	j.mu.Lock()
	defer j.mu.Unlock()
	for i := len(j.tags) - 1; i >= 0; i-- {
		if j.tags[i].Equal(t) {
			j.tags = j.tags[:i]
			return
		}
	}
}

// Blocked reports whether some tag on the job's stack (or an ancestor of
// one) is blocked.
func (j *Job) Blocked() bool {
	for _, t := range j.Tags() {
		if t.Blocked() {
			return true
		}
	}
	return false
}

// Frozen reports whether some tag on the job's stack (or an ancestor of
// one) is frozen.
func (j *Job) Frozen() bool {
	for _, t := range j.Tags() {
		if t.Frozen() {
			return true
		}
	}
	return false
}

// stoppedTag returns the top-most stopped tag on the stack, if any — the
// stack's top-most tag's effect decides unwind scope.
func (j *Job) stoppedTag() (Tag, bool) {
	tags := j.Tags()
	for i := len(tags) - 1; i >= 0; i-- {
		if tags[i].Stopped() {
			return tags[i], true
		}
	}
	return Tag{}, false
}

// AsyncThrow stores err as the pending exception, discarding any prior
// pending one (single-slot, last-writer-wins). Safe to call from any job
// or from the scheduler.
func (j *Job) AsyncThrow(err error) {
	j.mu.Lock()
	j.pendingException = err
	j.mu.Unlock()
}

// checkForPendingException moves a pending exception into current and
// returns it, or returns nil if none is pending. Invoked by the scheduler
// immediately before dispatching and by the job immediately after every
// yield.
func (j *Job) checkForPendingException() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.pendingException != nil {
		j.currentException = j.pendingException
		j.pendingException = nil
		return j.currentException
	}
	return nil
}

// hasPendingException reports whether a pending exception is queued,
// without consuming it — used by the scheduler's cycle scan.
func (j *Job) hasPendingException() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.pendingException != nil
}

// Link establishes a symmetric relationship: if either J1 or J2 terminates
// with an uncaught exception, the other receives it via pending_exception.
// The relationship is a non-owning, weak back-reference on both sides.
func (j *Job) Link(other *Job) {
	first, second := j, other
	if uintptrOf(other) < uintptrOf(j) {
		first, second = other, j
	}
	first.mu.Lock()
	second.mu.Lock()
	j.links[other] = struct{}{}
	other.links[j] = struct{}{}
	second.mu.Unlock()
	first.mu.Unlock()
}

// Unlink removes the symmetric relationship established by Link.
func (j *Job) Unlink(other *Job) {
	first, second := j, other
	if uintptrOf(other) < uintptrOf(j) {
		first, second = other, j
	}
	first.mu.Lock()
	second.mu.Lock()
	delete(j.links, other)
	delete(other.links, j)
	second.mu.Unlock()
	first.mu.Unlock()
}

func (j *Job) removeWaker(other *Job) {
	j.mu.Lock()
	delete(j.toWakeUp, other)
	j.mu.Unlock()
}

func (j *Job) addWaker(other *Job) {
	j.mu.Lock()
	j.toWakeUp[other] = struct{}{}
	j.mu.Unlock()
}

func (j *Job) snapshotLinksAndWakers() (links, wakers []*Job) {
	j.mu.Lock()
	defer j.mu.Unlock()
	for peer := range j.links {
		links = append(links, peer)
	}
	for peer := range j.toWakeUp {
		wakers = append(wakers, peer)
	}
	return links, wakers
}

// CheckStackSpace raises a SchedulerError if the calling goroutine's
// approximated stack headroom has fallen below the fiber's configured
// margin. work() bodies doing deep recursion call this themselves before
// a call that might overflow. See fiber.go for the approximation's
// caveats.
func (j *Job) CheckStackSpace() {
	if fiberStackRemaining(j.scheduler.config.FiberStackBytes) <= 0 {
		panic(newSchedulerError(fmt.Sprintf("job %s near stack exhaustion", j.name)))
	}
}

// runBody is the fiber entry point: it is the job's entire lifetime.
func (j *Job) runBody() {
	j.setState(Running)
	err := j.checkForPendingException()
	if err == nil {
		err = j.work(j)
	}
	j.terminateCleanup(err)
	j.setState(Zombie)
	j.scheduler.takeJobReference(j)
	// entry returning hands the final baton signal back to the scheduler's
	// pending fiberSwitch; the job never runs again after this point.
}

// terminateCleanup replicates an uncaught exception to every linked peer
// and every joiner, then severs this job's half of the (non-owning) link
// relationships. Transferring self into the scheduler's to_kill_ slot and
// waking the joiners themselves happen afterward, in runBody and
// Scheduler.dispatch respectively.
func (j *Job) terminateCleanup(err error) {
	links, wakers := j.snapshotLinksAndWakers()

	if err != nil {
		for _, peer := range links {
			peer.AsyncThrow(err)
		}
		for _, peer := range wakers {
			peer.AsyncThrow(err)
		}
	}

	for _, peer := range links {
		j.Unlink(peer)
	}
}

// takeWakers atomically returns and clears the set of jobs currently
// joining on this one; called by the scheduler once this job reaches
// Zombie, to transition each of them Joining -> Running.
func (j *Job) takeWakers() []*Job {
	j.mu.Lock()
	defer j.mu.Unlock()
	wakers := make([]*Job, 0, len(j.toWakeUp))
	for peer := range j.toWakeUp {
		wakers = append(wakers, peer)
	}
	j.toWakeUp = make(map[*Job]struct{})
	return wakers
}

// takeSelf nils out the job's self-reference and returns what it held,
// the "transfer self into to_kill_" step of termination.
func (j *Job) takeSelf() *Job {
	j.mu.Lock()
	defer j.mu.Unlock()
	s := j.self
	j.self = nil
	return s
}

func (j *Job) setFrozenSince(t int64) {
	j.mu.Lock()
	j.frozenSince = t
	j.mu.Unlock()
}

// accumulateTimeShift closes out a frozen window: timeShift grows by
// now - frozenSince, and frozenSince resets to 0.
func (j *Job) accumulateTimeShift(now int64) {
	j.mu.Lock()
	j.timeShift += now - j.frozenSince
	j.frozenSince = 0
	j.mu.Unlock()
}

// blockingTag returns the top-most tag (considering ancestors) whose
// effective Blocked() is true, for attaching to a BlockedException.
func (j *Job) blockingTag() (Tag, bool) {
	tags := j.Tags()
	for i := len(tags) - 1; i >= 0; i-- {
		if tags[i].Blocked() {
			return tags[i], true
		}
	}
	return Tag{}, false
}

// uintptrOf gives a total order over *Job values so Link/Unlink can lock
// two jobs' mutexes in a consistent order and avoid deadlock.
func uintptrOf(j *Job) uintptr {
	return reflect.ValueOf(j).Pointer()
}
