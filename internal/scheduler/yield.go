package scheduler

// Yield operations are the sole fiber-switch sites in job code: a job may
// suspend only from inside one of these, called on itself while running.

// Yield gives up the current slice without changing what the job is
// waiting for; the scheduler is free to dispatch it again next cycle.
func (j *Job) Yield() error {
	j.setState(Running)
	j.scheduler.noteYield()
	fiberYield(j.fib)
	return j.checkForPendingException()
}

// YieldUntil suspends the job until the scheduler's sampled current time
// reaches deadline (an absolute microsecond timestamp in scheduler time,
// not adjusted for the job's own TimeShift — callers in a frozen-prone job
// must add TimeShift() themselves).
func (j *Job) YieldUntil(deadline int64) error {
	j.mu.Lock()
	j.state = Sleeping
	j.deadline = deadline
	j.mu.Unlock()
	j.scheduler.noteYield()
	fiberYield(j.fib)
	return j.checkForPendingException()
}

// YieldUntilTerminated suspends the job until other reaches Zombie. If
// other is already a zombie, it returns immediately without suspending.
func (j *Job) YieldUntilTerminated(other *Job) error {
	if other.State() == Zombie {
		return nil
	}
	other.addWaker(j)
	j.mu.Lock()
	j.state = Joining
	j.mu.Unlock()
	j.scheduler.noteYield()
	fiberYield(j.fib)
	other.removeWaker(j)
	return j.checkForPendingException()
}

// YieldUntilThingsChanged suspends the job in the Waiting state. The
// scheduler dispatches it again in the cycle after one in which some
// dispatched job was not side-effect-free; that job may be this one, so a
// job that is not itself side-effect-free resumes on the next cycle. A tag
// mutation, or the termination of a side-effect-free job, does not wake it
// on its own; a pending exception does. See Scheduler.RunCycle.
func (j *Job) YieldUntilThingsChanged() error {
	j.mu.Lock()
	j.state = Waiting
	j.mu.Unlock()
	j.scheduler.noteYield()
	fiberYield(j.fib)
	return j.checkForPendingException()
}
