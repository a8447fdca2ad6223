package vm

import (
	"fmt"
	"sync"
	"sync/atomic"

	"simplejvm/internal/clock"
	"simplejvm/internal/scheduler"
)

// eventLoop is a Node.js-style task/timer queue rebuilt on top of the
// cooperative fiber scheduler: a submitted task is a job that runs once, a
// timeout or interval is a job that yields until its deadline before (and,
// for intervals, repeatedly after) running its callback. Run pumps the
// same scheduler cycle loop Fiber/Parallel natives use, so submitted work
// and timers interleave exactly the way concurrently-running fibers would.
type eventLoop struct {
	sched *scheduler.Scheduler

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}

	taskJobs  []*scheduler.Job
	timerJobs []*scheduler.Job

	taskCount  int32
	timerCount int32
}

func newEventLoop() *eventLoop {
	return &eventLoop{
		sched:  scheduler.NewScheduler(clock.System{}, scheduler.DefaultConfig()),
		stopCh: make(chan struct{}),
	}
}

// Submit queues a one-shot task, run the next time the loop cycles.
func (el *eventLoop) Submit(id int32, name string, callback func()) {
	job := el.sched.NewJob(name, func(j *scheduler.Job) error {
		if callback != nil {
			callback()
		}
		atomic.AddInt32(&el.taskCount, 1)
		return nil
	})
	el.mu.Lock()
	el.taskJobs = append(el.taskJobs, job)
	el.mu.Unlock()
	el.sched.AddJob(job)
}

// SetTimeout schedules callback to run once, delayMs from now.
func (el *eventLoop) SetTimeout(id int32, name string, delayMs int64, callback func()) {
	deadline := el.sched.Now() + delayMs*1000
	job := el.sched.NewJob(name, func(j *scheduler.Job) error {
		if err := j.YieldUntil(deadline); err != nil {
			return err
		}
		if callback != nil {
			callback()
		}
		atomic.AddInt32(&el.timerCount, 1)
		return nil
	})
	el.mu.Lock()
	el.timerJobs = append(el.timerJobs, job)
	el.mu.Unlock()
	el.sched.AddJob(job)
}

// SetInterval schedules callback to run every periodMs. The interval job
// itself never reaches Zombie; it keeps yielding until its next deadline
// for as long as the loop keeps calling Run.
func (el *eventLoop) SetInterval(id int32, name string, periodMs int64, callback func()) {
	job := el.sched.NewJob(name, func(j *scheduler.Job) error {
		next := el.sched.Now() + periodMs*1000
		for {
			if err := j.YieldUntil(next); err != nil {
				return err
			}
			if callback != nil {
				callback()
			}
			atomic.AddInt32(&el.timerCount, 1)
			next = el.sched.Now() + periodMs*1000
		}
	})
	el.mu.Lock()
	el.timerJobs = append(el.timerJobs, job)
	el.mu.Unlock()
	el.sched.AddJob(job)
}

// Run pumps scheduler cycles until Stop is called or the loop's scheduler
// holds no job at all (a live interval never leaves it, so a loop with one
// keeps running until stopped).
func (el *eventLoop) Run() {
	el.mu.Lock()
	if el.running {
		el.mu.Unlock()
		return
	}
	el.running = true
	el.stopCh = make(chan struct{})
	stopCh := el.stopCh
	el.mu.Unlock()

	for {
		select {
		case <-stopCh:
			el.mu.Lock()
			el.running = false
			el.mu.Unlock()
			return
		default:
		}
		if el.sched.JobCount() == 0 {
			el.mu.Lock()
			el.running = false
			el.mu.Unlock()
			return
		}
		el.sched.RunCycle()
	}
}

// Stop halts a running loop; any live interval job simply stays parked at
// its next yield point until a later Run call resumes pumping.
func (el *eventLoop) Stop() {
	el.mu.Lock()
	defer el.mu.Unlock()
	if el.running {
		el.running = false
		close(el.stopCh)
	}
}

// IsRunning reports whether Run is currently pumping cycles.
func (el *eventLoop) IsRunning() bool {
	el.mu.Lock()
	defer el.mu.Unlock()
	return el.running
}

// Stats returns the number of tasks and timers that have fired so far.
func (el *eventLoop) Stats() (tasks, timers int32) {
	return atomic.LoadInt32(&el.taskCount), atomic.LoadInt32(&el.timerCount)
}

// PendingTasks returns the number of submitted tasks not yet run.
func (el *eventLoop) PendingTasks() int {
	el.mu.Lock()
	defer el.mu.Unlock()
	return countAlive(el.taskJobs)
}

// PendingTimers returns the number of armed timers not yet fired (for
// intervals: not yet stopped).
func (el *eventLoop) PendingTimers() int {
	el.mu.Lock()
	defer el.mu.Unlock()
	return countAlive(el.timerJobs)
}

func countAlive(jobs []*scheduler.Job) int {
	n := 0
	for _, j := range jobs {
		if j.State() != scheduler.Zombie {
			n++
		}
	}
	return n
}

// PrintStats prints event loop statistics.
func (el *eventLoop) PrintStats() {
	tasks, timers := el.Stats()
	fmt.Println("=== Event Loop Statistics ===")
	fmt.Printf("Tasks Processed:  %d\n", tasks)
	fmt.Printf("Timers Fired:     %d\n", timers)
	fmt.Printf("Pending Tasks:    %d\n", el.PendingTasks())
	fmt.Printf("Pending Timers:   %d\n", el.PendingTimers())
}
