package vm

import (
	"fmt"
	"sync"
	"sync/atomic"

	"simplejvm/internal/scheduler"
)

var fiberOutputMu sync.Mutex

// fiberHandle tracks a spawned fiber's scheduler.Job alongside the metadata
// the Fiber/GreenThreads natives expose by integer ID, since scheduler.Job
// itself has no notion of the small integer handles bytecode deals in.
type fiberHandle struct {
	id     int64
	name   string
	taskID int32
	job    *scheduler.Job
}

var activeFibers = struct {
	sync.RWMutex
	fibers map[int64]*fiberHandle
}{
	fibers: make(map[int64]*fiberHandle),
}

var fiberTaskCounter int64

func init() {
	// Register fiber/green thread natives
	Natives.Register("Fiber", "spawn", "(ILjava/lang/String;)J", nativeFiberSpawn)
	Natives.Register("Fiber", "yield", "()V", nativeFiberYield)
	Natives.Register("Fiber", "sleep", "(J)V", nativeFiberSleep)
	Natives.Register("Fiber", "join", "(J)V", nativeFiberJoin)
	Natives.Register("Fiber", "isAlive", "(J)Z", nativeFiberIsAlive)
	Natives.Register("Fiber", "current", "()J", nativeFiberCurrent)
	Natives.Register("Fiber", "count", "()I", nativeFiberCount)
	Natives.Register("Fiber", "printStats", "()V", nativeFiberPrintStats)

	// Also register with GreenThreads class name (Java file uses plural)
	Natives.Register("GreenThreads", "spawn", "(ILjava/lang/String;)J", nativeFiberSpawn)
	Natives.Register("GreenThreads", "yield", "()V", nativeFiberYield)
	Natives.Register("GreenThreads", "sleep", "(J)V", nativeFiberSleep)
	Natives.Register("GreenThreads", "join", "(J)V", nativeFiberJoin)
	Natives.Register("GreenThreads", "isAlive", "(J)Z", nativeFiberIsAlive)
	Natives.Register("GreenThreads", "current", "()J", nativeFiberCurrent)
	Natives.Register("GreenThreads", "count", "()I", nativeFiberCount)
	Natives.Register("GreenThreads", "printStats", "()V", nativeFiberPrintStats)

	// Parallel execution helpers
	Natives.Register("Parallel", "run", "(I)V", nativeParallelRun)
	Natives.Register("Parallel", "forEach", "(II)V", nativeParallelForEach)
}

// fiberWork is the job body every spawned fiber and parallel task runs: a
// few iterations of simulated progress, each ceding the time slice with
// j.Yield() rather than blocking a real OS thread. A future revision that
// calls back into the interpreter to run actual bytecode would replace the
// body of this closure without touching any of the natives below.
func fiberWork(name string, taskID int32) scheduler.WorkFunc {
	return func(j *scheduler.Job) error {
		iterations := int(taskID) * 3
		for i := 0; i < iterations; i++ {
			fiberOutputMu.Lock()
			fmt.Printf("[%s] iteration %d/%d\n", name, i+1, iterations)
			fiberOutputMu.Unlock()

			if err := j.Yield(); err != nil {
				return err
			}
		}
		return nil
	}
}

// nativeFiberSpawn spawns a new fiber
// Java signature: static native long spawn(int taskId, String name)
func nativeFiberSpawn(frame *Frame) error {
	stack := frame.OperandStack
	nameRef := stack.PopRef()
	taskID := stack.PopInt()

	name := "fiber"
	if s, ok := nameRef.(string); ok {
		name = s
	}

	sched := frame.Thread.JVM().Scheduler()
	fiberID := atomic.AddInt64(&fiberTaskCounter, 1)
	job := sched.NewJob(name, fiberWork(name, taskID))

	activeFibers.Lock()
	activeFibers.fibers[fiberID] = &fiberHandle{id: fiberID, name: name, taskID: taskID, job: job}
	activeFibers.Unlock()

	sched.AddJob(job)

	stack.PushLong(fiberID)
	return nil
}

// nativeFiberYield gives every pending fiber one scheduler cycle. Called
// from the host thread (the interpreter itself is not a scheduler job), so
// "yielding" here means pumping the run queue once rather than suspending a
// fiber of its own.
func nativeFiberYield(frame *Frame) error {
	frame.Thread.JVM().Scheduler().RunCycle()
	return nil
}

// nativeFiberSleep pumps the scheduler until at least millis milliseconds
// of scheduler time (sampled from the wall clock backing this JVM's
// Scheduler) have elapsed, so background fibers keep making progress during
// the wait instead of the host thread blocking them out.
func nativeFiberSleep(frame *Frame) error {
	millis := frame.OperandStack.PopLong()
	sched := frame.Thread.JVM().Scheduler()

	sched.RunCycle()
	deadline := sched.CurrentTime() + millis*1000
	for sched.CurrentTime() < deadline {
		sched.RunCycle()
	}
	return nil
}

// nativeFiberJoin waits for a fiber to complete. The wait itself happens
// inside a throwaway joiner job's body via Job.YieldUntilTerminated, the
// same join primitive scheduler_test.go exercises directly — the host
// thread only pumps cycles for the joiner, never polls the target's state.
func nativeFiberJoin(frame *Frame) error {
	fiberID := frame.OperandStack.PopLong()

	activeFibers.RLock()
	handle, exists := activeFibers.fibers[fiberID]
	activeFibers.RUnlock()

	if !exists || handle.job.State() == scheduler.Zombie {
		return nil
	}

	sched := frame.Thread.JVM().Scheduler()
	joiner := sched.NewJob(fmt.Sprintf("join-%d", fiberID), joinAll([]*scheduler.Job{handle.job}))
	sched.AddJob(joiner)

	for joiner.State() != scheduler.Zombie {
		sched.RunCycle()
	}

	return nil
}

// nativeFiberIsAlive checks if a fiber is still running
func nativeFiberIsAlive(frame *Frame) error {
	fiberID := frame.OperandStack.PopLong()

	activeFibers.RLock()
	handle, exists := activeFibers.fibers[fiberID]
	activeFibers.RUnlock()

	if !exists {
		frame.OperandStack.PushInt(0)
		return nil
	}

	if handle.job.State() == scheduler.Zombie {
		frame.OperandStack.PushInt(0)
	} else {
		frame.OperandStack.PushInt(1)
	}

	return nil
}

// nativeFiberCurrent returns the current fiber ID (or 0 for main)
func nativeFiberCurrent(frame *Frame) error {
	// The interpreter's own call stack never runs as a scheduler.Job, so
	// there is no fiber ID to report for "the caller" beyond the host.
	frame.OperandStack.PushLong(0)
	return nil
}

// nativeFiberCount returns the number of active fibers
func nativeFiberCount(frame *Frame) error {
	activeFibers.RLock()
	count := 0
	for _, handle := range activeFibers.fibers {
		if handle.job.State() != scheduler.Zombie {
			count++
		}
	}
	activeFibers.RUnlock()

	frame.OperandStack.PushInt(int32(count))
	return nil
}

// nativeFiberPrintStats prints fiber statistics
func nativeFiberPrintStats(frame *Frame) error {
	activeFibers.RLock()
	total := len(activeFibers.fibers)
	active := 0
	completed := 0
	for _, handle := range activeFibers.fibers {
		if handle.job.State() == scheduler.Zombie {
			completed++
		} else {
			active++
		}
	}
	activeFibers.RUnlock()

	fmt.Println("=== Fiber Statistics ===")
	fmt.Printf("Total Created: %d\n", total)
	fmt.Printf("Active:        %d\n", active)
	fmt.Printf("Completed:     %d\n", completed)

	return nil
}

// joinAll returns a job body that waits for every job in jobs to reach
// Zombie, one at a time, via Job.YieldUntilTerminated — the bytecode-level
// exercise of the join-wake-up property scheduler_test.go covers directly.
func joinAll(jobs []*scheduler.Job) scheduler.WorkFunc {
	return func(j *scheduler.Job) error {
		for _, target := range jobs {
			if err := j.YieldUntilTerminated(target); err != nil {
				return err
			}
		}
		return nil
	}
}

// linkToSupervisor links each worker to the supervising joiner so an
// uncaught error in any worker lands in the supervisor's pending exception
// and aborts the join early — a star topology, not all-pairs, so setup
// stays linear in the task count bytecode asks for.
func linkToSupervisor(supervisor *scheduler.Job, jobs []*scheduler.Job) {
	for _, job := range jobs {
		supervisor.Link(job)
	}
}

// nativeParallelRun runs N tasks in parallel fibers, linked to and joined
// by a supervisor job rather than polled from the host thread.
func nativeParallelRun(frame *Frame) error {
	numTasks := frame.OperandStack.PopInt()
	sched := frame.Thread.JVM().Scheduler()

	if numTasks <= 0 {
		return nil
	}

	jobs := make([]*scheduler.Job, numTasks)
	for i := int32(0); i < numTasks; i++ {
		name := fmt.Sprintf("parallel-%d", i)
		job := sched.NewJob(name, fiberWork(name, i+1))
		jobs[i] = job
		sched.AddJob(job)
	}

	supervisor := sched.NewJob("parallel-supervisor", joinAll(jobs))
	linkToSupervisor(supervisor, jobs)
	sched.AddJob(supervisor)

	for supervisor.State() != scheduler.Zombie {
		sched.RunCycle()
	}

	return nil
}

// nativeParallelForEach runs a parallel for-each over a range, linked to
// and joined by a supervisor job rather than polled from the host thread.
func nativeParallelForEach(frame *Frame) error {
	end := frame.OperandStack.PopInt()
	start := frame.OperandStack.PopInt()
	sched := frame.Thread.JVM().Scheduler()

	if end <= start {
		return nil
	}

	jobs := make([]*scheduler.Job, 0, end-start)
	for i := start; i < end; i++ {
		idx := i
		job := sched.NewJob(fmt.Sprintf("parallel-foreach-%d", idx), func(j *scheduler.Job) error {
			fiberOutputMu.Lock()
			fmt.Printf("[parallel] processing index %d\n", idx)
			fiberOutputMu.Unlock()
			return j.Yield()
		})
		jobs = append(jobs, job)
		sched.AddJob(job)
	}

	supervisor := sched.NewJob("parallel-foreach-supervisor", joinAll(jobs))
	linkToSupervisor(supervisor, jobs)
	sched.AddJob(supervisor)

	for supervisor.State() != scheduler.Zombie {
		sched.RunCycle()
	}

	return nil
}
