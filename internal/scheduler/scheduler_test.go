package scheduler

import (
	"errors"
	"testing"

	"simplejvm/internal/clock"
)

func TestSchedulerTwoJobPingPong(t *testing.T) {
	s := NewScheduler(clock.NewFake(0), DefaultConfig())

	var order []string
	a := s.NewJob("a", func(j *Job) error {
		order = append(order, "a1")
		if err := j.Yield(); err != nil {
			return err
		}
		order = append(order, "a2")
		return nil
	})
	b := s.NewJob("b", func(j *Job) error {
		order = append(order, "b1")
		if err := j.Yield(); err != nil {
			return err
		}
		order = append(order, "b2")
		return nil
	})
	s.AddJob(a)
	s.AddJob(b)

	s.RunCycle()
	if got := []string{"a1", "b1"}; !equalStrings(order, got) {
		t.Fatalf("expected %v after first cycle, got %v", got, order)
	}

	s.RunCycle()
	if got := []string{"a1", "b1", "a2", "b2"}; !equalStrings(order, got) {
		t.Fatalf("expected %v after second cycle, got %v", got, order)
	}

	if a.State() != Zombie || b.State() != Zombie {
		t.Fatal("both jobs should have reached Zombie")
	}
	if s.JobCount() != 0 {
		t.Fatalf("expected an empty run queue, got %d jobs", s.JobCount())
	}
}

func TestSchedulerSleepDeadline(t *testing.T) {
	clk := clock.NewFake(0)
	s := NewScheduler(clk, DefaultConfig())

	woke := false
	j := s.NewJob("sleeper", func(j *Job) error {
		if err := j.YieldUntil(1_000_000); err != nil {
			return err
		}
		woke = true
		return nil
	})
	s.AddJob(j)

	s.RunCycle() // enters the job, it yields-until 1_000_000 and suspends
	if j.State() != Sleeping {
		t.Fatalf("expected Sleeping, got %v", j.State())
	}

	clk.Set(500_000)
	s.RunCycle()
	if j.State() != Sleeping || woke {
		t.Fatal("job should remain asleep before its deadline")
	}

	clk.Set(1_000_000)
	s.RunCycle()
	if !woke {
		t.Fatal("job should wake once current time reaches its deadline")
	}
	if j.State() != Zombie {
		t.Fatalf("expected Zombie after waking and returning, got %v", j.State())
	}
}

func TestSchedulerTagBlockDeliversBlockedException(t *testing.T) {
	s := NewScheduler(clock.NewFake(0), DefaultConfig())

	tag := NewTag(nil)
	var caught *BlockedException
	j := s.NewJob("blockable", func(j *Job) error {
		j.PushTag(tag)
		for i := 0; i < 10; i++ {
			if err := j.Yield(); err != nil {
				var be *BlockedException
				if errors.As(err, &be) {
					caught = be
					return nil
				}
				return err
			}
		}
		return nil
	})
	s.AddJob(j)

	s.RunCycle()
	tag.Block()
	s.RunCycle()

	if caught == nil {
		t.Fatal("expected the job to observe a BlockedException after its tag was blocked")
	}
	if !caught.Tag.Equal(tag) {
		t.Fatal("BlockedException should carry the tag that blocked the job")
	}
}

func TestSchedulerNonInterruptibleSuppressesBlockedException(t *testing.T) {
	s := NewScheduler(clock.NewFake(0), DefaultConfig())

	tag := NewTag(nil)
	sawException := false
	j := s.NewJob("shielded", func(j *Job) error {
		j.PushTag(tag)
		j.SetNonInterruptible(true)
		for i := 0; i < 3; i++ {
			if err := j.Yield(); err != nil {
				sawException = true
				return err
			}
		}
		return nil
	})
	s.AddJob(j)

	s.RunCycle()
	tag.Block()
	s.RunCycle()
	s.RunCycle()
	s.RunCycle()

	if sawException {
		t.Fatal("a non-interruptible job should not receive a BlockedException")
	}
	if j.State() != Zombie {
		t.Fatalf("expected the shielded job to run to completion, got %v", j.State())
	}
}

func TestSchedulerStopUnwindsToTaggedScope(t *testing.T) {
	s := NewScheduler(clock.NewFake(0), DefaultConfig())

	tag := NewTag(nil)
	unwound := false
	j := s.NewJob("stoppable", func(j *Job) error {
		j.PushTag(tag)
		for i := 0; i < 10; i++ {
			if err := j.Yield(); err != nil {
				var se *StopException
				if errors.As(err, &se) {
					j.UnwindTo(se.Tag)
					unwound = true
					return nil
				}
				return err
			}
		}
		return nil
	})
	s.AddJob(j)

	s.RunCycle()
	tag.Stop()
	s.RunCycle()

	if !unwound {
		t.Fatal("expected the job to observe and unwind a StopException")
	}
	if got := j.Tags(); len(got) != 0 {
		t.Fatalf("UnwindTo the stopped tag should leave an empty stack, got %v", got)
	}
	if j.State() != Zombie {
		t.Fatalf("expected Zombie after unwinding, got %v", j.State())
	}
}

func TestSchedulerLinkPropagatesUncaughtError(t *testing.T) {
	s := NewScheduler(clock.NewFake(0), DefaultConfig())

	boom := errors.New("boom")
	a := s.NewJob("a", func(j *Job) error {
		if err := j.Yield(); err != nil {
			return err
		}
		return boom
	})
	var receivedErr error
	b := s.NewJob("b", func(j *Job) error {
		for i := 0; i < 5; i++ {
			if err := j.Yield(); err != nil {
				receivedErr = err
				return nil
			}
		}
		return nil
	})
	a.Link(b)
	s.AddJob(a)
	s.AddJob(b)

	s.RunCycle() // both jobs start and park at their first yield
	s.RunCycle() // a resumes, terminates with boom, and propagates it to b before b's turn

	if receivedErr == nil {
		t.Fatal("expected the linked peer to receive a's terminating error")
	}
	var se *SchedulerException
	if errors.As(receivedErr, &se) {
		t.Fatal("a plain domain error should propagate as-is, not wrapped in SchedulerException")
	}
	if receivedErr.Error() != boom.Error() {
		t.Fatalf("expected propagated error %q, got %q", boom, receivedErr)
	}
}

func TestSchedulerJoinWakesOnTermination(t *testing.T) {
	s := NewScheduler(clock.NewFake(0), DefaultConfig())

	target := s.NewJob("target", func(j *Job) error {
		return j.Yield()
	})
	joined := false
	joiner := s.NewJob("joiner", func(j *Job) error {
		if err := j.YieldUntilTerminated(target); err != nil {
			return err
		}
		joined = true
		return nil
	})
	s.AddJob(target)
	s.AddJob(joiner)

	s.RunCycle() // target yields once, joiner parks in Joining
	if joiner.State() != Joining {
		t.Fatalf("expected joiner to be Joining, got %v", joiner.State())
	}

	s.RunCycle() // target completes and wakes joiner, which runs later in this same cycle and finishes
	s.RunCycle() // nothing left to run

	if !joined {
		t.Fatal("joiner should have woken and completed after target's termination")
	}
}

func TestSchedulerFrozenTagAccumulatesTimeShiftWithoutDispatching(t *testing.T) {
	clk := clock.NewFake(0)
	s := NewScheduler(clk, DefaultConfig())

	runs := 0
	tag := NewTag(nil)
	j := s.NewJob("frozen", func(j *Job) error {
		j.PushTag(tag)
		for i := 0; i < 3; i++ {
			runs++
			if err := j.Yield(); err != nil {
				return err
			}
		}
		return nil
	})
	s.AddJob(j)

	s.RunCycle() // runs=1, pushes tag, yields
	clk.Set(1_000_000)
	tag.Freeze()
	s.RunCycle() // frozen: must not dispatch
	if runs != 1 {
		t.Fatalf("a frozen job must not be dispatched, runs=%d", runs)
	}

	clk.Set(1_500_000)
	s.RunCycle() // still frozen
	if runs != 1 {
		t.Fatalf("a frozen job must not be dispatched, runs=%d", runs)
	}

	tag.Unfreeze()
	clk.Set(1_800_000)
	s.RunCycle() // unfreezes, should dispatch again
	if runs != 2 {
		t.Fatalf("expected the job to resume after unfreezing, runs=%d", runs)
	}

	if got := j.TimeShift(); got != 800_000 {
		t.Fatalf("expected accumulated timeShift of 800000us, got %d", got)
	}
}

func TestSchedulerWaitingJobResumesOnlyAfterNonSideEffectFreeProgress(t *testing.T) {
	s := NewScheduler(clock.NewFake(0), DefaultConfig())

	resumed := false
	waiter := s.NewJob("waiter", func(j *Job) error {
		if err := j.YieldUntilThingsChanged(); err != nil {
			return err
		}
		resumed = true
		return nil
	})
	waiter.SetSideEffectFree(true)
	s.AddJob(waiter)

	s.RunCycle() // waiter parks in Waiting
	if waiter.State() != Waiting {
		t.Fatalf("expected Waiting, got %v", waiter.State())
	}

	quiet := s.NewJob("quiet", func(j *Job) error { return j.Yield() })
	quiet.SetSideEffectFree(true)
	s.AddJob(quiet)

	s.RunCycle() // quiet dispatches once, but it is side-effect-free
	s.RunCycle() // quiet finishes, still side-effect-free
	if resumed {
		t.Fatal("a waiting job must not resume after only side-effect-free progress")
	}
	if waiter.State() != Waiting {
		t.Fatalf("expected waiter to remain Waiting, got %v", waiter.State())
	}

	mover := s.NewJob("mover", func(j *Job) error { return j.Yield() })
	s.AddJob(mover)

	s.RunCycle() // mover dispatches: it is not side-effect-free
	s.RunCycle() // the wake rule lets waiter dispatch the cycle after
	if !resumed {
		t.Fatal("waiter should resume once a prior cycle had non-side-effect-free progress")
	}
}

func TestSchedulerPendingExceptionWakesSleepingJob(t *testing.T) {
	clk := clock.NewFake(0)
	s := NewScheduler(clk, DefaultConfig())

	boom := errors.New("boom")
	var receivedErr error
	sleeper := s.NewJob("sleeper", func(j *Job) error {
		receivedErr = j.YieldUntil(10_000_000)
		return nil
	})
	dying := s.NewJob("dying", func(j *Job) error {
		if err := j.Yield(); err != nil {
			return err
		}
		return boom
	})
	sleeper.Link(dying)
	s.AddJob(sleeper)
	s.AddJob(dying)

	s.RunCycle() // sleeper parks until t=10s, dying parks at its yield
	if sleeper.State() != Sleeping {
		t.Fatalf("expected Sleeping, got %v", sleeper.State())
	}

	clk.Set(1_000_000) // far short of the sleeper's deadline
	s.RunCycle()       // dying terminates, boom lands in sleeper's pending slot
	s.RunCycle()       // sleeper must be dispatched despite its deadline

	if receivedErr == nil {
		t.Fatal("a pending exception should wake a sleeping job before its deadline")
	}
	if receivedErr.Error() != boom.Error() {
		t.Fatalf("expected propagated error %q, got %q", boom, receivedErr)
	}
	if sleeper.State() != Zombie {
		t.Fatalf("expected Zombie after handling the exception, got %v", sleeper.State())
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
