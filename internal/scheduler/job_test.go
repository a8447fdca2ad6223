package scheduler

import (
	"testing"

	"simplejvm/internal/clock"
)

func newTestScheduler() *Scheduler {
	return NewScheduler(clock.NewFake(0), DefaultConfig())
}

func TestJobTagStackPushPop(t *testing.T) {
	s := newTestScheduler()
	j := s.NewJob("job", func(j *Job) error { return nil })
	defer s.Abandon(j)

	a := NewTag(nil)
	b := NewTag(nil)
	j.PushTag(a)
	j.PushTag(b)

	if got := j.Tags(); len(got) != 2 {
		t.Fatalf("expected 2 tags, got %d", len(got))
	}

	top := j.PopTag()
	if !top.Equal(b) {
		t.Fatal("PopTag should return the most recently pushed tag")
	}
	if got := j.Tags(); len(got) != 1 || !got[0].Equal(a) {
		t.Fatal("remaining stack should contain only the first tag")
	}
}

func TestJobPopEmptyStackPanics(t *testing.T) {
	s := newTestScheduler()
	j := s.NewJob("job", func(j *Job) error { return nil })
	defer s.Abandon(j)

	defer func() {
		if recover() == nil {
			t.Fatal("expected PopTag on an empty stack to panic")
		}
	}()
	j.PopTag()
}

func TestJobUnwindTo(t *testing.T) {
	s := newTestScheduler()
	j := s.NewJob("job", func(j *Job) error { return nil })
	defer s.Abandon(j)

	outer := NewTag(nil)
	middle := NewTag(nil)
	inner := NewTag(nil)
	j.PushTag(outer)
	j.PushTag(middle)
	j.PushTag(inner)

	j.UnwindTo(middle)
	tags := j.Tags()
	if len(tags) != 1 || !tags[0].Equal(outer) {
		t.Fatalf("UnwindTo(middle) should leave only outer, got %v", tags)
	}
}

func TestJobUnwindToMissingTagIsNoop(t *testing.T) {
	s := newTestScheduler()
	j := s.NewJob("job", func(j *Job) error { return nil })
	defer s.Abandon(j)

	a := NewTag(nil)
	j.PushTag(a)
	j.UnwindTo(NewTag(nil))

	if got := j.Tags(); len(got) != 1 {
		t.Fatalf("UnwindTo on an absent tag should not modify the stack, got %v", got)
	}
}

func TestJobPushingStoppedTagQueuesStopException(t *testing.T) {
	s := newTestScheduler()
	j := s.NewJob("job", func(j *Job) error { return nil })
	defer s.Abandon(j)

	tag := NewTag(nil)
	tag.Stop()
	j.PushTag(tag)

	if !j.hasPendingException() {
		t.Fatal("pushing an already-stopped tag should queue a StopException")
	}
	err := j.checkForPendingException()
	if _, ok := err.(*StopException); !ok {
		t.Fatalf("expected *StopException, got %T", err)
	}
}

func TestJobBlockedAndFrozenAreTransitiveOverAncestors(t *testing.T) {
	s := newTestScheduler()
	j := s.NewJob("job", func(j *Job) error { return nil })
	defer s.Abandon(j)

	parent := NewTag(nil)
	child := NewTag(&parent)
	j.PushTag(child)

	if j.Blocked() {
		t.Fatal("job should not be blocked yet")
	}
	parent.Block()
	if !j.Blocked() {
		t.Fatal("job should observe ancestor block through its tag stack")
	}

	parent.Unblock()
	parent.Freeze()
	if !j.Frozen() {
		t.Fatal("job should observe ancestor freeze through its tag stack")
	}
}

func TestJobAsyncThrowIsSingleSlotLastWriterWins(t *testing.T) {
	s := newTestScheduler()
	j := s.NewJob("job", func(j *Job) error { return nil })
	defer s.Abandon(j)

	first := newSchedulerError("first")
	second := newSchedulerError("second")
	j.AsyncThrow(first)
	j.AsyncThrow(second)

	err := j.checkForPendingException()
	if err != second {
		t.Fatalf("expected the later AsyncThrow to win, got %v", err)
	}
	if j.hasPendingException() {
		t.Fatal("checkForPendingException should have consumed the slot")
	}
}

func TestJobLinkIsSymmetricAndPropagatesOnTermination(t *testing.T) {
	s := newTestScheduler()
	a := s.NewJob("a", func(j *Job) error { return nil })
	b := s.NewJob("b", func(j *Job) error { return nil })
	defer s.Abandon(a)
	defer s.Abandon(b)

	a.Link(b)
	boom := newSchedulerError("boom")
	a.terminateCleanup(boom)

	if !b.hasPendingException() {
		t.Fatal("linked peer should receive the terminating job's error")
	}
	if err := b.checkForPendingException(); err != boom {
		t.Fatalf("expected propagated error to be the original, got %v", err)
	}

	// terminateCleanup also severs the link from the terminating side.
	links, _ := a.snapshotLinksAndWakers()
	if len(links) != 0 {
		t.Fatal("terminateCleanup should remove this job's half of the link")
	}
}

func TestJobUnlinkRemovesBothSides(t *testing.T) {
	s := newTestScheduler()
	a := s.NewJob("a", func(j *Job) error { return nil })
	b := s.NewJob("b", func(j *Job) error { return nil })
	defer s.Abandon(a)
	defer s.Abandon(b)

	a.Link(b)
	a.Unlink(b)

	aLinks, _ := a.snapshotLinksAndWakers()
	bLinks, _ := b.snapshotLinksAndWakers()
	if len(aLinks) != 0 || len(bLinks) != 0 {
		t.Fatal("Unlink should remove the relationship symmetrically")
	}
}

func TestJobTakeWakersClearsTheSet(t *testing.T) {
	s := newTestScheduler()
	target := s.NewJob("target", func(j *Job) error { return nil })
	waiter := s.NewJob("waiter", func(j *Job) error { return nil })
	defer s.Abandon(target)
	defer s.Abandon(waiter)

	target.addWaker(waiter)
	wakers := target.takeWakers()
	if len(wakers) != 1 || wakers[0] != waiter {
		t.Fatalf("expected exactly one waker, got %v", wakers)
	}

	_, wakersAfter := target.snapshotLinksAndWakers()
	if len(wakersAfter) != 0 {
		t.Fatal("takeWakers should clear the waker set")
	}
}

func TestJobTakeSelfNilsTheSelfReference(t *testing.T) {
	s := newTestScheduler()
	j := s.NewJob("job", func(j *Job) error { return nil })
	defer s.Abandon(j)

	self := j.takeSelf()
	if self != j {
		t.Fatal("takeSelf should return the job itself the first time")
	}
	if again := j.takeSelf(); again != nil {
		t.Fatal("a second takeSelf should return nil, the reference already handed off")
	}
}

func TestJobTimeShiftAccumulatesAcrossFrozenWindows(t *testing.T) {
	s := newTestScheduler()
	j := s.NewJob("job", func(j *Job) error { return nil })
	defer s.Abandon(j)

	j.setFrozenSince(1_000_000)
	j.accumulateTimeShift(1_500_000)
	if got := j.TimeShift(); got != 500_000 {
		t.Fatalf("expected timeShift 500000 after one frozen window, got %d", got)
	}
	if j.FrozenSince() != 0 {
		t.Fatal("accumulateTimeShift should reset frozenSince to 0")
	}

	j.setFrozenSince(2_000_000)
	j.accumulateTimeShift(2_200_000)
	if got := j.TimeShift(); got != 700_000 {
		t.Fatalf("expected timeShift to accumulate across windows, got %d", got)
	}
}

func TestNewJobFromCopiesModelTagStack(t *testing.T) {
	s := newTestScheduler()
	model := s.NewJob("model", func(j *Job) error { return nil })
	defer s.Abandon(model)

	tag := NewTag(nil)
	model.PushTag(tag)

	derived := NewJobFrom(model, "derived", func(j *Job) error { return nil })
	defer s.Abandon(derived)

	tags := derived.Tags()
	if len(tags) != 1 || !tags[0].Equal(tag) {
		t.Fatalf("derived job should inherit the model's tag stack, got %v", tags)
	}

	// Mutating the model's stack afterward must not affect the copy already
	// handed to the derived job.
	model.PushTag(NewTag(nil))
	if got := derived.Tags(); len(got) != 1 {
		t.Fatal("derived job's tag stack should be an independent copy")
	}
}
