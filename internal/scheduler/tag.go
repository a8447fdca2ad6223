package scheduler

import (
	"sync"

	"github.com/google/uuid"
)

// tagRecord is the shared, mutable state behind a Tag handle. Tags do not
// hold references to jobs; the scheduler polls them during each cycle.
type tagRecord struct {
	mu      sync.Mutex
	blocked bool
	frozen  bool
	stopped bool
	parent  *Tag
}

// Tag is a cheaply-copyable handle to a shared, hierarchical flag record.
// Copying a Tag copies the handle, not the record: every copy observes the
// same blocked/frozen/stopped state.
type Tag struct {
	id     uuid.UUID
	record *tagRecord
}

// NewTag creates a fresh tag, optionally scoped under a parent. Effects
// (blocked/frozen/stopped) are the union of the tag's own flags and every
// ancestor's flags.
func NewTag(parent *Tag) Tag {
	var p *Tag
	if parent != nil {
		cp := *parent
		p = &cp
	}
	return Tag{
		id:     uuid.New(),
		record: &tagRecord{parent: p},
	}
}

// IsZero reports whether this Tag handle was never initialized via NewTag.
func (t Tag) IsZero() bool {
	return t.record == nil
}

// Parent returns the tag's parent, if any.
func (t Tag) Parent() (Tag, bool) {
	if t.record.parent == nil {
		return Tag{}, false
	}
	return *t.record.parent, true
}

// Block sets the blocked flag on this tag.
func (t Tag) Block() {
	t.record.mu.Lock()
	t.record.blocked = true
	t.record.mu.Unlock()
}

// Unblock clears the blocked flag on this tag.
func (t Tag) Unblock() {
	t.record.mu.Lock()
	t.record.blocked = false
	t.record.mu.Unlock()
}

// Freeze sets the frozen flag on this tag.
func (t Tag) Freeze() {
	t.record.mu.Lock()
	t.record.frozen = true
	t.record.mu.Unlock()
}

// Unfreeze clears the frozen flag on this tag.
func (t Tag) Unfreeze() {
	t.record.mu.Lock()
	t.record.frozen = false
	t.record.mu.Unlock()
}

// Stop marks the tag as stopped. A stopped tag is a one-way transition:
// there is no Unstop; stop is termination, not pause.
func (t Tag) Stop() {
	t.record.mu.Lock()
	t.record.stopped = true
	t.record.mu.Unlock()
}

// ownBlocked/ownFrozen/ownStopped read this tag's own flag, ignoring
// ancestors.
func (t Tag) ownBlocked() bool {
	t.record.mu.Lock()
	defer t.record.mu.Unlock()
	return t.record.blocked
}

func (t Tag) ownFrozen() bool {
	t.record.mu.Lock()
	defer t.record.mu.Unlock()
	return t.record.frozen
}

func (t Tag) ownStopped() bool {
	t.record.mu.Lock()
	defer t.record.mu.Unlock()
	return t.record.stopped
}

// Blocked reports whether this tag or any ancestor is blocked.
func (t Tag) Blocked() bool {
	for cur, ok := t, true; ok; cur, ok = cur.Parent() {
		if cur.ownBlocked() {
			return true
		}
	}
	return false
}

// Frozen reports whether this tag or any ancestor is frozen.
func (t Tag) Frozen() bool {
	for cur, ok := t, true; ok; cur, ok = cur.Parent() {
		if cur.ownFrozen() {
			return true
		}
	}
	return false
}

// Stopped reports whether this tag or any ancestor is stopped.
func (t Tag) Stopped() bool {
	for cur, ok := t, true; ok; cur, ok = cur.Parent() {
		if cur.ownStopped() {
			return true
		}
	}
	return false
}

// Equal reports whether two Tag handles refer to the same shared record.
func (t Tag) Equal(other Tag) bool {
	return t.record == other.record
}

// String returns a short identifier for logging.
func (t Tag) String() string {
	if t.IsZero() {
		return "tag(nil)"
	}
	return "tag(" + t.id.String()[:8] + ")"
}
