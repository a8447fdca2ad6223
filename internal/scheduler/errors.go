package scheduler

import (
	"fmt"

	"github.com/pkg/errors"
)

// SchedulerException is the base type that BlockedException and
// StopException embed; it supplies their Unwrap. Embedding does not make
// errors.As treat them as one: an errors.As target of type
// *SchedulerException matches neither of them, nor SchedulerError (which
// does not embed it). Each of the three is matched by its own type.
type SchedulerException struct {
	cause error
}

func (e *SchedulerException) Error() string {
	if e.cause == nil {
		return "scheduler exception"
	}
	return e.cause.Error()
}

func (e *SchedulerException) Unwrap() error { return e.cause }

// BlockedException is raised into a job whose tag stack became effectively
// blocked while the job was otherwise dispatchable.
type BlockedException struct {
	SchedulerException
	Tag Tag
}

// NewBlockedException builds a BlockedException carrying the tag that
// triggered it, with a stack trace attached for diagnostics.
func NewBlockedException(t Tag) *BlockedException {
	return &BlockedException{
		SchedulerException: SchedulerException{cause: errors.New("job blocked by tag")},
		Tag:                t,
	}
}

func (e *BlockedException) Error() string {
	return fmt.Sprintf("blocked by tag %s", e.Tag.id)
}

// StopException is raised into a job whose tag stack contains a stopped
// tag; it must unwind until that tag's scope is left.
type StopException struct {
	SchedulerException
	Tag Tag
}

// NewStopException builds a StopException carrying the stopped tag.
func NewStopException(t Tag) *StopException {
	return &StopException{
		SchedulerException: SchedulerException{cause: errors.New("tag stopped")},
		Tag:                t,
	}
}

func (e *StopException) Error() string {
	return fmt.Sprintf("stopped by tag %s", e.Tag.id)
}

// SchedulerError reports a scheduler invariant violation: these are fatal
// programming errors (double-start, allocating a job from a job's own
// fiber, switching to a freed fiber), never expected control flow.
type SchedulerError struct {
	msg   string
	cause error
}

func newSchedulerError(msg string) *SchedulerError {
	return &SchedulerError{msg: msg, cause: errors.New(msg)}
}

func (e *SchedulerError) Error() string {
	return fmt.Sprintf("scheduler invariant violated: %s", e.msg)
}

func (e *SchedulerError) Unwrap() error { return e.cause }
