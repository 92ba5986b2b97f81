package adapter

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// PersistenceFailure means the audit trail could not be committed. The
// decision it belonged to must be treated as never having happened.
type PersistenceFailure struct {
	EventID uuid.UUID
	// Index is the position of the failing event; -1 when the commit itself failed.
	Index int
	Err   error
}

func (e *PersistenceFailure) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("audit persistence failed at commit: %v", e.Err)
	}
	return fmt.Sprintf("audit persistence failed at event %d (%s): %v", e.Index, e.EventID, e.Err)
}

func (e *PersistenceFailure) Unwrap() error { return e.Err }

type deadlineError struct{}

func (deadlineError) Error() string { return "audit persistence deadline exceeded" }

func (deadlineError) Is(target error) bool { return target == context.DeadlineExceeded }

// ErrDeadlineExceeded is returned when persistence does not finish before the
// caller's deadline or the configured audit timeout. It also matches
// context.DeadlineExceeded.
var ErrDeadlineExceeded error = deadlineError{}
