package posts

import (
	"errors"
	"fmt"

	"github.com/inkwell-blog/inkwell/pkg/inkwell/models"
)

// Outcome is the kind of result a mutating operation produced
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	// OutcomeNoOp means the post was already in the requested state
	OutcomeNoOp
	OutcomeInvalidInput
	OutcomeNotFound
	OutcomePermissionDenied
	OutcomeConflict
	OutcomeStorageError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeNoOp:
		return "no_op"
	case OutcomeInvalidInput:
		return "invalid_input"
	case OutcomeNotFound:
		return "not_found"
	case OutcomePermissionDenied:
		return "permission_denied"
	case OutcomeConflict:
		return "conflict"
	case OutcomeStorageError:
		return "storage_error"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result is returned by every mutating operation. Expected failures are
// reported here rather than as errors.
type Result struct {
	Outcome Outcome
	Message string
	PostID  uint
	// Status is the post status after the operation, when known
	Status models.PostStatus
}

// OK reports whether the operation left the post in the requested state
func (r Result) OK() bool {
	return r.Outcome == OutcomeSuccess || r.Outcome == OutcomeNoOp
}

const internalErrorMessage = "internal error"

var (
	ErrNotFound  = errors.New("post not found")
	ErrForbidden = errors.New("post not visible to requester")
)

// VisibilityError is returned by GetVisible. Both kinds share one message
// so callers cannot tell a missing post from a hidden draft.
type VisibilityError struct {
	PostID uint
	kind   error
}

func (e *VisibilityError) Error() string {
	return fmt.Sprintf("post %d not found or you do not have permission to view it", e.PostID)
}

func (e *VisibilityError) Unwrap() error {
	return e.kind
}
