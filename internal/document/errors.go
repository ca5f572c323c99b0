package document

import "errors"

// Workflow error taxonomy. All are recoverable by the caller; match with
// errors.Is; the engine wraps them with document id and action context.
var (
	// ErrNotFound means no such document exists.
	ErrNotFound = errors.New("document not found")

	// ErrGone means the document is soft-deleted and the caller did not
	// request audit mode.
	ErrGone = errors.New("document deleted")

	// ErrForbidden is a role gate denial.
	ErrForbidden = errors.New("action not permitted")

	// ErrTerminalState means the document is Decided and only soft delete
	// remains possible.
	ErrTerminalState = errors.New("document in terminal state")

	// ErrReviewIncomplete means a decision was attempted before every
	// assigned reviewer submitted a critique for the current cycle.
	ErrReviewIncomplete = errors.New("review incomplete")

	// ErrNotAssigned means the reviewer is not in the current assignee set.
	ErrNotAssigned = errors.New("reviewer not assigned")

	// ErrDuplicateCritique means the reviewer already submitted a critique
	// for the current cycle.
	ErrDuplicateCritique = errors.New("critique already submitted for this cycle")

	// ErrConflict is an optimistic-concurrency collision: the stored
	// version changed between load and commit. Retry from a fresh load.
	ErrConflict = errors.New("version conflict")

	// ErrValidation covers malformed input (empty title, unknown verdict,
	// empty assignee set and the like).
	ErrValidation = errors.New("invalid request")
)

// Kind maps an error to a stable machine-readable code, used for metric
// labels and API responses. Unrecognized errors report as "internal".
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrGone):
		return "gone"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrTerminalState):
		return "terminal_state"
	case errors.Is(err, ErrReviewIncomplete):
		return "review_incomplete"
	case errors.Is(err, ErrNotAssigned):
		return "not_assigned"
	case errors.Is(err, ErrDuplicateCritique):
		return "duplicate_critique"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrValidation):
		return "validation"
	}
	return "internal"
}
