package services

import "errors"

// Errors surfaced by the engine. Validation and not-found errors reject an
// operation before any write happens; conflict errors abort the enclosing
// transaction and roll back everything it did.
var (
	// ErrValidation wraps all input validation failures.
	ErrValidation = errors.New("validation error")

	ErrUserNotFound       = errors.New("user not found")
	ErrTeamNotFound       = errors.New("team not found")
	ErrTaskNotFound       = errors.New("task not found")
	ErrInstanceNotFound   = errors.New("task instance not found")
	ErrCompletionNotFound = errors.New("completion not found")

	ErrNotTeamMember = errors.New("user is not a member of the team")
	ErrAlreadyMember = errors.New("user is already a member of the team")
	ErrWrongPassword = errors.New("wrong team password")

	// ErrTeamChange rejects moving an existing task to another team.
	ErrTeamChange = errors.New("can't change team on already existing task")

	// ErrInstanceClosed rejects submissions against an instance that is
	// already completed or soft-deleted.
	ErrInstanceClosed = errors.New("task instance is already completed or deleted")

	// ErrInstanceAlreadyCompleted is the conflict detected under the row
	// lock when a concurrent submission won the race.
	ErrInstanceAlreadyCompleted = errors.New("TaskInstance is already completed")

	// ErrAlreadyDeleted signals a repeated soft delete, which points at a
	// logic or concurrency bug in the caller.
	ErrAlreadyDeleted = errors.New("record is already deleted")
)
