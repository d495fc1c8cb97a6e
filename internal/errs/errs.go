// Package errs defines the error kinds shared across the store, its
// persistence layer and the suggestion collaborator. Callers compare with
// errors.Is; concrete errors wrap these with context.
package errs

import "github.com/pkg/errors"

var (
	// ErrValidationSkipped marks a mutation whose preconditions were not met.
	// Nothing was changed and nothing was written.
	ErrValidationSkipped = errors.New("validation skipped")

	// ErrPersistence marks a failure to read or write the durable store.
	ErrPersistence = errors.New("persistence failure")

	// ErrCollaborator marks a failed call to the suggestion service.
	ErrCollaborator = errors.New("collaborator failure")

	// ErrSlotMissing is returned by adapters when a key has never been saved.
	ErrSlotMissing = errors.New("slot missing")

	// ErrClosed is returned by a store after Teardown.
	ErrClosed = errors.New("store closed")
)

// skip is a specific reason for a skipped mutation.
type skip struct {
	reason string
}

func (e *skip) Error() string { return "validation skipped: " + e.reason }

func (e *skip) Is(target error) bool { return target == ErrValidationSkipped }

// Skip returns a new ErrValidationSkipped-kind error carrying reason.
func Skip(reason string) error {
	return &skip{reason: reason}
}

// Specific skip reasons. All of them satisfy errors.Is(err, ErrValidationSkipped).
var (
	ErrEmptyText          = Skip("text is empty")
	ErrMissingTarget      = Skip("target id is empty")
	ErrConfessionNotFound = Skip("confession not found")
	ErrUnknownTheme       = Skip("unknown theme")
)

// Persistence wraps err as an ErrPersistence-kind error.
func Persistence(err error, op string) error {
	if err == nil {
		return nil
	}
	return &kinded{kind: ErrPersistence, err: errors.Wrap(err, op)}
}

// Collaborator wraps err as an ErrCollaborator-kind error.
func Collaborator(err error, op string) error {
	if err == nil {
		return nil
	}
	return &kinded{kind: ErrCollaborator, err: errors.Wrap(err, op)}
}

type kinded struct {
	kind error
	err  error
}

func (e *kinded) Error() string { return e.kind.Error() + ": " + e.err.Error() }

func (e *kinded) Unwrap() error { return e.err }

func (e *kinded) Is(target error) bool { return target == e.kind }
