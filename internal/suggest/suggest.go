// Package suggest wraps the generative service that proposes songs and books
// and polishes confession text. Every call is best effort: failures produce
// a fallback value instead of an error the caller must handle.
package suggest

import (
	"context"

	"github.com/sujalbistaa/whispr/internal/models"
)

// Result carries a collaborator answer. When Fallback is true, Value is the
// degraded answer and Err says why.
type Result[T any] struct {
	Value    T
	Fallback bool
	Err      error
}

func ok[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

func fallback[T any](v T, err error) Result[T] {
	return Result[T]{Value: v, Fallback: true, Err: err}
}

// Collaborator is the suggestion and refinement capability.
type Collaborator interface {
	// Suggest proposes sources matching a free-text query. Falls back to an
	// empty list.
	Suggest(ctx context.Context, query string, kind models.Kind) Result[[]models.Suggestion]
	// Refine rewrites a confession. Falls back to the input unchanged.
	Refine(ctx context.Context, text string) Result[string]
}

// Static is used when no generative service is configured.
type Static struct{}

func (Static) Suggest(context.Context, string, models.Kind) Result[[]models.Suggestion] {
	return fallback([]models.Suggestion{}, errNotConfigured)
}

func (Static) Refine(_ context.Context, text string) Result[string] {
	return fallback(text, errNotConfigured)
}
