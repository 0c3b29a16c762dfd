package chat

import (
	"errors"
	"fmt"

	"church-portal/internal/repositories"
)

var (
	ErrNotFound          = errors.New("chat session not found")
	ErrUnavailable       = errors.New("chat store unavailable")
	ErrInvalidTransition = errors.New("invalid session transition")
	ErrConflict          = errors.New("chat session already claimed by another admin")
	ErrInvalidInput      = errors.New("invalid chat input")
)

// classify maps store errors onto the lifecycle error taxonomy.
func classify(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrSessionNotFound):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case errors.Is(err, repositories.ErrSessionStateChanged):
		return fmt.Errorf("%s: %w: session is closed", op, ErrInvalidTransition)
	case repositories.IsUnavailable(err):
		return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
