package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound covers missing rows and rows owned by another user.
	ErrNotFound = errors.New("not found")
	// ErrValidation marks caller errors (bad payloads, foreign question ids).
	ErrValidation = errors.New("validation failed")
)

// ValidationError is a caller error that may name the offending question ids.
type ValidationError struct {
	Message     string
	QuestionIDs []int64
}

func (e *ValidationError) Error() string {
	if len(e.QuestionIDs) > 0 {
		return fmt.Sprintf("%s: %v", e.Message, e.QuestionIDs)
	}
	return e.Message
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func Validation(msg string, questionIDs ...int64) error {
	return &ValidationError{Message: msg, QuestionIDs: questionIDs}
}

func NotFound(what string) error {
	return fmt.Errorf("%s %w", what, ErrNotFound)
}
