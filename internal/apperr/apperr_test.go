package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestValidationIs(t *testing.T) {
	err := fmt.Errorf("submit: %w", Validation("unknown question ids", 7, 9))
	if !errors.Is(err, ErrValidation) {
		t.Fatal("expected errors.Is(err, ErrValidation)")
	}
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatal("expected errors.As to find *ValidationError")
	}
	if len(ve.QuestionIDs) != 2 || ve.QuestionIDs[0] != 7 {
		t.Errorf("QuestionIDs = %v", ve.QuestionIDs)
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("validation error must not match ErrNotFound")
	}
}

func TestNotFound(t *testing.T) {
	err := NotFound("attempt")
	if !errors.Is(err, ErrNotFound) {
		t.Fatal("expected ErrNotFound")
	}
	if err.Error() != "attempt not found" {
		t.Errorf("Error() = %q", err.Error())
	}
}
