package application

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/bryanwahyu/healthwave/internal/domain/failures"
)

var validate = validator.New()

// Validate checks struct tags of a command; violations are invalid input.
func Validate(cmd any) error {
	if err := validate.Struct(cmd); err != nil {
		return fmt.Errorf("%w: %v", failures.ErrInvalidInput, err)
	}
	return nil
}

// NewID returns a time ordered identifier (UUIDv7) so rows created in the
// same instant still sort by creation.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
