package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"validation cause", fmt.Errorf("%w: %w", ErrValidation, ErrContentTooShort), "validation"},
		{"auth wrapped", fmt.Errorf("unwrapping grant: %w", ErrAuthFailed), "auth_failed"},
		{"no key", ErrNoKeyAvailable, "no_key"},
		{"self revoke", ErrSelfRevoke, "self_revoke"},
		{"unknown", errors.New("disk on fire"), "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Code(tt.err); got != tt.want {
				t.Errorf("Code(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestValidationErrorsMatchBothLevels(t *testing.T) {
	err := fmt.Errorf("decrypting message: %w", fmt.Errorf("%w: %w", ErrValidation, ErrInvalidIVLength))

	if !errors.Is(err, ErrValidation) {
		t.Error("Expected error to match ErrValidation")
	}
	if !errors.Is(err, ErrInvalidIVLength) {
		t.Error("Expected error to match ErrInvalidIVLength")
	}
	if errors.Is(err, ErrAuthFailed) {
		t.Error("Validation error must not match ErrAuthFailed")
	}
}
