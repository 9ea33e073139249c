package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_TypeChecks(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{name: "validation", err: NewValidation("bad input"), check: IsValidation},
		{name: "validationf", err: NewValidationf("bad %s", "id"), check: IsValidation},
		{name: "not found", err: NewNotFound("missing parent"), check: IsNotFound},
		{name: "conflict", err: NewConflict("list changed", errors.New("condition failed")), check: IsConflict},
		{name: "internal", err: NewInternal("boom", errors.New("engine down")), check: IsInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.check(tt.err))
			assert.True(t, tt.check(fmt.Errorf("outer: %w", tt.err)), "type must survive wrapping")
		})
	}
}

func TestFanOutError(t *testing.T) {
	cause := errors.New("throttled")
	err := fmt.Errorf("create association: %w", &FanOutError{
		Operation: "association.create",
		Failed:    1,
		Total:     4,
		Err:       cause,
	})

	fe, ok := AsFanOut(err)
	require.True(t, ok)
	assert.True(t, fe.Partial())
	assert.True(t, IsPartialFanOut(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "1 of 4 statements failed")

	all := &FanOutError{Operation: "x", Failed: 2, Total: 2, Err: cause}
	assert.False(t, IsPartialFanOut(all), "nothing applied is not a partial write")
	assert.False(t, IsPartialFanOut(cause))
}
