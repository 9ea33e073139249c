package errors

import (
	"errors"
	"fmt"
)

// FanOutError reports a multi-statement write where at least one statement
// failed. Statements that succeeded are not rolled back, so the indexes the
// operation touched may disagree until the whole operation is retried.
type FanOutError struct {
	Operation string
	Failed    int
	Total     int
	Err       error // first failure observed
}

func (e *FanOutError) Error() string {
	return fmt.Sprintf("%s: %d of %d statements failed: %v", e.Operation, e.Failed, e.Total, e.Err)
}

func (e *FanOutError) Unwrap() error {
	return e.Err
}

// Partial reports whether some statements of the batch did succeed.
func (e *FanOutError) Partial() bool {
	return e.Failed < e.Total
}

// IsPartialFanOut reports whether err carries a fan-out failure in which at
// least one statement was applied.
func IsPartialFanOut(err error) bool {
	var fe *FanOutError
	return errors.As(err, &fe) && fe.Partial()
}

// AsFanOut extracts the fan-out failure from err.
func AsFanOut(err error) (*FanOutError, bool) {
	var fe *FanOutError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
