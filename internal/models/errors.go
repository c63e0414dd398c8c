package models

import (
	"fmt"
	"strings"
)

// IncompleteStepsError reports which required steps are still missing when a
// submission is requested too early. It unwraps to ErrIncompleteSteps so
// callers can classify it with errors.Is.
type IncompleteStepsError struct {
	Missing []StepName
}

// Error implements the error interface.
func (e *IncompleteStepsError) Error() string {
	names := make([]string, len(e.Missing))
	for i, step := range e.Missing {
		names[i] = string(step)
	}
	return fmt.Sprintf("required steps are not completed: %s", strings.Join(names, ", "))
}

// Unwrap allows errors.Is(err, ErrIncompleteSteps).
func (e *IncompleteStepsError) Unwrap() error {
	return ErrIncompleteSteps
}
