package report

import (
	"fmt"

	"github.com/davecgh/go-spew/spew"
)

// Replaying a counterexample did not reproduce its violation.
// This points to nondeterminism that the engine does not control.
type ReplayMismatchError struct {
	Expected Violation
	// Nil if the replay found no violation
	Got *Violation
	// Set if the replay failed before it could compare the violations
	Cause error
}

func (e *ReplayMismatchError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("report: replay did not reproduce %v: %v", e.Expected.Kind, e.Cause)
	}
	if e.Got == nil {
		return fmt.Sprintf("report: replay did not reproduce %v: no violation", e.Expected.Kind)
	}
	return fmt.Sprintf("report: replay did not reproduce the violation:\nexpected %sgot %s", spew.Sdump(e.Expected.Kind, e.Expected.Resource), spew.Sdump(e.Got.Kind, e.Got.Resource))
}

func (e *ReplayMismatchError) Unwrap() error {
	return e.Cause
}

// Returns a ReplayMismatchError unless got has the same kind and resource as expected
func Compare(expected Violation, got *Violation) error {
	if got == nil || got.Kind != expected.Kind || got.Resource != expected.Resource {
		return &ReplayMismatchError{Expected: expected, Got: got}
	}
	return nil
}
