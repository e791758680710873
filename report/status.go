package report

import "github.com/pkg/errors"

// The outcome of an exploration
type Status int

const (
	// Every execution was explored and no violation was found
	StatusCompleted Status = iota
	// An assertion failed or a task panicked
	StatusViolated
	// Every unfinished task was blocked
	StatusDeadlocked
	// A budget ended the exploration before it was complete
	StatusExhausted
	// The exploration failed: a programming-model violation, an engine invariant violation or an invalid configuration
	StatusError
)

var statusNames = []string{"completed", "violated", "deadlocked", "exhausted", "error"}

func (s Status) String() string {
	if int(s) < 0 || int(s) >= len(statusNames) {
		return "unknown"
	}
	return statusNames[s]
}

// Returns true if the status should fail the caller
func (s Status) Failed() bool {
	return s == StatusViolated || s == StatusDeadlocked || s == StatusError
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	for i, name := range statusNames {
		if name == string(text) {
			*s = Status(i)
			return nil
		}
	}
	return errors.Errorf("report: unknown status %q", text)
}

type ViolationKind int

const (
	ViolationAssertion ViolationKind = iota
	ViolationPanic
	ViolationDeadlock
	ViolationModel
)

var violationNames = []string{"assertion", "panic", "deadlock", "model"}

func (k ViolationKind) String() string {
	if int(k) < 0 || int(k) >= len(violationNames) {
		return "unknown"
	}
	return violationNames[k]
}

func (k ViolationKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *ViolationKind) UnmarshalText(text []byte) error {
	for i, name := range violationNames {
		if name == string(text) {
			*k = ViolationKind(i)
			return nil
		}
	}
	return errors.Errorf("report: unknown violation kind %q", text)
}

// Returns the status an exploration ends with when it finds the violation
func (k ViolationKind) Status() Status {
	switch k {
	case ViolationDeadlock:
		return StatusDeadlocked
	case ViolationModel:
		return StatusError
	}
	return StatusViolated
}
