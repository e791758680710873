package event

import "fmt"

type DecisionKind int

const (
	// Selects the task that performs the next step
	DecisionSchedule DecisionKind = iota
	// Selects the value returned by a controlled random choice
	DecisionChoice
)

func (k DecisionKind) String() string {
	if k == DecisionChoice {
		return "choice"
	}
	return "schedule"
}

func (k DecisionKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *DecisionKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "schedule":
		*k = DecisionSchedule
	case "choice":
		*k = DecisionChoice
	default:
		return fmt.Errorf("event: unknown decision kind %q", text)
	}
	return nil
}

// One decision taken by the engine during an execution.
// An execution is a deterministic function of the program and its decision sequence.
type Decision struct {
	Kind  DecisionKind `json:"kind"`
	Task  TaskId       `json:"task"`
	Value int          `json:"value,omitempty"`
}

func Schedule(t TaskId) Decision {
	return Decision{Kind: DecisionSchedule, Task: t}
}

func Choice(t TaskId, value int) Decision {
	return Decision{Kind: DecisionChoice, Task: t, Value: value}
}

func (d Decision) String() string {
	if d.Kind == DecisionChoice {
		return fmt.Sprintf("%v=%d", d.Task, d.Value)
	}
	return d.Task.String()
}
