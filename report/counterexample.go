package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"interleave/event"

	"github.com/pkg/errors"
)

// What went wrong in an execution
type Violation struct {
	Kind     ViolationKind `json:"kind"`
	Task     event.TaskId  `json:"task"`
	TaskName string        `json:"task_name,omitempty"`
	// The resource implicated in the violation, if any
	Resource string `json:"resource,omitempty"`
	Message  string `json:"message"`
	Stack    string `json:"stack,omitempty"`
}

func (v Violation) String() string {
	if v.Resource == "" {
		return fmt.Sprintf("%v in %v: %s", v.Kind, v.Task, v.Message)
	}
	return fmt.Sprintf("%v in %v at %s: %s", v.Kind, v.Task, v.Resource, v.Message)
}

// One event of a rendered trace
type TraceEntry struct {
	Step     int      `json:"step"`
	Event    string   `json:"event"`
	Kind     string   `json:"kind"`
	Resource string   `json:"resource,omitempty"`
	Detail   string   `json:"detail,omitempty"`
	Partners []string `json:"partners,omitempty"`
	Clock    []uint32 `json:"clock"`
}

// Render the events of a trace
func Entries(events []event.Event) []TraceEntry {
	entries := make([]TraceEntry, len(events))
	for i, e := range events {
		entry := TraceEntry{
			Step:   e.Step,
			Event:  e.Id.String(),
			Kind:   e.Kind.String(),
			Detail: e.Detail,
			Clock:  e.Clock.Clone(),
		}
		if !e.Resource.IsZero() {
			entry.Resource = e.Resource.String()
		}
		for _, p := range e.Partners {
			entry.Partners = append(entry.Partners, p.String())
		}
		entries[i] = entry
	}
	return entries
}

// A failing execution: the decisions that reproduce it, the violation and the trace.
// A counterexample is immutable once it has been recorded.
type Counterexample struct {
	RunId     string           `json:"run_id"`
	Strategy  string           `json:"strategy"`
	Seed      int64            `json:"seed"`
	Decisions []event.Decision `json:"decision_sequence"`
	Violation Violation        `json:"violation"`
	Trace     []TraceEntry     `json:"trace"`
}

// Write the counterexample in a human readable form
func (c *Counterexample) Render(w io.Writer) error {
	var buffer bytes.Buffer
	wrt := tabwriter.NewWriter(&buffer, 4, 4, 1, ' ', 0)
	fmt.Fprintf(wrt, "step\tevent\tkind\tresource\tdetail\tsynchronises with\tclock\n")
	for _, e := range c.Trace {
		fmt.Fprintf(wrt, "%d\t%s\t%s\t%s\t%s\t%s\t%v\n", e.Step, e.Event, e.Kind, e.Resource, e.Detail, strings.Join(e.Partners, ","), e.Clock)
	}
	wrt.Flush()

	decisions := make([]string, len(c.Decisions))
	for i, d := range c.Decisions {
		decisions[i] = d.String()
	}
	_, err := fmt.Fprintf(w, "Violation: %v\nDecisions: [%s]\nTrace:\n%s", c.Violation, strings.Join(decisions, " "), buffer.String())
	if err != nil {
		return err
	}
	if c.Violation.Stack != "" {
		_, err = fmt.Fprintf(w, "Stack Trace:\n%s\n", c.Violation.Stack)
	}
	return err
}

func (c *Counterexample) String() string {
	buf := new(strings.Builder)
	c.Render(buf)
	return buf.String()
}

func WriteCounterexample(w io.Writer, c *Counterexample) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.WithMessage(enc.Encode(c), "report: writing counterexample")
}

func ReadCounterexample(r io.Reader) (*Counterexample, error) {
	c := &Counterexample{}
	if err := json.NewDecoder(r).Decode(c); err != nil {
		return nil, errors.WithMessage(err, "report: reading counterexample")
	}
	return c, nil
}
