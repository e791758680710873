package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"interleave/event"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// The result of an exploration
type Report struct {
	RunId    string
	Status   Status
	Strategy string
	Seed     int64

	ExecutionsExplored  int
	BlockedExecutions   int
	TruncatedExecutions int
	RedundantExecutions int
	DistinctStates      int

	// Distinct racing pairs, described by resource and kinds
	Races []string

	// The first violation found
	Counterexample *Counterexample
	// Every violation found when the exploration continues after the first one
	Violations []*Counterexample

	Duration time.Duration
	// Describes why the exploration failed when Status is StatusError
	Error string
}

// Returns true if no violation was found, and a description of the result.
// If a violation was found the description contains the counterexample.
func (r *Report) Response() (bool, string) {
	if r.Counterexample == nil && r.Status != StatusError {
		return true, r.Summary()
	}
	out := r.Summary()
	if r.Counterexample != nil {
		out += "\n" + r.Counterexample.String()
	}
	return false, out
}

// Export the decision sequence of the counterexample to be replayed
func (r *Report) Export() []event.Decision {
	if r.Counterexample == nil {
		return []event.Decision{}
	}
	return r.Counterexample.Decisions
}

func (r *Report) Summary() string {
	out := strings.Builder{}
	fmt.Fprintf(&out, "%v after %d executions (%v, seed %d) in %v", r.Status, r.ExecutionsExplored, r.Strategy, r.Seed, r.Duration.Round(time.Millisecond))
	if r.BlockedExecutions+r.TruncatedExecutions+r.RedundantExecutions > 0 {
		fmt.Fprintf(&out, "; blocked %d, truncated %d, redundant %d", r.BlockedExecutions, r.TruncatedExecutions, r.RedundantExecutions)
	}
	if len(r.Races) > 0 {
		fmt.Fprintf(&out, "; %d races", len(r.Races))
	}
	if r.Error != "" {
		fmt.Fprintf(&out, ": %s", r.Error)
	}
	return out.String()
}

// Build the report as a key/value document.
// Seeds are decimal strings since document numbers are doubles.
func (r *Report) Document() (*structpb.Struct, error) {
	races := make([]any, len(r.Races))
	for i, race := range r.Races {
		races[i] = race
	}
	doc := map[string]any{
		"run_id":               r.RunId,
		"status":               r.Status.String(),
		"strategy":             r.Strategy,
		"seed":                 strconv.FormatInt(r.Seed, 10),
		"executions_explored":  r.ExecutionsExplored,
		"blocked_executions":   r.BlockedExecutions,
		"truncated_executions": r.TruncatedExecutions,
		"redundant_executions": r.RedundantExecutions,
		"distinct_states":      r.DistinctStates,
		"races":                races,
		"duration":             r.Duration.String(),
	}
	if r.Error != "" {
		doc["error"] = r.Error
	}
	if r.Counterexample != nil {
		doc["counterexample"] = counterexampleDocument(r.Counterexample)
	}
	if len(r.Violations) > 1 {
		violations := make([]any, len(r.Violations))
		for i, c := range r.Violations {
			violations[i] = counterexampleDocument(c)
		}
		doc["violations"] = violations
	}
	s, err := structpb.NewStruct(doc)
	return s, errors.WithMessage(err, "report: building document")
}

func counterexampleDocument(c *Counterexample) map[string]any {
	decisions := make([]any, len(c.Decisions))
	for i, d := range c.Decisions {
		entry := map[string]any{"kind": d.Kind.String(), "task": int(d.Task)}
		if d.Kind == event.DecisionChoice {
			entry["value"] = d.Value
		}
		decisions[i] = entry
	}
	trace := make([]any, len(c.Trace))
	for i, e := range c.Trace {
		clock := make([]any, len(e.Clock))
		for j, v := range e.Clock {
			clock[j] = v
		}
		partners := make([]any, len(e.Partners))
		for j, p := range e.Partners {
			partners[j] = p
		}
		trace[i] = map[string]any{
			"step":     e.Step,
			"event":    e.Event,
			"kind":     e.Kind,
			"resource": e.Resource,
			"detail":   e.Detail,
			"partners": partners,
			"clock":    clock,
		}
	}
	return map[string]any{
		"seed":              strconv.FormatInt(c.Seed, 10),
		"decision_sequence": decisions,
		"violation_kind":    c.Violation.Kind.String(),
		"violation": map[string]any{
			"task":     int(c.Violation.Task),
			"resource": c.Violation.Resource,
			"message":  c.Violation.Message,
		},
		"trace": trace,
	}
}

// Render the report document as JSON
func (r *Report) MarshalJSON() ([]byte, error) {
	doc, err := r.Document()
	if err != nil {
		return nil, err
	}
	return protojson.MarshalOptions{Multiline: true}.Marshal(doc)
}
