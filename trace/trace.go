package trace

import (
	"interleave/clock"
	"interleave/event"

	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
)

var (
	ErrUnknownEvent    = errors.New("trace: partner event has not been recorded")
	ErrClockRegression = errors.New("trace: task clock did not advance")
	ErrCycle           = errors.New("trace: happens-before cycle detected")
)

// The event log of a single execution.
//
// Events are appended in execution order. Every recorded event gets a vector clock:
// the clock of its task merged with the clocks of its partner events, with the task's own component incremented.
// A Trace is owned by the goroutine driving the execution and is not safe for concurrent use.
type Trace struct {
	events []event.Event
	byId   map[event.EventId]int

	// the current clock of each task
	clocks map[event.TaskId]clock.VectorClock
	// the clock of the task right before each event was recorded
	pre []clock.VectorClock
}

func New() *Trace {
	return &Trace{
		events: []event.Event{},
		byId:   make(map[event.EventId]int),
		clocks: make(map[event.TaskId]clock.VectorClock),
		pre:    []clock.VectorClock{},
	}
}

// Start the clock of a new task from the event that created it.
// All events of the task will happen after the spawn event.
func (t *Trace) Start(task event.TaskId, spawn event.EventId) error {
	pos, ok := t.byId[spawn]
	if !ok {
		return errors.WithMessagef(ErrUnknownEvent, "starting %v from %v", task, spawn)
	}
	if _, ok := t.clocks[task]; ok {
		return errors.Errorf("trace: %v has already been started", task)
	}
	t.clocks[task] = t.events[pos].Clock
	return nil
}

// Record appends the event to the trace and returns it with its clock and position set.
//
// Returns ErrUnknownEvent if a partner has not been recorded,
// ErrClockRegression if the per-task index does not advance by one
// and ErrCycle if a partner already depends on a later event of the same task.
func (t *Trace) Record(e event.Event) (event.Event, error) {
	task := e.Task()
	current := t.clocks[task]
	own := current.Get(int(task))

	if e.Id.Index != int(own)+1 {
		return e, errors.WithMessagef(ErrClockRegression, "%v recorded after index %v", e.Id, own)
	}
	if _, ok := t.byId[e.Id]; ok {
		return e, errors.WithMessagef(ErrClockRegression, "%v recorded twice", e.Id)
	}

	c := current
	for _, p := range e.Partners {
		pos, ok := t.byId[p]
		if !ok {
			return e, errors.WithMessagef(ErrUnknownEvent, "%v synchronises with %v", e.Id, p)
		}
		partner := t.events[pos].Clock
		if partner.Get(int(task)) > own {
			return e, errors.WithMessagef(ErrCycle, "%v synchronises with %v", e.Id, p)
		}
		c = c.Merge(partner)
	}
	c = c.Increment(int(task))
	if c.Get(int(task)) <= own || !current.LessOrEqual(c) {
		return e, errors.WithMessagef(ErrClockRegression, "%v", e.Id)
	}

	e.Clock = c
	e.Position = len(t.events)
	e.Partners = slices.Clone(e.Partners)

	t.byId[e.Id] = e.Position
	t.clocks[task] = c
	t.pre = append(t.pre, current)
	t.events = append(t.events, e)
	return e, nil
}

// Returns all events in the order they were recorded
func (t *Trace) Events() []event.Event {
	return t.events
}

func (t *Trace) Len() int {
	return len(t.events)
}

// Returns the event at the given position
func (t *Trace) Get(id event.EventId) (event.Event, bool) {
	pos, ok := t.byId[id]
	if !ok {
		return event.Event{}, false
	}
	return t.events[pos], true
}

// Returns the current clock of the task
func (t *Trace) Clock(task event.TaskId) clock.VectorClock {
	return t.clocks[task]
}

// Returns the events recorded from position start until the end of the trace
func (t *Trace) Since(start int) []event.Event {
	if start >= len(t.events) {
		return nil
	}
	return t.events[start:]
}

// Returns true if e1 happens before e2.
// An event does not happen before itself.
func HappensBefore(e1, e2 event.Event) bool {
	if e1.Id == e2.Id {
		return false
	}
	return before(e1, e2.Clock)
}

// Returns true if e happens before or is included in the clock c
func before(e event.Event, c clock.VectorClock) bool {
	return c.Get(int(e.Task())) >= uint32(e.Id.Index)
}

// Returns true if the two events race: they are unordered by happens-before,
// access the same resource and at least one of them mutates it.
func RaceBetween(e1, e2 event.Event) bool {
	if e1.Id == e2.Id || e1.Task() == e2.Task() {
		return false
	}
	if HappensBefore(e1, e2) || HappensBefore(e2, e1) {
		return false
	}
	return event.Dependent(e1.Signature(), e2.Signature())
}

type Race struct {
	First  event.Event
	Second event.Event
}

// Returns every pair of racing events in the trace.
// The first event of every pair is the one recorded first.
func (t *Trace) Races() []Race {
	races := []Race{}
	for j := range t.events {
		for i := 0; i < j; i++ {
			if RaceBetween(t.events[i], t.events[j]) {
				races = append(races, Race{First: t.events[i], Second: t.events[j]})
			}
		}
	}
	return races
}

// Returns true if the event at position j could have been performed before the event at position i.
//
// The events must be dependent and the event at position i must not happen before the previous event of the task performing j.
// Unlike RaceBetween this includes pairs ordered only by the synchronisation between the two events themselves,
// like two acquires of the same lock, but excludes events that were enabled by their partner.
func (t *Trace) Reversible(i, j int) bool {
	if i >= j || j >= len(t.events) {
		return false
	}
	a, b := t.events[i], t.events[j]
	if a.Task() == b.Task() {
		return false
	}
	if !event.Dependent(a.Signature(), b.Signature()) {
		return false
	}
	if b.Kind.IsEnabledByPartner() && slices.Contains(b.Partners, a.Id) {
		return false
	}
	return !before(a, t.pre[j])
}
