package trace

import (
	"encoding/binary"
	"sort"

	"interleave/event"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Returns a digest of the happens-before relation of the trace.
//
// Two traces that only differ in the order of independent events have the same fingerprint.
// The digest covers the program order of every task, the order of mutations on every resource
// and, for every observing event, the mutation it observed.
func (t *Trace) Fingerprint() uint64 {
	programs := make(map[event.TaskId][]event.Event)
	mutations := make(map[event.ResourceId][]event.EventId)
	observed := make(map[event.EventId]event.EventId)

	for _, e := range t.events {
		programs[e.Task()] = append(programs[e.Task()], e)
		if e.Resource.IsZero() {
			continue
		}
		if e.Kind.IsMutation() {
			mutations[e.Resource] = append(mutations[e.Resource], e.Id)
			continue
		}
		if prev := mutations[e.Resource]; len(prev) > 0 {
			observed[e.Id] = prev[len(prev)-1]
		}
	}

	d := xxhash.New()
	buf := make([]byte, 8)
	writeInt := func(v int) {
		binary.LittleEndian.PutUint64(buf, uint64(v))
		d.Write(buf)
	}
	writeId := func(id event.EventId) {
		writeInt(int(id.Task))
		writeInt(id.Index)
	}

	tasks := maps.Keys(programs)
	slices.Sort(tasks)
	for _, task := range tasks {
		writeInt(int(task))
		for _, e := range programs[task] {
			writeInt(int(e.Kind))
			d.WriteString(e.Resource.String())
		}
	}

	resources := maps.Keys(mutations)
	sort.Slice(resources, func(i, j int) bool { return resources[i].String() < resources[j].String() })
	for _, r := range resources {
		d.WriteString(r.String())
		for _, id := range mutations[r] {
			writeId(id)
		}
	}

	observers := maps.Keys(observed)
	sort.Slice(observers, func(i, j int) bool {
		if observers[i].Task != observers[j].Task {
			return observers[i].Task < observers[j].Task
		}
		return observers[i].Index < observers[j].Index
	})
	for _, id := range observers {
		writeId(id)
		writeId(observed[id])
	}
	return d.Sum64()
}
