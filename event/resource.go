package event

import "fmt"

type ResourceKind int

const (
	ResourceNone ResourceKind = iota
	ResourceTask
	ResourceLock
	ResourceVar
	ResourceAtomic
	ResourceChan
	ResourceNotify
	ResourceRPC
)

func (k ResourceKind) String() string {
	switch k {
	case ResourceTask:
		return "task"
	case ResourceLock:
		return "lock"
	case ResourceVar:
		return "var"
	case ResourceAtomic:
		return "atomic"
	case ResourceChan:
		return "chan"
	case ResourceNotify:
		return "notify"
	case ResourceRPC:
		return "rpc"
	}
	return "none"
}

// Identifies a shared object touched by events.
//
// Resources created by a task are identified by the creating task and a per-task sequence number.
// The id is therefore stable across interleavings: the same object gets the same id in every execution of the program.
// Resources that exist outside the program, like remote procedures, are identified by name.
type ResourceId struct {
	Kind  ResourceKind
	Owner TaskId
	Seq   int
	Name  string
}

// Returns the resource representing the task itself. Used by spawn, join and task-end events.
func TaskResource(t TaskId) ResourceId {
	return ResourceId{Kind: ResourceTask, Owner: t}
}

// Returns a resource identified by name
func NamedResource(kind ResourceKind, name string) ResourceId {
	return ResourceId{Kind: kind, Owner: -1, Name: name}
}

func (r ResourceId) IsZero() bool {
	return r.Kind == ResourceNone
}

func (r ResourceId) String() string {
	switch {
	case r.Kind == ResourceNone:
		return "-"
	case r.Name != "":
		return fmt.Sprintf("%v:%s", r.Kind, r.Name)
	case r.Kind == ResourceTask:
		return r.Owner.String()
	}
	return fmt.Sprintf("%v:%d.%d", r.Kind, int(r.Owner), r.Seq)
}
