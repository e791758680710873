package scheduler

import (
	"fmt"
	"sync"

	"interleave/event"
	"interleave/trace"
	"interleave/tree"

	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type nodeKind int

const (
	scheduleNode nodeKind = iota
	choiceNode
)

// A position in the exploration tree.
// Schedule nodes choose between tasks, choice nodes between the values of a random choice.
type searchNode struct {
	// The alternative taken at the parent to reach this node
	via  int
	kind nodeKind

	// Schedule nodes: the enabled tasks and their pending operations
	enabled []event.TaskId
	pending map[event.TaskId]event.Signature
	// Tasks whose steps from this node lead to already explored executions, with their pending operations
	sleep map[event.TaskId]event.Signature

	// Choice nodes: the choosing task and the number of values
	task    event.TaskId
	choices int

	// Alternatives that must be explored from this node
	backtrack map[int]bool
	// Alternatives that have been claimed by a run, in the order they were claimed
	done []int
}

func (n *searchNode) String() string {
	if n.kind == choiceNode {
		return fmt.Sprintf("=%d", n.via)
	}
	if n.via < 0 {
		return "root"
	}
	return event.TaskId(n.via).String()
}

// Returns the first alternative that has not been tried, in ascending order
func (n *searchNode) untried() (int, bool) {
	alternatives := maps.Keys(n.backtrack)
	slices.Sort(alternatives)
	for _, a := range alternatives {
		if slices.Contains(n.done, a) {
			continue
		}
		if _, asleep := n.sleep[event.TaskId(a)]; n.kind == scheduleNode && asleep {
			continue
		}
		return a, true
	}
	return 0, false
}

// Explores the state space with dynamic partial-order reduction and sleep sets.
//
// Each run follows the path to an untried backtrack alternative and continues with the lowest enabled task that is not asleep.
// After a run every pair of events that could have happened in the other order adds a backtrack alternative
// at the node where the first event was scheduled.
// The exploration tree is shared by the run schedulers of all workers.
type DPOR struct {
	// Protects the exploration tree. Used to wait for runs in flight when no alternative is available
	cond *sync.Cond

	root    *tree.Tree[*searchNode]
	started bool
	// Number of runs in flight
	ongoing int

	backtrackPoints int
}

func NewDPOR() *DPOR {
	return &DPOR{
		cond: sync.NewCond(new(sync.Mutex)),
	}
}

func (d *DPOR) GetRunScheduler() RunScheduler {
	return &dporRun{d: d}
}

// Returns the number of backtrack alternatives added so far
func (d *DPOR) BacktrackPoints() int {
	d.cond.L.Lock()
	defer d.cond.L.Unlock()
	return d.backtrackPoints
}

// Returns true if every alternative has been claimed and no run is in flight
func (d *DPOR) Finished() bool {
	d.cond.L.Lock()
	defer d.cond.L.Unlock()
	if !d.started || d.ongoing > 0 {
		return false
	}
	if d.root == nil {
		return true
	}
	open := d.root.PostOrder(func(n *tree.Tree[*searchNode]) bool {
		_, ok := n.Payload().untried()
		return ok
	})
	return open == nil
}

// Returns the exploration tree in Newick format
func (d *DPOR) Newick() string {
	d.cond.L.Lock()
	defer d.cond.L.Unlock()
	if d.root == nil {
		return ";"
	}
	return d.root.Newick()
}

// Claim the deepest untried alternative. Must be called with the lock held.
func (d *DPOR) claim() (*tree.Tree[*searchNode], int, bool) {
	if d.root == nil {
		return nil, 0, false
	}
	var alt int
	node := d.root.PostOrder(func(n *tree.Tree[*searchNode]) bool {
		a, ok := n.Payload().untried()
		alt = a
		return ok
	})
	if node == nil {
		return nil, 0, false
	}
	node.Payload().done = append(node.Payload().done, alt)
	return node, alt, true
}

func (d *DPOR) addBacktrack(n *searchNode, alt int) {
	if !n.backtrack[alt] {
		n.backtrack[alt] = true
		d.backtrackPoints++
	}
}

type dporRun struct {
	d *DPOR

	// The path from the root to the node whose alternative was claimed, and the claimed alternative
	prefix  []*tree.Tree[*searchNode]
	claimed int

	// The node of the last decision and the alternative taken there
	current *tree.Tree[*searchNode]
	via     int
	depth   int

	// The schedule node of every step taken by this scheduler
	steps map[int]*tree.Tree[*searchNode]
	// The last schedule node and the task scheduled there
	lastSched  *tree.Tree[*searchNode]
	lastChosen event.TaskId
}

func (r *dporRun) StartRun() error {
	d := r.d
	d.cond.L.Lock()
	defer d.cond.L.Unlock()

	r.prefix = nil
	r.current = nil
	r.via = -1
	r.depth = 0
	r.steps = make(map[int]*tree.Tree[*searchNode])
	r.lastSched = nil

	for {
		if !d.started {
			d.started = true
			d.ongoing++
			return nil
		}
		if node, alt, ok := d.claim(); ok {
			r.prefix = node.Path()
			r.claimed = alt
			d.ongoing++
			return nil
		}
		// If no alternative is available and no run is in flight, no new alternative will ever be added
		if d.ongoing == 0 {
			return NoRunsError
		}
		d.cond.Wait()
	}
}

// Returns the alternative to take at a node on the prefix
func (r *dporRun) follow() int {
	if r.depth == len(r.prefix)-1 {
		return r.claimed
	}
	return r.prefix[r.depth+1].Payload().via
}

// Returns the node at the current depth, creating it if the run is past its prefix
func (r *dporRun) node(create func() *searchNode) (*tree.Tree[*searchNode], bool) {
	if r.depth < len(r.prefix) {
		return r.prefix[r.depth], false
	}
	payload := create()
	payload.via = r.via
	if r.current == nil {
		r.d.root = tree.New(payload, func(a, b *searchNode) bool { return a.via == b.via })
		return r.d.root, true
	}
	return r.current.AddChild(payload), true
}

func (r *dporRun) Next(state RunState) (event.TaskId, error) {
	r.d.cond.L.Lock()
	defer r.d.cond.L.Unlock()

	enabled := tasks(state.Enabled)
	pending := make(map[event.TaskId]event.Signature, len(state.Enabled))
	for _, c := range state.Enabled {
		pending[c.Task] = c.Op
	}

	node, created := r.node(func() *searchNode {
		return &searchNode{
			kind:      scheduleNode,
			enabled:   enabled,
			pending:   pending,
			sleep:     r.sleep(state.Last, pending),
			backtrack: make(map[int]bool),
			done:      []int{},
		}
	})
	n := node.Payload()

	var chosen int
	if created {
		found := false
		for _, t := range enabled {
			if _, asleep := n.sleep[t]; !asleep {
				chosen, found = int(t), true
				break
			}
		}
		if !found {
			return 0, ErrSleepBlocked
		}
		n.backtrack[chosen] = true
		n.done = append(n.done, chosen)
	} else {
		if n.kind != scheduleNode || !slices.Equal(n.enabled, enabled) || !maps.Equal(n.pending, pending) {
			return 0, errors.WithMessagef(ErrNondeterminism, "step %d: recorded enabled operations %v, got %v", state.Step, n.pending, pending)
		}
		chosen = r.follow()
	}

	r.steps[state.Step] = node
	r.lastSched = node
	r.lastChosen = event.TaskId(chosen)
	r.current = node
	r.via = chosen
	r.depth++
	return event.TaskId(chosen), nil
}

// Compute the sleep set of a new node from the last schedule node and the events of the step taken there.
// A task stays asleep as long as the steps taken are independent of its pending operation.
func (r *dporRun) sleep(last []event.Event, pending map[event.TaskId]event.Signature) map[event.TaskId]event.Signature {
	sleep := make(map[event.TaskId]event.Signature)
	if r.lastSched == nil {
		return sleep
	}
	parent := r.lastSched.Payload()
	p := r.lastChosen

	candidates := maps.Clone(parent.sleep)
	for _, alt := range parent.done {
		if alt == int(p) {
			break
		}
		candidates[event.TaskId(alt)] = parent.pending[event.TaskId(alt)]
	}

	for q, sig := range candidates {
		if q == p {
			continue
		}
		if current, ok := pending[q]; !ok || current != sig {
			continue
		}
		independent := true
		for _, e := range last {
			if event.Dependent(sig, e.Signature()) {
				independent = false
				break
			}
		}
		if independent {
			sleep[q] = sig
		}
	}
	return sleep
}

func (r *dporRun) Choose(task event.TaskId, n int) (int, error) {
	r.d.cond.L.Lock()
	defer r.d.cond.L.Unlock()

	node, created := r.node(func() *searchNode {
		backtrack := make(map[int]bool, n)
		for v := 0; v < n; v++ {
			backtrack[v] = true
		}
		return &searchNode{
			kind:      choiceNode,
			task:      task,
			choices:   n,
			backtrack: backtrack,
			done:      []int{0},
		}
	})
	p := node.Payload()

	chosen := 0
	if !created {
		if p.kind != choiceNode || p.task != task || p.choices != n {
			return 0, errors.WithMessagef(ErrNondeterminism, "recorded a choice of %v from %d values, got %v choosing from %d", p.task, p.choices, task, n)
		}
		chosen = r.follow()
	} else {
		r.d.backtrackPoints += n - 1
	}

	r.current = node
	r.via = chosen
	r.depth++
	return chosen, nil
}

// Add backtrack alternatives for every pair of events that could be reversed
func (r *dporRun) EndRun(tr *trace.Trace) error {
	d := r.d
	d.cond.L.Lock()
	defer d.cond.L.Unlock()
	defer d.cond.Broadcast()
	d.ongoing--

	events := tr.Events()
	for j := range events {
		for i := 0; i < j; i++ {
			if !tr.Reversible(i, j) {
				continue
			}
			node, ok := r.steps[events[i].Step]
			if !ok {
				continue
			}
			n := node.Payload()
			q := events[j].Task()
			if slices.Contains(n.enabled, q) {
				d.addBacktrack(n, int(q))
				continue
			}
			for _, t := range n.enabled {
				d.addBacktrack(n, int(t))
			}
		}
	}
	return nil
}
