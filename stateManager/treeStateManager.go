package stateManager

import (
	"fmt"
	"io"
	"sync"

	"interleave/event"
	"interleave/tree"
)

// Organizes the explored decision sequences as a tree and detects redundant runs.
//
// A path from the root to a leaf node is one run.
// Complete runs are checked against the set of seen happens-before fingerprints and end state digests.
type TreeStateManager struct {
	sync.RWMutex
	root *tree.Tree[event.Decision]

	fingerprints Store
	states       Store

	stats Stats
}

// Create a new TreeStateManager. Nil stores are replaced by in-memory stores.
func NewTreeStateManager(fingerprints, states Store) *TreeStateManager {
	if fingerprints == nil {
		fingerprints = NewMemoryStore()
	}
	if states == nil {
		states = NewMemoryStore()
	}
	return &TreeStateManager{
		root:         tree.New(event.Decision{Task: -1}, func(a, b event.Decision) bool { return a == b }),
		fingerprints: fingerprints,
		states:       states,
	}
}

// Adds the run to the explored state space.
//
// Is safe to call from multiple goroutines.
func (sm *TreeStateManager) AddRun(run Run) (Verdict, error) {
	sm.Lock()
	defer sm.Unlock()

	current := sm.root
	for _, d := range run.Decisions {
		current = current.Child(d)
	}
	sm.stats.Runs++

	verdict := Verdict{}
	if !run.Complete {
		return verdict, nil
	}
	added, err := sm.fingerprints.Add(run.Fingerprint)
	if err != nil {
		return verdict, err
	}
	if !added {
		verdict.Redundant = true
		sm.stats.Redundant++
	}
	verdict.NewState, err = sm.states.Add(run.StateDigest)
	if err != nil {
		return verdict, err
	}
	if verdict.NewState {
		sm.stats.DistinctStates++
	}
	return verdict, nil
}

func (sm *TreeStateManager) GetRunStateManager() *RunStateManager {
	return NewRunStateManager(sm)
}

func (sm *TreeStateManager) Stats() Stats {
	sm.RLock()
	defer sm.RUnlock()
	return sm.stats
}

// Returns the number of nodes in the decision tree, the root included
func (sm *TreeStateManager) Len() int {
	sm.RLock()
	defer sm.RUnlock()
	return sm.root.Len()
}

// Write the Newick representation of the decision tree to the writer
func (sm *TreeStateManager) Export(wrt io.Writer) {
	sm.RLock()
	defer sm.RUnlock()
	fmt.Fprint(wrt, sm.root.Newick())
}
