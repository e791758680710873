package tree

import (
	"fmt"
	"strings"
)

// A generic rooted tree.
// Children are kept in insertion order and identified by comparing payloads with the eq function of the tree.
// A Tree is not safe for concurrent use; callers synchronise access.
type Tree[T any] struct {
	payload  T
	parent   *Tree[T]
	children []*Tree[T]
	depth    int
	eq       func(a, b T) bool
}

func New[T any](payload T, eq func(a, b T) bool) *Tree[T] {
	return &Tree[T]{
		payload:  payload,
		children: []*Tree[T]{},
		eq:       eq,
	}
}

// Returns the number of nodes in the tree
func (t *Tree[T]) Len() int {
	n := 1
	for _, child := range t.children {
		n += child.Len()
	}
	return n
}

// Adds a child with the payload and returns it
func (t *Tree[T]) AddChild(payload T) *Tree[T] {
	child := &Tree[T]{
		payload:  payload,
		parent:   t,
		children: []*Tree[T]{},
		depth:    t.depth + 1,
		eq:       t.eq,
	}
	t.children = append(t.children, child)
	return child
}

func (t *Tree[T]) HasChild(payload T) bool {
	return t.GetChild(payload) != nil
}

// Returns the first child with an equal payload, or nil
func (t *Tree[T]) GetChild(payload T) *Tree[T] {
	for _, child := range t.children {
		if t.eq(payload, child.payload) {
			return child
		}
	}
	return nil
}

// Returns the child with an equal payload, adding it if it does not exist
func (t *Tree[T]) Child(payload T) *Tree[T] {
	if child := t.GetChild(payload); child != nil {
		return child
	}
	return t.AddChild(payload)
}

// Returns the nodes from the root to t, both included
func (t *Tree[T]) Path() []*Tree[T] {
	path := make([]*Tree[T], t.depth+1)
	for n := t; n != nil; n = n.parent {
		path[n.depth] = n
	}
	return path
}

// Visits every node below t before t itself.
// Children are visited in reverse insertion order, so the most recently added subtree is visited first.
// Stops and returns the node as soon as visit returns true.
func (t *Tree[T]) PostOrder(visit func(*Tree[T]) bool) *Tree[T] {
	for i := len(t.children) - 1; i >= 0; i-- {
		if found := t.children[i].PostOrder(visit); found != nil {
			return found
		}
	}
	if visit(t) {
		return t
	}
	return nil
}

func (t *Tree[T]) IsRoot() bool {
	return t.parent == nil
}

func (t *Tree[T]) Payload() T {
	return t.payload
}

func (t *Tree[T]) Depth() int {
	return t.depth
}

func (t *Tree[T]) Children() []*Tree[T] {
	return t.children
}

func (t *Tree[T]) String() string {
	out := strings.Builder{}
	out.WriteString(strings.Repeat("-", t.depth))
	out.WriteString(fmt.Sprintf("%v\n", t.payload))
	for _, child := range t.children {
		out.WriteString(child.String())
	}
	return out.String()
}

// Returns the tree in Newick format
func (t *Tree[T]) Newick() string {
	out := strings.Builder{}
	if len(t.children) > 0 {
		out.WriteString("(")
		for i, child := range t.children {
			if i > 0 {
				out.WriteString(",")
			}
			out.WriteString(child.Newick())
		}
		out.WriteString(")")
	}
	out.WriteString(fmt.Sprintf("\"%v\"", t.payload))
	if t.IsRoot() {
		out.WriteString(";")
	}
	return out.String()
}
