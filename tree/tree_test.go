package tree

import "testing"

func newTree() (*Tree[string], *Tree[string]) {
	tree := New("Tree 1", func(a, b string) bool { return a == b })
	tree.AddChild("Tree 1-1")
	child := tree.AddChild("Tree 1-2")
	child.AddChild("Tree 1-2-1")
	return tree, child
}

func TestTreeAddChild(t *testing.T) {
	tree, child := newTree()

	if !tree.IsRoot() {
		t.Fatalf("Tree should be root node")
	}
	if tree.Len() != 4 {
		t.Fatalf("Added four elements to the tree. Has length: %v", tree.Len())
	}
	if len(tree.Children()) != 2 {
		t.Fatalf("Added two children to the tree. Got: %v", len(tree.Children()))
	}
	if child.IsRoot() || child.Depth() != 1 {
		t.Fatalf("This should be a child node at depth 1. IsRoot(): %v, Depth(): %v", child.IsRoot(), child.Depth())
	}
}

func TestChildReusesExistingNode(t *testing.T) {
	tree, child := newTree()
	if tree.Child("Tree 1-2") != child {
		t.Fatalf("Child should return the existing node")
	}
	if tree.Child("Tree 1-3") == nil || tree.Len() != 5 {
		t.Fatalf("Child should add a missing node")
	}
	if !tree.HasChild("Tree 1-3") || tree.HasChild("Tree 1-2-1") {
		t.Fatalf("HasChild should only consider direct children")
	}
}

func TestPath(t *testing.T) {
	tree, child := newTree()
	leaf := child.GetChild("Tree 1-2-1")
	path := leaf.Path()
	if len(path) != 3 || path[0] != tree || path[1] != child || path[2] != leaf {
		t.Fatalf("Expected the path root, child, leaf. Got %v", path)
	}
}

func TestPostOrderVisitsDeepestLatestFirst(t *testing.T) {
	tree, _ := newTree()
	visited := []string{}
	tree.PostOrder(func(n *Tree[string]) bool {
		visited = append(visited, n.Payload())
		return false
	})
	expected := []string{"Tree 1-2-1", "Tree 1-2", "Tree 1-1", "Tree 1"}
	for i := range expected {
		if visited[i] != expected[i] {
			t.Fatalf("Expected visiting order %v. Got %v", expected, visited)
		}
	}

	found := tree.PostOrder(func(n *Tree[string]) bool { return n.Payload() == "Tree 1-2" })
	if found == nil || found.Payload() != "Tree 1-2" {
		t.Fatalf("PostOrder should return the node it stopped at. Got %v", found)
	}
}

func TestNewick(t *testing.T) {
	tree, _ := newTree()
	expected := "(\"Tree 1-1\",(\"Tree 1-2-1\")\"Tree 1-2\")\"Tree 1\";"
	if got := tree.Newick(); got != expected {
		t.Fatalf("Expected %v. Got %v", expected, got)
	}
}
