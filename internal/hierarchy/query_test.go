package hierarchy

import (
	"reflect"
	"testing"

	"github.com/photokit/facetree/internal/faceindex"
)

// treeFixture commits a small hand-built tree:
//
//	node-root
//	  node-2-a (contact "Family A")
//	    node-1-a (manual "Alice")
//	      a, b
//	  node-1-c
//	    c (contact "Carol")
func treeFixture() *Builder {
	nodes := map[string]*Node{
		"a":        {ID: "a", Level: 0, ParentID: "node-1-a", LabelSource: faceindex.LabelNone},
		"b":        {ID: "b", Level: 0, ParentID: "node-1-a", LabelSource: faceindex.LabelNone},
		"c":        {ID: "c", Level: 0, ParentID: "node-1-c", DisplayName: "Carol", LabelSource: faceindex.LabelContact},
		"node-1-a": {ID: "node-1-a", Level: 1, ParentID: "node-2-a", ChildIDs: []string{"a", "b"}, DisplayName: "Alice", LabelSource: faceindex.LabelManual},
		"node-1-c": {ID: "node-1-c", Level: 1, ParentID: RootID, ChildIDs: []string{"c"}, LabelSource: faceindex.LabelNone},
		"node-2-a": {ID: "node-2-a", Level: 2, ParentID: RootID, ChildIDs: []string{"node-1-a"}, DisplayName: "Family A", LabelSource: faceindex.LabelContact},
		RootID:     {ID: RootID, Level: 3, ChildIDs: []string{"node-2-a", "node-1-c"}, DisplayName: RootDisplayName, LabelSource: faceindex.LabelNone},
	}
	return &Builder{nodes: nodes}
}

func TestNodeLookup(t *testing.T) {
	b := treeFixture()

	n, ok := b.Node("node-1-a")
	if !ok || n.DisplayName != "Alice" {
		t.Errorf("Node = %+v, ok=%v", n, ok)
	}
	if _, ok := b.Node("missing"); ok {
		t.Error("unknown node reported found")
	}

	// Returned nodes are copies; mutations must not leak back.
	n.ChildIDs[0] = "tampered"
	fresh, _ := b.Node("node-1-a")
	if fresh.ChildIDs[0] != "a" {
		t.Error("Node returned a shared slice")
	}
}

func TestChildrenOrder(t *testing.T) {
	b := treeFixture()

	children := b.Children(RootID)
	if len(children) != 2 {
		t.Fatalf("got %d children, want 2", len(children))
	}
	if children[0].ID != "node-2-a" || children[1].ID != "node-1-c" {
		t.Errorf("children = [%s, %s], want child-list order", children[0].ID, children[1].ID)
	}

	if got := b.Children("missing"); got != nil {
		t.Errorf("children of unknown node = %v", got)
	}
}

func TestLeafDescendants(t *testing.T) {
	b := treeFixture()

	tests := []struct {
		id   string
		want []string
	}{
		{RootID, []string{"a", "b", "c"}},
		{"node-2-a", []string{"a", "b"}},
		{"node-1-c", []string{"c"}},
		{"a", []string{"a"}},
	}
	for _, tt := range tests {
		if got := b.LeafDescendants(tt.id); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("LeafDescendants(%s) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestAncestorChain(t *testing.T) {
	b := treeFixture()

	chain := b.AncestorChain("a")
	var ids []string
	for _, n := range chain {
		ids = append(ids, n.ID)
	}
	want := []string{"a", "node-1-a", "node-2-a", RootID}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("chain = %v, want %v", ids, want)
	}
}

func TestAncestorChainCycleGuard(t *testing.T) {
	b := treeFixture()
	// Corrupt a parent pointer into a cycle; the walk must terminate.
	b.nodes["node-2-a"].ParentID = "node-1-a"

	chain := b.AncestorChain("a")
	if len(chain) > len(b.nodes) {
		t.Errorf("chain of %d nodes in a %d-node tree", len(chain), len(b.nodes))
	}
}

func TestDisplayNamePreferred(t *testing.T) {
	b := treeFixture()

	tests := []struct {
		id   string
		want string
	}{
		// Manual label on an ancestor wins over the contact label above it.
		{"a", "Alice"},
		{"b", "Alice"},
		// Contact label on the leaf itself is the closest match.
		{"c", "Carol"},
	}
	for _, tt := range tests {
		if got := b.DisplayNamePreferred(tt.id); got != tt.want {
			t.Errorf("DisplayNamePreferred(%s) = %q, want %q", tt.id, got, tt.want)
		}
	}
}

func TestDisplayNamePreferredManualBeatsCloserContact(t *testing.T) {
	b := treeFixture()
	// Give the leaf a contact label; the manual ancestor still wins.
	b.nodes["a"].DisplayName = "Contact A"
	b.nodes["a"].LabelSource = faceindex.LabelContact

	if got := b.DisplayNamePreferred("a"); got != "Alice" {
		t.Errorf("DisplayNamePreferred = %q, want Alice", got)
	}
}
