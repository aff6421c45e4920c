package hierarchy

import (
	"sort"

	"github.com/photokit/facetree/internal/faceindex"
)

// Node returns a copy of the node with the given ID.
func (b *Builder) Node(id string) (Node, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n, ok := b.nodes[id]
	if !ok {
		return Node{}, false
	}
	return n.clone(), true
}

// Root returns the synthetic root node of the last committed build.
func (b *Builder) Root() (Node, bool) {
	return b.Node(RootID)
}

// Count returns the number of nodes in the committed tree.
func (b *Builder) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.nodes)
}

// Children returns copies of a node's children in child-list order.
func (b *Builder) Children(id string) []Node {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n, ok := b.nodes[id]
	if !ok {
		return nil
	}
	out := make([]Node, 0, len(n.ChildIDs))
	for _, cid := range n.ChildIDs {
		if c, ok := b.nodes[cid]; ok {
			out = append(out, c.clone())
		}
	}
	return out
}

// LeafDescendants collects all level-0 descendants of a node by depth-first
// traversal. A leaf ID queries itself.
func (b *Builder) LeafDescendants(id string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	start, ok := b.nodes[id]
	if !ok {
		return nil
	}

	var leaves []string
	visited := make(map[string]struct{})
	stack := []*Node{start}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, seen := visited[n.ID]; seen {
			continue
		}
		visited[n.ID] = struct{}{}

		if n.Level == 0 {
			leaves = append(leaves, n.ID)
			continue
		}
		for _, cid := range n.ChildIDs {
			if c, ok := b.nodes[cid]; ok {
				stack = append(stack, c)
			}
		}
	}
	sort.Strings(leaves)
	return leaves
}

// AncestorChain walks parent links from the given node up to the root,
// returning the chain starting with the node itself. The walk is guarded
// against cycles so a corrupted parent pointer cannot loop forever.
func (b *Builder) AncestorChain(id string) []Node {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var chain []Node
	visited := make(map[string]struct{})
	for id != "" {
		if _, seen := visited[id]; seen {
			break // corrupted parent pointer
		}
		visited[id] = struct{}{}

		n, ok := b.nodes[id]
		if !ok {
			break
		}
		chain = append(chain, n.clone())
		id = n.ParentID
	}
	return chain
}

// DisplayNamePreferred resolves the display name shown for a leaf: a manual
// label anywhere in the ancestor chain wins outright; otherwise the first
// contact label encountered (the closest ancestor's) is used.
func (b *Builder) DisplayNamePreferred(leafID string) string {
	contact := ""
	for _, n := range b.AncestorChain(leafID) {
		if n.DisplayName == "" {
			continue
		}
		if n.LabelSource == faceindex.LabelManual {
			return n.DisplayName
		}
		if n.LabelSource == faceindex.LabelContact && contact == "" {
			contact = n.DisplayName
		}
	}
	return contact
}
