// Package unionfind implements an array-backed disjoint set with path
// compression and union by size, used for single-linkage grouping.
package unionfind

import "sort"

// UnionFind tracks disjoint sets over indexes 0..n-1.
type UnionFind struct {
	parent []int
	size   []int
	sets   int
}

// New creates a union-find over n singleton sets.
func New(n int) *UnionFind {
	u := &UnionFind{
		parent: make([]int, n),
		size:   make([]int, n),
		sets:   n,
	}
	for i := range u.parent {
		u.parent[i] = i
		u.size[i] = 1
	}
	return u
}

// Find returns the root of the set containing i, compressing the path.
func (u *UnionFind) Find(i int) int {
	for u.parent[i] != i {
		u.parent[i] = u.parent[u.parent[i]]
		i = u.parent[i]
	}
	return i
}

// Union merges the sets containing a and b. Returns true when the sets were
// distinct, false when a and b were already connected.
func (u *UnionFind) Union(a, b int) bool {
	ra, rb := u.Find(a), u.Find(b)
	if ra == rb {
		return false
	}
	if u.size[ra] < u.size[rb] {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
	u.size[ra] += u.size[rb]
	u.sets--
	return true
}

// Connected reports whether a and b belong to the same set.
func (u *UnionFind) Connected(a, b int) bool {
	return u.Find(a) == u.Find(b)
}

// Sets returns the current number of disjoint sets.
func (u *UnionFind) Sets() int {
	return u.sets
}

// Len returns the number of tracked elements.
func (u *UnionFind) Len() int {
	return len(u.parent)
}

// Groups returns the current sets as slices of member indexes. Members are in
// ascending order within each group, and groups are ordered by their smallest
// member.
func (u *UnionFind) Groups() [][]int {
	byRoot := make(map[int][]int)
	for i := range u.parent {
		root := u.Find(i)
		byRoot[root] = append(byRoot[root], i)
	}

	groups := make([][]int, 0, len(byRoot))
	for _, members := range byRoot {
		groups = append(groups, members)
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i][0] < groups[j][0]
	})
	return groups
}
