// Package dag models the dependency graph between pipeline stages.
// It supports cycle-safe topological ordering, downstream expansion for
// selective runs, and subgraph extraction.
package dag

import (
	"fmt"
	"sort"
)

// Graph is a directed acyclic graph of stage IDs.
type Graph struct {
	nodes    map[string]bool
	children map[string][]string // dependency -> dependents
	parents  map[string][]string // dependent -> dependencies
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes:    make(map[string]bool),
		children: make(map[string][]string),
		parents:  make(map[string][]string),
	}
}

// AddNode registers a stage. Adding an existing stage is a no-op.
func (g *Graph) AddNode(id string) {
	g.nodes[id] = true
}

// AddEdge records that child depends on parent.
func (g *Graph) AddEdge(parent, child string) error {
	if !g.nodes[parent] {
		return fmt.Errorf("unknown stage %q", parent)
	}
	if !g.nodes[child] {
		return fmt.Errorf("unknown stage %q", child)
	}
	if parent == child {
		return fmt.Errorf("stage %q cannot depend on itself", parent)
	}

	for _, existing := range g.children[parent] {
		if existing == child {
			return nil
		}
	}
	g.children[parent] = append(g.children[parent], child)
	g.parents[child] = append(g.parents[child], parent)
	return nil
}

// Has reports whether the stage is registered.
func (g *Graph) Has(id string) bool {
	return g.nodes[id]
}

// Parents returns the direct dependencies of a stage.
func (g *Graph) Parents(id string) []string {
	return append([]string(nil), g.parents[id]...)
}

// Children returns the direct dependents of a stage.
func (g *Graph) Children(id string) []string {
	return append([]string(nil), g.children[id]...)
}

// NodeCount returns the number of stages.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of dependency edges.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, c := range g.children {
		n += len(c)
	}
	return n
}

// sortedIDs returns all stage IDs in lexical order for determinism.
func (g *Graph) sortedIDs() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// TopoSort returns the stages in execution order, dependencies first.
// Uses Kahn's algorithm; any node left unprocessed means a cycle.
func (g *Graph) TopoSort() ([]string, error) {
	indegree := make(map[string]int, len(g.nodes))
	for id := range g.nodes {
		indegree[id] = len(g.parents[id])
	}

	var frontier []string
	for _, id := range g.sortedIDs() {
		if indegree[id] == 0 {
			frontier = append(frontier, id)
		}
	}

	order := make([]string, 0, len(g.nodes))
	for len(frontier) > 0 {
		id := frontier[0]
		frontier = frontier[1:]
		order = append(order, id)

		next := append([]string(nil), g.children[id]...)
		sort.Strings(next)
		for _, child := range next {
			indegree[child]--
			if indegree[child] == 0 {
				frontier = append(frontier, child)
			}
		}
	}

	if len(order) != len(g.nodes) {
		var stuck []string
		for id, d := range indegree {
			if d > 0 {
				stuck = append(stuck, id)
			}
		}
		sort.Strings(stuck)
		return nil, fmt.Errorf("cycle detected involving stages: %v", stuck)
	}

	return order, nil
}

// Levels groups stages by execution level. Stages at level N only depend
// on stages in earlier levels.
func (g *Graph) Levels() ([][]string, error) {
	order, err := g.TopoSort()
	if err != nil {
		return nil, err
	}

	level := make(map[string]int, len(order))
	maxLevel := 0
	for _, id := range order {
		l := 0
		for _, parent := range g.parents[id] {
			if level[parent]+1 > l {
				l = level[parent] + 1
			}
		}
		level[id] = l
		if l > maxLevel {
			maxLevel = l
		}
	}

	levels := make([][]string, maxLevel+1)
	for _, id := range order {
		levels[level[id]] = append(levels[level[id]], id)
	}
	for i := range levels {
		sort.Strings(levels[i])
	}
	return levels, nil
}

// Downstream returns the given stages plus everything that depends on
// them, directly or transitively.
func (g *Graph) Downstream(ids []string) []string {
	seen := make(map[string]bool)

	var mark func(id string)
	mark = func(id string) {
		if seen[id] {
			return
		}
		seen[id] = true
		for _, child := range g.children[id] {
			mark(child)
		}
	}

	for _, id := range ids {
		if g.nodes[id] {
			mark(id)
		}
	}

	result := make([]string, 0, len(seen))
	for id := range seen {
		result = append(result, id)
	}
	sort.Strings(result)
	return result
}

// Subgraph returns a new graph restricted to the given stages, keeping
// only edges where both ends survive.
func (g *Graph) Subgraph(ids []string) *Graph {
	sub := New()
	keep := make(map[string]bool, len(ids))
	for _, id := range ids {
		if g.nodes[id] {
			keep[id] = true
			sub.AddNode(id)
		}
	}
	for id := range keep {
		for _, child := range g.children[id] {
			if keep[child] {
				_ = sub.AddEdge(id, child)
			}
		}
	}
	return sub
}

// Roots returns stages with no dependencies.
func (g *Graph) Roots() []string {
	var roots []string
	for id := range g.nodes {
		if len(g.parents[id]) == 0 {
			roots = append(roots, id)
		}
	}
	sort.Strings(roots)
	return roots
}

// Leaves returns stages with no dependents.
func (g *Graph) Leaves() []string {
	var leaves []string
	for id := range g.nodes {
		if len(g.children[id]) == 0 {
			leaves = append(leaves, id)
		}
	}
	sort.Strings(leaves)
	return leaves
}
