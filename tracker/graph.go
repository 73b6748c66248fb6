package tracker

import (
	"fmt"
	"sort"
)

// Link is an accepted association between two spots, A precedes B in frame
// order
type Link struct {
	A      int
	B      int
	Weight float64
}

// LinkGraph is an undirected weighted graph over spot ids
type LinkGraph struct {
	adj   map[int]map[int]float64
	links []Link
}

// NewLinkGraph returns an empty graph
func NewLinkGraph() *LinkGraph {
	return &LinkGraph{
		adj: make(map[int]map[int]float64),
	}
}

// AddSpot adds spot id as a vertex, adding an existing vertex is a no-op
func (g *LinkGraph) AddSpot(id int) {
	if _, ok := g.adj[id]; !ok {
		g.adj[id] = make(map[int]float64)
	}
}

// AddLink joins a and b with weight w.  Both vertices must exist.
func (g *LinkGraph) AddLink(a, b int, w float64) error {

	if a == b {
		return fmt.Errorf("self link on spot %d", a)
	}

	na, ok := g.adj[a]
	if !ok {
		return fmt.Errorf("unknown spot %d", a)
	}

	nb, ok := g.adj[b]
	if !ok {
		return fmt.Errorf("unknown spot %d", b)
	}

	if _, dup := na[b]; dup {
		return fmt.Errorf("spots %d and %d already linked", a, b)
	}

	na[b] = w
	nb[a] = w
	g.links = append(g.links, Link{A: a, B: b, Weight: w})

	return nil
}

// Linked reports whether a and b share a link
func (g *LinkGraph) Linked(a, b int) bool {
	_, ok := g.adj[a][b]
	return ok
}

// Neighbors returns the spots linked to id in ascending order
func (g *LinkGraph) Neighbors(id int) []int {
	out := make([]int, 0, len(g.adj[id]))

	for n := range g.adj[id] {
		out = append(out, n)
	}

	sort.Ints(out)

	return out
}

// Vertices returns every spot id in ascending order
func (g *LinkGraph) Vertices() []int {
	out := make([]int, 0, len(g.adj))

	for id := range g.adj {
		out = append(out, id)
	}

	sort.Ints(out)

	return out
}

// Links returns the links in insertion order
func (g *LinkGraph) Links() []Link {
	return append([]Link(nil), g.links...)
}

// Len returns the number of vertices
func (g *LinkGraph) Len() int {
	return len(g.adj)
}
