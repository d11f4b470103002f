// Package graph builds the hand-off graph of a customer journey.
//
// Each step becomes a node labelled with its step name. A step with a
// hand-off contributes one directed edge to the step it hands off to. Targets
// that are not among the input steps get a placeholder node labelled with the
// raw id, so no hand-off is silently dropped. Self-loops and parallel edges
// are kept as-is; the builder does no cycle detection.
package graph

import (
	"github.com/wjkennedy/cjm/internal/journey"
	"github.com/wjkennedy/cjm/internal/metrics"
)

// Node is one vertex of the hand-off graph.
type Node struct {
	ID    string
	Label string

	// Placeholder is true for hand-off targets with no matching step.
	Placeholder bool
}

// Edge is a directed hand-off From → To.
type Edge struct {
	From     string
	To       string
	LeadTime *float64
}

// Graph is an explicit directed multigraph. Node order is the order in which
// ids first appear in the input, either as a step or as a hand-off target.
type Graph struct {
	nodes map[string]*Node
	order []string
	edges []Edge
	succ  map[string][]int // node id → indexes into edges
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]*Node),
		order: []string{},
		edges: []Edge{},
		succ:  make(map[string][]int),
	}
}

// Build constructs the hand-off graph for steps in one pass.
func Build(steps []journey.Step) *Graph {
	g := New()
	for _, s := range steps {
		g.putStep(s.ID, s.Name)
		if s.HasHandoff() {
			g.ensure(*s.HandoffTo)
			g.addEdge(Edge{From: s.ID, To: *s.HandoffTo, LeadTime: s.LeadTime})
		}
	}
	metrics.ObserveGraph(g.NodeCount(), g.PlaceholderCount())
	return g
}

// putStep adds or relabels a real node. A later step with the same id wins,
// and a placeholder is upgraded in place without changing its position in
// the node order.
func (g *Graph) putStep(id, label string) {
	if n, ok := g.nodes[id]; ok {
		n.Label = label
		n.Placeholder = false
		return
	}
	g.add(&Node{ID: id, Label: label})
}

// ensure adds a placeholder for id unless a node already exists.
func (g *Graph) ensure(id string) {
	if _, ok := g.nodes[id]; ok {
		return
	}
	g.add(&Node{ID: id, Label: id, Placeholder: true})
}

func (g *Graph) add(n *Node) {
	g.nodes[n.ID] = n
	g.order = append(g.order, n.ID)
}

func (g *Graph) addEdge(e Edge) {
	g.succ[e.From] = append(g.succ[e.From], len(g.edges))
	g.edges = append(g.edges, e)
}

// Nodes returns the nodes in first-appearance order.
func (g *Graph) Nodes() []Node {
	out := make([]Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, *g.nodes[id])
	}
	return out
}

// Edges returns the edges in input order.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// Node looks up a node by id.
func (g *Graph) Node(id string) (Node, bool) {
	n, ok := g.nodes[id]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// Successors returns the hand-off targets of id, one entry per edge.
func (g *Graph) Successors(id string) []string {
	idx := g.succ[id]
	out := make([]string, 0, len(idx))
	for _, i := range idx {
		out = append(out, g.edges[i].To)
	}
	return out
}

// Index returns the position of each node id in Nodes().
func (g *Graph) Index() map[string]int {
	idx := make(map[string]int, len(g.order))
	for i, id := range g.order {
		idx[id] = i
	}
	return idx
}

func (g *Graph) NodeCount() int { return len(g.order) }
func (g *Graph) EdgeCount() int { return len(g.edges) }

// PlaceholderCount returns the number of placeholder nodes.
func (g *Graph) PlaceholderCount() int {
	n := 0
	for _, node := range g.nodes {
		if node.Placeholder {
			n++
		}
	}
	return n
}
