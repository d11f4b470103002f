package layout

import (
	"fmt"

	"github.com/wjkennedy/cjm/internal/graph"
)

// Render is the renderer-neutral form of a laid-out graph.
type Render struct {
	Nodes []RenderNode `json:"nodes"`
	Edges []RenderEdge `json:"edges"`
}

type RenderNode struct {
	ID          string  `json:"id"`
	Label       string  `json:"label"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Placeholder bool    `json:"placeholder"`
}

type RenderEdge struct {
	From     string     `json:"from"`
	To       string     `json:"to"`
	FromXY   [2]float64 `json:"from_xy"`
	ToXY     [2]float64 `json:"to_xy"`
	LeadTime *float64   `json:"lead_time"`
}

// Serialize pairs every node and edge of g with its coordinates. Nodes keep
// graph order and edges keep input order. Every node must have a position.
func Serialize(g *graph.Graph, pos Positions) (Render, error) {
	r := Render{
		Nodes: make([]RenderNode, 0, g.NodeCount()),
		Edges: make([]RenderEdge, 0, g.EdgeCount()),
	}

	for _, n := range g.Nodes() {
		p, ok := pos[n.ID]
		if !ok {
			return Render{}, fmt.Errorf("serialize: no position for node %q", n.ID)
		}
		r.Nodes = append(r.Nodes, RenderNode{
			ID:          n.ID,
			Label:       n.Label,
			X:           p.X,
			Y:           p.Y,
			Placeholder: n.Placeholder,
		})
	}

	for _, e := range g.Edges() {
		from, to := pos[e.From], pos[e.To]
		r.Edges = append(r.Edges, RenderEdge{
			From:     e.From,
			To:       e.To,
			FromXY:   [2]float64{from.X, from.Y},
			ToXY:     [2]float64{to.X, to.Y},
			LeadTime: e.LeadTime,
		})
	}
	return r, nil
}
