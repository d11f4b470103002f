// Package layout assigns 2-D coordinates to hand-off graphs and turns the
// result into renderable documents.
package layout

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/wjkennedy/cjm/internal/graph"
	"github.com/wjkennedy/cjm/internal/metrics"
)

const (
	DefaultIterations = 50
	DefaultScale      = 1.0

	// threshold stops the simulation once the mean displacement of a step
	// falls below it.
	threshold = 1e-4

	// minDistance keeps coincident nodes from producing infinite forces.
	minDistance = 0.01
)

// Point is a 2-D position.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Positions maps node id to position.
type Positions map[string]Point

type config struct {
	seed       uint64
	seeded     bool
	iterations int
	scale      float64
}

// Option configures Spring.
type Option func(*config)

// WithSeed makes the layout reproducible.
func WithSeed(seed int64) Option {
	return func(c *config) {
		c.seed = uint64(seed)
		c.seeded = true
	}
}

// WithIterations caps the number of simulation steps. Values below 1 are
// ignored.
func WithIterations(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.iterations = n
		}
	}
}

// WithScale sets the half-width of the square the result is rescaled into.
func WithScale(scale float64) Option {
	return func(c *config) {
		if scale > 0 {
			c.scale = scale
		}
	}
}

// Spring lays g out with the Fruchterman-Reingold force-directed algorithm.
//
// Nodes start at random positions in the unit square. Every pair repels with
// force k²/d and every connected pair attracts with force d²/k, where
// k = sqrt(1/n); edge direction is ignored. Each step moves a node by at most
// the current temperature, which starts at a tenth of the initial spread and
// cools linearly to zero. The result is centred on the origin and rescaled so
// the largest coordinate magnitude equals the scale.
//
// Without WithSeed the start positions come from a randomly seeded source.
func Spring(g *graph.Graph, opts ...Option) Positions {
	start := time.Now()
	defer func() { metrics.ObserveLayout(time.Since(start)) }()

	cfg := config{iterations: DefaultIterations, scale: DefaultScale}
	for _, opt := range opts {
		opt(&cfg)
	}

	nodes := g.Nodes()
	n := len(nodes)
	out := make(Positions, n)
	switch n {
	case 0:
		return out
	case 1:
		out[nodes[0].ID] = Point{}
		return out
	}

	src := cfg.source()
	pos := make([]Point, n)
	for i := range pos {
		pos[i] = Point{X: src.Float64(), Y: src.Float64()}
	}

	adj := adjacency(g, n)
	simulate(pos, adj, cfg.iterations)
	rescale(pos, cfg.scale)

	for i, node := range nodes {
		out[node.ID] = pos[i]
	}
	return out
}

func (c config) source() *rand.Rand {
	if c.seeded {
		return rand.New(rand.NewPCG(c.seed, c.seed))
	}
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

// adjacency returns the symmetric 0/1 connection matrix of g in node order.
// Self-loops contribute nothing and parallel edges count once.
func adjacency(g *graph.Graph, n int) [][]float64 {
	idx := g.Index()
	adj := make([][]float64, n)
	for i := range adj {
		adj[i] = make([]float64, n)
	}
	for _, e := range g.Edges() {
		i, j := idx[e.From], idx[e.To]
		if i == j {
			continue
		}
		adj[i][j] = 1
		adj[j][i] = 1
	}
	return adj
}

func simulate(pos []Point, adj [][]float64, iterations int) {
	n := len(pos)
	k := math.Sqrt(1 / float64(n))
	t := 0.1 * spread(pos)
	dt := t / float64(iterations+1)

	disp := make([]Point, n)
	for iter := 0; iter < iterations; iter++ {
		for i := range pos {
			var d Point
			for j := range pos {
				if i == j {
					continue
				}
				dx, dy := pos[i].X-pos[j].X, pos[i].Y-pos[j].Y
				dist := math.Max(math.Hypot(dx, dy), minDistance)
				f := k*k/(dist*dist) - adj[i][j]*dist/k
				d.X += dx * f
				d.Y += dy * f
			}
			disp[i] = d
		}

		var moved float64
		for i := range pos {
			length := math.Hypot(disp[i].X, disp[i].Y)
			if length < minDistance {
				length = 0.1
			}
			step := Point{X: disp[i].X * t / length, Y: disp[i].Y * t / length}
			pos[i].X += step.X
			pos[i].Y += step.Y
			moved += step.X*step.X + step.Y*step.Y
		}
		t -= dt

		if math.Sqrt(moved)/float64(n) < threshold {
			return
		}
	}
}

// spread is the larger side of the bounding box of pos.
func spread(pos []Point) float64 {
	minX, maxX := pos[0].X, pos[0].X
	minY, maxY := pos[0].Y, pos[0].Y
	for _, p := range pos[1:] {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	return math.Max(maxX-minX, maxY-minY)
}

// rescale centres pos on the origin and scales it into [-scale, scale].
func rescale(pos []Point, scale float64) {
	var mean Point
	for _, p := range pos {
		mean.X += p.X
		mean.Y += p.Y
	}
	mean.X /= float64(len(pos))
	mean.Y /= float64(len(pos))

	var lim float64
	for i := range pos {
		pos[i].X -= mean.X
		pos[i].Y -= mean.Y
		lim = math.Max(lim, math.Max(math.Abs(pos[i].X), math.Abs(pos[i].Y)))
	}
	if lim == 0 {
		return
	}
	for i := range pos {
		pos[i].X *= scale / lim
		pos[i].Y *= scale / lim
	}
}
