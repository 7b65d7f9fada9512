package layout

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/DeafMist/topic-radar/backend/internal/aggregate"
)

// Config drives seeding and relaxation. Identical Config and keyword lists
// always produce identical positions.
type Config struct {
	SpreadX     float64
	SpreadY     float64
	MinDistance float64
	K           float64
	Iterations  int
	Scale       float64
	Seed        uint64
}

// DefaultConfig mirrors the presentation the front-end was tuned for.
func DefaultConfig() Config {
	return Config{
		SpreadX:     300,
		SpreadY:     150,
		MinDistance: 50,
		K:           0.1,
		Iterations:  150,
		Scale:       1000,
		Seed:        21,
	}
}

// Validate reports configuration that could not produce a layout.
func (c Config) Validate() error {
	if c.SpreadX <= 0 || c.SpreadY <= 0 {
		return errors.New("layout spread must be positive")
	}
	if c.MinDistance < 0 {
		return errors.New("layout min distance cannot be negative")
	}
	if c.MinDistance >= math.Max(c.SpreadX, c.SpreadY) {
		return fmt.Errorf("layout min distance %.1f leaves no room inside the %.1fx%.1f ellipse", c.MinDistance, c.SpreadX, c.SpreadY)
	}
	if c.K <= 0 {
		return errors.New("layout k must be positive")
	}
	if c.Iterations < 0 {
		return errors.New("layout iterations cannot be negative")
	}
	return nil
}

// Point is a 2D position.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Origin is where the anchor node is pinned.
var Origin = Point{}

// Node is a placed keyword.
type Node struct {
	Keyword string
	Stat    aggregate.KeywordStat
	Pos     Point
}

const (
	maxSeedAttempts = 10_000
	threshold       = 1e-4
	minSeparation   = 0.01
)

// Select returns the first n ranked entries, or all of them when n covers
// the set. ranked must already be ordered (see aggregate.Result.Ranked).
func Select(ranked []aggregate.Entry, n int) []aggregate.Entry {
	if n < 0 || n >= len(ranked) {
		return ranked
	}
	return ranked[:n]
}

// Place positions entries around an anchor pinned at the origin.
func Place(entries []aggregate.Entry, cfg Config) ([]Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))

	// index 0 is the anchor
	pos := make([]Point, len(entries)+1)
	for i := range entries {
		pos[i+1] = seed(rng, cfg)
	}

	relax(pos, cfg)
	rescale(pos, cfg.Scale)

	nodes := make([]Node, len(entries))
	for i, e := range entries {
		nodes[i] = Node{Keyword: e.Keyword, Stat: e.Stat, Pos: pos[i+1]}
	}
	return nodes, nil
}

// seed samples uniformly inside the spread ellipse, outside MinDistance.
func seed(rng *rand.Rand, cfg Config) Point {
	for range maxSeedAttempts {
		x := (rng.Float64()*2 - 1) * cfg.SpreadX
		y := (rng.Float64()*2 - 1) * cfg.SpreadY
		if (x*x)/(cfg.SpreadX*cfg.SpreadX)+(y*y)/(cfg.SpreadY*cfg.SpreadY) > 1 {
			continue
		}
		if math.Hypot(x, y) >= cfg.MinDistance {
			return Point{X: x, Y: y}
		}
	}
	theta := rng.Float64() * 2 * math.Pi
	return Point{X: cfg.MinDistance * math.Cos(theta), Y: cfg.MinDistance * math.Sin(theta)}
}

// relax runs a Fruchterman-Reingold style simulation without edges: every
// node is pushed away from every other with force k²/d and moves by the
// current temperature, which cools linearly. pos[0] never moves.
func relax(pos []Point, cfg Config) {
	n := len(pos)
	if n < 2 || cfg.Iterations == 0 {
		return
	}

	minX, maxX, minY, maxY := pos[0].X, pos[0].X, pos[0].Y, pos[0].Y
	for _, p := range pos[1:] {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	t := math.Max(maxX-minX, maxY-minY) * 0.1
	dt := t / float64(cfg.Iterations+1)
	k2 := cfg.K * cfg.K

	delta := make([]Point, n)
	for range cfg.Iterations {
		for i := 1; i < n; i++ {
			var fx, fy float64
			for j := 0; j < n; j++ {
				if i == j {
					continue
				}
				dx := pos[i].X - pos[j].X
				dy := pos[i].Y - pos[j].Y
				d := math.Max(math.Hypot(dx, dy), minSeparation)
				f := k2 / (d * d)
				fx += dx * f
				fy += dy * f
			}
			length := math.Hypot(fx, fy)
			if length < minSeparation {
				length = 0.1
			}
			delta[i] = Point{X: fx * t / length, Y: fy * t / length}
		}

		var moved float64
		for i := 1; i < n; i++ {
			pos[i].X += delta[i].X
			pos[i].Y += delta[i].Y
			moved += delta[i].X*delta[i].X + delta[i].Y*delta[i].Y
		}
		t -= dt
		if math.Sqrt(moved)/float64(n) < threshold {
			return
		}
	}
}

// rescale stretches positions around the origin so the largest coordinate
// magnitude equals scale. The anchor stays at the origin.
func rescale(pos []Point, scale float64) {
	if scale <= 0 {
		return
	}
	var extent float64
	for _, p := range pos {
		extent = math.Max(extent, math.Max(math.Abs(p.X), math.Abs(p.Y)))
	}
	if extent == 0 {
		return
	}
	f := scale / extent
	for i := range pos {
		pos[i].X *= f
		pos[i].Y *= f
	}
}
