package mazegen

import (
	"errors"
	"fmt"
	"math/rand"

	"mazefire.ai/internal/sim/grid"
)

const (
	MinDimension = 5
	// MaxDimension bounds each side so a grid stays around a million tiles.
	MaxDimension = 1001
)

var (
	ErrInvalidDimension = errors.New("mazegen: width and height must be odd and between 5 and 1001")
	ErrInvalidTarget    = errors.New("mazegen: target outside grid")
)

type step struct{ dx, dy int }

// Base carve order before shuffling: down, left, right, up.
var baseDirs = [4]step{{0, -1}, {-1, 0}, {1, 0}, {0, 1}}

// Center is the default target hint for a width x height maze.
func Center(width, height int) grid.Cell {
	return grid.Cell{X: width / 2, Y: height / 2}
}

// Corners lists the four fire start positions in selection order.
func Corners(width, height int) [4]grid.Cell {
	return [4]grid.Cell{
		{X: 0, Y: 0},
		{X: 0, Y: height - 1},
		{X: width - 1, Y: 0},
		{X: width - 1, Y: height - 1},
	}
}

// Result is a freshly generated maze.
type Result struct {
	Grid   *grid.Grid
	Target grid.Cell
	Fire   grid.Cell
}

// Generate carves a perfect maze rooted at targetHint and places the fire on
// a random corner. All randomness is drawn from rng, so equal seeds give
// equal mazes. The hint is snapped down onto the even lattice so that it
// shares parity with the corners. For a side of the form 4k+3 the snapped
// Center is one cell short of the geometric middle: a 7x7 maze gets its
// target at (2,2), not (3,3).
func Generate(width, height int, rng *rand.Rand, targetHint grid.Cell) (Result, error) {
	if err := ValidateDimensions(width, height); err != nil {
		return Result{}, err
	}
	if targetHint.X < 0 || targetHint.Y < 0 || targetHint.X >= width || targetHint.Y >= height {
		return Result{}, fmt.Errorf("%w: %s", ErrInvalidTarget, targetHint)
	}
	g, err := grid.New(width, height)
	if err != nil {
		return Result{}, err
	}

	target := grid.Cell{X: targetHint.X &^ 1, Y: targetHint.Y &^ 1}
	g.MarkTarget(target)
	carve(g, target, rng)

	fire := Corners(width, height)[rng.Intn(4)]
	g.PlaceFire(fire)

	return Result{Grid: g, Target: target, Fire: fire}, nil
}

func ValidateDimensions(width, height int) error {
	if width < MinDimension || height < MinDimension || width > MaxDimension || height > MaxDimension ||
		width%2 == 0 || height%2 == 0 {
		return fmt.Errorf("%w: got %dx%d", ErrInvalidDimension, width, height)
	}
	return nil
}

type frame struct {
	at   grid.Cell
	dirs [4]step
	next int
}

// carve runs the randomized depth-first backtracker with two-cell steps. The
// explicit stack visits cells in the same order as the recursive form: each
// frame shuffles its directions once on entry and re-checks the far cell
// when it gets to it.
func carve(g *grid.Grid, root grid.Cell, rng *rand.Rand) {
	push := func(stack []frame, c grid.Cell) []frame {
		f := frame{at: c, dirs: baseDirs}
		Shuffle(rng, f.dirs[:])
		return append(stack, f)
	}

	stack := push(nil, root)
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next == len(top.dirs) {
			stack = stack[:len(stack)-1]
			continue
		}
		d := top.dirs[top.next]
		top.next++

		far := top.at.Add(2*d.dx, 2*d.dy)
		if !g.InBounds(far) || g.IsFloor(far) {
			continue
		}
		g.SetFloor(far)
		g.SetFloor(top.at.Add(d.dx, d.dy))
		stack = push(stack, far)
	}
}

// Shuffle is a Fisher-Yates shuffle: for each i < n-1 swap s[i] with a
// uniformly chosen s[j], i <= j < n.
func Shuffle[T any](rng *rand.Rand, s []T) {
	for i := 0; i < len(s)-1; i++ {
		j := i + rng.Intn(len(s)-i)
		s[i], s[j] = s[j], s[i]
	}
}
