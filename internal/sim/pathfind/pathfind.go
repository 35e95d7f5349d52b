package pathfind

import (
	"errors"
	"fmt"
	"strings"

	"mazefire.ai/internal/sim/grid"
)

var ErrUnknownAlgorithm = errors.New("pathfind: unknown algorithm")

type Algorithm int

const (
	BFS Algorithm = iota
	DFS
	AStar
)

func (a Algorithm) String() string {
	switch a {
	case BFS:
		return "bfs"
	case DFS:
		return "dfs"
	case AStar:
		return "astar"
	default:
		return fmt.Sprintf("algorithm(%d)", int(a))
	}
}

func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bfs", "breadth-first":
		return BFS, nil
	case "dfs", "depth-first":
		return DFS, nil
	case "astar", "a*", "a-star":
		return AStar, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, s)
}

func (a Algorithm) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Algorithm) UnmarshalText(b []byte) error {
	v, err := ParseAlgorithm(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Result of one search. Path runs from the cell after src through dst and
// is empty when dst is unreachable or equal to src. TilesChecked counts the
// cells the search examined.
type Result struct {
	Path         []grid.Cell
	TilesChecked int
}

// Find runs alg on g. Searches never mutate the grid.
func Find(alg Algorithm, g *grid.Grid, src, dst grid.Cell) Result {
	switch alg {
	case DFS:
		return DepthFirst(g, src, dst)
	case AStar:
		return AStarSearch(g, src, dst)
	default:
		return BreadthFirst(g, src, dst)
	}
}

// Neighbor order for the uninformed searches: left, down, right, up.
var uninformedDirs = [4][2]int{{-1, 0}, {0, -1}, {1, 0}, {0, 1}}

func passable(g *grid.Grid, c, dst grid.Cell) bool {
	return g.InBounds(c) && (c == dst || g.IsFloor(c))
}

// walkBack rebuilds the path from pred, a flat predecessor table holding -1
// for unvisited cells.
func walkBack(g *grid.Grid, pred []int, src, dst grid.Cell) []grid.Cell {
	var rev []grid.Cell
	si := g.Index(src)
	for i := g.Index(dst); i != si; i = pred[i] {
		rev = append(rev, g.CellAt(i))
	}
	out := make([]grid.Cell, len(rev))
	for i, c := range rev {
		out[len(rev)-1-i] = c
	}
	return out
}

// uninformed is the shared BFS/DFS body; lifo selects stack order.
func uninformed(g *grid.Grid, src, dst grid.Cell, lifo bool) Result {
	var res Result
	if src == dst {
		return res
	}
	g.Index(src)
	g.Index(dst)

	pred := make([]int, g.Len())
	for i := range pred {
		pred[i] = -1
	}
	visited := make([]bool, g.Len())
	visited[g.Index(src)] = true

	frontier := []grid.Cell{src}
	found := false
	for len(frontier) > 0 && !found {
		var c grid.Cell
		if lifo {
			c = frontier[len(frontier)-1]
			frontier = frontier[:len(frontier)-1]
		} else {
			c = frontier[0]
			frontier = frontier[1:]
		}
		for _, d := range uninformedDirs {
			n := c.Add(d[0], d[1])
			if !passable(g, n, dst) {
				continue
			}
			ni := g.Index(n)
			if visited[ni] {
				continue
			}
			visited[ni] = true
			pred[ni] = g.Index(c)
			res.TilesChecked++
			if n == dst {
				found = true
				break
			}
			frontier = append(frontier, n)
		}
	}
	if found {
		res.Path = walkBack(g, pred, src, dst)
	}
	return res
}

// BreadthFirst returns a shortest path.
func BreadthFirst(g *grid.Grid, src, dst grid.Cell) Result { return uninformed(g, src, dst, false) }

// DepthFirst returns some path, not necessarily a shortest one.
func DepthFirst(g *grid.Grid, src, dst grid.Cell) Result { return uninformed(g, src, dst, true) }
