package pathfind

import "mazefire.ai/internal/sim/grid"

// Neighbor order for A*: north, east, south, west.
var astarDirs = [4][2]int{{0, 1}, {1, 0}, {0, -1}, {-1, 0}}

// node is per-search bookkeeping; cells stay plain coordinates.
type node struct {
	cell   grid.Cell
	g, f   int
	parent int
}

type openEntry struct {
	node int
	f    int
	seq  int
}

// openHeap orders by f, then by insertion sequence, which picks the same
// node as scanning an append-only list for its first minimum.
type openHeap []openEntry

func (h openHeap) less(i, j int) bool {
	if h[i].f != h[j].f {
		return h[i].f < h[j].f
	}
	return h[i].seq < h[j].seq
}

func (h *openHeap) push(e openEntry) {
	*h = append(*h, e)
	i := len(*h) - 1
	for i > 0 {
		p := (i - 1) / 2
		if !h.less(i, p) {
			break
		}
		(*h)[i], (*h)[p] = (*h)[p], (*h)[i]
		i = p
	}
}

func (h *openHeap) pop() openEntry {
	old := *h
	n := len(old)
	e := old[0]
	old[0] = old[n-1]
	*h = old[:n-1]
	i := 0
	for {
		l, r := 2*i+1, 2*i+2
		m := i
		if l < len(*h) && h.less(l, m) {
			m = l
		}
		if r < len(*h) && h.less(r, m) {
			m = r
		}
		if m == i {
			break
		}
		(*h)[i], (*h)[m] = (*h)[m], (*h)[i]
		i = m
	}
	return e
}

// AStarSearch is A* with the Manhattan heuristic. An open node is replaced
// by the route through the expanded node only when its f exceeds the
// expanded node's f; on a unit grid this never loses a cheaper route.
func AStarSearch(g *grid.Grid, src, dst grid.Cell) Result {
	var res Result
	if src == dst {
		return res
	}
	g.Index(src)
	g.Index(dst)

	nodes := []node{{cell: src, g: 0, f: grid.Manhattan(src, dst), parent: -1}}
	openIdx := make([]int, g.Len())
	for i := range openIdx {
		openIdx[i] = -1
	}
	closed := make([]bool, g.Len())

	var open openHeap
	seq := 0
	enqueue := func(ni int) {
		openIdx[g.Index(nodes[ni].cell)] = ni
		open.push(openEntry{node: ni, f: nodes[ni].f, seq: seq})
		seq++
	}
	enqueue(0)

	for len(open) > 0 {
		e := open.pop()
		cur := nodes[e.node]
		ci := g.Index(cur.cell)
		if openIdx[ci] != e.node {
			continue // replaced
		}
		openIdx[ci] = -1
		if cur.cell == dst {
			res.Path = nodePath(nodes, e.node)
			return res
		}
		closed[ci] = true

		for _, d := range astarDirs {
			n := cur.cell.Add(d[0], d[1])
			if !passable(g, n, dst) {
				continue
			}
			ni := g.Index(n)
			if closed[ni] {
				continue
			}
			res.TilesChecked++
			gn := cur.g + 1
			cand := node{cell: n, g: gn, f: gn + grid.Manhattan(n, dst), parent: e.node}
			if prev := openIdx[ni]; prev >= 0 {
				if nodes[prev].f <= cur.f {
					continue
				}
			}
			nodes = append(nodes, cand)
			enqueue(len(nodes) - 1)
		}
	}
	return res
}

func nodePath(nodes []node, last int) []grid.Cell {
	n := 0
	for i := last; nodes[i].parent >= 0; i = nodes[i].parent {
		n++
	}
	out := make([]grid.Cell, n)
	for i := last; nodes[i].parent >= 0; i = nodes[i].parent {
		n--
		out[n] = nodes[i].cell
	}
	return out
}
