package grid

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
)

var ErrInvalidSize = errors.New("grid: width and height must be positive")

// Cell is a grid coordinate. X grows to the right, Y grows upward.
type Cell struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (c Cell) Add(dx, dy int) Cell { return Cell{X: c.X + dx, Y: c.Y + dy} }

func (c Cell) String() string { return fmt.Sprintf("(%d,%d)", c.X, c.Y) }

func Manhattan(a, b Cell) int { return abs(a.X-b.X) + abs(a.Y-b.Y) }

// Chebyshev is the king-move distance between a and b.
func Chebyshev(a, b Cell) int {
	dx, dy := abs(a.X-b.X), abs(a.Y-b.Y)
	if dx > dy {
		return dx
	}
	return dy
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Tile is the state of one cell. A tile is an unplaced wall, a locked wall or
// a floor; Counter is only non-zero while Locked.
type Tile struct {
	Floor   bool
	Locked  bool
	Counter int

	Target  bool
	Fire    bool
	Burning bool
	Burned  bool
}

// Unplaced reports whether the tile is a wall that has not been placed yet.
func (t Tile) Unplaced() bool { return !t.Floor && !t.Locked }

// Open reports whether a wall could be dropped on the tile.
func (t Tile) Open() bool { return t.Floor && !t.Target && !t.Fire }

// OutOfBoundsError is the panic value raised by accessors given a cell
// outside the grid.
type OutOfBoundsError struct {
	Cell          Cell
	Width, Height int
}

func (e OutOfBoundsError) Error() string {
	return fmt.Sprintf("grid: cell %s out of bounds %dx%d", e.Cell, e.Width, e.Height)
}

// Grid is a fixed-size row-major table of tiles. It is not safe for
// concurrent use; the scheduler owns it.
type Grid struct {
	w, h  int
	tiles []Tile

	target  Cell
	fire    Cell
	hasFire bool
}

// New returns a grid with every tile set to an unplaced wall.
func New(width, height int) (*Grid, error) {
	if width <= 0 || height <= 0 {
		return nil, ErrInvalidSize
	}
	return &Grid{
		w:     width,
		h:     height,
		tiles: make([]Tile, width*height),
	}, nil
}

func (g *Grid) Width() int  { return g.w }
func (g *Grid) Height() int { return g.h }
func (g *Grid) Len() int    { return len(g.tiles) }

func (g *Grid) InBounds(c Cell) bool {
	return c.X >= 0 && c.Y >= 0 && c.X < g.w && c.Y < g.h
}

// Index maps c to its row-major slot. It panics if c is out of bounds.
func (g *Grid) Index(c Cell) int {
	if !g.InBounds(c) {
		panic(OutOfBoundsError{Cell: c, Width: g.w, Height: g.h})
	}
	return c.Y*g.w + c.X
}

func (g *Grid) CellAt(i int) Cell { return Cell{X: i % g.w, Y: i / g.w} }

func (g *Grid) Tile(c Cell) Tile    { return g.tiles[g.Index(c)] }
func (g *Grid) IsFloor(c Cell) bool { return g.tiles[g.Index(c)].Floor }

func (g *Grid) Target() Cell { return g.target }

// Fire returns the fire position; ok is false before fire has been placed
// or after it was cleared.
func (g *Grid) Fire() (c Cell, ok bool) { return g.fire, g.hasFire }

// SetFloor carves c into floor, clearing any lock.
func (g *Grid) SetFloor(c Cell) {
	t := &g.tiles[g.Index(c)]
	t.Floor = true
	t.Locked = false
	t.Counter = 0
}

// MarkTarget carves c and makes it the single target of the grid.
func (g *Grid) MarkTarget(c Cell) {
	i := g.Index(c)
	if prev := g.Index(g.target); g.tiles[prev].Target {
		g.tiles[prev].Target = false
	}
	g.SetFloor(c)
	g.tiles[i].Target = true
	g.target = c
}

// Lock turns c into a locked wall with the given counter.
func (g *Grid) Lock(c Cell, counter int) {
	t := &g.tiles[g.Index(c)]
	t.Floor = false
	t.Locked = true
	t.Counter = counter
}

// Decrement ages a locked wall by one. It reports whether the wall crumbled.
func (g *Grid) Decrement(c Cell) bool {
	t := &g.tiles[g.Index(c)]
	if !t.Locked {
		return false
	}
	t.Counter--
	if t.Counter <= 0 {
		g.Crumble(c)
		return true
	}
	return false
}

// Crumble turns c into floor regardless of its previous state.
func (g *Grid) Crumble(c Cell) { g.SetFloor(c) }

// PlaceFire moves the fire marker to c.
func (g *Grid) PlaceFire(c Cell) {
	i := g.Index(c)
	if g.hasFire {
		g.tiles[g.Index(g.fire)].Fire = false
	}
	g.tiles[i].Fire = true
	g.fire = c
	g.hasFire = true
}

// ClearFire removes the fire marker but remembers its last position.
func (g *Grid) ClearFire() {
	if !g.hasFire {
		return
	}
	g.tiles[g.Index(g.fire)].Fire = false
	g.hasFire = false
}

func (g *Grid) SetBurning(c Cell, on bool) {
	t := &g.tiles[g.Index(c)]
	t.Burning = on
	if !on {
		t.Burned = true
	}
}

// LockedWalls returns every locked wall in row-major order.
func (g *Grid) LockedWalls() []Cell {
	var out []Cell
	for i, t := range g.tiles {
		if t.Locked {
			out = append(out, g.CellAt(i))
		}
	}
	return out
}

// Tile state codes used by the wire encoding.
const (
	CodeWall    uint16 = 0
	CodeFloor   uint16 = 1
	CodeLocked  uint16 = 2
	FlagTarget  uint16 = 1 << 2
	FlagFire    uint16 = 1 << 3
	FlagBurning uint16 = 1 << 4
	FlagBurned  uint16 = 1 << 5
)

func (t Tile) Code() uint16 {
	var c uint16
	switch {
	case t.Floor:
		c = CodeFloor
	case t.Locked:
		c = CodeLocked
	default:
		c = CodeWall
	}
	if t.Target {
		c |= FlagTarget
	}
	if t.Fire {
		c |= FlagFire
	}
	if t.Burning {
		c |= FlagBurning
	}
	if t.Burned {
		c |= FlagBurned
	}
	return c
}

// Codes returns the per-tile state codes in row-major order.
func (g *Grid) Codes() []uint16 {
	out := make([]uint16, len(g.tiles))
	for i, t := range g.tiles {
		out[i] = t.Code()
	}
	return out
}

// Digest hashes the full tile table and markers.
func (g *Grid) Digest() string {
	h := sha256.New()
	var tmp [8]byte
	put := func(v int64) {
		binary.LittleEndian.PutUint64(tmp[:], uint64(v))
		h.Write(tmp[:])
	}
	put(int64(g.w))
	put(int64(g.h))
	for _, t := range g.tiles {
		put(int64(t.Code()))
		put(int64(t.Counter))
	}
	put(int64(g.target.X))
	put(int64(g.target.Y))
	if g.hasFire {
		put(int64(g.fire.X))
		put(int64(g.fire.Y))
	} else {
		put(-1)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Clone returns a deep copy of g.
func (g *Grid) Clone() *Grid {
	cp := *g
	cp.tiles = append([]Tile(nil), g.tiles...)
	return &cp
}
