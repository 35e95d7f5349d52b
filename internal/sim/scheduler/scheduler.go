package scheduler

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"mazefire.ai/internal/sim/grid"
	"mazefire.ai/internal/sim/mazegen"
	"mazefire.ai/internal/sim/pathfind"
)

var ErrInvalidConfig = errors.New("scheduler: invalid config")

type State int

const (
	Idle State = iota
	Running
	Cascading
	Summarized
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Cascading:
		return "cascading"
	case Summarized:
		return "summarized"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(b []byte) error {
	for _, v := range []State{Idle, Running, Cascading, Summarized} {
		if v.String() == string(b) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("scheduler: unknown state %q", b)
}

// Config describes one run.
type Config struct {
	Width        int                `json:"width"`
	Height       int                `json:"height"`
	WallLifespan int                `json:"wall_lifespan"`
	Algorithm    pathfind.Algorithm `json:"algorithm"`
	// Seed 0 asks for a time-based seed; the effective seed is reported by
	// Scheduler.Seed and the start log entry.
	Seed       int64 `json:"seed"`
	DragRadius int   `json:"drag_radius"`

	// Pacing, used by Loop only.
	TickInterval    time.Duration `json:"tick_interval_ns"`
	CascadeInterval time.Duration `json:"cascade_interval_ns"`

	// TargetHint overrides the maze center when set.
	TargetHint *grid.Cell `json:"target_hint,omitempty"`
}

// Clock lets tests pin the path calculation timings.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Scheduler is the run state machine. It is single-threaded: callers must
// serialize Start, Step and the wall commands (Loop does).
type Scheduler struct {
	clock Clock

	state State
	cfg   Config
	seed  int64
	grid  *grid.Grid

	tick  uint64
	steps int

	// working is the route being followed; its head is the fire's cell once
	// the fire has moved onto it. shown is what clients draw.
	working []grid.Cell
	shown   []grid.Cell

	samples []Sample
	summary *Summary

	burning []grid.Cell
	pending []grid.Cell
	visited []bool
}

// New returns an Idle scheduler. A nil clock uses the wall clock.
func New(clock Clock) *Scheduler {
	if clock == nil {
		clock = systemClock{}
	}
	return &Scheduler{clock: clock}
}

// Start generates a fresh maze and enters Running, discarding any run in
// progress. On error the scheduler is left untouched.
func (s *Scheduler) Start(cfg Config) error {
	if err := mazegen.ValidateDimensions(cfg.Width, cfg.Height); err != nil {
		return err
	}
	if cfg.WallLifespan <= 0 {
		return fmt.Errorf("%w: wall lifespan %d", ErrInvalidConfig, cfg.WallLifespan)
	}
	if cfg.DragRadius < 0 {
		return fmt.Errorf("%w: drag radius %d", ErrInvalidConfig, cfg.DragRadius)
	}
	switch cfg.Algorithm {
	case pathfind.BFS, pathfind.DFS, pathfind.AStar:
	default:
		return fmt.Errorf("%w: %s", pathfind.ErrUnknownAlgorithm, cfg.Algorithm)
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = s.clock.Now().UnixNano()
	}
	hint := mazegen.Center(cfg.Width, cfg.Height)
	if cfg.TargetHint != nil {
		hint = *cfg.TargetHint
	}
	res, err := mazegen.Generate(cfg.Width, cfg.Height, rand.New(rand.NewSource(seed)), hint)
	if err != nil {
		return err
	}

	*s = Scheduler{
		clock: s.clock,
		state: Running,
		cfg:   cfg,
		seed:  seed,
		grid:  res.Grid,
	}
	s.shown = s.compute().Path
	return nil
}

// compute runs the configured search from the fire and records a sample.
func (s *Scheduler) compute() pathfind.Result {
	fire, _ := s.grid.Fire()
	t0 := s.clock.Now()
	res := pathfind.Find(s.cfg.Algorithm, s.grid, fire, s.grid.Target())
	elapsed := s.clock.Now().Sub(t0)
	s.samples = append(s.samples, Sample{
		Tick:         s.tick,
		PathLength:   len(res.Path),
		TilesChecked: res.TilesChecked,
		CalcMs:       float64(elapsed) / float64(time.Millisecond),
	})
	return res
}

// PlaceWall locks an unplaced wall at c. It reports false, changing
// nothing, unless the run is Running and c holds an unplaced wall.
func (s *Scheduler) PlaceWall(c grid.Cell) bool {
	if s.state != Running || !s.grid.InBounds(c) {
		return false
	}
	t := s.grid.Tile(c)
	if !t.Unplaced() || t.Target || t.Fire {
		return false
	}
	s.grid.Lock(c, s.cfg.WallLifespan)
	return true
}

// MoveWall drags an unplaced wall from one cell onto an open floor within the
// drag radius: from becomes floor, to becomes a fresh locked wall.
func (s *Scheduler) MoveWall(from, to grid.Cell) bool {
	if s.state != Running || from == to || !s.grid.InBounds(from) || !s.grid.InBounds(to) {
		return false
	}
	if grid.Chebyshev(from, to) > s.cfg.DragRadius {
		return false
	}
	src, dst := s.grid.Tile(from), s.grid.Tile(to)
	if !src.Unplaced() || !dst.Open() {
		return false
	}
	s.grid.SetFloor(from)
	s.grid.Lock(to, s.cfg.WallLifespan)
	return true
}

func (s *Scheduler) State() State   { return s.state }
func (s *Scheduler) Config() Config { return s.cfg }
func (s *Scheduler) Seed() int64    { return s.seed }
func (s *Scheduler) Tick() uint64   { return s.tick }
func (s *Scheduler) Steps() int     { return s.steps }

func (s *Scheduler) Samples() []Sample {
	return append([]Sample(nil), s.samples...)
}

// Grid exposes the live grid for reading. Callers must not mutate it.
func (s *Scheduler) Grid() *grid.Grid { return s.grid }

// Path is the route currently shown from the fire to the target.
func (s *Scheduler) Path() []grid.Cell { return append([]grid.Cell(nil), s.shown...) }

// Summary is nil until the run reaches Summarized.
func (s *Scheduler) Summary() *Summary { return s.summary }

// Digest hashes the grid; empty while Idle.
func (s *Scheduler) Digest() string {
	if s.grid == nil {
		return ""
	}
	return s.grid.Digest()
}
