package scheduler

import (
	"mazefire.ai/internal/sim/grid"
	"mazefire.ai/internal/sim/pathfind"
)

// StepResult describes what one Step changed.
type StepResult struct {
	Tick  uint64
	State State

	Fire  grid.Cell
	Moved bool
	// Path is the route still ahead of the fire.
	Path []grid.Cell
	// Sample is set when the path was recomputed this step.
	Sample *Sample

	Crumbled  []grid.Cell
	Collapsed []grid.Cell

	Ignited      []grid.Cell
	Extinguished []grid.Cell

	Summary *Summary
}

// Step advances the run by one tick while Running or by one cascade ring
// while Cascading. It is a no-op in Idle and Summarized.
func (s *Scheduler) Step() StepResult {
	switch s.state {
	case Running:
		return s.stepRunning()
	case Cascading:
		return s.stepCascade()
	default:
		return StepResult{Tick: s.tick, State: s.state}
	}
}

func (s *Scheduler) stepRunning() StepResult {
	s.tick++
	res := StepResult{Tick: s.tick}

	reuse := s.cfg.Algorithm == pathfind.DFS && len(s.working) > 0 && !s.obstructed()
	if reuse {
		s.working = s.working[1:]
	} else {
		s.working = s.compute().Path
		last := s.samples[len(s.samples)-1]
		res.Sample = &last
	}

	if len(s.working) > 0 {
		s.grid.PlaceFire(s.working[0])
		s.steps++
		res.Moved = true
		res.Crumbled = s.ageWalls()
		s.shown = append([]grid.Cell(nil), s.working[1:]...)
	} else {
		res.Collapsed = s.collapseWeakest()
		s.shown = nil
	}

	fire, _ := s.grid.Fire()
	res.Fire = fire
	res.Path = s.Path()
	if fire == s.grid.Target() {
		s.enterCascade()
	}
	res.State = s.state
	return res
}

// obstructed reports whether a wall now stands on the working route.
func (s *Scheduler) obstructed() bool {
	for _, c := range s.working {
		if !s.grid.IsFloor(c) {
			return true
		}
	}
	return false
}

// ageWalls decrements every locked wall; walls reaching zero crumble.
func (s *Scheduler) ageWalls() []grid.Cell {
	var crumbled []grid.Cell
	for _, c := range s.grid.LockedWalls() {
		if s.grid.Decrement(c) {
			crumbled = append(crumbled, c)
		}
	}
	return crumbled
}

// collapseWeakest crumbles every locked wall that shares the lowest counter.
func (s *Scheduler) collapseWeakest() []grid.Cell {
	walls := s.grid.LockedWalls()
	if len(walls) == 0 {
		return nil
	}
	lowest := s.grid.Tile(walls[0]).Counter
	for _, c := range walls[1:] {
		if n := s.grid.Tile(c).Counter; n < lowest {
			lowest = n
		}
	}
	var out []grid.Cell
	for _, c := range walls {
		if s.grid.Tile(c).Counter == lowest {
			s.grid.Crumble(c)
			out = append(out, c)
		}
	}
	return out
}

func (s *Scheduler) enterCascade() {
	target := s.grid.Target()
	s.grid.ClearFire()
	s.working, s.shown = nil, nil
	s.visited = make([]bool, s.grid.Len())
	s.visited[s.grid.Index(target)] = true
	s.burning = nil
	s.pending = []grid.Cell{target}
	s.state = Cascading
}

// Ring expansion order: left, down, right, up.
var ringDirs = [4][2]int{{-1, 0}, {0, -1}, {1, 0}, {0, 1}}

// stepCascade puts out the ring lit by the previous call and lights the
// next one. Every cell is lit exactly once; the run is summarized after
// the last ring goes out.
func (s *Scheduler) stepCascade() StepResult {
	s.tick++
	res := StepResult{Tick: s.tick, Fire: s.grid.Target()}

	for _, c := range s.burning {
		s.grid.SetBurning(c, false)
	}
	res.Extinguished = s.burning
	s.burning = nil

	if len(s.pending) == 0 {
		s.state = Summarized
		s.summary = summarize(s.tick, s.steps, s.samples)
		res.State = s.state
		res.Summary = s.summary
		return res
	}

	var next []grid.Cell
	for _, c := range s.pending {
		s.grid.SetBurning(c, true)
		if !s.grid.IsFloor(c) {
			s.grid.Lock(c, s.cfg.WallLifespan)
			s.grid.Crumble(c)
			res.Crumbled = append(res.Crumbled, c)
		}
		for _, d := range ringDirs {
			n := c.Add(d[0], d[1])
			if !s.grid.InBounds(n) {
				continue
			}
			if i := s.grid.Index(n); !s.visited[i] {
				s.visited[i] = true
				next = append(next, n)
			}
		}
	}
	res.Ignited = s.pending
	s.burning = s.pending
	s.pending = next
	res.State = s.state
	return res
}
