package scheduler

import (
	"mazefire.ai/internal/protocol"
	"mazefire.ai/internal/sim/encoding"
	"mazefire.ai/internal/sim/grid"
	"mazefire.ai/internal/sim/pathfind"
)

func pos(c grid.Cell) [2]int { return [2]int{c.X, c.Y} }

func positions(cs []grid.Cell) [][2]int {
	if len(cs) == 0 {
		return nil
	}
	out := make([][2]int, len(cs))
	for i, c := range cs {
		out[i] = pos(c)
	}
	return out
}

func sampleObs(s *Sample) *protocol.SampleObs {
	if s == nil {
		return nil
	}
	return &protocol.SampleObs{
		Tick:         s.Tick,
		PathLength:   s.PathLength,
		TilesChecked: s.TilesChecked,
		CalcMs:       s.CalcMs,
	}
}

func startedMsg(runID string, s *Scheduler) protocol.StartedMsg {
	cfg := s.Config()
	fire, _ := s.Grid().Fire()
	return protocol.StartedMsg{
		Type:            protocol.TypeStarted,
		ProtocolVersion: protocol.Version,
		RunID:           runID,
		Seed:            s.Seed(),
		Width:           cfg.Width,
		Height:          cfg.Height,
		WallLifespan:    cfg.WallLifespan,
		TickMs:          int(cfg.TickInterval.Milliseconds()),
		Algorithm:       cfg.Algorithm.String(),
		DragRadius:      cfg.DragRadius,
		Target:          pos(s.Grid().Target()),
		Fire:            pos(fire),
	}
}

// tickMsg renders the current run state. res is nil for the catch-up frame
// sent to new subscribers.
func tickMsg(runID string, s *Scheduler, res *StepResult) protocol.TickMsg {
	g := s.Grid()
	path := s.Path()
	shapes := pathfind.Shapes(path)
	shapeNames := make([]string, len(shapes))
	for i, sh := range shapes {
		shapeNames[i] = string(sh)
	}
	fire, ok := g.Fire()
	if !ok {
		fire = g.Target()
	}

	var walls []protocol.WallObs
	for _, c := range g.LockedWalls() {
		walls = append(walls, protocol.WallObs{Pos: pos(c), Counter: g.Tile(c).Counter})
	}

	m := protocol.TickMsg{
		Type:            protocol.TypeTick,
		ProtocolVersion: protocol.Version,
		RunID:           runID,
		Tick:            s.Tick(),
		State:           s.State().String(),
		Fire:            pos(fire),
		Target:          pos(g.Target()),
		Path:            positions(path),
		Shapes:          shapeNames,
		Tiles:           encoding.EncodeTiles(g.Codes()),
		Walls:           walls,
		Digest:          g.Digest(),
	}
	if res != nil {
		m.Sample = sampleObs(res.Sample)
		m.Crumbled = positions(res.Crumbled)
		m.Collapsed = positions(res.Collapsed)
		m.Ignited = positions(res.Ignited)
		m.Extinguished = positions(res.Extinguished)
	}
	return m
}

func summaryMsg(runID string, alg pathfind.Algorithm, sum *Summary) protocol.SummaryMsg {
	samples := make([]protocol.SampleObs, len(sum.Samples))
	for i := range sum.Samples {
		samples[i] = *sampleObs(&sum.Samples[i])
	}
	spread := func(s Spread) protocol.SpreadObs { return protocol.SpreadObs{Median: s.Median, IQR: s.IQR} }
	return protocol.SummaryMsg{
		Type:            protocol.TypeSummary,
		ProtocolVersion: protocol.Version,
		RunID:           runID,
		Algorithm:       alg.String(),
		Ticks:           sum.Ticks,
		Steps:           sum.Steps,
		Samples:         samples,
		PathLength:      spread(sum.PathLength),
		TilesChecked:    spread(sum.TilesChecked),
		CalcMs:          spread(sum.CalcMs),
	}
}
