package scheduler

import (
	"fmt"
)

// ReplayReport is the outcome of a successful Replay.
type ReplayReport struct {
	RunID    string
	Ticks    int
	Commands int
	Summary  *Summary
	Final    string
}

// Replay re-simulates a run from its tick log, entries in write order. Each
// tick's digest must match; the first mismatch is returned as an error.
func Replay(entries []TickLogEntry) (ReplayReport, error) {
	var rep ReplayReport
	if len(entries) == 0 || entries[0].Kind != EntryStart || entries[0].Config == nil {
		return rep, fmt.Errorf("replay: log does not begin with a start entry")
	}
	start := entries[0]
	cfg := *start.Config
	cfg.Seed = start.Seed
	if cfg.Seed == 0 {
		return rep, fmt.Errorf("replay: start entry has no seed")
	}

	s := New(nil)
	if err := s.Start(cfg); err != nil {
		return rep, fmt.Errorf("replay: start: %w", err)
	}
	if got := s.Digest(); start.Digest != "" && got != start.Digest {
		return rep, fmt.Errorf("replay: start digest mismatch: got %s want %s", got, start.Digest)
	}
	rep.RunID = start.RunID

	for _, e := range entries[1:] {
		switch e.Kind {
		case EntryTick:
			for _, c := range e.Commands {
				ok, err := c.Apply(s)
				if err != nil {
					return rep, fmt.Errorf("replay: tick %d: %w", e.Tick, err)
				}
				if ok != c.OK {
					return rep, fmt.Errorf("replay: tick %d: %s at %s accepted=%v, logged %v", e.Tick, c.Kind, c.At, ok, c.OK)
				}
				rep.Commands++
			}
			res := s.Step()
			if res.Tick != e.Tick {
				return rep, fmt.Errorf("replay: tick mismatch: got %d want %d", res.Tick, e.Tick)
			}
			if got := s.Digest(); got != e.Digest {
				return rep, fmt.Errorf("replay: tick %d digest mismatch: got %s want %s", e.Tick, got, e.Digest)
			}
			rep.Ticks++
		case EntrySummary:
			if s.State() != Summarized {
				return rep, fmt.Errorf("replay: summary logged while %s", s.State())
			}
		}
	}
	rep.Summary = s.Summary()
	rep.Final = s.Digest()
	return rep, nil
}
