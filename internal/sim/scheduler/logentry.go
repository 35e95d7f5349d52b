package scheduler

import (
	"fmt"
	"time"

	"mazefire.ai/internal/sim/grid"
)

// Command kinds as they appear in tick logs.
const (
	CmdPlaceWall = "place_wall"
	CmdMoveWall  = "move_wall"
)

// Command is a wall command applied between two steps.
type Command struct {
	Kind string     `json:"kind"`
	At   grid.Cell  `json:"at"`
	To   *grid.Cell `json:"to,omitempty"`
	OK   bool       `json:"ok"`
}

// Apply runs c against s and reports whether it was accepted.
func (c Command) Apply(s *Scheduler) (bool, error) {
	switch c.Kind {
	case CmdPlaceWall:
		return s.PlaceWall(c.At), nil
	case CmdMoveWall:
		if c.To == nil {
			return false, fmt.Errorf("move_wall without destination")
		}
		return s.MoveWall(c.At, *c.To), nil
	default:
		return false, fmt.Errorf("unknown command %q", c.Kind)
	}
}

// Log entry kinds.
const (
	EntryStart   = "start"
	EntryTick    = "tick"
	EntrySummary = "summary"
)

// TickLogEntry is one line of a run's tick log.
type TickLogEntry struct {
	RunID string `json:"run_id"`
	Kind  string `json:"kind"`
	Tick  uint64 `json:"tick"`
	State State  `json:"state"`

	// start only
	Config *Config `json:"config,omitempty"`
	Seed   int64   `json:"seed,omitempty"`

	Commands []Command `json:"commands,omitempty"`
	Fire     grid.Cell `json:"fire"`
	PathLen  int       `json:"path_len"`
	Sample   *Sample   `json:"sample,omitempty"`
	Digest   string    `json:"digest"`

	Summary *Summary `json:"summary,omitempty"`
}

// RunRecord is handed to the run index once a run is summarized.
type RunRecord struct {
	RunID      string
	Config     Config
	Seed       int64
	StartedAt  time.Time
	FinishedAt time.Time
	Summary    Summary
}

// RecordFromLog rebuilds the index record of a finished run from its tick
// log. It reports false when the log has no start or no summary entry. The
// log carries no wall-clock times, so the run is stamped with finishedAt.
func RecordFromLog(entries []TickLogEntry, finishedAt time.Time) (RunRecord, bool) {
	if len(entries) == 0 || entries[0].Kind != EntryStart || entries[0].Config == nil {
		return RunRecord{}, false
	}
	last := entries[len(entries)-1]
	if last.Kind != EntrySummary || last.Summary == nil {
		return RunRecord{}, false
	}
	start := entries[0]
	return RunRecord{
		RunID:      start.RunID,
		Config:     *start.Config,
		Seed:       start.Seed,
		StartedAt:  finishedAt,
		FinishedAt: finishedAt,
		Summary:    *last.Summary,
	}, true
}
