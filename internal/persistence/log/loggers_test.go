package log

import (
	"path/filepath"
	"reflect"
	"testing"

	"mazefire.ai/internal/sim/grid"
	"mazefire.ai/internal/sim/pathfind"
	"mazefire.ai/internal/sim/scheduler"
)

func TestTickLogger_RoundTripPerRun(t *testing.T) {
	dir := t.TempDir()
	l := NewTickLogger(dir)

	cfg := scheduler.Config{Width: 5, Height: 5, WallLifespan: 3, Algorithm: pathfind.AStar}
	to := grid.Cell{X: 2, Y: 1}
	a := []scheduler.TickLogEntry{
		{RunID: "a", Kind: scheduler.EntryStart, State: scheduler.Running, Config: &cfg, Seed: 9, Digest: "d0"},
		{RunID: "a", Kind: scheduler.EntryTick, Tick: 1, State: scheduler.Running, Digest: "d1",
			Commands: []scheduler.Command{{Kind: scheduler.CmdMoveWall, At: grid.Cell{X: 1, Y: 1}, To: &to, OK: true}},
			Sample:   &scheduler.Sample{Tick: 1, PathLength: 3, TilesChecked: 7, CalcMs: 0.25}},
	}
	b := []scheduler.TickLogEntry{
		{RunID: "b", Kind: scheduler.EntryStart, State: scheduler.Running, Config: &cfg, Seed: 10, Digest: "e0"},
	}
	for _, e := range append(append([]scheduler.TickLogEntry{}, a...), b...) {
		if err := l.WriteTick(e); err != nil {
			t.Fatalf("WriteTick: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got, err := ReadRun(RunLogPath(dir, "a"))
	if err != nil {
		t.Fatalf("ReadRun: %v", err)
	}
	if !reflect.DeepEqual(got, a) {
		t.Fatalf("run a mismatch:\n%+v\n%+v", got, a)
	}
	ids, err := ListRuns(dir)
	if err != nil || !reflect.DeepEqual(ids, []string{"a", "b"}) {
		t.Fatalf("ListRuns=%v err=%v", ids, err)
	}
}

func TestJSONLZstdWriter_RejectsBadKey(t *testing.T) {
	w := NewJSONLZstdWriter(t.TempDir())
	defer w.Close()
	for _, key := range []string{"", "../x", "a/b"} {
		if err := w.Write(key, map[string]int{"x": 1}); err == nil {
			t.Fatalf("key %q accepted", key)
		}
	}
	if _, err := ReadRun(filepath.Join(t.TempDir(), "missing.jsonl.zst")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestTickLogger_SummaryFlushesRun(t *testing.T) {
	dir := t.TempDir()
	l := NewTickLogger(dir)
	defer l.Close()

	entries := []scheduler.TickLogEntry{
		{RunID: "r", Kind: scheduler.EntryStart, State: scheduler.Running, Digest: "d0"},
		{RunID: "r", Kind: scheduler.EntrySummary, Tick: 4, State: scheduler.Summarized, Digest: "d1",
			Summary: &scheduler.Summary{Ticks: 4, Steps: 3}},
	}
	for _, e := range entries {
		if err := l.WriteTick(e); err != nil {
			t.Fatalf("WriteTick: %v", err)
		}
	}
	// Readable without closing the logger.
	got, err := ReadRun(RunLogPath(dir, "r"))
	if err != nil {
		t.Fatalf("ReadRun: %v", err)
	}
	if len(got) != 2 || got[1].Summary == nil || got[1].Summary.Steps != 3 {
		t.Fatalf("got=%+v", got)
	}
}
