package indexdb

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"mazefire.ai/internal/sim/pathfind"
	"mazefire.ai/internal/sim/scheduler"
)

func testRecord(id string, finished time.Time) scheduler.RunRecord {
	return scheduler.RunRecord{
		RunID: id,
		Config: scheduler.Config{
			Width:        13,
			Height:       13,
			WallLifespan: 10,
			Algorithm:    pathfind.AStar,
			Seed:         7,
		},
		Seed:       7,
		StartedAt:  finished.Add(-time.Minute),
		FinishedAt: finished,
		Summary: scheduler.Summary{
			Ticks: 12,
			Steps: 9,
			Samples: []scheduler.Sample{
				{Tick: 0, PathLength: 10, TilesChecked: 40, CalcMs: 0.5},
				{Tick: 3, PathLength: 8, TilesChecked: 30, CalcMs: 0.25},
			},
			PathLength:   scheduler.Spread{Median: 10, IQR: 2},
			TilesChecked: scheduler.Spread{Median: 40, IQR: 10},
			CalcMs:       scheduler.Spread{Median: 0.5, IQR: 0.25},
		},
	}
}

func TestSQLiteIndex_RecordAndQuery(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "index.db")

	idx, err := OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	idx.RecordRun(testRecord("run-a", base))
	idx.RecordRun(testRecord("run-b", base.Add(time.Second)))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := idx.Sync(ctx); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	runs, err := idx.RecentRuns(ctx, 10)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 2 || runs[0].RunID != "run-b" || runs[1].RunID != "run-a" {
		t.Fatalf("runs=%+v", runs)
	}
	r := runs[0]
	if r.Algorithm != "astar" || r.Width != 13 || r.Ticks != 12 || r.Steps != 9 || r.Samples != 2 {
		t.Fatalf("row=%+v", r)
	}
	if r.PathMedian != 10 || r.CheckedIQR != 10 || r.CalcIQRMs != 0.25 {
		t.Fatalf("spreads=%+v", r)
	}

	samples, err := idx.Samples(ctx, "run-a")
	if err != nil {
		t.Fatalf("Samples: %v", err)
	}
	if len(samples) != 2 || samples[1].Tick != 3 || samples[1].TilesChecked != 30 {
		t.Fatalf("samples=%+v", samples)
	}

	limited, err := idx.RecentRuns(ctx, 1)
	if err != nil || len(limited) != 1 {
		t.Fatalf("limit: %v %+v", err, limited)
	}
}

func TestSQLiteIndex_RerecordReplacesSamples(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "index.db")
	idx, err := OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}

	rec := testRecord("run-a", time.Now().UTC())
	idx.RecordRun(rec)
	rec.Summary.Samples = rec.Summary.Samples[:1]
	idx.RecordRun(rec)
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// Records after Close are ignored.
	idx.RecordRun(rec)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM samples WHERE run_id='run-a'`).Scan(&n); err != nil {
		t.Fatalf("count samples: %v", err)
	}
	if n != 1 {
		t.Fatalf("samples=%d want 1", n)
	}
	var version string
	if err := db.QueryRow(`SELECT value FROM meta WHERE key='schema_version'`).Scan(&version); err != nil || version != "1" {
		t.Fatalf("schema_version=%q err=%v", version, err)
	}
}

func TestSQLiteIndex_DropsWhenFull(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.RecordRun(testRecord("a", time.Now()))
	s.RecordRun(testRecord("b", time.Now()))
	st := s.Stats()
	if st.QueueDepth != 1 || st.DropRunTotal != 1 {
		t.Fatalf("stats=%+v", st)
	}
}

func TestOpenSQLite_EmptyPath(t *testing.T) {
	if _, err := OpenSQLite(""); err == nil {
		t.Fatalf("expected error")
	}
}
