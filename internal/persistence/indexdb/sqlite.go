package indexdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"mazefire.ai/internal/sim/scheduler"
)

// SQLiteIndex is a queryable index of finished runs. Writes are queued and
// applied by a single writer goroutine; the tick logs stay the source of
// truth, so a full queue drops records instead of stalling the loop.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropRunTotal atomic.Uint64
}

type reqKind int

const (
	reqRun reqKind = iota + 1
	reqSync
)

type req struct {
	kind reqKind
	run  scheduler.RunRecord
	done chan struct{}
}

type Stats struct {
	QueueDepth   int    `json:"queue_depth"`
	DropRunTotal uint64 `json:"drop_run_total"`
}

// RunRow is one indexed run.
type RunRow struct {
	RunID         string  `json:"run_id"`
	Algorithm     string  `json:"algorithm"`
	Width         int     `json:"width"`
	Height        int     `json:"height"`
	WallLifespan  int     `json:"wall_lifespan"`
	Seed          int64   `json:"seed"`
	Ticks         int64   `json:"ticks"`
	Steps         int     `json:"steps"`
	Samples       int     `json:"samples"`
	PathMedian    float64 `json:"path_median"`
	PathIQR       float64 `json:"path_iqr"`
	CheckedMedian float64 `json:"checked_median"`
	CheckedIQR    float64 `json:"checked_iqr"`
	CalcMedianMs  float64 `json:"calc_median_ms"`
	CalcIQRMs     float64 `json:"calc_iqr_ms"`
	StartedAt     string  `json:"started_at"`
	FinishedAt    string  `json:"finished_at"`
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 1024),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			algorithm TEXT NOT NULL,
			width INTEGER NOT NULL,
			height INTEGER NOT NULL,
			wall_lifespan INTEGER NOT NULL,
			seed INTEGER NOT NULL,
			ticks INTEGER NOT NULL,
			steps INTEGER NOT NULL,
			samples INTEGER NOT NULL,
			path_median REAL NOT NULL,
			path_iqr REAL NOT NULL,
			checked_median REAL NOT NULL,
			checked_iqr REAL NOT NULL,
			calc_median_ms REAL NOT NULL,
			calc_iqr_ms REAL NOT NULL,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_finished ON runs(finished_at);`,
		`CREATE TABLE IF NOT EXISTS samples (
			run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			tick INTEGER NOT NULL,
			path_length INTEGER NOT NULL,
			tiles_checked INTEGER NOT NULL,
			calc_ms REAL NOT NULL,
			PRIMARY KEY (run_id, seq)
		);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// RecordRun queues a finished run. It never blocks.
func (s *SQLiteIndex) RecordRun(r scheduler.RunRecord) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqRun, run: r}:
	default:
		s.dropRunTotal.Add(1)
	}
}

// Sync waits until every queued record has been committed.
func (s *SQLiteIndex) Sync(ctx context.Context) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	done := make(chan struct{})
	select {
	case s.ch <- req{kind: reqSync, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{QueueDepth: len(s.ch), DropRunTotal: s.dropRunTotal.Load()}
}

const runColumns = `run_id,algorithm,width,height,wall_lifespan,seed,ticks,steps,samples,path_median,path_iqr,checked_median,checked_iqr,calc_median_ms,calc_iqr_ms,started_at,finished_at`

// RecentRuns lists up to limit runs, newest first.
func (s *SQLiteIndex) RecentRuns(ctx context.Context, limit int) ([]RunRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY finished_at DESC, run_id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRow
	for rows.Next() {
		var r RunRow
		if err := rows.Scan(
			&r.RunID, &r.Algorithm, &r.Width, &r.Height, &r.WallLifespan, &r.Seed,
			&r.Ticks, &r.Steps, &r.Samples,
			&r.PathMedian, &r.PathIQR, &r.CheckedMedian, &r.CheckedIQR, &r.CalcMedianMs, &r.CalcIQRMs,
			&r.StartedAt, &r.FinishedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Samples returns a run's path samples in recording order.
func (s *SQLiteIndex) Samples(ctx context.Context, runID string) ([]scheduler.Sample, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT tick,path_length,tiles_checked,calc_ms FROM samples WHERE run_id=? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []scheduler.Sample
	for rows.Next() {
		var (
			sm   scheduler.Sample
			tick int64
		)
		if err := rows.Scan(&tick, &sm.PathLength, &sm.TilesChecked, &sm.CalcMs); err != nil {
			return nil, err
		}
		sm.Tick = uint64(tick)
		out = append(out, sm)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertRun, _ := s.db.Prepare(`INSERT OR REPLACE INTO runs(` + runColumns + `) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	deleteSamples, _ := s.db.Prepare(`DELETE FROM samples WHERE run_id=?`)
	insertSample, _ := s.db.Prepare(`INSERT INTO samples(run_id,seq,tick,path_length,tiles_checked,calc_ms) VALUES(?,?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertRun, deleteSamples, insertSample} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var tx *sql.Tx
	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
	}

	for r := range s.ch {
		switch r.kind {
		case reqSync:
			commit()
			close(r.done)
			continue
		case reqRun:
			begin()
			if tx == nil || insertRun == nil || deleteSamples == nil || insertSample == nil {
				continue
			}
			if err := writeRun(tx, insertRun, deleteSamples, insertSample, r.run); err != nil {
				rollback()
				continue
			}
		}
		// Reads share the single connection; commit once the queue drains.
		if len(s.ch) == 0 {
			commit()
		}
	}
	commit()
}

func writeRun(tx *sql.Tx, insertRun, deleteSamples, insertSample *sql.Stmt, r scheduler.RunRecord) error {
	sum := r.Summary
	if _, err := tx.Stmt(insertRun).Exec(
		r.RunID,
		r.Config.Algorithm.String(),
		r.Config.Width,
		r.Config.Height,
		r.Config.WallLifespan,
		r.Seed,
		int64(sum.Ticks),
		sum.Steps,
		len(sum.Samples),
		sum.PathLength.Median, sum.PathLength.IQR,
		sum.TilesChecked.Median, sum.TilesChecked.IQR,
		sum.CalcMs.Median, sum.CalcMs.IQR,
		r.StartedAt.UTC().Format(time.RFC3339Nano),
		r.FinishedAt.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return err
	}
	if _, err := tx.Stmt(deleteSamples).Exec(r.RunID); err != nil {
		return err
	}
	for i, sm := range sum.Samples {
		if _, err := tx.Stmt(insertSample).Exec(r.RunID, i, int64(sm.Tick), sm.PathLength, sm.TilesChecked, sm.CalcMs); err != nil {
			return err
		}
	}
	return nil
}
