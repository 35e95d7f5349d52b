package log

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"mazefire.ai/internal/sim/scheduler"
)

// TickLogger writes each run's entries to <dataDir>/runs/<run_id>.jsonl.zst.
type TickLogger struct{ w *JSONLZstdWriter }

func NewTickLogger(dataDir string) *TickLogger {
	return &TickLogger{w: NewJSONLZstdWriter(RunsDir(dataDir))}
}

// WriteTick appends e to its run's file. The summary entry closes the file
// so the log is complete on disk as soon as the run ends.
func (l *TickLogger) WriteTick(e scheduler.TickLogEntry) error {
	if err := l.w.Write(e.RunID, e); err != nil {
		return err
	}
	if e.Kind == scheduler.EntrySummary {
		return l.w.Close()
	}
	return nil
}

func (l *TickLogger) Close() error { return l.w.Close() }

func RunsDir(dataDir string) string { return filepath.Join(dataDir, "runs") }

func RunLogPath(dataDir, runID string) string {
	return filepath.Join(RunsDir(dataDir), runID+".jsonl.zst")
}

// ReadRun loads a run's tick log in write order.
func ReadRun(path string) ([]scheduler.TickLogEntry, error) {
	var out []scheduler.TickLogEntry
	err := ReadJSONL(path, func(line []byte) error {
		var e scheduler.TickLogEntry
		if err := json.Unmarshal(line, &e); err != nil {
			return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		out = append(out, e)
		return nil
	})
	return out, err
}

// ListRuns returns the run ids with a tick log under dataDir, sorted.
func ListRuns(dataDir string) ([]string, error) {
	ents, err := os.ReadDir(RunsDir(dataDir))
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range ents {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".jsonl.zst") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".jsonl.zst"))
	}
	sort.Strings(ids)
	return ids, nil
}
