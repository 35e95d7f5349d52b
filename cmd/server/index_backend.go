package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mazefire.ai/internal/persistence/indexdb"
	"mazefire.ai/internal/sim/scheduler"
)

type runIndex interface {
	scheduler.RunSink
	RecentRuns(ctx context.Context, limit int) ([]indexdb.RunRow, error)
	Samples(ctx context.Context, runID string) ([]scheduler.Sample, error)
	Stats() indexdb.Stats
	Close() error
}

func openRunIndex(dataDir string, disableDB bool) (runIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("MAZEFIRE_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		idx, err := indexdb.OpenSQLite(filepath.Join(dataDir, "index", "runs.sqlite"))
		if err != nil {
			return nil, err
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("unsupported MAZEFIRE_INDEX_BACKEND: %s", backend)
	}
}
