package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"mazefire.ai/internal/persistence/indexdb"
	persistlog "mazefire.ai/internal/persistence/log"
	"mazefire.ai/internal/sim/scheduler"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "db":
			dbCmd(os.Args[2:])
			return
		case "reindex":
			reindexCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	ids, err := persistlog.ListRuns(*dataDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, id := range ids {
		fmt.Println(id)
	}
}

// reindexCmd rebuilds the run index from the tick logs. Runs that never
// reached a summary are skipped.
func reindexCmd(args []string) {
	fs := flag.NewFlagSet("reindex", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (optional; defaults to <data>/index/runs.sqlite)")
	_ = fs.Parse(args)

	path := *dbPath
	if path == "" {
		path = defaultDBPath(*dataDir)
	}
	ids, err := persistlog.ListRuns(*dataDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list runs:", err)
		os.Exit(1)
	}
	idx, err := indexdb.OpenSQLite(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open index:", err)
		os.Exit(1)
	}
	defer idx.Close()

	var indexed, skipped int
	for _, id := range ids {
		logPath := persistlog.RunLogPath(*dataDir, id)
		entries, err := persistlog.ReadRun(logPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", id, err)
			skipped++
			continue
		}
		finished := time.Now().UTC()
		if st, err := os.Stat(logPath); err == nil {
			finished = st.ModTime().UTC()
		}
		rec, ok := scheduler.RecordFromLog(entries, finished)
		if !ok {
			skipped++
			continue
		}
		idx.RecordRun(rec)
		indexed++
		// Keep the queue short; RecordRun drops when full.
		if indexed%256 == 0 {
			if err := idx.Sync(context.Background()); err != nil {
				fmt.Fprintln(os.Stderr, "sync:", err)
				os.Exit(1)
			}
		}
	}
	if err := idx.Sync(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "sync:", err)
		os.Exit(1)
	}
	if st := idx.Stats(); st.DropRunTotal > 0 {
		fmt.Fprintf(os.Stderr, "dropped %d runs\n", st.DropRunTotal)
		os.Exit(1)
	}
	fmt.Printf("reindex ok: indexed=%d skipped=%d db=%s\n", indexed, skipped, path)
}

func defaultDBPath(dataDir string) string {
	return filepath.Join(dataDir, "index", "runs.sqlite")
}
