package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"

	persistlog "mazefire.ai/internal/persistence/log"
	"mazefire.ai/internal/sim/scheduler"
)

func main() {
	var (
		dataDir = flag.String("data", "./data", "runtime data directory")
		runID   = flag.String("run", "", "run id to replay (from <data>/runs)")
		file    = flag.String("file", "", "path to a .jsonl.zst tick log (overrides -run)")
		list    = flag.Bool("list", false, "list recorded runs and exit")
	)
	flag.Parse()

	if *list {
		ids, err := persistlog.ListRuns(*dataDir)
		if err != nil {
			fmt.Fprintln(os.Stderr, "list runs:", err)
			os.Exit(1)
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		return
	}

	path := strings.TrimSpace(*file)
	if path == "" {
		if *runID == "" {
			fmt.Fprintln(os.Stderr, "missing -run or -file")
			os.Exit(2)
		}
		path = persistlog.RunLogPath(*dataDir, *runID)
	}

	entries, err := persistlog.ReadRun(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read run:", err)
		os.Exit(1)
	}
	rep, err := scheduler.Replay(entries)
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}

	start := entries[0]
	cfg := start.Config
	fmt.Printf("run %s %dx%d %s seed=%d lifespan=%d\n", rep.RunID, cfg.Width, cfg.Height, cfg.Algorithm, start.Seed, cfg.WallLifespan)
	fmt.Printf("replay ok: checked=%s ticks commands=%s final=%s\n", humanize.Comma(int64(rep.Ticks)), humanize.Comma(int64(rep.Commands)), rep.Final[:12])

	if rep.Summary == nil {
		fmt.Println("run did not reach summary")
		return
	}
	sum := rep.Summary
	fmt.Printf("steps=%s samples=%s\n", humanize.Comma(int64(sum.Steps)), humanize.Comma(int64(len(sum.Samples))))
	fmt.Printf("path length   median=%s iqr=%s\n", humanize.Ftoa(sum.PathLength.Median), humanize.Ftoa(sum.PathLength.IQR))
	fmt.Printf("tiles checked median=%s iqr=%s\n", humanize.Ftoa(sum.TilesChecked.Median), humanize.Ftoa(sum.TilesChecked.IQR))

	// Calc timings are wall-clock and are not expected to replay.
	if logged := loggedSummary(entries); logged != nil {
		if logged.Steps != sum.Steps || logged.PathLength != sum.PathLength || logged.TilesChecked != sum.TilesChecked {
			fmt.Fprintf(os.Stderr, "summary mismatch: logged steps=%d path=%+v checked=%+v\n", logged.Steps, logged.PathLength, logged.TilesChecked)
			os.Exit(1)
		}
		fmt.Printf("logged calc ms median=%s iqr=%s\n", humanize.FtoaWithDigits(logged.CalcMs.Median, 3), humanize.FtoaWithDigits(logged.CalcMs.IQR, 3))
	}
}

func loggedSummary(entries []scheduler.TickLogEntry) *scheduler.Summary {
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Kind == scheduler.EntrySummary {
			return entries[i].Summary
		}
	}
	return nil
}
