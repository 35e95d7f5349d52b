package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	persistlog "mazefire.ai/internal/persistence/log"
	"mazefire.ai/internal/sim/scheduler"
	"mazefire.ai/internal/sim/tuning"
	"mazefire.ai/internal/transport/observer"
	"mazefire.ai/internal/transport/ws"
)

func main() {
	// A missing .env is fine; real env vars win over it.
	_ = godotenv.Load()

	var (
		addr       = flag.String("addr", envString("MAZEFIRE_ADDR", ":8080"), "http listen address")
		dataDir    = flag.String("data", envString("MAZEFIRE_DATA", "./data"), "runtime data directory")
		tuningPath = flag.String("tuning", envString("MAZEFIRE_TUNING", "./configs/tuning.yaml"), "path to tuning.yaml")
		disableDB  = flag.Bool("disable_db", false, "disable the run index")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", *tuningPath)
		tune = tuning.Defaults()
	}
	_ = os.MkdirAll(*dataDir, 0o755)

	// Optional: read-model index (does not affect run determinism).
	idx, err := openRunIndex(*dataDir, *disableDB)
	if err != nil {
		logger.Fatalf("open run index: %v", err)
	}
	if idx != nil {
		defer idx.Close()
	}

	tickLog := persistlog.NewTickLogger(*dataDir)
	defer tickLog.Close()

	loopCfg := scheduler.LoopConfig{Logger: logger, TickLog: tickLog}
	if idx != nil {
		loopCfg.Runs = idx
	}
	loop := scheduler.NewLoop(loopCfg)

	ctx, cancel := signalContext()
	defer cancel()

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		if err := loop.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("loop stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeIndexMetrics(rw, idx)
	})
	var obsIndex observer.RunIndex
	if idx != nil {
		obsIndex = idx
	}
	obsSrv := observer.NewServer(obsIndex, tune, logger)
	mux.HandleFunc("/v1/bootstrap", obsSrv.BootstrapHandler())
	if idx != nil {
		mux.HandleFunc("/v1/runs", obsSrv.RunsHandler())
		mux.HandleFunc("/v1/runs/samples", obsSrv.SamplesHandler())
	} else {
		logger.Printf("run index disabled; /v1/runs not served")
	}
	if envBool("MAZEFIRE_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	mux.HandleFunc("/v1/ws", ws.NewServer(loop, tune, logger).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s (data=%s tuning=%s)", *addr, filepath.Clean(*dataDir), *tuningPath)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
	cancel()
	<-loopDone
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func writeIndexMetrics(rw http.ResponseWriter, idx runIndex) {
	if idx == nil {
		return
	}
	s := idx.Stats()
	fmt.Fprintf(rw, "# HELP mazefire_index_queue_depth Current run index queue depth.\n")
	fmt.Fprintf(rw, "# TYPE mazefire_index_queue_depth gauge\n")
	fmt.Fprintf(rw, "mazefire_index_queue_depth %d\n", s.QueueDepth)

	fmt.Fprintf(rw, "# HELP mazefire_index_dropped_runs_total Runs dropped because the index queue was full.\n")
	fmt.Fprintf(rw, "# TYPE mazefire_index_dropped_runs_total counter\n")
	fmt.Fprintf(rw, "mazefire_index_dropped_runs_total %d\n", s.DropRunTotal)
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
