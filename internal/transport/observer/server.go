package observer

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"mazefire.ai/internal/persistence/indexdb"
	"mazefire.ai/internal/protocol"
	"mazefire.ai/internal/sim/scheduler"
	"mazefire.ai/internal/sim/tuning"
)

// RunIndex is the read side of the run index.
type RunIndex interface {
	RecentRuns(ctx context.Context, limit int) ([]indexdb.RunRow, error)
	Samples(ctx context.Context, runID string) ([]scheduler.Sample, error)
}

// Server serves read-only run history over plain HTTP. index may be nil when
// only BootstrapHandler is mounted.
type Server struct {
	index  RunIndex
	tuning tuning.Tuning
	log    *log.Logger
}

func NewServer(index RunIndex, t tuning.Tuning, logger *log.Logger) *Server {
	return &Server{index: index, tuning: t, log: logger}
}

type BootstrapResponse struct {
	ProtocolVersion string         `json:"protocol_version"`
	Defaults        tuning.Tuning  `json:"defaults"`
	SpeedNames      []string       `json:"speed_names"`
	Sizes           map[string]int `json:"sizes"`
}

// BootstrapHandler tells clients what START_RUN will default to.
func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		writeJSON(rw, http.StatusOK, BootstrapResponse{
			ProtocolVersion: protocol.Version,
			Defaults:        s.tuning,
			SpeedNames:      s.tuning.SpeedNames(),
			Sizes:           s.tuning.Sizes,
		})
	}
}

// RunsHandler lists recent runs, newest first. ?limit= caps the list at 200.
func (s *Server) RunsHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		limit := 20
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				http.Error(rw, "bad limit", http.StatusBadRequest)
				return
			}
			limit = n
		}
		if limit > 200 {
			limit = 200
		}
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		runs, err := s.index.RecentRuns(ctx, limit)
		if err != nil {
			s.logf("recent runs: %v", err)
			http.Error(rw, "index unavailable", http.StatusInternalServerError)
			return
		}
		if runs == nil {
			runs = []indexdb.RunRow{}
		}
		writeJSON(rw, http.StatusOK, map[string]any{"runs": runs})
	}
}

// SamplesHandler returns the path samples of ?run_id=.
func (s *Server) SamplesHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		runID := r.URL.Query().Get("run_id")
		if runID == "" {
			http.Error(rw, "missing run_id", http.StatusBadRequest)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		samples, err := s.index.Samples(ctx, runID)
		if err != nil {
			s.logf("samples %s: %v", runID, err)
			http.Error(rw, "index unavailable", http.StatusInternalServerError)
			return
		}
		if len(samples) == 0 {
			http.Error(rw, "unknown run", http.StatusNotFound)
			return
		}
		writeJSON(rw, http.StatusOK, map[string]any{"run_id": runID, "samples": samples})
	}
}

func (s *Server) logf(format string, args ...any) {
	if s.log != nil {
		s.log.Printf(format, args...)
	}
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}
