package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"mazefire.ai/internal/protocol"
	"mazefire.ai/internal/sim/grid"
	"mazefire.ai/internal/sim/mazegen"
	"mazefire.ai/internal/sim/pathfind"
)

type memLog struct {
	mu      sync.Mutex
	entries []TickLogEntry
}

func (m *memLog) WriteTick(e TickLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *memLog) snapshot() []TickLogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]TickLogEntry(nil), m.entries...)
}

type chanSink chan RunRecord

func (c chanSink) RecordRun(r RunRecord) { c <- r }

func startLoop(t *testing.T) (*Loop, *memLog, chanSink) {
	t.Helper()
	return startLoopIDs(t, "run-1")
}

// startLoopIDs hands out ids in order, repeating the last one.
func startLoopIDs(t *testing.T, ids ...string) (*Loop, *memLog, chanSink) {
	t.Helper()
	logs := &memLog{}
	runs := make(chanSink, 4)
	n := 0
	l := NewLoop(LoopConfig{
		TickLog: logs,
		Runs:    runs,
		NewRunID: func() string {
			id := ids[n]
			if n < len(ids)-1 {
				n++
			}
			return id
		},
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return l, logs, runs
}

func fastConfig() Config {
	return Config{
		Width:           5,
		Height:          5,
		WallLifespan:    3,
		Algorithm:       pathfind.BFS,
		Seed:            3,
		DragRadius:      2,
		TickInterval:    time.Millisecond,
		CascadeInterval: time.Millisecond,
	}
}

func TestLoop_RunToSummaryAndReplay(t *testing.T) {
	l, logs, runs := startLoop(t)

	out := make(chan []byte, 512)
	subResp := make(chan uint64, 1)
	l.Subscribe() <- Subscription{Out: out, Resp: subResp}
	<-subResp

	resp := make(chan StartResponse, 1)
	cfg := fastConfig()
	cfg.TickInterval = 20 * time.Millisecond
	l.Starts() <- StartRequest{Config: cfg, Resp: resp}
	sr := <-resp
	if sr.Err != nil || sr.RunID != "run-1" || sr.Seed != 3 {
		t.Fatalf("start response=%+v", sr)
	}

	// (1,1) is always an interior pillar on the two-step lattice.
	okCh := make(chan bool, 1)
	l.Walls() <- WallRequest{Command: Command{Kind: CmdPlaceWall, At: grid.Cell{X: 1, Y: 1}}, Resp: okCh}
	if !<-okCh {
		t.Fatalf("place on pillar rejected")
	}
	l.Walls() <- WallRequest{Command: Command{Kind: CmdPlaceWall, At: grid.Cell{X: 1, Y: 1}}, Resp: okCh}
	if <-okCh {
		t.Fatalf("second place on the same cell accepted")
	}

	var rec RunRecord
	select {
	case rec = <-runs:
	case <-time.After(10 * time.Second):
		t.Fatalf("run did not finish")
	}
	if rec.RunID != "run-1" || rec.Seed != 3 || rec.Summary.Steps == 0 {
		t.Fatalf("record=%+v", rec)
	}

	entries := logs.snapshot()
	if entries[0].Kind != EntryStart || entries[len(entries)-1].Kind != EntrySummary {
		t.Fatalf("log framing: first=%s last=%s", entries[0].Kind, entries[len(entries)-1].Kind)
	}
	rep, err := Replay(entries)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if rep.Commands != 2 || rep.Summary == nil || rep.Final != entries[len(entries)-1].Digest {
		t.Fatalf("replay report=%+v", rep)
	}
	if rep.Summary.Steps != rec.Summary.Steps || rep.Summary.Ticks != rec.Summary.Ticks {
		t.Fatalf("replayed summary differs: %+v vs %+v", rep.Summary, rec.Summary)
	}

	rebuilt, ok := RecordFromLog(entries, rec.FinishedAt)
	if !ok || rebuilt.RunID != rec.RunID || rebuilt.Seed != rec.Seed || rebuilt.Summary.Steps != rec.Summary.Steps {
		t.Fatalf("RecordFromLog=%+v ok=%v", rebuilt, ok)
	}
	if _, ok := RecordFromLog(entries[:len(entries)-1], rec.FinishedAt); ok {
		t.Fatalf("RecordFromLog accepted a log without summary")
	}

	// Subscriber saw the whole run.
	var types []string
	for len(out) > 0 {
		b := <-out
		base, err := protocol.DecodeBase(b)
		if err != nil {
			t.Fatalf("DecodeBase: %v", err)
		}
		if base.Type == protocol.TypeTick {
			if err := protocol.Validate(protocol.TypeTick, b); err != nil {
				t.Fatalf("tick frame invalid: %v\n%s", err, b)
			}
		}
		types = append(types, base.Type)
	}
	if len(types) < 4 || types[0] != protocol.TypeStarted || types[len(types)-1] != protocol.TypeSummary {
		t.Fatalf("frames=%v", types)
	}
}

func TestLoop_InvalidStart(t *testing.T) {
	l, logs, _ := startLoop(t)
	resp := make(chan StartResponse, 1)
	cfg := fastConfig()
	cfg.Width = 6
	l.Starts() <- StartRequest{Config: cfg, Resp: resp}
	sr := <-resp
	if !errors.Is(sr.Err, mazegen.ErrInvalidDimension) {
		t.Fatalf("expected ErrInvalidDimension, got %v", sr.Err)
	}
	okCh := make(chan bool, 1)
	l.Walls() <- WallRequest{Command: Command{Kind: CmdPlaceWall, At: grid.Cell{X: 1, Y: 1}}, Resp: okCh}
	if <-okCh {
		t.Fatalf("wall accepted with no run")
	}
	if n := len(logs.snapshot()); n != 0 {
		t.Fatalf("rejected start logged %d entries", n)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func countTicks(entries []TickLogEntry) int {
	n := 0
	for _, e := range entries {
		if e.Kind == EntryTick {
			n++
		}
	}
	return n
}

func TestLoop_RejectedStartKeepsCadence(t *testing.T) {
	l, logs, _ := startLoop(t)
	cfg := fastConfig()
	cfg.Width, cfg.Height = 41, 41
	cfg.TickInterval = 20 * time.Millisecond
	cfg.CascadeInterval = 20 * time.Millisecond
	resp := make(chan StartResponse, 1)
	l.Starts() <- StartRequest{Config: cfg, Resp: resp}
	if sr := <-resp; sr.Err != nil {
		t.Fatalf("start: %v", sr.Err)
	}

	bad := cfg
	bad.Width = 6
	until := time.Now().Add(300 * time.Millisecond)
	for time.Now().Before(until) {
		l.Starts() <- StartRequest{Config: bad, Resp: resp}
		if sr := <-resp; !errors.Is(sr.Err, mazegen.ErrInvalidDimension) {
			t.Fatalf("expected ErrInvalidDimension, got %v", sr.Err)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if n := countTicks(logs.snapshot()); n < 5 {
		t.Fatalf("ticks during rejected starts: %d", n)
	}
}

// restartCheck asserts that everything logged from the second start on
// belongs to run b, begins at tick 1 and replays cleanly.
func restartCheck(t *testing.T, entries []TickLogEntry) {
	t.Helper()
	from := -1
	for i, e := range entries {
		if e.Kind == EntryStart && e.RunID == "run-b" {
			from = i
			break
		}
	}
	if from < 1 {
		t.Fatalf("no start entry for run-b after run-a (index %d)", from)
	}
	after := entries[from:]
	for _, e := range after {
		if e.RunID != "run-b" {
			t.Fatalf("%s entry for %s at tick %d after restart", e.Kind, e.RunID, e.Tick)
		}
	}
	if len(after) < 2 {
		t.Fatalf("run-b logged no ticks")
	}
	if first := after[1]; first.Kind != EntryTick || first.Tick != 1 {
		t.Fatalf("first entry after restart: %s tick %d", first.Kind, first.Tick)
	}
	rep, err := Replay(after)
	if err != nil {
		t.Fatalf("Replay run-b: %v", err)
	}
	if rep.RunID != "run-b" || rep.Summary == nil || rep.Final != after[len(after)-1].Digest {
		t.Fatalf("replay report=%+v", rep)
	}
}

func TestLoop_RestartWhileRunning(t *testing.T) {
	l, logs, runs := startLoopIDs(t, "run-a", "run-b")
	a := fastConfig()
	a.Width, a.Height = 41, 41
	a.TickInterval = 10 * time.Millisecond
	resp := make(chan StartResponse, 1)
	l.Starts() <- StartRequest{Config: a, Resp: resp}
	if sr := <-resp; sr.Err != nil || sr.RunID != "run-a" {
		t.Fatalf("start a=%+v", sr)
	}
	waitFor(t, "run-a ticks", func() bool { return countTicks(logs.snapshot()) >= 3 })

	b := fastConfig()
	b.Seed = 5
	l.Starts() <- StartRequest{Config: b, Resp: resp}
	if sr := <-resp; sr.Err != nil || sr.RunID != "run-b" {
		t.Fatalf("start b=%+v", sr)
	}
	select {
	case rec := <-runs:
		if rec.RunID != "run-b" {
			t.Fatalf("finished run=%s", rec.RunID)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("run-b did not finish")
	}
	restartCheck(t, logs.snapshot())
}

func TestLoop_RestartWhileCascading(t *testing.T) {
	l, logs, runs := startLoopIDs(t, "run-a", "run-b")
	a := fastConfig()
	a.CascadeInterval = 200 * time.Millisecond
	resp := make(chan StartResponse, 1)
	l.Starts() <- StartRequest{Config: a, Resp: resp}
	if sr := <-resp; sr.Err != nil {
		t.Fatalf("start a: %v", sr.Err)
	}
	waitFor(t, "run-a cascade", func() bool {
		entries := logs.snapshot()
		return entries[len(entries)-1].State == Cascading
	})

	b := fastConfig()
	b.Seed = 5
	l.Starts() <- StartRequest{Config: b, Resp: resp}
	if sr := <-resp; sr.Err != nil || sr.RunID != "run-b" {
		t.Fatalf("start b=%+v", sr)
	}
	select {
	case rec := <-runs:
		if rec.RunID != "run-b" {
			t.Fatalf("finished run=%s", rec.RunID)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("run-b did not finish")
	}

	entries := logs.snapshot()
	restartCheck(t, entries)
	for i, e := range entries {
		if e.RunID == "run-b" {
			if prev := entries[i-1]; prev.Kind == EntrySummary {
				t.Fatalf("run-a summarized before the restart")
			}
			break
		}
	}
}

func TestLoop_LateSubscriberCatchesUp(t *testing.T) {
	l, _, runs := startLoop(t)
	resp := make(chan StartResponse, 1)
	l.Starts() <- StartRequest{Config: fastConfig(), Resp: resp}
	if sr := <-resp; sr.Err != nil {
		t.Fatalf("start: %v", sr.Err)
	}
	select {
	case <-runs:
	case <-time.After(10 * time.Second):
		t.Fatalf("run did not finish")
	}

	out := make(chan []byte, 8)
	subResp := make(chan uint64, 1)
	l.Subscribe() <- Subscription{Out: out, Resp: subResp}
	id := <-subResp

	var got []string
	for i := 0; i < 2; i++ {
		select {
		case b := <-out:
			var m struct {
				Type  string `json:"type"`
				RunID string `json:"run_id"`
			}
			if err := json.Unmarshal(b, &m); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if m.RunID != "run-1" {
				t.Fatalf("run_id=%q", m.RunID)
			}
			got = append(got, m.Type)
		case <-time.After(5 * time.Second):
			t.Fatalf("no catch-up frame")
		}
	}
	if strings.Join(got, ",") != protocol.TypeStarted+","+protocol.TypeSummary {
		t.Fatalf("catch-up frames=%v", got)
	}
	l.Unsubscribe() <- id
}

func TestReplay_DetectsTampering(t *testing.T) {
	l, logs, runs := startLoop(t)
	resp := make(chan StartResponse, 1)
	l.Starts() <- StartRequest{Config: fastConfig(), Resp: resp}
	<-resp
	select {
	case <-runs:
	case <-time.After(10 * time.Second):
		t.Fatalf("run did not finish")
	}
	entries := logs.snapshot()
	entries[2].Digest = strings.Repeat("0", 64)
	if _, err := Replay(entries); err == nil || !strings.Contains(err.Error(), "digest mismatch") {
		t.Fatalf("expected digest mismatch, got %v", err)
	}
	if _, err := Replay(entries[1:]); err == nil {
		t.Fatalf("expected error without start entry")
	}
}

func TestSendLatest_DropsOldest(t *testing.T) {
	ch := make(chan []byte, 2)
	sendLatest(ch, []byte("a"))
	sendLatest(ch, []byte("b"))
	sendLatest(ch, []byte("c"))
	if got := string(<-ch) + string(<-ch); got != "bc" {
		t.Fatalf("got %q", got)
	}
}
