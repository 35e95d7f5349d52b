package scheduler

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
)

const (
	defaultTickInterval    = 400 * time.Millisecond
	defaultCascadeInterval = 100 * time.Millisecond
)

// TickLogger receives one entry per start, step and summary.
type TickLogger interface {
	WriteTick(TickLogEntry) error
}

// RunSink receives finished runs.
type RunSink interface {
	RecordRun(RunRecord)
}

type StartRequest struct {
	Config Config
	Resp   chan StartResponse
}

type StartResponse struct {
	RunID string
	Seed  int64
	Err   error
}

type WallRequest struct {
	Command Command
	// Resp, if set, must be buffered.
	Resp chan bool
}

type Subscription struct {
	Out  chan []byte
	Resp chan uint64
}

type LoopConfig struct {
	Logger  *log.Logger
	TickLog TickLogger
	Runs    RunSink
	// NewRunID defaults to random UUIDs.
	NewRunID func() string
}

// Loop drives one Scheduler from a single goroutine. Commands, subscriber
// changes and timer ticks are all serialized through Run, so a new start can
// never race a step of the run it replaces.
type Loop struct {
	sched *Scheduler
	cfg   LoopConfig

	starts chan StartRequest
	walls  chan WallRequest
	subs   chan Subscription
	unsubs chan uint64
	stop   chan struct{}

	runID     string
	startedAt time.Time
	commands  []Command

	clients map[uint64]chan []byte
	nextSub uint64
}

func NewLoop(cfg LoopConfig) *Loop {
	if cfg.NewRunID == nil {
		cfg.NewRunID = uuid.NewString
	}
	return &Loop{
		sched:   New(nil),
		cfg:     cfg,
		starts:  make(chan StartRequest, 8),
		walls:   make(chan WallRequest, 256),
		subs:    make(chan Subscription, 8),
		unsubs:  make(chan uint64, 8),
		stop:    make(chan struct{}),
		clients: map[uint64]chan []byte{},
	}
}

func (l *Loop) Starts() chan<- StartRequest    { return l.starts }
func (l *Loop) Walls() chan<- WallRequest      { return l.walls }
func (l *Loop) Subscribe() chan<- Subscription { return l.subs }
func (l *Loop) Unsubscribe() chan<- uint64     { return l.unsubs }
func (l *Loop) Stop()                          { close(l.stop) }

func (l *Loop) Run(ctx context.Context) error {
	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	arm := func() {
		if timer != nil {
			timer.Stop()
			timer, timerC = nil, nil
		}
		var d time.Duration
		switch l.sched.State() {
		case Running:
			d = l.sched.Config().TickInterval
			if d <= 0 {
				d = defaultTickInterval
			}
		case Cascading:
			d = l.sched.Config().CascadeInterval
			if d <= 0 {
				d = defaultCascadeInterval
			}
		default:
			return
		}
		timer = time.NewTimer(d)
		timerC = timer.C
	}
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.stop:
			return nil
		case req := <-l.starts:
			if l.handleStart(req) {
				arm()
			}
		case req := <-l.walls:
			ok := l.handleWall(req.Command)
			if req.Resp != nil {
				req.Resp <- ok
			}
		case sub := <-l.subs:
			l.handleSubscribe(sub)
		case id := <-l.unsubs:
			delete(l.clients, id)
		case <-timerC:
			l.step()
			arm()
		}
	}
}

// handleStart reports whether a new run began. A rejected start leaves the
// current run and its timer alone.
func (l *Loop) handleStart(req StartRequest) bool {
	reply := func(r StartResponse) {
		if req.Resp != nil {
			req.Resp <- r
		}
	}
	if err := l.sched.Start(req.Config); err != nil {
		l.logf("start rejected: %v", err)
		reply(StartResponse{Err: err})
		return false
	}
	l.runID = l.cfg.NewRunID()
	l.startedAt = time.Now().UTC()
	l.commands = l.commands[:0]

	cfg := l.sched.Config()
	l.logf("run %s started: %dx%d %s seed=%d lifespan=%d", l.runID, cfg.Width, cfg.Height, cfg.Algorithm, l.sched.Seed(), cfg.WallLifespan)
	fire, _ := l.sched.Grid().Fire()
	l.writeTick(TickLogEntry{
		RunID:   l.runID,
		Kind:    EntryStart,
		State:   l.sched.State(),
		Config:  &cfg,
		Seed:    l.sched.Seed(),
		Fire:    fire,
		PathLen: len(l.sched.Path()),
		Digest:  l.sched.Digest(),
	})
	reply(StartResponse{RunID: l.runID, Seed: l.sched.Seed()})

	l.broadcast(startedMsg(l.runID, l.sched))
	l.broadcast(tickMsg(l.runID, l.sched, nil))
	return true
}

func (l *Loop) handleWall(c Command) bool {
	st := l.sched.State()
	if st != Running && st != Cascading {
		return false
	}
	ok, err := c.Apply(l.sched)
	if err != nil {
		l.logf("bad wall command: %v", err)
		return false
	}
	c.OK = ok
	l.commands = append(l.commands, c)
	return ok
}

func (l *Loop) handleSubscribe(sub Subscription) {
	l.nextSub++
	id := l.nextSub
	l.clients[id] = sub.Out
	if sub.Resp != nil {
		sub.Resp <- id
	}
	if l.sched.State() == Idle {
		return
	}
	if b, err := json.Marshal(startedMsg(l.runID, l.sched)); err == nil {
		sendLatest(sub.Out, b)
	}
	if sum := l.sched.Summary(); sum != nil {
		if b, err := json.Marshal(summaryMsg(l.runID, l.sched.Config().Algorithm, sum)); err == nil {
			sendLatest(sub.Out, b)
		}
		return
	}
	if b, err := json.Marshal(tickMsg(l.runID, l.sched, nil)); err == nil {
		sendLatest(sub.Out, b)
	}
}

func (l *Loop) step() {
	res := l.sched.Step()
	var sample *Sample
	if res.Sample != nil {
		cp := *res.Sample
		sample = &cp
	}
	l.writeTick(TickLogEntry{
		RunID:    l.runID,
		Kind:     EntryTick,
		Tick:     res.Tick,
		State:    res.State,
		Commands: append([]Command(nil), l.commands...),
		Fire:     res.Fire,
		PathLen:  len(res.Path),
		Sample:   sample,
		Digest:   l.sched.Digest(),
	})
	l.commands = l.commands[:0]
	l.broadcast(tickMsg(l.runID, l.sched, &res))

	if res.Summary == nil {
		return
	}
	sum := *res.Summary
	l.writeTick(TickLogEntry{
		RunID:   l.runID,
		Kind:    EntrySummary,
		Tick:    res.Tick,
		State:   res.State,
		Fire:    res.Fire,
		Digest:  l.sched.Digest(),
		Summary: &sum,
	})
	l.broadcast(summaryMsg(l.runID, l.sched.Config().Algorithm, &sum))
	l.logf("run %s summarized: ticks=%d steps=%d samples=%d median_path=%.0f", l.runID, sum.Ticks, sum.Steps, len(sum.Samples), sum.PathLength.Median)
	if l.cfg.Runs != nil {
		l.cfg.Runs.RecordRun(RunRecord{
			RunID:      l.runID,
			Config:     l.sched.Config(),
			Seed:       l.sched.Seed(),
			StartedAt:  l.startedAt,
			FinishedAt: time.Now().UTC(),
			Summary:    sum,
		})
	}
}

func (l *Loop) writeTick(e TickLogEntry) {
	if l.cfg.TickLog == nil {
		return
	}
	if err := l.cfg.TickLog.WriteTick(e); err != nil {
		l.logf("tick log: %v", err)
	}
}

func (l *Loop) broadcast(msg any) {
	if len(l.clients) == 0 {
		return
	}
	b, err := json.Marshal(msg)
	if err != nil {
		l.logf("encode %T: %v", msg, err)
		return
	}
	for _, out := range l.clients {
		sendLatest(out, b)
	}
}

func (l *Loop) logf(format string, args ...any) {
	if l.cfg.Logger != nil {
		l.cfg.Logger.Printf(format, args...)
	}
}

// sendLatest delivers b, dropping the oldest queued frame when out is full.
func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
