// Package monitor runs live roast monitoring sessions: it samples a frame
// source on a timer, scores each frame, and records the readings as
// snapshots of the current session.
package monitor

import (
	"context"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"roast-tracker/internal/errs"
	"roast-tracker/internal/model"
	"roast-tracker/internal/roast"
	"roast-tracker/internal/state"
)

// Defaults used when Options leave them zero.
const (
	DefaultSampleInterval  = 3 * time.Second
	DefaultElapsedInterval = time.Second
	DefaultNearTargetDelta = 5.0
)

// Phase is the engine's lifecycle state.
type Phase int

const (
	Idle Phase = iota
	Active
	Paused
	Completed
)

func (p Phase) String() string {
	switch p {
	case Active:
		return "active"
	case Paused:
		return "paused"
	case Completed:
		return "completed"
	}
	return "idle"
}

// SessionStore is the part of the state store the engine writes through.
type SessionStore interface {
	AddMonitorSession(ctx context.Context, in model.SessionInput) state.Result[model.MonitorSession]
	UpdateMonitorSession(ctx context.Context, id string, patch model.SessionPatch) state.Result[model.MonitorSession]
	AddSnapshot(ctx context.Context, in model.SnapshotInput) state.Result[model.MonitorSnapshot]
}

// Sample is one scored frame.
type Sample struct {
	Index       float64
	Label       roast.Label
	Confidence  float64
	Temperature *float64
	Timestamp   time.Time
	NearTarget  bool
}

// Status is a read-only view of the engine.
type Status struct {
	Phase   Phase
	Session *model.MonitorSession
	Elapsed time.Duration
	Samples []Sample
	Last    *Sample
}

// Summary describes a finished session.
type Summary struct {
	Session   model.MonitorSession
	Elapsed   time.Duration
	Samples   int
	Persisted int
}

type Options struct {
	Store           SessionStore
	Detector        roast.Detector
	Source          Source
	Scheduler       Scheduler
	SampleInterval  time.Duration
	ElapsedInterval time.Duration
	NearTargetDelta float64
	Logger          *log.Logger
}

// Engine is the monitoring state machine. Start, Pause, Resume and Stop are
// serialized; timer callbacks only touch the sampled data.
type Engine struct {
	store           SessionStore
	detector        roast.Detector
	source          Source
	sched           Scheduler
	sampleInterval  time.Duration
	elapsedInterval time.Duration
	delta           float64
	logger          *log.Logger

	opMu sync.Mutex

	mu        sync.Mutex
	phase     Phase
	session   *model.MonitorSession
	gen       uint64
	elapsed   time.Duration
	samples   []Sample
	lastTS    time.Time
	persisted int
	tickers   []Ticker
	writer    *snapshotWriter
	cancelRun context.CancelFunc
	onSample  func(Sample)
}

// New returns an idle engine.
func New(opts Options) *Engine {
	if opts.Scheduler == nil {
		opts.Scheduler = WallClock{}
	}
	if opts.Source == nil {
		opts.Source = &SimulatedCamera{}
	}
	if opts.SampleInterval <= 0 {
		opts.SampleInterval = DefaultSampleInterval
	}
	if opts.ElapsedInterval <= 0 {
		opts.ElapsedInterval = DefaultElapsedInterval
	}
	if opts.NearTargetDelta <= 0 {
		opts.NearTargetDelta = DefaultNearTargetDelta
	}
	if opts.Logger == nil {
		opts.Logger = log.New(os.Stderr, "monitor ", log.LstdFlags)
	}
	return &Engine{
		store:           opts.Store,
		detector:        opts.Detector,
		source:          opts.Source,
		sched:           opts.Scheduler,
		sampleInterval:  opts.SampleInterval,
		elapsedInterval: opts.ElapsedInterval,
		delta:           opts.NearTargetDelta,
		logger:          opts.Logger,
	}
}

// OnSample registers fn to run after every recorded sample. Only one hook is
// kept; nil removes it.
func (e *Engine) OnSample(fn func(Sample)) {
	e.mu.Lock()
	e.onSample = fn
	e.mu.Unlock()
}

// Start creates a session and begins sampling.
func (e *Engine) Start(ctx context.Context, name string, targetIndex float64, targetLabel roast.Label) (model.MonitorSession, error) {
	if strings.TrimSpace(name) == "" {
		return model.MonitorSession{}, errs.Validation("name", "must not be empty")
	}

	e.opMu.Lock()
	defer e.opMu.Unlock()

	e.mu.Lock()
	busy := e.session != nil
	e.mu.Unlock()
	if busy {
		return model.MonitorSession{}, errs.Validation("session", "a monitoring session is already running")
	}

	created, err := e.store.AddMonitorSession(ctx, model.SessionInput{
		Name:             name,
		TargetRoastIndex: targetIndex,
		TargetRoastLabel: targetLabel,
		StartTime:        e.sched.Now(),
	}).Get()
	if err != nil {
		return model.MonitorSession{}, err
	}

	if err := e.source.Acquire(ctx); err != nil {
		e.complete(ctx, created.ID)
		return model.MonitorSession{}, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	w := newSnapshotWriter()

	e.mu.Lock()
	e.gen++
	gen := e.gen
	e.phase = Active
	e.session = &created
	e.elapsed = 0
	e.samples = nil
	e.lastTS = time.Time{}
	e.persisted = 0
	e.writer = w
	e.cancelRun = cancel
	e.tickers = []Ticker{
		e.sched.Every(e.sampleInterval, func() { e.sample(runCtx, gen) }),
		e.sched.Every(e.elapsedInterval, func() { e.tick(gen) }),
	}
	e.mu.Unlock()

	go w.run(runCtx, e.persist)

	e.logger.Printf("started session %s %q target %.0f (%s)", created.ID, created.Name, targetIndex, targetLabel)
	return created, nil
}

func (e *Engine) tick(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gen == gen && e.phase == Active {
		e.elapsed += e.elapsedInterval
	}
}

func (e *Engine) sample(ctx context.Context, gen uint64) {
	e.mu.Lock()
	if e.gen != gen || e.phase != Active {
		e.mu.Unlock()
		return
	}
	session := *e.session
	e.mu.Unlock()

	frame, err := e.source.Capture(ctx)
	if err != nil {
		if e.current(gen) {
			e.logger.Printf("WARN: capture: %v", err)
		}
		return
	}
	est, err := e.detector.Detect(ctx, roast.Request{Image: frame, TargetIndex: session.TargetRoastIndex})
	if err != nil {
		if e.current(gen) {
			e.logger.Printf("WARN: detect: %v", err)
		}
		return
	}

	e.mu.Lock()
	if e.gen != gen || e.phase != Active {
		e.mu.Unlock()
		return
	}
	ts := e.sched.Now().UTC().Truncate(time.Microsecond)
	if !ts.After(e.lastTS) {
		ts = e.lastTS.Add(time.Microsecond)
	}
	e.lastTS = ts
	s := Sample{
		Index:       est.Index,
		Label:       est.Label,
		Confidence:  est.Confidence,
		Temperature: est.Temperature,
		Timestamp:   ts,
		NearTarget:  roast.NearTarget(est.Index, session.TargetRoastIndex, e.delta),
	}
	e.samples = append(e.samples, s)
	// Queued under the lock so Stop cannot close the writer in between.
	e.writer.push(model.SnapshotInput{
		SessionID:   session.ID,
		RoastIndex:  s.Index,
		RoastLabel:  s.Label,
		Temperature: s.Temperature,
		Confidence:  s.Confidence,
		Timestamp:   s.Timestamp,
	})
	hook := e.onSample
	e.mu.Unlock()

	if hook != nil {
		hook(s)
	}
}

func (e *Engine) current(gen uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gen == gen
}

func (e *Engine) persist(ctx context.Context, in model.SnapshotInput) {
	if err := e.store.AddSnapshot(ctx, in).Err; err != nil {
		e.logger.Printf("WARN: save snapshot for session %s: %v", in.SessionID, err)
		return
	}
	e.mu.Lock()
	e.persisted++
	e.mu.Unlock()
}

// Pause suspends sampling and the elapsed clock. It reports whether the
// engine was active.
func (e *Engine) Pause(ctx context.Context) bool {
	return e.toggle(ctx, Active, Paused, model.SessionPaused)
}

// Resume continues a paused session. It reports whether the engine was
// paused.
func (e *Engine) Resume(ctx context.Context) bool {
	return e.toggle(ctx, Paused, Active, model.SessionActive)
}

func (e *Engine) toggle(ctx context.Context, from, to Phase, status model.SessionStatus) bool {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	e.mu.Lock()
	if e.session == nil || e.phase != from {
		e.mu.Unlock()
		return false
	}
	e.phase = to
	e.session.Status = status
	id := e.session.ID
	e.mu.Unlock()

	if err := e.store.UpdateMonitorSession(ctx, id, model.SessionPatch{Status: &status}).Err; err != nil {
		e.logger.Printf("WARN: sync session %s status %s: %v", id, status, err)
	}
	return true
}

// Stop ends the current session and returns its summary. The second result
// is false when no session was running.
func (e *Engine) Stop(ctx context.Context) (Summary, bool) {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	e.mu.Lock()
	if e.session == nil {
		e.mu.Unlock()
		return Summary{}, false
	}
	e.gen++
	for _, t := range e.tickers {
		t.Stop()
	}
	e.tickers = nil
	session := *e.session
	e.session = nil
	e.phase = Completed
	elapsed, samples := e.elapsed, len(e.samples)
	w, cancel := e.writer, e.cancelRun
	e.writer, e.cancelRun = nil, nil
	e.mu.Unlock()

	if err := e.source.Release(); err != nil {
		e.logger.Printf("WARN: release source: %v", err)
	}

	w.close()
	if err := w.wait(ctx); err != nil {
		e.logger.Printf("WARN: session %s: abandoning unsaved snapshots: %v", session.ID, err)
	}
	cancel()

	if done, ok := e.complete(ctx, session.ID); ok {
		session = done
	} else {
		session.Status = model.SessionCompleted
	}

	e.mu.Lock()
	persisted := e.persisted
	e.mu.Unlock()

	e.logger.Printf("stopped session %s after %s with %d samples", session.ID, elapsed, samples)
	return Summary{Session: session, Elapsed: elapsed, Samples: samples, Persisted: persisted}, true
}

// complete marks a session finished in the store. Failures are logged.
func (e *Engine) complete(ctx context.Context, id string) (model.MonitorSession, bool) {
	status := model.SessionCompleted
	end := e.sched.Now().UTC().Truncate(time.Microsecond)
	res := e.store.UpdateMonitorSession(ctx, id, model.SessionPatch{Status: &status, EndTime: &end})
	if res.Err != nil {
		e.logger.Printf("WARN: complete session %s: %v", id, res.Err)
		return model.MonitorSession{}, false
	}
	return res.Value, true
}

// Status returns a copy of the engine's current view.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := Status{Phase: e.phase, Elapsed: e.elapsed, Samples: append([]Sample(nil), e.samples...)}
	if e.session != nil {
		ms := *e.session
		st.Session = &ms
	}
	if n := len(st.Samples); n > 0 {
		last := st.Samples[n-1]
		st.Last = &last
	}
	return st
}

// Close stops any running session, waiting at most timeout for pending
// snapshot writes.
func (e *Engine) Close(timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	e.Stop(ctx)
}
