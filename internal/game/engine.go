package game

import (
	"sync"
	"sync/atomic"
	"time"

	"bernar-snake/internal/scheduler"

	"github.com/rs/zerolog/log"
)

// EngineConfig configures an Engine
type EngineConfig struct {
	Rules     Rules
	Seed      int64 // 0 seeds from the clock
	AutoStart bool  // skip PhaseIntro on construction and on every restart
	Hooks     Hooks // run synchronously inside the engine lock
}

// EngineStats are lifetime counters across runs
type EngineStats struct {
	Seed        int64  `json:"seed"`
	Steps       uint64 `json:"steps"`
	Runs        uint64 `json:"runs"`
	ApplesTotal uint64 `json:"applesTotal"`
	Wins        uint64 `json:"wins"`
	Losses      uint64 `json:"losses"`
	Running     bool   `json:"running"`
}

// EventListener receives every event in emission order
type EventListener func(Event)

// StepListener receives every step result together with the time spent in Step
type StepListener func(StepResult, time.Duration)

// Engine hosts a Simulation for multi-threaded callers: one mutex serialises
// input, control signals and ticks, snapshots are published atomically for
// lock-free readers, and a scheduler drives Step at the current interval.
//
// Listeners are called while the engine lock is held so they observe events
// in order; they must not block or call back into the Engine.
type Engine struct {
	mu        sync.Mutex
	sim       *Simulation
	seed      int64
	autoStart bool

	snapshot atomic.Pointer[Snapshot]
	eventLog *EventLog

	eventListeners []EventListener
	stepListeners  []StepListener

	sched *scheduler.Scheduler

	steps       uint64
	runs        uint64
	applesTotal uint64
	wins        uint64
	losses      uint64
}

// NewEngine validates the rules and builds the first run
func NewEngine(cfg EngineConfig) (*Engine, error) {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	sim, err := NewSimulation(cfg.Rules, seed)
	if err != nil {
		return nil, err
	}
	sim.SetHooks(cfg.Hooks)

	e := &Engine{
		sim:       sim,
		seed:      seed,
		autoStart: cfg.AutoStart,
		eventLog:  NewEventLog(),
		runs:      1,
	}
	if cfg.AutoStart {
		sim.Start()
	}
	e.publish(sim.Snapshot())
	return e, nil
}

// Start begins ticking at the simulation's current interval
func (e *Engine) Start() {
	e.mu.Lock()
	if e.sched != nil {
		e.mu.Unlock()
		return
	}
	interval := time.Duration(e.sim.TickIntervalMs()) * time.Millisecond
	e.sched = scheduler.New(func() time.Duration {
		res := e.Tick()
		return time.Duration(res.Snapshot.TickIntervalMs) * time.Millisecond
	}, interval)
	sched := e.sched
	e.mu.Unlock()

	sched.Start()
	log.Info().Int64("seed", e.seed).Dur("interval", interval).Msg("🎮 Snake engine started")
}

// Stop halts the scheduler. Safe to call more than once; a later Start
// resumes ticking with a fresh scheduler.
func (e *Engine) Stop() {
	e.mu.Lock()
	sched := e.sched
	e.sched = nil
	e.mu.Unlock()

	// Not under e.mu: Stop waits for an in-flight Tick, which takes the lock
	if sched == nil {
		return
	}
	sched.Stop()
	log.Info().Uint64("ticks", sched.Ticks()).Msg("🛑 Snake engine stopped")
}

// Tick performs one simulation step. The scheduler calls it; hosts without
// a scheduler (tests, replays) may call it directly.
func (e *Engine) Tick() StepResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	res := e.sim.Step()
	elapsed := time.Since(start)

	if res.Mutated || len(res.Events) > 0 {
		e.steps++
		e.countOutcome(res.Events)
		e.publish(res.Snapshot)
		e.dispatch(res.Events)
	}
	for _, l := range e.stepListeners {
		l(res, elapsed)
	}
	return res
}

// QueueDirection buffers a heading for the next step
func (e *Engine) QueueDirection(d Direction, source string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	events, ok := e.sim.QueueDirection(d, source)
	e.dispatch(events)
	return ok
}

// StartRun leaves the intro
func (e *Engine) StartRun() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	events, ok := e.sim.Start()
	if ok {
		log.Info().Str("run", e.sim.RunID()).Msg("🐍 Run started")
		e.publish(e.sim.Snapshot())
		e.dispatch(events)
	}
	return ok
}

// AcknowledgeMilestone resumes after the milestone pause
func (e *Engine) AcknowledgeMilestone() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	events, ok := e.sim.AcknowledgeMilestone()
	if ok {
		log.Info().Str("run", e.sim.RunID()).Msg("▶️ Milestone acknowledged")
		e.publish(e.sim.Snapshot())
		e.dispatch(events)
	}
	return ok
}

// Restart discards the current run. With AutoStart the fresh run is
// already playing; otherwise it waits in PhaseIntro.
func (e *Engine) Restart() {
	e.restart(e.autoStart)
}

// RestartAndStart discards the current run and starts the next one under
// a single lock, so no tick can observe the intro in between
func (e *Engine) RestartAndStart() {
	e.restart(true)
}

func (e *Engine) restart(start bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var events []Event
	if start {
		events = e.sim.RestartAndStart()
	} else {
		events = e.sim.Restart()
	}
	e.runs++
	log.Info().Str("run", e.sim.RunID()).Uint64("runs", e.runs).Msg("🔄 Run restarted")
	e.publish(e.sim.Snapshot())
	e.dispatch(events)
}

// GetSnapshot returns the latest published snapshot without locking.
// Callers must treat it as read-only.
func (e *Engine) GetSnapshot() *Snapshot {
	return e.snapshot.Load()
}

// Rules returns the simulation rules
func (e *Engine) Rules() Rules {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sim.Rules()
}

// OnEvent registers an event listener
func (e *Engine) OnEvent(l EventListener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.eventListeners = append(e.eventListeners, l)
}

// OnStep registers a step listener
func (e *Engine) OnStep(l StepListener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stepListeners = append(e.stepListeners, l)
}

// Stats returns lifetime counters
func (e *Engine) Stats() EngineStats {
	e.mu.Lock()
	defer e.mu.Unlock()

	running := false
	if e.sched != nil {
		running = e.sched.Running()
	}
	return EngineStats{
		Seed:        e.seed,
		Steps:       e.steps,
		Runs:        e.runs,
		ApplesTotal: e.applesTotal,
		Wins:        e.wins,
		Losses:      e.losses,
		Running:     running,
	}
}

// StartEventLog initializes the event logging system
func (e *Engine) StartEventLog(filePath string) error {
	return e.eventLog.Start(filePath)
}

// StopEventLog gracefully stops the event logging system
func (e *Engine) StopEventLog() {
	e.eventLog.Stop()
}

// EventLogStats returns event log statistics for monitoring
func (e *Engine) EventLogStats() EventLogStats {
	return e.eventLog.Stats()
}

func (e *Engine) publish(snap Snapshot) {
	e.snapshot.Store(&snap)
}

// dispatch must be called with e.mu held
func (e *Engine) dispatch(events []Event) {
	if len(events) == 0 {
		return
	}
	e.eventLog.EmitAll(events)
	for _, ev := range events {
		for _, l := range e.eventListeners {
			l(ev)
		}
	}
}

func (e *Engine) countOutcome(events []Event) {
	for _, ev := range events {
		switch ev.Type {
		case EventTypeAppleConsumed:
			e.applesTotal++
		case EventTypeWon:
			e.wins++
			log.Info().Str("run", ev.RunID).Uint64("tick", ev.TickNum).Msg("🎉 Run won")
		case EventTypeGameOver:
			e.losses++
			var p GameOverPayload
			_ = ev.DecodePayload(&p)
			log.Info().Str("run", ev.RunID).Str("collision", p.Collision.String()).
				Int("apples", p.ApplesEaten).Msg("💀 Game over")
		}
	}
}
