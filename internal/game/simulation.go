package game

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/google/uuid"
)

// ErrInvalidLayout is returned for custom layouts that break snake invariants
var ErrInvalidLayout = errors.New("invalid layout")

// Hooks are invoked synchronously inside the call that caused them, at most
// once per occurrence. Nil hooks are skipped.
type Hooks struct {
	OnAppleConsumed func(AppleConsumedPayload)
	OnMilestone     func(MilestonePayload)
	OnWon           func(WonPayload)
	OnGameOver      func(GameOverPayload)
}

// Layout overrides the initial board, used for scenarios and replays.
// Restart always returns to the rules' default layout.
type Layout struct {
	Snake       []Cell    // head first, orthogonally linked, distinct
	Heading     Direction // current movement direction
	Apple       Cell
	Phase       Phase
	ApplesEaten int
}

// Simulation is the deterministic snake core. It is not safe for concurrent
// use; Engine wraps it with a mutex for multi-threaded hosts.
type Simulation struct {
	rules Rules
	rng   *rand.Rand
	hooks Hooks

	runID     string
	phase     Phase
	tick      uint64
	collision Collision

	occupancy   *OccupancyIndex
	snake       *Snake
	buffer      DirectionBuffer
	spawner     *AppleSpawner
	apple       *Cell
	progression *Progression
}

// NewSimulation validates rules and builds a run in PhaseIntro with the
// default layout and a spawned apple.
func NewSimulation(rules Rules, seed int64) (*Simulation, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	s := newSimulation(rules, seed)
	s.reset()
	return s, nil
}

// NewSimulationWithLayout builds a run from an explicit board
func NewSimulationWithLayout(rules Rules, seed int64, layout Layout) (*Simulation, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	if err := layout.validate(rules); err != nil {
		return nil, err
	}

	s := newSimulation(rules, seed)
	s.runID = uuid.NewString()
	s.phase = layout.Phase
	s.snake = NewSnakeFromCells(rules.Grid, layout.Snake, layout.Heading)
	for _, c := range layout.Snake {
		s.occupancy.Occupy(c)
	}
	apple := layout.Apple
	s.apple = &apple
	s.progression.restore(layout.ApplesEaten)
	return s, nil
}

func newSimulation(rules Rules, seed int64) *Simulation {
	rng := rand.New(rand.NewSource(seed))
	return &Simulation{
		rules:       rules,
		rng:         rng,
		occupancy:   NewOccupancyIndex(rules.Grid),
		spawner:     NewAppleSpawner(rules.Grid, rng, rules.MaxSpawnAttempts),
		progression: NewProgression(rules),
	}
}

// reset rebuilds every piece of run state from the rules
func (s *Simulation) reset() {
	s.runID = uuid.NewString()
	s.phase = PhaseIntro
	s.tick = 0
	s.collision = CollisionNone

	s.occupancy.Reset()
	s.snake = NewSnake(s.rules.Grid, s.rules.InitialLength, s.rules.InitialDirection)
	for i := 0; i < s.snake.Len(); i++ {
		s.occupancy.Occupy(s.snake.At(i).Cell)
	}
	s.buffer.Clear()
	s.progression.Reset()

	apple := s.spawner.Spawn(s.occupancy)
	s.apple = &apple
}

// SetHooks replaces the synchronous event hooks
func (s *Simulation) SetHooks(h Hooks) {
	s.hooks = h
}

// Rules returns the rules the simulation was built with
func (s *Simulation) Rules() Rules {
	return s.rules
}

// Phase returns the current phase
func (s *Simulation) Phase() Phase {
	return s.phase
}

// RunID identifies the current run
func (s *Simulation) RunID() string {
	return s.runID
}

// Tick returns the number of accepted steps in this run
func (s *Simulation) Tick() uint64 {
	return s.tick
}

// ApplesEaten returns the progression count for this run
func (s *Simulation) ApplesEaten() int {
	return s.progression.ApplesEaten()
}

// TickIntervalMs is the interval the host should wait before the next step
func (s *Simulation) TickIntervalMs() int64 {
	return s.progression.Interval().Milliseconds()
}

// Heading returns the direction the snake is moving in
func (s *Simulation) Heading() Direction {
	return s.snake.Heading()
}

// IsOccupied exposes the occupancy index
func (s *Simulation) IsOccupied(c Cell) bool {
	return s.occupancy.IsOccupied(c)
}

// Snapshot copies the current state
func (s *Simulation) Snapshot() Snapshot {
	snap := Snapshot{
		RunID:          s.runID,
		Phase:          s.phase,
		Grid:           s.rules.Grid,
		Segments:       s.snake.Segments(make([]Segment, 0, s.snake.Len())),
		ApplesEaten:    s.progression.ApplesEaten(),
		TickIntervalMs: s.TickIntervalMs(),
		Tick:           s.tick,
		WinTarget:      s.rules.WinTarget,
		MilestoneAt:    s.rules.MilestoneAt,
		Collision:      s.collision,
	}
	if s.apple != nil {
		apple := *s.apple
		snap.Apple = &apple
	}
	return snap
}

// QueueDirection buffers d for the next step. Input is dropped outside
// PhasePlaying and when d reverses the current heading.
func (s *Simulation) QueueDirection(d Direction, source string) ([]Event, bool) {
	if s.phase != PhasePlaying {
		return nil, false
	}
	current := s.snake.Heading()
	if !s.buffer.Queue(d, current) {
		return nil, false
	}
	return []Event{s.event(EventTypeDirectionQueued, source, DirectionQueuedPayload{Direction: d, Current: current})}, true
}

// Start leaves PhaseIntro
func (s *Simulation) Start() ([]Event, bool) {
	if s.phase != PhaseIntro {
		return nil, false
	}
	return []Event{s.transition(PhasePlaying)}, true
}

// AcknowledgeMilestone resumes play after the milestone pause
func (s *Simulation) AcknowledgeMilestone() ([]Event, bool) {
	if s.phase != PhaseMilestonePause {
		return nil, false
	}
	return []Event{s.transition(PhasePlaying)}, true
}

// Restart discards the current run and builds a fresh one in PhaseIntro.
// The milestone is re-armed.
func (s *Simulation) Restart() []Event {
	prev := s.runID
	from := s.phase
	s.reset()
	return []Event{
		s.event(EventTypeRestart, "", RestartPayload{PreviousRunID: prev}),
		s.event(EventTypePhaseChange, "", PhaseChangePayload{From: from, To: PhaseIntro}),
	}
}

// RestartAndStart is Restart followed by Start, for hosts without an intro
func (s *Simulation) RestartAndStart() []Event {
	events := s.Restart()
	started, _ := s.Start()
	return append(events, started...)
}

// Step advances the run by one tick. Outside PhasePlaying it is a no-op that
// returns the unchanged snapshot.
func (s *Simulation) Step() StepResult {
	if s.phase != PhasePlaying {
		return StepResult{Snapshot: s.Snapshot()}
	}

	dir := s.buffer.Consume(s.snake.Heading())
	candidate := s.snake.Head().Cell.Add(dir)

	if !s.rules.Grid.InBounds(candidate) {
		return s.endRun(CollisionWall, candidate)
	}

	grow := s.apple != nil && candidate == *s.apple
	// The tail vacates this tick on a plain move, so it does not block the head.
	if s.occupancy.IsOccupied(candidate) && (grow || candidate != s.snake.Tail().Cell) {
		return s.endRun(CollisionSelf, candidate)
	}

	s.tick++
	if tail, removed := s.snake.Advance(candidate, dir, grow); removed {
		s.occupancy.Vacate(tail)
	}
	s.occupancy.Occupy(candidate)

	events := []Event{s.event(EventTypeTick, "", TickPayload{
		Head:      candidate,
		Direction: dir,
		Length:    s.snake.Len(),
		Grew:      grow,
	})}
	if !grow {
		return StepResult{Snapshot: s.Snapshot(), Events: events, Mutated: true}
	}

	milestone, won := s.progression.Record()
	if won {
		s.apple = nil
	} else {
		next := s.spawner.Spawn(s.occupancy)
		s.apple = &next
	}

	consumed := AppleConsumedPayload{
		Cell:           candidate,
		ApplesEaten:    s.progression.ApplesEaten(),
		TickIntervalMs: s.TickIntervalMs(),
	}
	if s.apple != nil {
		next := *s.apple
		consumed.NextApple = &next
	}
	events = append(events, s.event(EventTypeAppleConsumed, "", consumed))

	var (
		wonPayload       *WonPayload
		milestonePayload *MilestonePayload
	)
	switch {
	case won:
		wonPayload = &WonPayload{ApplesEaten: s.progression.ApplesEaten(), Length: s.snake.Len(), Ticks: s.tick}
		events = append(events, s.transition(PhaseWon), s.event(EventTypeWon, "", *wonPayload))
	case milestone:
		milestonePayload = &MilestonePayload{ApplesEaten: s.progression.ApplesEaten(), WinTarget: s.rules.WinTarget}
		events = append(events, s.transition(PhaseMilestonePause), s.event(EventTypeMilestone, "", *milestonePayload))
	}

	if s.hooks.OnAppleConsumed != nil {
		s.hooks.OnAppleConsumed(consumed)
	}
	if milestonePayload != nil && s.hooks.OnMilestone != nil {
		s.hooks.OnMilestone(*milestonePayload)
	}
	if wonPayload != nil && s.hooks.OnWon != nil {
		s.hooks.OnWon(*wonPayload)
	}

	return StepResult{Snapshot: s.Snapshot(), Events: events, Mutated: true}
}

// endRun moves to PhaseGameOver without touching the body, occupancy or apple
func (s *Simulation) endRun(c Collision, attempted Cell) StepResult {
	s.collision = c
	payload := GameOverPayload{
		Collision:   c,
		Attempted:   attempted,
		ApplesEaten: s.progression.ApplesEaten(),
		Length:      s.snake.Len(),
	}
	events := []Event{
		s.transition(PhaseGameOver),
		s.event(EventTypeGameOver, "", payload),
	}
	if s.hooks.OnGameOver != nil {
		s.hooks.OnGameOver(payload)
	}
	return StepResult{Snapshot: s.Snapshot(), Events: events, Collision: c}
}

// transition applies a legal phase edge and returns its event.
// Callers only request edges listed in phaseTransitions.
func (s *Simulation) transition(to Phase) Event {
	from := s.phase
	if !CanTransition(from, to) {
		panic(fmt.Sprintf("illegal phase transition %s -> %s", from, to))
	}
	s.phase = to
	return s.event(EventTypePhaseChange, "", PhaseChangePayload{From: from, To: to})
}

func (s *Simulation) event(t EventType, source string, payload interface{}) Event {
	return NewEvent(t, s.tick, s.runID, source, payload)
}

func (l Layout) validate(rules Rules) error {
	if len(l.Snake) == 0 {
		return fmt.Errorf("%w: empty snake", ErrInvalidLayout)
	}
	if !l.Heading.Valid() {
		return fmt.Errorf("%w: heading %d", ErrInvalidLayout, l.Heading)
	}
	seen := make(map[Cell]struct{}, len(l.Snake))
	for i, c := range l.Snake {
		if !rules.Grid.InBounds(c) {
			return fmt.Errorf("%w: segment %d at %s out of bounds", ErrInvalidLayout, i, c)
		}
		if _, dup := seen[c]; dup {
			return fmt.Errorf("%w: segment %d overlaps at %s", ErrInvalidLayout, i, c)
		}
		seen[c] = struct{}{}
		if i > 0 {
			if _, ok := DirectionBetween(c, l.Snake[i-1]); !ok {
				return fmt.Errorf("%w: segments %d and %d are not adjacent", ErrInvalidLayout, i-1, i)
			}
		}
	}
	if !rules.Grid.InBounds(l.Apple) {
		return fmt.Errorf("%w: apple %s out of bounds", ErrInvalidLayout, l.Apple)
	}
	if _, onSnake := seen[l.Apple]; onSnake {
		return fmt.Errorf("%w: apple %s on snake", ErrInvalidLayout, l.Apple)
	}
	if l.ApplesEaten < 0 || l.ApplesEaten >= rules.WinTarget {
		return fmt.Errorf("%w: apples eaten %d outside [0,%d)", ErrInvalidLayout, l.ApplesEaten, rules.WinTarget)
	}
	if l.Phase > PhaseWon {
		return fmt.Errorf("%w: phase %d", ErrInvalidLayout, l.Phase)
	}
	return nil
}
