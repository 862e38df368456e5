package game

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType enum for event classification
type EventType uint8

const (
	EventTypeUnknown EventType = iota
	EventTypeTick              // One accepted (mutating) step
	EventTypeAppleConsumed
	EventTypeMilestone
	EventTypeWon
	EventTypeGameOver
	EventTypePhaseChange
	EventTypeDirectionQueued
	EventTypeRestart
)

// EventVersion for backwards compatibility in replay
const EventVersion uint8 = 1

// Event is the core event structure shared by step results, listeners and the event log
type Event struct {
	Version   uint8           `json:"version"`   // Schema version
	Type      EventType       `json:"type"`      // Event type
	Timestamp int64           `json:"timestamp"` // Unix nano
	Sequence  uint64          `json:"sequence"`  // Monotonic sequence, assigned by the event log
	TickNum   uint64          `json:"tickNum"`   // Simulation tick this occurred in
	RunID     string          `json:"runId"`     // Run the event belongs to
	Source    string          `json:"source"`    // Origin (client IP, "engine", ...) for rate limiting
	Payload   json.RawMessage `json:"payload"`   // JSON-encoded payload
}

// String returns human-readable event type
func (t EventType) String() string {
	switch t {
	case EventTypeTick:
		return "tick"
	case EventTypeAppleConsumed:
		return "apple_consumed"
	case EventTypeMilestone:
		return "milestone"
	case EventTypeWon:
		return "won"
	case EventTypeGameOver:
		return "game_over"
	case EventTypePhaseChange:
		return "phase_change"
	case EventTypeDirectionQueued:
		return "direction_queued"
	case EventTypeRestart:
		return "restart"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler
func (t EventType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (t *EventType) UnmarshalText(text []byte) error {
	for cand := EventTypeUnknown; cand <= EventTypeRestart; cand++ {
		if cand.String() == string(text) {
			*t = cand
			return nil
		}
	}
	return fmt.Errorf("unknown event type %q", text)
}

// Typed payloads for different event types

// TickPayload describes one accepted step
type TickPayload struct {
	Head      Cell      `json:"head"`
	Direction Direction `json:"direction"`
	Length    int       `json:"length"`
	Grew      bool      `json:"grew"`
}

// AppleConsumedPayload contains the eaten apple and what replaced it
type AppleConsumedPayload struct {
	Cell           Cell  `json:"cell"`
	ApplesEaten    int   `json:"applesEaten"`
	NextApple      *Cell `json:"nextApple,omitempty"` // nil once the run is won
	TickIntervalMs int64 `json:"tickIntervalMs"`
}

// MilestonePayload is emitted once per run
type MilestonePayload struct {
	ApplesEaten int `json:"applesEaten"`
	WinTarget   int `json:"winTarget"`
}

// WonPayload closes a successful run
type WonPayload struct {
	ApplesEaten int    `json:"applesEaten"`
	Length      int    `json:"length"`
	Ticks       uint64 `json:"ticks"`
}

// GameOverPayload closes a failed run
type GameOverPayload struct {
	Collision   Collision `json:"collision"`
	Attempted   Cell      `json:"attempted"` // head cell that was rejected
	ApplesEaten int       `json:"applesEaten"`
	Length      int       `json:"length"`
}

// PhaseChangePayload records every phase edge
type PhaseChangePayload struct {
	From Phase `json:"from"`
	To   Phase `json:"to"`
}

// DirectionQueuedPayload records accepted input
type DirectionQueuedPayload struct {
	Direction Direction `json:"direction"`
	Current   Direction `json:"current"`
}

// RestartPayload links a fresh run to the one it replaced
type RestartPayload struct {
	PreviousRunID string `json:"previousRunId"`
}

// EncodePayload marshals a payload to JSON bytes
func EncodePayload(payload interface{}) json.RawMessage {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return data
}

// NewEvent creates a new event with the current timestamp
func NewEvent(eventType EventType, tickNum uint64, runID, source string, payload interface{}) Event {
	return Event{
		Version:   EventVersion,
		Type:      eventType,
		Timestamp: time.Now().UnixNano(),
		TickNum:   tickNum,
		RunID:     runID,
		Source:    source,
		Payload:   EncodePayload(payload),
	}
}

// DecodePayload unmarshals the event payload into v
func (e Event) DecodePayload(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}
