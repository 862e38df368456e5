package ipc

import (
	"time"

	"bernar-snake/internal/game"
)

// NewSnapshotMessage converts an engine snapshot for transmission
func NewSnapshotMessage(seq uint64, s *game.Snapshot) *SnapshotMessage {
	msg := &SnapshotMessage{
		Sequence:       seq,
		Timestamp:      time.Now().UnixNano(),
		RunID:          s.RunID,
		Phase:          uint8(s.Phase),
		Collision:      uint8(s.Collision),
		Tick:           s.Tick,
		Width:          s.Grid.Width,
		Height:         s.Grid.Height,
		ApplesEaten:    s.ApplesEaten,
		TickIntervalMs: s.TickIntervalMs,
		WinTarget:      s.WinTarget,
		MilestoneAt:    s.MilestoneAt,
	}
	if s.Apple != nil {
		msg.HasApple = true
		msg.AppleCol, msg.AppleRow = s.Apple.Col, s.Apple.Row
	}

	msg.Segments = make([]SegmentData, len(s.Segments))
	for i, seg := range s.Segments {
		msg.Segments[i] = SegmentData{
			Col:       seg.Cell.Col,
			Row:       seg.Cell.Row,
			Direction: uint8(seg.Dir),
		}
	}
	return msg
}

// ToSnapshot converts a received message back into a game.Snapshot
// so spectators can reuse the same renderers as the host
func (msg *SnapshotMessage) ToSnapshot() *game.Snapshot {
	snap := &game.Snapshot{
		RunID:          msg.RunID,
		Phase:          game.Phase(msg.Phase),
		Collision:      game.Collision(msg.Collision),
		Tick:           msg.Tick,
		Grid:           game.Grid{Width: msg.Width, Height: msg.Height},
		ApplesEaten:    msg.ApplesEaten,
		TickIntervalMs: msg.TickIntervalMs,
		WinTarget:      msg.WinTarget,
		MilestoneAt:    msg.MilestoneAt,
	}
	if msg.HasApple {
		snap.Apple = &game.Cell{Col: msg.AppleCol, Row: msg.AppleRow}
	}

	snap.Segments = make([]game.Segment, len(msg.Segments))
	for i, seg := range msg.Segments {
		snap.Segments[i] = game.Segment{
			Cell: game.Cell{Col: seg.Col, Row: seg.Row},
			Dir:  game.Direction(seg.Direction),
		}
	}
	return snap
}

// HelloFromRules describes the board a spectator is about to watch
func HelloFromRules(r game.Rules, seed int64) HelloMessage {
	return HelloMessage{
		Width:       r.Grid.Width,
		Height:      r.Grid.Height,
		WinTarget:   r.WinTarget,
		MilestoneAt: r.MilestoneAt,
		Seed:        seed,
	}
}
