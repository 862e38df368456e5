package streaming

import (
	"bernar-snake/internal/game"
	"bernar-snake/internal/ipc"
)

// SnapshotSource lets the StreamManager work with a local engine or the
// spectator feed. *game.Engine satisfies it directly.
type SnapshotSource interface {
	GetSnapshot() *game.Snapshot
}

// FeedSource wraps an IPC subscriber as a SnapshotSource
type FeedSource struct {
	sub *ipc.Subscriber
}

// NewFeedSource creates a SnapshotSource from a subscriber
func NewFeedSource(sub *ipc.Subscriber) *FeedSource {
	return &FeedSource{sub: sub}
}

// GetSnapshot returns the latest snapshot received, or nil before the first
func (s *FeedSource) GetSnapshot() *game.Snapshot {
	return s.sub.Latest()
}
