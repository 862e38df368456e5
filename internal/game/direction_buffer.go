package game

// DirectionBuffer holds at most one pending heading between ticks.
// Only the latest accepted input survives; Consume clears it every tick so a
// burst of key presses can change direction at most once per step.
type DirectionBuffer struct {
	pending    Direction
	hasPending bool
}

// Queue stores d unless it reverses current (the heading in effect right
// now, never a previously buffered value). Rejected input is dropped silently.
func (b *DirectionBuffer) Queue(d Direction, current Direction) bool {
	if !d.Valid() || d.IsOpposite(current) {
		return false
	}
	b.pending = d
	b.hasPending = true
	return true
}

// Consume returns the buffered heading, or current when nothing is pending,
// and clears the buffer.
func (b *DirectionBuffer) Consume(current Direction) Direction {
	d := current
	if b.hasPending {
		d = b.pending
	}
	b.Clear()
	return d
}

// Pending returns the buffered heading, if any
func (b *DirectionBuffer) Pending() (Direction, bool) {
	return b.pending, b.hasPending
}

// Clear drops any buffered heading
func (b *DirectionBuffer) Clear() {
	b.pending = 0
	b.hasPending = false
}
