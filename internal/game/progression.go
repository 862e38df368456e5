package game

import "time"

// Progression tracks apples eaten and derives speed and the one-shot milestone
type Progression struct {
	rules          Rules
	applesEaten    int
	interval       time.Duration
	milestoneFired bool
}

// NewProgression creates a progression at zero apples
func NewProgression(rules Rules) *Progression {
	p := &Progression{rules: rules}
	p.Reset()
	return p
}

// Reset returns to zero apples and re-arms the milestone
func (p *Progression) Reset() {
	p.applesEaten = 0
	p.milestoneFired = false
	p.interval = p.rules.IntervalFor(0)
}

// restore jumps to n apples, treating the milestone as spent if n is past it
func (p *Progression) restore(n int) {
	p.applesEaten = n
	p.interval = p.rules.IntervalFor(n)
	p.milestoneFired = p.rules.MilestoneAt > 0 && n >= p.rules.MilestoneAt
}

// Record counts one apple. milestone is true only the first time the
// milestone count is reached in this run; won is true once the win target
// is reached.
func (p *Progression) Record() (milestone, won bool) {
	p.applesEaten++
	p.interval = p.rules.IntervalFor(p.applesEaten)

	if p.rules.MilestoneAt > 0 && !p.milestoneFired && p.applesEaten == p.rules.MilestoneAt {
		p.milestoneFired = true
		milestone = true
	}
	won = p.applesEaten >= p.rules.WinTarget
	return milestone, won
}

// ApplesEaten returns the count for this run
func (p *Progression) ApplesEaten() int {
	return p.applesEaten
}

// Interval returns the current tick interval
func (p *Progression) Interval() time.Duration {
	return p.interval
}

// MilestoneFired reports whether the milestone already fired this run
func (p *Progression) MilestoneFired() bool {
	return p.milestoneFired
}
