package tui

import (
	"math"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/generators"
	"github.com/gopxl/beep/speaker"
)

// Chime plays short tones on game events. A Chime whose speaker failed to
// initialise stays silent.
type Chime struct {
	mu         sync.Mutex
	sampleRate beep.SampleRate
	volume     float64
	ready      bool
}

// NewChime creates a silent chime; call Init to open the speaker
func NewChime(sampleRate int, volume float64) *Chime {
	if sampleRate <= 0 {
		sampleRate = 44100
	}
	return &Chime{
		sampleRate: beep.SampleRate(sampleRate),
		volume:     volume,
	}
}

// Init opens the speaker with a 100ms buffer
func (c *Chime) Init() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ready {
		return nil
	}
	if err := speaker.Init(c.sampleRate, c.sampleRate.N(time.Second/10)); err != nil {
		return err
	}
	c.ready = true
	return nil
}

// Ready reports whether sounds will be heard
func (c *Chime) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

// Apple plays a rising two-note blip
func (c *Chime) Apple() {
	c.play(60*time.Millisecond, 880, 1320)
}

// Milestone plays a short arpeggio
func (c *Chime) Milestone() {
	c.play(90*time.Millisecond, 660, 880, 1100)
}

// Crash plays a low buzz
func (c *Chime) Crash() {
	c.play(200*time.Millisecond, 110)
}

// Win plays a longer fanfare
func (c *Chime) Win() {
	c.play(120*time.Millisecond, 523, 659, 784, 1046)
}

func (c *Chime) play(noteLen time.Duration, freqs ...float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.ready {
		return
	}

	notes := make([]beep.Streamer, 0, len(freqs))
	for _, f := range freqs {
		sine, err := generators.SineTone(c.sampleRate, f)
		if err != nil {
			return
		}
		notes = append(notes, beep.Take(c.sampleRate.N(noteLen), sine))
	}
	speaker.Play(withVolume(beep.Seq(notes...), c.volume))
}

func withVolume(s beep.Streamer, vol float64) beep.Streamer {
	if vol <= 0 {
		return &effects.Volume{Streamer: s, Base: 2, Silent: true}
	}
	return &effects.Volume{Streamer: s, Base: 2, Volume: math.Log2(vol)}
}
