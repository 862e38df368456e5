package streaming

import (
	"encoding/binary"
	"sync"
	"time"

	"bernar-snake/internal/game"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/generators"
)

const (
	audioSampleRate = 44100
	audioChannels   = 2
	maxActiveSounds = 8
)

// AudioConfig holds audio mixer configuration
type AudioConfig struct {
	FPS         int     // audio frames are cut to match video frames
	MusicPath   string  // OGG Vorbis, empty for none
	MusicVolume float64 // 0.0-1.0
	SFXVolume   float64 // 0.0-1.0
}

// AudioMixer mixes background music with highlight jingles into
// s16le stereo frames for FFmpeg's audio input
type AudioMixer struct {
	mu              sync.Mutex
	samplesPerFrame int // stereo samples
	bytesPerFrame   int

	sounds       map[game.Highlight][]int16
	activeSounds []*activeSound
	musicPlayer  *MusicPlayer

	mix   []int32
	music []int16
}

type activeSound struct {
	data     []int16
	position int
}

// NewAudioMixer synthesises the jingles and opens the music file if any
func NewAudioMixer(cfg AudioConfig) *AudioMixer {
	if cfg.FPS <= 0 {
		cfg.FPS = 30
	}
	spf := audioSampleRate / cfg.FPS
	m := &AudioMixer{
		samplesPerFrame: spf,
		bytesPerFrame:   spf * audioChannels * 2,
		mix:             make([]int32, spf*audioChannels),
		music:           make([]int16, spf*audioChannels),
		sounds: map[game.Highlight][]int16{
			game.HighlightApple:     jingle(cfg.SFXVolume, 60*time.Millisecond, 880, 1320),
			game.HighlightMilestone: jingle(cfg.SFXVolume, 90*time.Millisecond, 660, 880, 1100),
			game.HighlightGameOver:  jingle(cfg.SFXVolume, 200*time.Millisecond, 110),
			game.HighlightWon:       jingle(cfg.SFXVolume, 120*time.Millisecond, 523, 659, 784, 1046),
		},
	}
	if cfg.MusicPath != "" {
		m.musicPlayer = NewMusicPlayer(cfg.MusicPath, cfg.MusicVolume, audioSampleRate, spf)
	}
	return m
}

// BytesPerFrame is the size of every GenerateFrame result
func (m *AudioMixer) BytesPerFrame() int {
	return m.bytesPerFrame
}

// QueueHighlight starts the jingle for h; HighlightNone is ignored
func (m *AudioMixer) QueueHighlight(h game.Highlight) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.sounds[h]
	if !ok {
		return
	}
	m.activeSounds = append(m.activeSounds, &activeSound{data: data})
	if len(m.activeSounds) > maxActiveSounds {
		m.activeSounds = m.activeSounds[1:]
	}
}

// ActiveSounds returns how many jingles are still playing
func (m *AudioMixer) ActiveSounds() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.activeSounds)
}

// GenerateFrame mixes one video frame's worth of audio with soft limiting
func (m *AudioMixer) GenerateFrame() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.mix {
		m.mix[i] = 0
	}

	if m.musicPlayer != nil && m.musicPlayer.IsLoaded() {
		m.musicPlayer.ReadSamples(m.music)
		for i, s := range m.music {
			m.mix[i] += int32(s)
		}
	}

	alive := m.activeSounds[:0]
	for _, s := range m.activeSounds {
		n := len(s.data) - s.position
		if n > len(m.mix) {
			n = len(m.mix)
		}
		for i := 0; i < n; i++ {
			m.mix[i] += int32(s.data[s.position+i])
		}
		s.position += n
		if s.position < len(s.data) {
			alive = append(alive, s)
		}
	}
	m.activeSounds = alive

	output := make([]byte, m.bytesPerFrame)
	for i, sample := range m.mix {
		if sample > 30000 {
			sample = 30000 + (sample-30000)/4
		} else if sample < -30000 {
			sample = -30000 + (sample+30000)/4
		}
		if sample > 32767 {
			sample = 32767
		} else if sample < -32768 {
			sample = -32768
		}
		binary.LittleEndian.PutUint16(output[i*2:], uint16(int16(sample)))
	}
	return output
}

// Close releases the music decoder
func (m *AudioMixer) Close() {
	if m.musicPlayer != nil {
		m.musicPlayer.Close()
	}
}

// jingle renders a note sequence to interleaved stereo int16 samples
func jingle(volume float64, noteLen time.Duration, freqs ...float64) []int16 {
	sr := beep.SampleRate(audioSampleRate)
	notes := make([]beep.Streamer, 0, len(freqs))
	for _, f := range freqs {
		sine, err := generators.SineTone(sr, f)
		if err != nil {
			return nil
		}
		notes = append(notes, beep.Take(sr.N(noteLen), sine))
	}

	seq := beep.Seq(notes...)
	total := sr.N(noteLen) * len(freqs)
	buf := make([][2]float64, total)
	n, _ := seq.Stream(buf)

	out := make([]int16, n*audioChannels)
	for i := 0; i < n; i++ {
		out[i*2] = floatToInt16(buf[i][0] * volume)
		out[i*2+1] = floatToInt16(buf[i][1] * volume)
	}
	return out
}
