package streaming

import (
	"os"
	"sync"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/vorbis"
	"github.com/rs/zerolog/log"
)

// MusicPlayer decodes an OGG Vorbis file on demand and loops it.
// A player whose file failed to load outputs silence.
type MusicPlayer struct {
	mu sync.Mutex

	streamer  beep.StreamSeekCloser
	resampled beep.Streamer // streamer at the mixer's rate

	volume  float64
	enabled bool
	loaded  bool

	filePath   string
	sampleRate int

	// Reused between reads to avoid per-frame allocations
	work [][2]float64
}

// NewMusicPlayer opens filePath for streaming at sampleRate.
// samplesPerRead is the largest stereo sample count one ReadSamples asks for.
func NewMusicPlayer(filePath string, volume float64, sampleRate, samplesPerRead int) *MusicPlayer {
	mp := &MusicPlayer{
		filePath:   filePath,
		volume:     volume,
		enabled:    true,
		sampleRate: sampleRate,
		work:       make([][2]float64, samplesPerRead),
	}

	if err := mp.load(); err != nil {
		// Stream continues with sound effects only
		log.Warn().Err(err).Str("path", filePath).Msg("⚠️ Background music disabled")
	}
	return mp
}

func (mp *MusicPlayer) load() error {
	file, err := os.Open(mp.filePath)
	if err != nil {
		return err
	}

	// Sets up streaming decode, not a full decode
	streamer, format, err := vorbis.Decode(file)
	if err != nil {
		file.Close()
		return err
	}

	mp.streamer = streamer
	mp.loaded = true
	mp.resampled = streamer
	if int(format.SampleRate) != mp.sampleRate {
		mp.resampled = beep.Resample(4, format.SampleRate, beep.SampleRate(mp.sampleRate), streamer)
	}

	log.Info().Str("path", mp.filePath).Int("sampleRate", int(format.SampleRate)).
		Int("channels", format.NumChannels).Msg("🎵 Background music loaded")
	return nil
}

// ReadSamples fills buffer with interleaved stereo int16 samples,
// looping at the end of the track. Silence when not loaded or disabled.
func (mp *MusicPlayer) ReadSamples(buffer []int16) int {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if !mp.loaded || !mp.enabled || mp.resampled == nil {
		for i := range buffer {
			buffer[i] = 0
		}
		return len(buffer)
	}

	stereo := len(buffer) / 2
	if stereo > len(mp.work) {
		stereo = len(mp.work)
	}
	work := mp.work[:stereo]
	n, ok := mp.resampled.Stream(work)

	if !ok || n < stereo {
		if err := mp.streamer.Seek(0); err != nil {
			log.Warn().Err(err).Msg("⚠️ Music loop seek failed")
		}
		if n < stereo {
			mp.resampled.Stream(work[n:])
		}
	}

	for i := 0; i < stereo; i++ {
		buffer[i*2] = floatToInt16(work[i][0] * mp.volume)
		buffer[i*2+1] = floatToInt16(work[i][1] * mp.volume)
	}
	return len(buffer)
}

// floatToInt16 converts a -1.0..1.0 sample with soft clipping above ±30000
func floatToInt16(sample float64) int16 {
	scaled := sample * 32767.0

	if scaled > 30000 {
		scaled = 30000 + (scaled-30000)/4
	} else if scaled < -30000 {
		scaled = -30000 + (scaled+30000)/4
	}

	if scaled > 32767 {
		scaled = 32767
	} else if scaled < -32768 {
		scaled = -32768
	}
	return int16(scaled)
}

// SetVolume clamps v to 0.0..1.0
func (mp *MusicPlayer) SetVolume(v float64) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if v < 0 {
		v = 0
	} else if v > 1 {
		v = 1
	}
	mp.volume = v
}

// SetEnabled mutes or unmutes without closing the file
func (mp *MusicPlayer) SetEnabled(e bool) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.enabled = e
}

// IsLoaded reports whether the file decoded
func (mp *MusicPlayer) IsLoaded() bool {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return mp.loaded
}

// Close releases the decoder
func (mp *MusicPlayer) Close() error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.loaded = false
	if mp.streamer != nil {
		return mp.streamer.Close()
	}
	return nil
}
