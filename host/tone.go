package host

import (
	"encoding/binary"
	"math"
	"sync/atomic"
)

const (
	SAMPLE_RATE    = 44100 // Audio samples per second.
	TONE_HZ        = 440   // Buzzer pitch.
	TONE_AMPLITUDE = 0.25  // Buzzer volume, 0 to 1.
)

// Tone is a square wave source of mono 32-bit float little-endian samples.
// It is silent while off. Enable may be called from any goroutine.
type Tone struct {
	on     atomic.Bool
	period int // Samples per cycle.
	phase  int
}

// NewTone creates a silent tone of the given pitch.
func NewTone(sampleRate int, hz int) (tn *Tone) {
	tn = &Tone{
		period: max(sampleRate/hz, 2),
	}

	return
}

// Enable turns the tone on or off.
func (tn *Tone) Enable(on bool) {
	tn.on.Store(on)
}

// Read fills p with whole samples.
func (tn *Tone) Read(p []byte) (n int, err error) {
	on := tn.on.Load()

	for ; n+4 <= len(p); n += 4 {
		var sample float32
		if on {
			sample = TONE_AMPLITUDE
			if tn.phase >= tn.period/2 {
				sample = -TONE_AMPLITUDE
			}
		}
		binary.LittleEndian.PutUint32(p[n:], math.Float32bits(sample))
		tn.phase = (tn.phase + 1) % tn.period
	}

	return
}
