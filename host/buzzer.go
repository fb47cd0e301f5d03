//go:build !headless

package host

import (
	"log"

	"github.com/ebitengine/oto/v3"
)

// Buzzer plays a square tone while the sound timer runs.
type Buzzer struct {
	Verbose bool // If set, enables verbose logging.

	ctx    *oto.Context
	player *oto.Player
	tone   *Tone
}

// NewBuzzer opens the audio device, and starts a silent tone.
func NewBuzzer() (bz *Buzzer, err error) {
	op := &oto.NewContextOptions{
		SampleRate:   SAMPLE_RATE,
		ChannelCount: 1,
		Format:       oto.FormatFloat32LE,
	}

	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return
	}
	<-ready

	bz = &Buzzer{
		ctx:  ctx,
		tone: NewTone(SAMPLE_RATE, TONE_HZ),
	}
	bz.player = ctx.NewPlayer(bz.tone)
	bz.player.Play()

	return
}

// Sound turns the tone on or off.
func (bz *Buzzer) Sound(on bool) {
	if bz.Verbose && on != bz.tone.on.Load() {
		log.Printf("buzzer: %v", on)
	}
	bz.tone.Enable(on)
}

// Close stops the tone.
func (bz *Buzzer) Close() (err error) {
	bz.tone.Enable(false)
	err = bz.player.Close()

	return
}
