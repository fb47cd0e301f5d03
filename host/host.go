// Package host connects an emulator to the outside world: a window or a
// terminal for the display and keypad, and a buzzer for the sound timer.
//
// The window and buzzer need a display and an audio device. Build with the
// "headless" tag to leave them out; the terminal is always available.
package host

import (
	"context"

	"github.com/ezrec/chip8/display"
	"github.com/ezrec/chip8/emulator"
)

// Machine is the emulator surface driven by a host.
type Machine interface {
	Step() (emulator.Status, error)
	Run(ctx context.Context, yield func(emulator.Status) error) error
	Snapshot() display.Frame
	KeyDown(key uint8) error
	KeyUp(key uint8) error
	Ticks() int
}

// Sounder switches a buzzer on and off.
type Sounder interface {
	Sound(on bool)
}

// soundOf forwards the buzzer state of a step, if it may have changed.
func soundOf(sounder Sounder, status emulator.Status) {
	if sounder == nil {
		return
	}
	if status.Sound || status.SoundStopped {
		sounder.Sound(status.Sound)
	}
}
