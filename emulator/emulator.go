// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

// Package emulator drives a CHIP-8 CPU at a fixed instruction rate, with
// the delay and sound timers clocked independently at 60Hz.
package emulator

import (
	"context"
	"fmt"
	"io"
	"iter"
	"log"
	"maps"
	"time"

	"github.com/ezrec/chip8/cpu"
	"github.com/ezrec/chip8/display"
	"github.com/ezrec/chip8/internal"
	chip8io "github.com/ezrec/chip8/io"
)

const (
	DEFAULT_RATE = 700                            // Instructions per second.
	TIMER_PERIOD = time.Second / chip8io.TIMER_HZ // Interval between timer ticks.
)

var _emulator_defines = map[string]string{
	"DISPLAY_WIDTH":  fmt.Sprintf("%d", display.WIDTH),
	"DISPLAY_HEIGHT": fmt.Sprintf("%d", display.HEIGHT),
	"TIMER_HZ":       fmt.Sprintf("%d", chip8io.TIMER_HZ),
}

// Status is the machine state after a single step, for the host.
type Status struct {
	Redraw       bool // Display changed during the step.
	Sound        bool // Buzzer should sound.
	SoundStopped bool // Buzzer went quiet since the previous step.
	Waiting      bool // Suspended on a key wait.
}

// Emulator state. CPU + timer clock + program listing.
type Emulator struct {
	Verbose  bool         // If set, enables verbose logging.
	*cpu.Cpu              // Reference to the CPU simulation.
	Program  *cpu.Program // Reference to the currently running program listing.

	Rate  int              // Instructions per second for Run.
	Clock func() time.Time // Time source for the timers. If nil, time.Now.

	lastTimer time.Time // Time of the last timer tick.
	halted    error     // Fatal error, until the next load.
	sounding  bool      // Buzzer state reported by the previous step.
}

// NewEmulator creates a new emulator.
func NewEmulator() (emu *Emulator) {
	emu = &Emulator{
		Cpu:     cpu.NewCpu(),
		Program: &cpu.Program{},
		Rate:    DEFAULT_RATE,
	}

	return
}

// Defines returns an iterator over all of the defines
func (emu *Emulator) Defines() iter.Seq2[string, string] {
	return internal.IterSeq2Concat(maps.All(_emulator_defines),
		emu.Cpu.Defines(),
	)
}

func (emu *Emulator) now() time.Time {
	if emu.Clock != nil {
		return emu.Clock()
	}
	return time.Now()
}

// Load resets the machine and loads a ROM image. Any program listing is
// discarded, and a halted machine may run again.
func (emu *Emulator) Load(rom []byte) (err error) {
	emu.Cpu.Verbose = emu.Verbose

	err = emu.Cpu.Load(rom)
	if err != nil {
		return
	}

	emu.Program = &cpu.Program{}
	emu.halted = nil
	emu.lastTimer = time.Time{}

	if emu.Verbose {
		log.Printf("emulator: loaded %d bytes", len(rom))
	}

	return
}

// LoadProgram loads an assembled program, keeping its listing for
// diagnostics.
func (emu *Emulator) LoadProgram(prog *cpu.Program) (err error) {
	err = emu.Load(prog.Binary())
	if err != nil {
		return
	}

	emu.Program = prog

	return
}

// Assemble assembles source text, with the emulator defines, and loads it.
func (emu *Emulator) Assemble(input io.Reader) (err error) {
	asm := &cpu.Assembler{Verbose: emu.Verbose}
	asm.PredefineAll(emu.Defines())

	prog, err := asm.Parse(input)
	if err != nil {
		return
	}

	err = emu.LoadProgram(prog)

	return
}

// Ticks returns the instructions executed since the last load.
func (emu *Emulator) Ticks() int {
	return emu.Cpu.Ticks
}

// LineNo returns the current line number for the executing opcode, or 0
// if there is no listing for it.
func (emu *Emulator) LineNo() int {
	dbg := emu.Program.Debug(emu.Cpu.Pc)
	if dbg.Opcode == nil {
		return 0
	}

	return dbg.LineNo
}

// Halted returns the fatal error that stopped the machine, if any.
func (emu *Emulator) Halted() error {
	return emu.halted
}

// Snapshot returns a copy of the display.
func (emu *Emulator) Snapshot() display.Frame {
	return emu.Cpu.Display.Snapshot()
}

// KeyDown queues a key press. Safe to call from any goroutine.
func (emu *Emulator) KeyDown(key uint8) error {
	return emu.Cpu.Keypad.KeyDown(key)
}

// KeyUp queues a key release. Safe to call from any goroutine.
func (emu *Emulator) KeyUp(key uint8) error {
	return emu.Cpu.Keypad.KeyUp(key)
}

// Step applies pending key events, executes a single instruction, and
// ticks the timers once if a timer period has elapsed. A missed period is
// made up one tick per step, never in a burst.
//
// SoundStopped is reported whenever the sound timer has gone from active to
// idle since the previous step: by counting down, by a zero load, or by a
// Load of a new program.
//
// After a fatal error the machine is halted, and every Step returns that
// error until the next load.
func (emu *Emulator) Step() (status Status, err error) {
	if emu.halted != nil {
		err = emu.halted
		return
	}

	// Set CPU verbosity
	emu.Cpu.Verbose = emu.Verbose
	emu.Cpu.Display.Verbose = emu.Verbose

	emu.Cpu.Keypad.Apply()

	pc := emu.Cpu.Pc
	lineno := emu.LineNo()

	err = emu.Cpu.Tick()
	if err != nil {
		err = &ErrRuntime{Pc: pc, LineNo: lineno, Err: err}
		emu.halted = err
		if emu.Verbose {
			log.Printf("emulator: halted: %v", err)
			log.Printf("emulator: state:\n%v", emu.Cpu.String())
		}
		return
	}

	now := emu.now()
	if emu.lastTimer.IsZero() {
		emu.lastTimer = now
	}
	if now.Sub(emu.lastTimer) >= TIMER_PERIOD {
		emu.Cpu.TickTimers()
		emu.lastTimer = emu.lastTimer.Add(TIMER_PERIOD)
	}

	status.Redraw = emu.Cpu.Display.Dirty()
	emu.Cpu.Display.ClearDirty()
	status.Sound = emu.Cpu.SoundActive()
	status.SoundStopped = emu.sounding && !status.Sound
	status.Waiting = emu.Cpu.Waiting

	emu.sounding = status.Sound

	return
}

// Run steps the machine at Rate instructions per second, passing each
// step's status to yield (if not nil). Run returns when the context is
// done, when yield returns an error, or on a fatal machine error.
func (emu *Emulator) Run(ctx context.Context, yield func(Status) error) (err error) {
	rate := emu.Rate
	if rate <= 0 {
		rate = DEFAULT_RATE
	}

	ticker := time.NewTicker(time.Second / time.Duration(rate))
	defer ticker.Stop()

	if emu.Verbose {
		log.Printf("emulator: run at %d instructions/s", rate)
	}

	for {
		select {
		case <-ctx.Done():
			err = ctx.Err()
			return
		case <-ticker.C:
		}

		// Both may be ready; cancellation wins.
		if err = ctx.Err(); err != nil {
			return
		}

		var status Status
		status, err = emu.Step()
		if err != nil {
			return
		}

		if yield != nil {
			err = yield(status)
			if err != nil {
				return
			}
		}
	}
}
