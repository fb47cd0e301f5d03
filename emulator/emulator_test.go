package emulator

import (
	"context"
	"errors"
	"maps"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ezrec/chip8/cpu"
	chip8io "github.com/ezrec/chip8/io"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	now time.Time
}

func (fc *fakeClock) Now() time.Time {
	return fc.now
}

func (fc *fakeClock) Advance(d time.Duration) {
	fc.now = fc.now.Add(d)
}

func newTestEmulator(t *testing.T, rom ...byte) (emu *Emulator, clock *fakeClock) {
	clock = &fakeClock{now: time.Unix(1000, 0)}

	emu = NewEmulator()
	emu.Clock = clock.Now

	err := emu.Load(rom)
	assert.NoError(t, err)

	return
}

func doSteps(t *testing.T, emu *Emulator, count int) (status Status) {
	for range count {
		var err error
		status, err = emu.Step()
		if err != nil {
			t.Log(emu.Cpu.String())
			t.Fatal(err)
		}
	}
	return
}

func TestEmulator(t *testing.T) {
	assert := assert.New(t)

	emu := NewEmulator()

	assert.False(emu.Verbose)
	assert.NotNil(emu.Cpu)
	assert.NotNil(emu.Program)
	assert.Equal(DEFAULT_RATE, emu.Rate)
	assert.Equal(uint16(cpu.PROGRAM_START), emu.Cpu.Pc)
	assert.Nil(emu.Halted())
	assert.Equal(0, emu.LineNo())

	defines := maps.Collect(emu.Defines())
	assert.Equal("64", defines["DISPLAY_WIDTH"])
	assert.Equal("32", defines["DISPLAY_HEIGHT"])
	assert.Equal("60", defines["TIMER_HZ"])
	assert.Equal("0x200", defines["PROGRAM_START"])
}

func TestEmulator_Program(t *testing.T) {
	assert := assert.New(t)

	// ld v0, 5; add v0, 3; jp self
	emu, _ := newTestEmulator(t, 0x60, 0x05, 0x70, 0x03, 0x12, 0x04)

	doSteps(t, emu, 2)
	assert.Equal(uint8(8), emu.Cpu.Register[0])
	assert.Equal(uint16(0x204), emu.Cpu.Pc)

	registers := emu.Cpu.Register
	memory := emu.Cpu.Memory
	doSteps(t, emu, 1000)
	assert.Equal(uint16(0x204), emu.Cpu.Pc)
	assert.Equal(registers, emu.Cpu.Register)
	assert.Equal(memory, emu.Cpu.Memory)
	assert.Equal(1002, emu.Ticks())
}

func TestEmulator_ProgramLoop(t *testing.T) {
	assert := assert.New(t)

	// ld v0, 5; add v0, 3; jp 0x200
	emu, _ := newTestEmulator(t, 0x60, 0x05, 0x70, 0x03, 0x12, 0x00)

	doSteps(t, emu, 2)
	assert.Equal(uint8(8), emu.Cpu.Register[0])

	doSteps(t, emu, 1)
	assert.Equal(uint16(0x200), emu.Cpu.Pc)
	assert.Equal(uint8(8), emu.Cpu.Register[0])
}

func TestEmulator_Load(t *testing.T) {
	assert := assert.New(t)

	emu, _ := newTestEmulator(t, 0x60, 0x05)

	err := emu.Load(make([]byte, cpu.PROGRAM_LIMIT+1))
	assert.ErrorIs(err, cpu.ErrProgramTooLarge)
	assert.Equal(byte(0x60), emu.Cpu.Memory[cpu.PROGRAM_START])

	assert.NoError(emu.Load(make([]byte, cpu.PROGRAM_LIMIT)))
	assert.Equal(byte(0x00), emu.Cpu.Memory[cpu.PROGRAM_START])
}

func TestEmulator_DelayTimer(t *testing.T) {
	assert := assert.New(t)

	// ld v0, 5; ld dt, v0; jp self
	emu, clock := newTestEmulator(t, 0x60, 0x05, 0xf0, 0x15, 0x12, 0x04)

	doSteps(t, emu, 2)
	assert.Equal(uint8(5), emu.Cpu.Delay.Value())

	// No time passed, no ticks.
	doSteps(t, emu, 100)
	assert.Equal(uint8(5), emu.Cpu.Delay.Value())

	for expect := range uint8(5) {
		clock.Advance(TIMER_PERIOD)
		doSteps(t, emu, 1)
		assert.Equal(4-expect, emu.Cpu.Delay.Value())
	}

	// Never below zero.
	for range 10 {
		clock.Advance(TIMER_PERIOD)
		doSteps(t, emu, 1)
	}
	assert.Equal(uint8(0), emu.Cpu.Delay.Value())
}

func TestEmulator_TimerCatchUp(t *testing.T) {
	assert := assert.New(t)

	// ld v0, 20; ld dt, v0; jp self
	emu, clock := newTestEmulator(t, 0x60, 20, 0xf0, 0x15, 0x12, 0x04)
	doSteps(t, emu, 2)

	// A stall of five periods is made up one tick per step.
	clock.Advance(5 * TIMER_PERIOD)
	doSteps(t, emu, 1)
	assert.Equal(uint8(19), emu.Cpu.Delay.Value())

	doSteps(t, emu, 4)
	assert.Equal(uint8(15), emu.Cpu.Delay.Value())

	doSteps(t, emu, 10)
	assert.Equal(uint8(15), emu.Cpu.Delay.Value())
}

func TestEmulator_TimerRate(t *testing.T) {
	assert := assert.New(t)

	// ld v0, 255; ld dt, v0; jp self
	emu, clock := newTestEmulator(t, 0x60, 0xff, 0xf0, 0x15, 0x12, 0x04)
	doSteps(t, emu, 2)

	// One second at 1000 instructions per second.
	for range 1000 {
		clock.Advance(time.Millisecond)
		doSteps(t, emu, 1)
	}
	assert.InDelta(255-chip8io.TIMER_HZ, int(emu.Cpu.Delay.Value()), 1)

	// The same second at 100 instructions per second.
	emu, clock = newTestEmulator(t, 0x60, 0xff, 0xf0, 0x15, 0x12, 0x04)
	doSteps(t, emu, 2)
	for range 100 {
		clock.Advance(10 * time.Millisecond)
		doSteps(t, emu, 1)
	}
	assert.InDelta(255-chip8io.TIMER_HZ, int(emu.Cpu.Delay.Value()), 1)
}

func TestEmulator_Sound(t *testing.T) {
	assert := assert.New(t)

	// ld v0, 2; ld st, v0; jp self
	emu, clock := newTestEmulator(t, 0x60, 0x02, 0xf0, 0x18, 0x12, 0x04)

	status := doSteps(t, emu, 1)
	assert.False(status.Sound)

	status = doSteps(t, emu, 1)
	assert.True(status.Sound)
	assert.False(status.SoundStopped)

	clock.Advance(TIMER_PERIOD)
	status = doSteps(t, emu, 1)
	assert.True(status.Sound)
	assert.False(status.SoundStopped)

	clock.Advance(TIMER_PERIOD)
	status = doSteps(t, emu, 1)
	assert.False(status.Sound)
	assert.True(status.SoundStopped)

	clock.Advance(TIMER_PERIOD)
	status = doSteps(t, emu, 1)
	assert.False(status.Sound)
	assert.False(status.SoundStopped)
}

func TestEmulator_SoundCancel(t *testing.T) {
	assert := assert.New(t)

	// ld v0, 0xff; ld st, v0; ld v1, 0; ld st, v1; jp self
	emu, _ := newTestEmulator(t, 0x60, 0xff, 0xf0, 0x18, 0x61, 0x00, 0xf1, 0x18, 0x12, 0x08)

	status := doSteps(t, emu, 2)
	assert.True(status.Sound)

	status = doSteps(t, emu, 1)
	assert.True(status.Sound)
	assert.False(status.SoundStopped)

	status = doSteps(t, emu, 1)
	assert.False(status.Sound)
	assert.True(status.SoundStopped)

	status = doSteps(t, emu, 1)
	assert.False(status.Sound)
	assert.False(status.SoundStopped)
}

func TestEmulator_SoundLoad(t *testing.T) {
	assert := assert.New(t)

	// ld v0, 0xff; ld st, v0; jp self
	rom := []byte{0x60, 0xff, 0xf0, 0x18, 0x12, 0x04}
	emu, _ := newTestEmulator(t, rom...)

	status := doSteps(t, emu, 2)
	assert.True(status.Sound)

	// A new program silences the buzzer.
	assert.NoError(emu.Load([]byte{0x12, 0x00}))
	status = doSteps(t, emu, 1)
	assert.False(status.Sound)
	assert.True(status.SoundStopped)

	status = doSteps(t, emu, 1)
	assert.False(status.SoundStopped)
}

func TestEmulator_Redraw(t *testing.T) {
	assert := assert.New(t)

	// ld i, 0x000; drw v0, v0, 5; drw v0, v0, 5; cls; jp self
	emu, _ := newTestEmulator(t, 0xa0, 0x00, 0xd0, 0x05, 0xd0, 0x05, 0x00, 0xe0, 0x12, 0x08)

	status := doSteps(t, emu, 1)
	assert.False(status.Redraw)

	status = doSteps(t, emu, 1)
	assert.True(status.Redraw)
	frame := emu.Snapshot()
	assert.True(frame[0][0])
	assert.True(frame[4][3])
	assert.Equal(uint8(0), emu.Cpu.Register[0xf])

	status = doSteps(t, emu, 1)
	assert.True(status.Redraw)
	assert.Equal(uint8(1), emu.Cpu.Register[0xf])
	assert.False(emu.Snapshot()[0][0])

	// Clearing a clear screen changes nothing.
	status = doSteps(t, emu, 1)
	assert.False(status.Redraw)

	status = doSteps(t, emu, 1)
	assert.False(status.Redraw)

	// The snapshot is a copy.
	frame = emu.Snapshot()
	frame[1][1] = true
	assert.False(emu.Snapshot()[1][1])
}

func TestEmulator_WaitKey(t *testing.T) {
	assert := assert.New(t)

	// ld v1, k; jp self
	emu, _ := newTestEmulator(t, 0xf1, 0x0a, 0x12, 0x02)

	for range 10 {
		status := doSteps(t, emu, 1)
		assert.True(status.Waiting)
		assert.Equal(uint16(0x200), emu.Cpu.Pc)
	}

	assert.NoError(emu.KeyDown(0x5))
	status := doSteps(t, emu, 1)
	assert.False(status.Waiting)
	assert.Equal(uint8(0x5), emu.Cpu.Register[1])
	assert.Equal(uint16(0x202), emu.Cpu.Pc)

	assert.NoError(emu.KeyUp(0x5))
	doSteps(t, emu, 1)
	assert.False(emu.Cpu.Keypad.Pressed(0x5))
}

func TestEmulator_WaitKeyTimers(t *testing.T) {
	assert := assert.New(t)

	// ld v0, 3; ld dt, v0; ld v1, k; jp self
	emu, clock := newTestEmulator(t, 0x60, 0x03, 0xf0, 0x15, 0xf1, 0x0a, 0x12, 0x06)
	doSteps(t, emu, 2)

	// Timers keep running while waiting on a key.
	for range 3 {
		clock.Advance(TIMER_PERIOD)
		status := doSteps(t, emu, 1)
		assert.True(status.Waiting)
	}
	assert.Equal(uint8(0), emu.Cpu.Delay.Value())
}

func TestEmulator_Keys(t *testing.T) {
	assert := assert.New(t)

	// skp v0; jp self; jp self
	emu, _ := newTestEmulator(t, 0xe0, 0x9e, 0x12, 0x02, 0x12, 0x04)

	assert.ErrorIs(emu.KeyDown(0x10), chip8io.ErrKeyInvalid)

	// Key events are applied at the start of the next step.
	assert.NoError(emu.KeyDown(0x0))
	assert.False(emu.Cpu.Keypad.Pressed(0x0))
	doSteps(t, emu, 1)
	assert.Equal(uint16(0x204), emu.Cpu.Pc)

	for range chip8io.KEY_QUEUE {
		assert.NoError(emu.KeyUp(0x1))
	}
	assert.ErrorIs(emu.KeyUp(0x1), chip8io.ErrChannelFull)
	doSteps(t, emu, 1)
	assert.NoError(emu.KeyUp(0x1))
}

func TestEmulator_Halt(t *testing.T) {
	assert := assert.New(t)

	// ld v0, 1; .word 0xffff
	emu, _ := newTestEmulator(t, 0x60, 0x01, 0xff, 0xff)

	doSteps(t, emu, 1)

	_, err := emu.Step()
	assert.ErrorIs(err, cpu.ErrUnknownOpcode)

	var rt *ErrRuntime
	if assert.True(errors.As(err, &rt)) {
		assert.Equal(uint16(0x202), rt.Pc)
		assert.Equal(0, rt.LineNo)
	}
	assert.Equal(err, emu.Halted())

	// Halted until reloaded.
	for range 3 {
		_, again := emu.Step()
		assert.Equal(err, again)
	}
	assert.Equal(uint16(0x202), emu.Cpu.Pc)
	assert.Equal(1, emu.Ticks())

	assert.NoError(emu.Load([]byte{0x12, 0x00}))
	assert.Nil(emu.Halted())
	doSteps(t, emu, 5)
}

func TestEmulator_StackOverflow(t *testing.T) {
	assert := assert.New(t)

	// call 0x200, forever.
	emu, _ := newTestEmulator(t, 0x22, 0x00)

	doSteps(t, emu, cpu.STACK_LIMIT)

	_, err := emu.Step()
	assert.ErrorIs(err, cpu.ErrStackOverflow)
	assert.NotErrorIs(err, cpu.ErrStackUnderflow)
}

func TestEmulator_Assemble(t *testing.T) {
	assert := assert.New(t)

	emu, _ := newTestEmulator(t)

	source := []string{
		"; draw the last column",
		"ld v0, $(DISPLAY_WIDTH - 1)",
		"ld v1, 0",
		"ld i, dot",
		"drw v0, v1, 1",
		".word 0xffff",
		"dot: .byte 0x80",
	}

	err := emu.Assemble(strings.NewReader(strings.Join(source, "\n")))
	assert.NoError(err)

	assert.Equal(2, emu.LineNo())
	doSteps(t, emu, 4)
	assert.True(emu.Snapshot()[0][63])

	assert.Equal(6, emu.LineNo())
	_, err = emu.Step()
	var rt *ErrRuntime
	if assert.True(errors.As(err, &rt)) {
		assert.Equal(6, rt.LineNo)
		assert.Equal(uint16(0x208), rt.Pc)
	}

	// A plain load drops the listing.
	assert.NoError(emu.Load([]byte{0x12, 0x00}))
	assert.Equal(0, emu.LineNo())
}

func TestEmulator_AssembleError(t *testing.T) {
	assert := assert.New(t)

	emu, _ := newTestEmulator(t, 0x60, 0x42)

	err := emu.Assemble(strings.NewReader("ld v0, 1\nbogus"))
	var se *cpu.ErrSyntax
	if assert.True(errors.As(err, &se)) {
		assert.Equal(2, se.LineNo)
	}

	// The previous program is untouched.
	assert.Equal(byte(0x42), emu.Cpu.Memory[cpu.PROGRAM_START+1])
}

func TestEmulator_Run(t *testing.T) {
	assert := assert.New(t)

	// ld v0, 1; add v0, 1; jp 0x202
	emu, _ := newTestEmulator(t, 0x60, 0x01, 0x70, 0x01, 0x12, 0x02)
	emu.Rate = 10000

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	steps := 0
	err := emu.Run(ctx, func(status Status) error {
		steps++
		if steps == 20 {
			cancel()
		}
		return nil
	})
	assert.ErrorIs(err, context.Canceled)
	assert.Equal(20, steps)
	assert.Equal(20, emu.Ticks())
}

func TestEmulator_RunYieldError(t *testing.T) {
	assert := assert.New(t)

	emu, _ := newTestEmulator(t, 0x12, 0x00)
	emu.Rate = 10000

	errStop := errors.New("stop")
	steps := 0
	err := emu.Run(context.Background(), func(status Status) error {
		steps++
		if steps == 5 {
			return errStop
		}
		return nil
	})
	assert.ErrorIs(err, errStop)
	assert.Equal(5, steps)
}

func TestEmulator_RunHalt(t *testing.T) {
	assert := assert.New(t)

	// ret, with nothing to return to.
	emu, _ := newTestEmulator(t, 0x00, 0xee)
	emu.Rate = 10000

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := emu.Run(ctx, nil)
	assert.ErrorIs(err, cpu.ErrStackUnderflow)
	assert.NotErrorIs(err, context.DeadlineExceeded)
}
