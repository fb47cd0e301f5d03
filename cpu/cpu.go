package cpu

import (
	"fmt"
	"iter"
	"log"
	"maps"
	"math/rand"

	"github.com/ezrec/chip8/display"
	"github.com/ezrec/chip8/io"
)

const (
	REGISTER_COUNT = 16  // v0 through vf
	REGISTER_FLAG  = 0xf // vf: carry, borrow, and collision flag
)

var _cpu_defines = map[string]string{
	"FONT_BASE":     fmt.Sprintf("%#x", FONT_BASE),
	"FONT_HEIGHT":   fmt.Sprintf("%d", FONT_HEIGHT),
	"PROGRAM_START": fmt.Sprintf("%#x", PROGRAM_START),
	"MEMORY_SIZE":   fmt.Sprintf("%#x", MEMORY_SIZE),
	"STACK_LIMIT":   fmt.Sprintf("%d", STACK_LIMIT),
}

// Cpu is the CHIP-8 machine state.
type Cpu struct {
	Verbose bool // Set to enable verbose logging.

	// ShiftUsesVy selects the COSMAC VIP shift, where 8xy6 and 8xyE
	// shift vy into vx. By default vy is ignored.
	ShiftUsesVy bool

	// Random returns the random byte used by rnd. If nil, math/rand is used.
	Random func() uint8

	Memory   [MEMORY_SIZE]byte     // Main memory.
	Register [REGISTER_COUNT]uint8 // Register bank.
	Index    uint16                // Index register (I).
	Pc       uint16                // Program counter.
	Stack    Stack                 // Return address stack.
	Delay    io.Timer              // Delay timer.
	Sound    io.Timer              // Sound timer.
	Waiting  bool                  // Suspended on a key wait.
	Display  *display.Display      // Framebuffer device.
	Keypad   *io.Keypad            // Keypad device.

	Ticks int // Instructions executed since reset.
}

// NewCpu creates a CPU, with attached display and keypad, in the reset state.
func NewCpu() (cpu *Cpu) {
	cpu = &Cpu{
		Display: display.NewDisplay(),
		Keypad:  io.NewKeypad(),
	}

	cpu.Reset()

	return
}

// Defines for the cpu
func (cpu *Cpu) Defines() iter.Seq2[string, string] {
	return maps.All(_cpu_defines)
}

// String returns the current CPU state as a string, one register per line.
func (cpu *Cpu) String() (text string) {
	text += fmt.Sprintf("%5s: %03X\n", "pc", cpu.Pc)
	text += fmt.Sprintf("%5s: %03X\n", "i", cpu.Index)
	for n, val := range cpu.Register {
		text += fmt.Sprintf("%5s: %02X\n", fmt.Sprintf("v%x", n), val)
	}
	strval := "---"
	if val, ok := cpu.Stack.Peek(); ok {
		strval = fmt.Sprintf("%03X", val)
	}
	text += fmt.Sprintf("%5s: %v (%d)\n", "stack", strval, cpu.Stack.Depth)
	text += fmt.Sprintf("%5s: %02X\n", "dt", cpu.Delay.Value())
	text += fmt.Sprintf("%5s: %02X\n", "st", cpu.Sound.Value())

	keys := ""
	if cpu.Keypad != nil {
		for key, down := range cpu.Keypad.State() {
			if down {
				keys += fmt.Sprintf("%X", key)
			}
		}
	}
	if len(keys) == 0 {
		keys = "---"
	}
	text += fmt.Sprintf("%5s: %v\n", "keys", keys)

	return
}

// Reset the CPU state.
//   - Clears memory and installs the font.
//   - Clears the registers, stack, timers, and display.
//   - Sets the PC to PROGRAM_START.
//
// The keypad latch is left alone; it reflects the input device.
func (cpu *Cpu) Reset() {
	if cpu.Verbose {
		log.Printf("cpu: reset")
	}

	clear(cpu.Memory[:])
	copy(cpu.Memory[FONT_BASE:], font[:])

	clear(cpu.Register[:])
	cpu.Index = 0
	cpu.Pc = PROGRAM_START
	cpu.Stack.Reset()
	cpu.Delay.Reset()
	cpu.Sound.Reset()
	cpu.Waiting = false
	cpu.Ticks = 0

	if cpu.Display != nil {
		cpu.Display.Reset()
	}
}

// Load resets the CPU and copies the program to PROGRAM_START. A program
// larger than PROGRAM_LIMIT is refused, with the CPU state unchanged.
func (cpu *Cpu) Load(rom []byte) (err error) {
	if len(rom) > PROGRAM_LIMIT {
		err = ErrProgramTooLarge
		return
	}

	cpu.Reset()
	copy(cpu.Memory[PROGRAM_START:], rom)

	if cpu.Verbose {
		log.Printf("cpu: loaded %d bytes", len(rom))
	}

	return
}

// SoundActive is true while the buzzer should sound.
func (cpu *Cpu) SoundActive() bool {
	return cpu.Sound.Active()
}

// TickTimers counts down both timers once. Reports when the sound timer
// has just stopped.
func (cpu *Cpu) TickTimers() (stopped bool) {
	cpu.Delay.Tick()
	stopped = cpu.Sound.Tick()
	return
}

// Fetch reads the instruction at the PC.
func (cpu *Cpu) Fetch() Code {
	return Code(uint16(cpu.ReadByte(cpu.Pc))<<8 | uint16(cpu.ReadByte(cpu.Pc+1)))
}

// Tick executes a single CPU instruction cycle.
func (cpu *Cpu) Tick() (err error) {
	code := cpu.Fetch()

	err = cpu.Execute(code)

	return
}

// random returns the next random byte.
func (cpu *Cpu) random() uint8 {
	if cpu.Random != nil {
		return cpu.Random()
	}
	return uint8(rand.Intn(256))
}

// skipIf returns the address after the next instruction if cond holds,
// otherwise the address of the next instruction.
func skipIf(cond bool, pc uint16) uint16 {
	if cond {
		return pc + 4
	}
	return pc + 2
}

// Execute executes a single instruction at the current PC.
//
// Every instruction either sets the PC explicitly or advances it by 2. The
// key wait (fx0a) is the exception: with no key pressed the PC is left
// alone and Waiting is set, so the caller executes it again next cycle.
func (cpu *Cpu) Execute(code Code) (err error) {
	pc := cpu.Pc

	defer func() {
		if err != nil && cpu.Verbose {
			log.Printf("%03x: %v: %v", pc, code, err)
		}
	}()

	if cpu.Verbose {
		log.Printf("%03x: %v", pc, code)
	}

	v := &cpu.Register
	x := code.X()
	y := code.Y()
	kk := code.KK()
	nnn := code.NNN()

	next_pc := pc + 2
	cpu.Waiting = false

	switch code.Decode() {
	case OP_CLS:
		cpu.Display.Clear()
	case OP_RET:
		var ok bool
		next_pc, ok = cpu.Stack.Pop()
		if !ok {
			err = &ErrExecute{Pc: pc, Code: code, Err: ErrStackUnderflow}
			return
		}
	case OP_SYS:
		// Machine code routines are not supported; ignored.
	case OP_JP:
		next_pc = nnn
	case OP_CALL:
		if !cpu.Stack.Push(next_pc) {
			err = &ErrExecute{Pc: pc, Code: code, Err: ErrStackOverflow}
			return
		}
		next_pc = nnn
	case OP_SE_VB:
		next_pc = skipIf(v[x] == kk, pc)
	case OP_SNE_VB:
		next_pc = skipIf(v[x] != kk, pc)
	case OP_SE_VV:
		next_pc = skipIf(v[x] == v[y], pc)
	case OP_LD_VB:
		v[x] = kk
	case OP_ADD_VB:
		v[x] += kk
	case OP_LD_VV:
		v[x] = v[y]
	case OP_OR:
		v[x] |= v[y]
	case OP_AND:
		v[x] &= v[y]
	case OP_XOR:
		v[x] ^= v[y]
	case OP_ADD_VV:
		sum := uint16(v[x]) + uint16(v[y])
		v[x] = uint8(sum)
		v[REGISTER_FLAG] = flag(sum > 0xff)
	case OP_SUB:
		borrow := flag(v[x] > v[y])
		v[x] -= v[y]
		v[REGISTER_FLAG] = borrow
	case OP_SHR:
		src := v[x]
		if cpu.ShiftUsesVy {
			src = v[y]
		}
		v[x] = src >> 1
		v[REGISTER_FLAG] = src & 1
	case OP_SUBN:
		borrow := flag(v[y] > v[x])
		v[x] = v[y] - v[x]
		v[REGISTER_FLAG] = borrow
	case OP_SHL:
		src := v[x]
		if cpu.ShiftUsesVy {
			src = v[y]
		}
		v[x] = src << 1
		v[REGISTER_FLAG] = (src >> 7) & 1
	case OP_SNE_VV:
		next_pc = skipIf(v[x] != v[y], pc)
	case OP_LD_I:
		cpu.Index = nnn
	case OP_JP_V0:
		next_pc = uint16(v[0]) + nnn
	case OP_RND:
		v[x] = cpu.random() & kk
	case OP_DRW:
		var sprite [15]byte
		rows := sprite[:code.N()]
		for n := range rows {
			rows[n] = cpu.ReadByte(cpu.Index + uint16(n))
		}
		v[REGISTER_FLAG] = flag(cpu.Display.Draw(v[x], v[y], rows))
	case OP_SKP:
		next_pc = skipIf(cpu.Keypad.Pressed(v[x]), pc)
	case OP_SKNP:
		next_pc = skipIf(!cpu.Keypad.Pressed(v[x]), pc)
	case OP_LD_VDT:
		v[x] = cpu.Delay.Value()
	case OP_LD_VK:
		key, ok := cpu.Keypad.First()
		if !ok {
			// Don't advance to next PC.
			cpu.Waiting = true
			next_pc = pc
			break
		}
		v[x] = key
	case OP_LD_DTV:
		cpu.Delay.Set(v[x])
	case OP_LD_STV:
		cpu.Sound.Set(v[x])
	case OP_ADD_IV:
		cpu.Index += uint16(v[x])
	case OP_LD_FV:
		cpu.Index = glyph(v[x])
	case OP_LD_BV:
		cpu.WriteByte(cpu.Index+0, v[x]/100)
		cpu.WriteByte(cpu.Index+1, (v[x]/10)%10)
		cpu.WriteByte(cpu.Index+2, v[x]%10)
	case OP_LD_IV:
		for n := range x + 1 {
			cpu.WriteByte(cpu.Index+uint16(n), v[n])
		}
	case OP_LD_VI:
		for n := range x + 1 {
			v[n] = cpu.ReadByte(cpu.Index + uint16(n))
		}
	default:
		err = ErrOpcode{Pc: pc, Code: code}
		return
	}

	cpu.Pc = next_pc
	if !cpu.Waiting {
		cpu.Ticks++
	}

	return
}

// flag converts a condition to a vf value.
func flag(cond bool) uint8 {
	if cond {
		return 1
	}
	return 0
}
