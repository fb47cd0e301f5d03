// Package cpu implements the CHIP-8 interpreter core and its assembler.
//
// The CPU consists of a 4096 byte memory with the hexadecimal font at
// 0x000, sixteen 8-bit registers (v0-vf, vf doubling as the carry, borrow
// and collision flag), a 16-bit index register, a program counter starting
// at 0x200, a sixteen level call stack, and the delay and sound timers.
// The display and keypad are attached devices.
//
// Execute runs a single decoded instruction against the CPU state, so single
// opcodes can be exercised without an emulator session.
//
// The assembler accepts the conventional CHIP-8 mnemonics, with labels,
// equates, macros, data directives, and compile-time expression evaluation.
package cpu
