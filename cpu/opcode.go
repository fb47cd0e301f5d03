package cpu

import (
	"fmt"
)

// Mnemonic identifies one of the instruction forms.
type Mnemonic int

//go:generate go tool stringer -linecomment -type=Mnemonic
const (
	OP_CLS     = Mnemonic(0)  // cls
	OP_RET     = Mnemonic(1)  // ret
	OP_SYS     = Mnemonic(2)  // sys
	OP_JP      = Mnemonic(3)  // jp
	OP_CALL    = Mnemonic(4)  // call
	OP_SE_VB   = Mnemonic(5)  // se
	OP_SNE_VB  = Mnemonic(6)  // sne
	OP_SE_VV   = Mnemonic(7)  // se
	OP_LD_VB   = Mnemonic(8)  // ld
	OP_ADD_VB  = Mnemonic(9)  // add
	OP_LD_VV   = Mnemonic(10) // ld
	OP_OR      = Mnemonic(11) // or
	OP_AND     = Mnemonic(12) // and
	OP_XOR     = Mnemonic(13) // xor
	OP_ADD_VV  = Mnemonic(14) // add
	OP_SUB     = Mnemonic(15) // sub
	OP_SHR     = Mnemonic(16) // shr
	OP_SUBN    = Mnemonic(17) // subn
	OP_SHL     = Mnemonic(18) // shl
	OP_SNE_VV  = Mnemonic(19) // sne
	OP_LD_I    = Mnemonic(20) // ld
	OP_JP_V0   = Mnemonic(21) // jp
	OP_RND     = Mnemonic(22) // rnd
	OP_DRW     = Mnemonic(23) // drw
	OP_SKP     = Mnemonic(24) // skp
	OP_SKNP    = Mnemonic(25) // sknp
	OP_LD_VDT  = Mnemonic(26) // ld
	OP_LD_VK   = Mnemonic(27) // ld
	OP_LD_DTV  = Mnemonic(28) // ld
	OP_LD_STV  = Mnemonic(29) // ld
	OP_ADD_IV  = Mnemonic(30) // add
	OP_LD_FV   = Mnemonic(31) // ld
	OP_LD_BV   = Mnemonic(32) // ld
	OP_LD_IV   = Mnemonic(33) // ld
	OP_LD_VI   = Mnemonic(34) // ld
	OP_INVALID = Mnemonic(35) // invalid
)

// OpcodeInfo is the fixed bit pattern of an instruction form: a code
// matches when (code & Mask) == Value. The bits outside Mask are operands.
type OpcodeInfo struct {
	Mask  uint16
	Value uint16
}

// Opcodes is the instruction table, in decode priority order.
var Opcodes = [OP_INVALID]OpcodeInfo{
	OP_CLS:    {0xffff, 0x00e0},
	OP_RET:    {0xffff, 0x00ee},
	OP_SYS:    {0xf000, 0x0000},
	OP_JP:     {0xf000, 0x1000},
	OP_CALL:   {0xf000, 0x2000},
	OP_SE_VB:  {0xf000, 0x3000},
	OP_SNE_VB: {0xf000, 0x4000},
	OP_SE_VV:  {0xf00f, 0x5000},
	OP_LD_VB:  {0xf000, 0x6000},
	OP_ADD_VB: {0xf000, 0x7000},
	OP_LD_VV:  {0xf00f, 0x8000},
	OP_OR:     {0xf00f, 0x8001},
	OP_AND:    {0xf00f, 0x8002},
	OP_XOR:    {0xf00f, 0x8003},
	OP_ADD_VV: {0xf00f, 0x8004},
	OP_SUB:    {0xf00f, 0x8005},
	OP_SHR:    {0xf00f, 0x8006},
	OP_SUBN:   {0xf00f, 0x8007},
	OP_SHL:    {0xf00f, 0x800e},
	OP_SNE_VV: {0xf00f, 0x9000},
	OP_LD_I:   {0xf000, 0xa000},
	OP_JP_V0:  {0xf000, 0xb000},
	OP_RND:    {0xf000, 0xc000},
	OP_DRW:    {0xf000, 0xd000},
	OP_SKP:    {0xf0ff, 0xe09e},
	OP_SKNP:   {0xf0ff, 0xe0a1},
	OP_LD_VDT: {0xf0ff, 0xf007},
	OP_LD_VK:  {0xf0ff, 0xf00a},
	OP_LD_DTV: {0xf0ff, 0xf015},
	OP_LD_STV: {0xf0ff, 0xf018},
	OP_ADD_IV: {0xf0ff, 0xf01e},
	OP_LD_FV:  {0xf0ff, 0xf029},
	OP_LD_BV:  {0xf0ff, 0xf033},
	OP_LD_IV:  {0xf0ff, 0xf055},
	OP_LD_VI:  {0xf0ff, 0xf065},
}

// Code is a single 16-bit instruction word.
type Code uint16

// MakeCode encodes an instruction form with its operand bits. Operand bits
// that overlap the fixed pattern are discarded.
func MakeCode(op Mnemonic, operands uint16) Code {
	info := Opcodes[op]
	return Code(info.Value | (operands & ^info.Mask))
}

// MakeCodeNNN encodes an address form (sys, jp, call, ld i, jp v0).
func MakeCodeNNN(op Mnemonic, nnn uint16) Code {
	return MakeCode(op, nnn&0xfff)
}

// MakeCodeXKK encodes a register and byte form.
func MakeCodeXKK(op Mnemonic, x int, kk uint8) Code {
	return MakeCode(op, (uint16(x&0xf)<<8)|uint16(kk))
}

// MakeCodeXYN encodes a two register form, with an optional nibble.
func MakeCodeXYN(op Mnemonic, x, y int, n uint8) Code {
	return MakeCode(op, (uint16(x&0xf)<<8)|(uint16(y&0xf)<<4)|uint16(n&0xf))
}

// Decode returns the instruction form, or OP_INVALID.
func (code Code) Decode() Mnemonic {
	word := uint16(code)
	for op := range Opcodes {
		info := &Opcodes[op]
		if word&info.Mask == info.Value {
			return Mnemonic(op)
		}
	}

	return OP_INVALID
}

// X returns the first register operand.
func (code Code) X() int {
	return int(code>>8) & 0xf
}

// Y returns the second register operand.
func (code Code) Y() int {
	return int(code>>4) & 0xf
}

// N returns the low nibble.
func (code Code) N() uint8 {
	return uint8(code) & 0xf
}

// KK returns the low byte.
func (code Code) KK() uint8 {
	return uint8(code)
}

// NNN returns the low 12 bits.
func (code Code) NNN() uint16 {
	return uint16(code) & 0xfff
}

// String returns the hexadecimal word and its mnemonic.
func (code Code) String() string {
	return fmt.Sprintf("%04X %v", uint16(code), code.Decode())
}
