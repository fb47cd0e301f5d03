package cpu

const (
	MEMORY_SIZE   = 4096  // Bytes of addressable memory.
	MEMORY_MASK   = 0xfff // Address bits decoded by the memory.
	PROGRAM_START = 0x200 // Load address and initial PC.
	PROGRAM_LIMIT = MEMORY_SIZE - PROGRAM_START
)

// ReadByte reads memory. The address wraps at MEMORY_SIZE.
func (cpu *Cpu) ReadByte(addr uint16) byte {
	return cpu.Memory[addr&MEMORY_MASK]
}

// WriteByte writes memory. The address wraps at MEMORY_SIZE.
func (cpu *Cpu) WriteByte(addr uint16, value byte) {
	cpu.Memory[addr&MEMORY_MASK] = value
}
