package cpu

// Opcode is a line of assembled source with its location and output bytes.
type Opcode struct {
	LineNo    int
	Addr      uint16
	Words     []string
	Bytes     []byte
	LinkLabel string
}

// Program is an assembled listing.
type Program struct {
	Opcodes []Opcode
}

// Debug locates the listing line that produced an address.
type Debug struct {
	*Opcode
	Index int
}

// Debug returns the listing entry covering addr, if any.
func (prog *Program) Debug(addr uint16) (dbg Debug) {
	for n, op := range prog.Opcodes {
		if addr >= op.Addr && addr < op.Addr+uint16(len(op.Bytes)) {
			dbg = Debug{
				Opcode: &prog.Opcodes[n],
				Index:  int(addr - op.Addr),
			}
			break
		}
	}

	return
}

// Size returns the number of bytes in the ROM image.
func (prog *Program) Size() (size int) {
	for _, op := range prog.Opcodes {
		size += len(op.Bytes)
	}
	return
}

// Binary returns the ROM image, to be loaded at PROGRAM_START.
func (prog *Program) Binary() (rom []byte) {
	rom = make([]byte, 0, prog.Size())
	for _, op := range prog.Opcodes {
		rom = append(rom, op.Bytes...)
	}

	return
}
