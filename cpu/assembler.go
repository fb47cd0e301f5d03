// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package cpu

import (
	"bufio"
	"fmt"
	"io"
	"iter"
	"log"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// Macro represents a macro definition in the assembly language.
type Macro struct {
	LineNo int      // Line number of the macro definition.
	Args   []string // Arguments for the macro.
	Lines  []string // Lines of macro text to expand.
}

// Predefined system equates
var sysEquate = map[string]string{
	"LINENO": "0",
}

// Assembler is a single pass macro assembler for CHIP-8 programs.
type Assembler struct {
	Verbose bool     // If set, verbosely logs the assembler actions.
	Opcode  []Opcode // List of generated opcodes.

	predefine map[string]string   // Predefines
	expansion int                 // Count of macro expansions.
	Label     map[string]uint16   // Map of labels to addresses.
	Equate    map[string]string   // Map of equates.
	Macro     map[string](*Macro) // Map of macros.
}

// Predefine defines a new equate or redefines an existing equate.
func (asm *Assembler) Predefine(equ string, value string) {
	if asm.predefine == nil {
		asm.predefine = map[string]string{equ: value}
	} else {
		asm.predefine[equ] = value
	}
}

// PredefineAll predefines every equate in defines.
func (asm *Assembler) PredefineAll(defines iter.Seq2[string, string]) {
	for equ, value := range defines {
		asm.Predefine(equ, value)
	}
}

var reIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)

// registerOf returns the register index of a vN word.
func registerOf(word string) (reg int, ok bool) {
	if len(word) != 2 || (word[0] != 'v' && word[0] != 'V') {
		return
	}
	n, err := strconv.ParseUint(word[1:], 16, 8)
	if err != nil {
		return
	}

	reg = int(n)
	ok = true
	return
}

// valueOf returns the value of a simple word: a number, or a label defined
// so far.
func (asm *Assembler) valueOf(word string) (value int64, err error) {
	if word[0] == '\'' {
		// Character quotes should have been expanded into
		// values in parseLine()
		err = ErrParseCharacter(word)
		return
	}

	addr, ok := asm.Label[word]
	if ok {
		value = int64(addr)
		return
	}

	value, err = strconv.ParseInt(word, 0, 32)
	if err != nil {
		err = ErrParseNumber(word)
		return
	}

	return
}

// byteOf returns an 8-bit operand. Negative values are two's complement.
func (asm *Assembler) byteOf(word string) (value uint8, err error) {
	v64, err := asm.valueOf(word)
	if err != nil {
		return
	}
	if v64 < -0x80 || v64 > 0xff {
		err = ErrValueRange{Value: v64, Bits: 8}
		return
	}

	value = uint8(v64)
	return
}

// nibbleOf returns a 4-bit operand.
func (asm *Assembler) nibbleOf(word string) (value uint8, err error) {
	v64, err := asm.valueOf(word)
	if err != nil {
		return
	}
	if v64 < 0 || v64 > 0xf {
		err = ErrValueRange{Value: v64, Bits: 4}
		return
	}

	value = uint8(v64)
	return
}

// addressOf returns a 12-bit address operand, or the label to link it to.
func (asm *Assembler) addressOf(word string) (addr uint16, label string, err error) {
	if reIdentifier.MatchString(word) {
		label = word
		return
	}

	v64, err := asm.valueOf(word)
	if err != nil {
		return
	}
	if v64 < 0 || v64 > MEMORY_MASK {
		err = ErrValueRange{Value: v64, Bits: 12}
		return
	}

	addr = uint16(v64)
	return
}

// registerArg returns a register operand.
func registerArg(word string) (reg int, err error) {
	reg, ok := registerOf(word)
	if !ok {
		err = ErrRegisterInvalid
	}
	return
}

// argCount checks the operand count.
func argCount(args []string, need int) (err error) {
	switch {
	case len(args) < need:
		err = ErrOpcodeMissing
	case len(args) > need:
		err = ErrOpcodeExtraArgs
	}
	return
}

// parenEval does compile-time $(...) evaluations
func (asm *Assembler) parenEval(expr string) (value int64, err error) {
	thread := starlark.Thread{}
	opts := syntax.FileOptions{}
	pred := starlark.StringDict{}
	for key, str := range asm.Equate {
		if !reIdentifier.MatchString(key) {
			continue
		}
		var v64 int64
		v64, err = asm.valueOf(str)
		if err != nil {
			// Ignore non-integer equates. They may be registers
			// or something else.
			err = nil
			continue
		}
		pred[key] = starlark.MakeInt64(v64)
	}
	for key, addr := range asm.Label {
		pred[key] = starlark.MakeInt(int(addr))
	}
	prog := "rc=" + expr + "\n"
	dict, err := starlark.ExecFileOptions(&opts, &thread, "expr", prog, pred)
	if err != nil {
		return
	}
	st_rc, ok := dict["rc"]
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	st_int, ok := st_rc.(starlark.Int)
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	value, ok = st_int.Int64()
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	return
}

// parseLine parses a single line as an opcode.
func (asm *Assembler) parseLine(line string, lineno int) (words []string, err error) {
	// Set line number.
	asm.Equate["LINENO"] = fmt.Sprintf("%v", lineno)

	// Do 'x' evaluations
	re := regexp.MustCompile(`'\\?[^']'`)
	line = re.ReplaceAllStringFunc(line, func(word string) string {
		str := word[1 : len(word)-1]
		if str[0] == '\\' {
			str = str[1:]
			switch str {
			case "\\":
				str = "\\"
			case "n":
				str = "\n"
			case "r":
				str = "\r"
			case "e":
				str = "\033"
			default:
				return word
			}
		} else if len(str) != 1 {
			return word
		}
		return fmt.Sprintf("%v", str[0])
	})

	// Do $() evaluations
	re = regexp.MustCompile(`\$\([^\$]*\)`)
	line = re.ReplaceAllStringFunc(line, func(str string) string {
		value, _err := asm.parenEval(str[2 : len(str)-1])
		if _err != nil {
			err = _err
		}
		if value < 0 {
			return fmt.Sprintf("%d", value)
		}
		return fmt.Sprintf("%#x", value)
	})
	if err != nil {
		return
	}

	// Operands may be separated by commas.
	line = strings.ReplaceAll(line, ",", " ")

	words = slices.DeleteFunc(strings.Split(line, " "), func(a string) bool { return len(a) == 0 })

	if len(words) == 0 {
		return
	}

	// .equ CONST VALUE
	if len(words) > 0 && words[0] == ".equ" {
		if len(words) != 3 {
			err = ErrEquateSyntax
			return
		}
		_, ok := asm.Equate[words[1]]
		if ok {
			err = ErrEquateDuplicate
			return
		}
		asm.Equate[words[1]] = words[2]
		words = words[:0]
		return
	}

	for n, word := range words {
		if len(word) == 0 {
			continue
		}

		// Check for equate next
		equate, ok := asm.Equate[word]
		if ok {
			words[n] = equate
		}
	}

	for strings.HasSuffix(words[0], ":") {
		label := words[0][:len(words[0])-1]
		_, ok := asm.Label[label]
		if ok {
			err = ErrLabelDuplicate
			return
		}

		if asm.Label == nil {
			asm.Label = make(map[string]uint16, 16)
		}
		asm.Label[label] = asm.currentAddr()
		words = words[1:]
		if len(words) == 0 {
			return
		}
	}

	// .macro processing
	macro, ok := asm.Macro[words[0]]
	if ok {
		name := words[0]

		args := words[1:]
		if len(args) != len(macro.Args) {
			err = ErrMacroSyntax
			return
		}
		// Turn args into equs
		old_equate := maps.Clone(asm.Equate)
		for n, arg := range macro.Args {
			asm.Equate[arg] = words[1+n]
		}
		defer func() { asm.Equate = old_equate }()

		// '@' makes a name local to this expansion.
		asm.expansion++
		local := fmt.Sprintf("%v_%v_", name, asm.expansion)

		for n, line := range macro.Lines {
			lineno := macro.LineNo + n

			line = strings.ReplaceAll(line, "@", local)
			words, err = asm.parseLine(line, lineno)
			if err != nil {
				err = &ErrMacro{Macro: name, Line: lineno, Err: err}
				err = &ErrSyntax{LineNo: lineno, Line: line, Err: err}
				return
			}

			err = asm.parseWords(words, macro.LineNo+n)
			if err != nil {
				err = &ErrMacro{Macro: name, Line: lineno, Err: err}
				err = &ErrSyntax{LineNo: lineno, Line: line, Err: err}
				return
			}
		}

		words = nil
		return
	}

	return
}

// currentAddr gets the address of the next byte to be assembled.
func (asm *Assembler) currentAddr() uint16 {
	if len(asm.Opcode) == 0 {
		return PROGRAM_START
	}

	last := asm.Opcode[len(asm.Opcode)-1]

	return last.Addr + uint16(len(last.Bytes))
}

// Parse parses an input stream into a Program.
func (asm *Assembler) Parse(input io.Reader) (prog *Program, err error) {

	scanner := bufio.NewScanner(input)

	var line string
	var lineno int
	var macro *Macro

	defer func() {
		if err != nil {
			err = &ErrSyntax{LineNo: lineno, Line: line, Err: err}
		}
	}()

	clear(asm.Label)
	asm.Opcode = asm.Opcode[:0]
	asm.expansion = 0
	if asm.Macro == nil {
		asm.Macro = make(map[string](*Macro))
	}
	clear(asm.Macro)
	asm.Equate = maps.Clone(sysEquate)
	maps.Copy(asm.Equate, _cpu_defines)
	for attr, val := range asm.predefine {
		asm.Equate[attr] = val
	}

	for scanner.Scan() {
		text := scanner.Text()
		lineno += 1

		if asm.Verbose {
			log.Printf("%v: %v\n", lineno, text)
		}

		text_comment := strings.Split(text, ";")
		line = strings.TrimSpace(text_comment[0])
		all_words := strings.Split(line, " ")

		var words []string
		for _, single := range all_words {
			if len(single) > 0 {
				words = append(words, single)
			}
		}

		// .macro NAME arg...
		if len(words) > 0 && words[0] == ".macro" {
			if macro != nil {
				err = ErrMacroNesting
				return
			}
			if len(words) < 2 {
				err = ErrMacroSyntax
				return
			}
			_, ok := asm.Macro[words[1]]
			if ok {
				err = ErrMacroDuplicate
				return
			}
			macro = &Macro{
				LineNo: lineno + 1,
			}
			if len(words) > 2 {
				macro.Args = words[2:]
			}
			asm.Macro[words[1]] = macro
			continue
		}

		if len(words) > 0 && words[0] == ".endm" {
			if macro == nil {
				err = ErrMacroLonelyEndm
				return
			}
			macro = nil
			continue
		}

		if macro != nil {
			macro.Lines = append(macro.Lines, line)
			continue
		}

		words, err = asm.parseLine(line, lineno)
		if err != nil {
			return
		}

		err = asm.parseWords(words, lineno)
		if err != nil {
			return
		}
	}

	if err = scanner.Err(); err != nil {
		return
	}

	if macro != nil {
		err = ErrMacroLonely
		return
	}

	// Line number for errors past this point.
	line = ""

	if int(asm.currentAddr())-PROGRAM_START > PROGRAM_LIMIT {
		err = ErrProgramTooLarge
		return
	}

	// Final linking of labels.
	for n := range asm.Opcode {
		op := &asm.Opcode[n]

		if len(op.LinkLabel) == 0 {
			continue
		}
		lineno = op.LineNo
		label := op.LinkLabel
		addr, ok := asm.Label[label]
		if !ok {
			err = ErrLabelMissing(label)
			return
		}
		if len(op.Bytes) < 2 {
			log.Fatalf("Unable to link label '%s' to line %d: %v", label, op.LineNo, op.Words)
		}
		op.Bytes[0] |= byte(addr>>8) & 0xf
		op.Bytes[1] |= byte(addr)
	}

	prog = &Program{
		Opcodes: slices.Clone(asm.Opcode),
	}

	return
}

// parseWords evaluates the words in a line of assembly text.
func (asm *Assembler) parseWords(words []string, lineno int) (err error) {
	var bytes []byte
	var label string

	// no-op
	if len(words) == 0 {
		return
	}

	initial_words := words

	defer func() {
		if err != nil || len(bytes) == 0 {
			return
		}
		opcode := Opcode{LineNo: lineno, Addr: asm.currentAddr(), Words: initial_words, Bytes: bytes, LinkLabel: label}
		asm.Opcode = append(asm.Opcode, opcode)
	}()

	emit := func(code Code) {
		bytes = append(bytes, byte(code>>8), byte(code))
	}

	mnemonic := strings.ToLower(words[0])
	args := words[1:]

	// Special operand names are case insensitive.
	special := make([]string, len(args))
	for n, arg := range args {
		special[n] = strings.ToLower(arg)
	}

	switch mnemonic {
	case ".byte":
		if len(args) == 0 {
			err = ErrOpcodeMissing
			return
		}
		for _, arg := range args {
			var value uint8
			value, err = asm.byteOf(arg)
			if err != nil {
				return
			}
			bytes = append(bytes, value)
		}
	case ".word":
		if len(args) == 0 {
			err = ErrOpcodeMissing
			return
		}
		for _, arg := range args {
			var v64 int64
			v64, err = asm.valueOf(arg)
			if err != nil {
				return
			}
			if v64 < -0x8000 || v64 > 0xffff {
				err = ErrValueRange{Value: v64, Bits: 16}
				return
			}
			bytes = append(bytes, byte(v64>>8), byte(v64))
		}
	case "cls", "ret":
		if err = argCount(args, 0); err != nil {
			return
		}
		op := OP_CLS
		if mnemonic == "ret" {
			op = OP_RET
		}
		emit(MakeCode(op, 0))
	case "sys", "call":
		if err = argCount(args, 1); err != nil {
			return
		}
		op := OP_SYS
		if mnemonic == "call" {
			op = OP_CALL
		}
		var addr uint16
		addr, label, err = asm.addressOf(args[0])
		if err != nil {
			return
		}
		emit(MakeCodeNNN(op, addr))
	case "jp":
		// jp addr | jp v0, addr
		op := OP_JP
		if len(args) == 2 {
			if special[0] != "v0" {
				err = ErrRegisterInvalid
				return
			}
			op = OP_JP_V0
			args = args[1:]
		}
		if err = argCount(args, 1); err != nil {
			return
		}
		var addr uint16
		addr, label, err = asm.addressOf(args[0])
		if err != nil {
			return
		}
		emit(MakeCodeNNN(op, addr))
	case "se", "sne":
		// se vx, byte | se vx, vy
		if err = argCount(args, 2); err != nil {
			return
		}
		var x int
		x, err = registerArg(args[0])
		if err != nil {
			return
		}
		if y, ok := registerOf(args[1]); ok {
			op := OP_SE_VV
			if mnemonic == "sne" {
				op = OP_SNE_VV
			}
			emit(MakeCodeXYN(op, x, y, 0))
			return
		}
		var kk uint8
		kk, err = asm.byteOf(args[1])
		if err != nil {
			return
		}
		op := OP_SE_VB
		if mnemonic == "sne" {
			op = OP_SNE_VB
		}
		emit(MakeCodeXKK(op, x, kk))
	case "ld":
		if err = argCount(args, 2); err != nil {
			return
		}
		var code Code
		code, label, err = asm.parseLoad(args, special)
		if err != nil {
			return
		}
		emit(code)
	case "add":
		// add vx, byte | add vx, vy | add i, vx
		if err = argCount(args, 2); err != nil {
			return
		}
		if special[0] == "i" {
			var x int
			x, err = registerArg(args[1])
			if err != nil {
				return
			}
			emit(MakeCodeXKK(OP_ADD_IV, x, 0))
			return
		}
		var x int
		x, err = registerArg(args[0])
		if err != nil {
			return
		}
		if y, ok := registerOf(args[1]); ok {
			emit(MakeCodeXYN(OP_ADD_VV, x, y, 0))
			return
		}
		var kk uint8
		kk, err = asm.byteOf(args[1])
		if err != nil {
			return
		}
		emit(MakeCodeXKK(OP_ADD_VB, x, kk))
	case "or", "and", "xor", "sub", "subn":
		if err = argCount(args, 2); err != nil {
			return
		}
		var x, y int
		x, err = registerArg(args[0])
		if err != nil {
			return
		}
		y, err = registerArg(args[1])
		if err != nil {
			return
		}
		op := map[string]Mnemonic{
			"or":   OP_OR,
			"and":  OP_AND,
			"xor":  OP_XOR,
			"sub":  OP_SUB,
			"subn": OP_SUBN,
		}[mnemonic]
		emit(MakeCodeXYN(op, x, y, 0))
	case "shr", "shl":
		// shr vx | shr vx, vy
		if len(args) == 0 {
			err = ErrOpcodeMissing
			return
		}
		if len(args) > 2 {
			err = ErrOpcodeExtraArgs
			return
		}
		var x, y int
		x, err = registerArg(args[0])
		if err != nil {
			return
		}
		if len(args) == 2 {
			y, err = registerArg(args[1])
			if err != nil {
				return
			}
		}
		op := OP_SHR
		if mnemonic == "shl" {
			op = OP_SHL
		}
		emit(MakeCodeXYN(op, x, y, 0))
	case "rnd":
		if err = argCount(args, 2); err != nil {
			return
		}
		var x int
		x, err = registerArg(args[0])
		if err != nil {
			return
		}
		var kk uint8
		kk, err = asm.byteOf(args[1])
		if err != nil {
			return
		}
		emit(MakeCodeXKK(OP_RND, x, kk))
	case "drw":
		if err = argCount(args, 3); err != nil {
			return
		}
		var x, y int
		x, err = registerArg(args[0])
		if err != nil {
			return
		}
		y, err = registerArg(args[1])
		if err != nil {
			return
		}
		var n uint8
		n, err = asm.nibbleOf(args[2])
		if err != nil {
			return
		}
		emit(MakeCodeXYN(OP_DRW, x, y, n))
	case "skp", "sknp":
		if err = argCount(args, 1); err != nil {
			return
		}
		var x int
		x, err = registerArg(args[0])
		if err != nil {
			return
		}
		op := OP_SKP
		if mnemonic == "sknp" {
			op = OP_SKNP
		}
		emit(MakeCodeXKK(op, x, 0))
	default:
		err = ErrInstructionInvalid
		return
	}

	return
}

// parseLoad encodes the ld forms.
func (asm *Assembler) parseLoad(args []string, special []string) (code Code, label string, err error) {
	// ld vx, ...
	if x, ok := registerOf(args[0]); ok {
		if y, ok := registerOf(args[1]); ok {
			code = MakeCodeXYN(OP_LD_VV, x, y, 0)
			return
		}
		switch special[1] {
		case "dt":
			code = MakeCodeXKK(OP_LD_VDT, x, 0)
		case "k":
			code = MakeCodeXKK(OP_LD_VK, x, 0)
		case "[i]":
			code = MakeCodeXKK(OP_LD_VI, x, 0)
		default:
			var kk uint8
			kk, err = asm.byteOf(args[1])
			if err != nil {
				return
			}
			code = MakeCodeXKK(OP_LD_VB, x, kk)
		}
		return
	}

	// ld i, addr
	if special[0] == "i" {
		var addr uint16
		addr, label, err = asm.addressOf(args[1])
		if err != nil {
			return
		}
		code = MakeCodeNNN(OP_LD_I, addr)
		return
	}

	// ld <special>, vx
	op, ok := map[string]Mnemonic{
		"dt":  OP_LD_DTV,
		"st":  OP_LD_STV,
		"f":   OP_LD_FV,
		"b":   OP_LD_BV,
		"[i]": OP_LD_IV,
	}[special[0]]
	if !ok {
		err = ErrOpcodeInvalid
		return
	}
	x, err := registerArg(args[1])
	if err != nil {
		return
	}
	code = MakeCodeXKK(op, x, 0)

	return
}
