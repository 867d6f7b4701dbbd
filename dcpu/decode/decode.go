package decode

import "github.com/rsc-dcpu/dcpu16jit/dcpu"

// Instruction is one fully decoded DCPU-16 instruction: its opcode, its
// operands (B is the zero Operand for special/one-operand forms), the
// word offset it started at, the offset immediately following it, and
// its accumulated static cycle cost — the opcode's own base cost plus
// every operand's memory-access surcharge (spec.md §3).
type Instruction struct {
	Op         Opcode
	A, B       Operand
	Offset     dcpu.Word
	NextOffset dcpu.Word
	Cost       uint8
}

// Decode parses the instruction at pc out of mem, without mutating mem or
// any CPU state. It is the single decode table shared by dcpu/jit (which
// only wants this structural form, to build a translated chunk) and by
// Execute in this package (which additionally performs the instruction's
// effect against a live *dcpu.State).
func Decode(mem *dcpu.Memory, pc dcpu.Word) (Instruction, error) {
	insn := Instruction{Offset: pc}
	cur := pc

	nextWord := func() dcpu.Word {
		w := mem.Load(cur)
		cur++
		return w
	}

	opcodeWord := nextWord()
	baseOp := uint8(opcodeWord & 0x1f)
	bField := uint8((opcodeWord >> 5) & 0x1f)
	aField := uint8((opcodeWord >> 10) & 0x3f)

	a, aExtra := decodeOperandField(aField, false)
	if aExtra {
		a.NextWord = nextWord()
		insn.Cost++
	}
	insn.A = a

	if baseOp == 0 {
		insn.Op = specialOpcodeTable[bField]
		if insn.Op == Invalid {
			return Instruction{}, &OpcodeError{Offset: uint16(pc), Word: uint16(opcodeWord)}
		}
	} else {
		b, bExtra := decodeOperandField(bField, true)
		if bExtra {
			b.NextWord = nextWord()
			insn.Cost++
		}
		insn.B = b

		insn.Op = basicOpcodeTable[baseOp]
		if insn.Op == Invalid {
			return Instruction{}, &OpcodeError{Offset: uint16(pc), Word: uint16(opcodeWord)}
		}
	}

	insn.Cost += baseCost[insn.Op]
	insn.NextOffset = cur
	return insn, nil
}

// Length reports how many words (1-3) the instruction at pc occupies,
// without fully decoding operand values — used by the conditional-skip
// path (spec.md §4.2's skipInstruction) to jump over an instruction it
// never needs to execute.
func Length(mem *dcpu.Memory, pc dcpu.Word) dcpu.Word {
	opcodeWord := mem.Load(pc)
	baseOp := uint8(opcodeWord & 0x1f)
	bField := uint8((opcodeWord >> 5) & 0x1f)
	aField := uint8((opcodeWord >> 10) & 0x3f)

	length := dcpu.Word(1)
	if fieldHasExtraWord(aField) {
		length++
	}
	if baseOp != 0 && fieldHasExtraWord(bField) {
		length++
	}
	return length
}

func fieldHasExtraWord(field uint8) bool {
	return (field >= 0x10 && field <= 0x17) || field == 0x1a || field == 0x1e || field == 0x1f
}
