package decode

import "github.com/rsc-dcpu/dcpu16jit/dcpu"

// Kind tags the addressing mode of a decoded operand (spec.md §3).
type Kind uint8

const (
	KindRegister Kind = iota
	KindIndirectRegister
	KindIndirectRegisterOffset
	KindPushPop
	KindPeek
	KindPick
	KindSP
	KindPC
	KindEX
	KindMemoryAbs
	KindLiteral
)

// Operand is a single decoded operand: its addressing mode, the register
// it names (when applicable), an embedded 16-bit word (offset, absolute
// address, pick depth, or literal value — whichever the Kind uses), and
// IsB, the role flag that disambiguates KindPushPop into push (B, the
// destination) vs pop (A, the source).
type Operand struct {
	Kind     Kind
	Reg      dcpu.Register
	NextWord dcpu.Word
	IsB      bool
}

// decodeOperandField maps one raw 6-bit (A) or 5-bit (B) operand field to
// its Kind/Register, per the table in spec.md §4.1. hasExtra reports
// whether the mode consumes a following memory word (and so carries the
// +1 cycle surcharge); the caller is responsible for reading that word
// with nextWord and storing it into NextWord.
func decodeOperandField(field uint8, isB bool) (op Operand, hasExtra bool) {
	op.IsB = isB
	switch {
	case field <= 0x07:
		op.Kind = KindRegister
		op.Reg = dcpu.Register(field)
	case field <= 0x0f:
		op.Kind = KindIndirectRegister
		op.Reg = dcpu.Register(field - 0x08)
	case field <= 0x17:
		op.Kind = KindIndirectRegisterOffset
		op.Reg = dcpu.Register(field - 0x10)
		hasExtra = true
	case field == 0x18:
		op.Kind = KindPushPop
	case field == 0x19:
		op.Kind = KindPeek
	case field == 0x1a:
		op.Kind = KindPick
		hasExtra = true
	case field == 0x1b:
		op.Kind = KindSP
	case field == 0x1c:
		op.Kind = KindPC
	case field == 0x1d:
		op.Kind = KindEX
	case field == 0x1e:
		op.Kind = KindMemoryAbs
		hasExtra = true
	case field == 0x1f:
		op.Kind = KindLiteral
		hasExtra = true
	default: // 0x20-0x3f, A only: inline literal -1..30
		op.Kind = KindLiteral
		op.NextWord = dcpu.Word(uint16(field) - 0x21)
	}
	return op, hasExtra
}
