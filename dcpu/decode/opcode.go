// Package decode implements the DCPU-16 instruction decoder (spec.md
// §4.1): it turns one packed opcode word plus its operand words into a
// structured Instruction. The same decode table backs two consumers: the
// JIT translator (dcpu/jit), which only needs the structural form to emit
// host code, and Execute in this package, a plain Go interpreter used for
// the handful of opcodes the translator refuses to inline (HWN, HWQ, HWI,
// INT, RFI, IAQ — see SPEC_FULL.md §4.2) and as a reference implementation for
// cross-checking the JIT in tests.
package decode

import (
	"fmt"

	"github.com/rsc-dcpu/dcpu16jit/dcpu"
)

// Opcode enumerates every DCPU-16 operation, basic and special, plus
// Invalid for anything the decoder doesn't recognize (spec.md §3).
type Opcode uint8

const (
	Invalid Opcode = iota

	// Basic (two-operand) opcodes.
	SET
	ADD
	SUB
	MUL
	MLI
	DIV
	DVI
	MOD
	MDI
	AND
	BOR
	XOR
	SHR
	ASR
	SHL
	IFB
	IFC
	IFE
	IFN
	IFG
	IFA
	IFL
	IFU
	ADX
	SBX
	STI
	STD

	// Special (one-operand) opcodes.
	JSR
	INT
	IAG
	IAS
	RFI
	IAQ
	HWN
	HWQ
	HWI
)

func (op Opcode) String() string {
	if int(op) < len(opcodeNames) {
		return opcodeNames[op]
	}
	return "INVALID"
}

var opcodeNames = [...]string{
	Invalid: "INVALID",
	SET:     "SET", ADD: "ADD", SUB: "SUB", MUL: "MUL", MLI: "MLI",
	DIV: "DIV", DVI: "DVI", MOD: "MOD", MDI: "MDI",
	AND: "AND", BOR: "BOR", XOR: "XOR", SHR: "SHR", ASR: "ASR", SHL: "SHL",
	IFB: "IFB", IFC: "IFC", IFE: "IFE", IFN: "IFN", IFG: "IFG", IFA: "IFA", IFL: "IFL", IFU: "IFU",
	ADX: "ADX", SBX: "SBX", STI: "STI", STD: "STD",
	JSR: "JSR", INT: "INT", IAG: "IAG", IAS: "IAS", RFI: "RFI", IAQ: "IAQ",
	HWN: "HWN", HWQ: "HWQ", HWI: "HWI",
}

// IsSpecial reports whether op is a one-operand (base-opcode-0) form.
func (op Opcode) IsSpecial() bool { return op >= JSR }

// IsConditional reports whether op is one of the IF* family: a failing
// test skips the following instruction (and any later IFs chained to it).
func (op Opcode) IsConditional() bool { return op >= IFB && op <= IFU }

// baseCost is the opcode's own cycle cost before operand-fetch surcharges,
// per the DCPU-16 v1.7 specification (spec.md §4.1's "Per-opcode base
// cycle costs follow the DCPU-16 v1.7 spec").
var baseCost = [...]uint8{
	SET: 1, ADD: 2, SUB: 2, MUL: 2, MLI: 2, DIV: 3, DVI: 3, MOD: 3, MDI: 3,
	AND: 1, BOR: 1, XOR: 1, SHR: 1, ASR: 1, SHL: 1,
	IFB: 2, IFC: 2, IFE: 2, IFN: 2, IFG: 2, IFA: 2, IFL: 2, IFU: 2,
	ADX: 3, SBX: 3, STI: 2, STD: 2,
	JSR: 3, INT: 4, IAG: 1, IAS: 1, RFI: 3, IAQ: 2, HWN: 2, HWQ: 4, HWI: 4,
}

// basicOpcodeTable maps the 5-bit base opcode field to an Opcode, for
// non-zero base opcodes (spec.md §9's resolution: 0x0B=BOR, 0x0C=XOR,
// 0x0D=SHR, 0x0E=ASR, 0x0F=SHL).
var basicOpcodeTable = [0x20]Opcode{
	0x01: SET, 0x02: ADD, 0x03: SUB, 0x04: MUL, 0x05: MLI,
	0x06: DIV, 0x07: DVI, 0x08: MOD, 0x09: MDI,
	0x0a: AND, 0x0b: BOR, 0x0c: XOR, 0x0d: SHR, 0x0e: ASR, 0x0f: SHL,
	0x10: IFB, 0x11: IFC, 0x12: IFE, 0x13: IFN, 0x14: IFG, 0x15: IFA, 0x16: IFL, 0x17: IFU,
	0x18: ADX, 0x19: SBX, 0x1a: STI, 0x1b: STD,
}

// specialOpcodeTable maps the B field of a base-opcode-0 word to an Opcode.
var specialOpcodeTable = [0x20]Opcode{
	0x01: JSR, 0x08: INT, 0x09: IAG, 0x0a: IAS, 0x0b: RFI, 0x0c: IAQ,
	0x10: HWN, 0x11: HWQ, 0x12: HWI,
}

// OpcodeError reports an invalid opcode encountered at a given offset,
// grounded on lilyball-dcpu16/dcpu/core.OpcodeError. It unwraps to the
// exported dcpu.ErrInvalidOpcode sentinel so callers elsewhere in the
// module can errors.Is against a single invalid-opcode condition without
// depending on this package's positional error type.
type OpcodeError struct {
	Offset uint16
	Word   uint16
}

func (e *OpcodeError) Error() string {
	return fmt.Sprintf("decode: invalid opcode word %#04x at %#06x", e.Word, e.Offset)
}

func (e *OpcodeError) Unwrap() error { return dcpu.ErrInvalidOpcode }
