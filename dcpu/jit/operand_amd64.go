//go:build amd64

package jit

import (
	"github.com/rsc-dcpu/dcpu16jit/dcpu/decode"
)

// addrToRBX computes op's effective byte address into RBX: RBX <- MemPtr +
// 2*wordIndex. For KindPushPop it also performs the SP mutation (decrement
// before computing the push address, increment after capturing the pop
// address), mirroring dcpu/decode.resolve's ordering rule.
func (tr *translator) addrToRBX(op decode.Operand) {
	c := tr.c
	c.emitLoadMem64(regBX, offMemPtr)

	switch op.Kind {
	case decode.KindIndirectRegister:
		c.emitLoadMem16Zx(regCX, offsetOf(op.Reg))
	case decode.KindIndirectRegisterOffset:
		c.emitLoadMem16Zx(regCX, offsetOf(op.Reg))
		c.emitAddImm32(regCX, uint32(op.NextWord))
		c.emitAndImm32(regCX, 0xffff)
	case decode.KindPushPop:
		if op.IsB {
			c.emitLoadMem16Zx(regCX, offSP)
			c.emitSubImm32(regCX, 1)
			c.emitAndImm32(regCX, 0xffff)
			c.emitStoreMem16(offSP, regCX)
		} else {
			// Pop: address is the current SP; bump SP afterward, computed
			// from CX only once the address LEA below has consumed it.
			c.emitLoadMem16Zx(regCX, offSP)
		}
	case decode.KindPeek:
		c.emitLoadMem16Zx(regCX, offSP)
	case decode.KindPick:
		c.emitLoadMem16Zx(regCX, offSP)
		c.emitAddImm32(regCX, uint32(op.NextWord))
		c.emitAndImm32(regCX, 0xffff)
	case decode.KindMemoryAbs:
		c.emitMovImm32(regCX, uint32(op.NextWord))
	}

	c.emitLeaSIB(regBX, regBX, regCX, 2)

	if op.Kind == decode.KindPushPop && !op.IsB {
		c.emitAddImm32(regCX, 1)
		c.emitAndImm32(regCX, 0xffff)
		c.emitStoreMem16(offSP, regCX)
	}
}

// loadOperand loads op's value into dst, zero- or sign-extended per signed.
// Addressed kinds clobber RBX and RCX on the way (see addrToRBX), so dst
// may be one of them but must not be a register the caller still needs.
func (tr *translator) loadOperand(op decode.Operand, dst int, signed bool) {
	c := tr.c
	switch op.Kind {
	case decode.KindRegister:
		if signed {
			c.emitLoadMem16SxBase(dst, regDI, offsetOf(op.Reg))
		} else {
			c.emitLoadMem16ZxBase(dst, regDI, offsetOf(op.Reg))
		}
	case decode.KindSP:
		loadCtx16(c, dst, offSP, signed)
	case decode.KindPC:
		loadCtx16(c, dst, offPC, signed)
	case decode.KindEX:
		loadCtx16(c, dst, offEX, signed)
	case decode.KindLiteral:
		v := uint32(op.NextWord)
		if signed && v&0x8000 != 0 {
			v |= 0xffff0000
		}
		c.emitMovImm32(dst, v)
	default: // indirect register(+offset), push/pop, peek, pick, memory-abs
		tr.addrToRBX(op)
		if signed {
			c.emitLoadMem16SxBase(dst, regBX, 0)
		} else {
			c.emitLoadMem16ZxBase(dst, regBX, 0)
		}
	}
}

func loadCtx16(c *codeBuffer, dst int, disp int32, signed bool) {
	if signed {
		c.emitLoadMem16SxBase(dst, regDI, disp)
	} else {
		c.emitLoadMem16ZxBase(dst, regDI, disp)
	}
}

// storeOperand writes src's low 16 bits back to op's location. Writes to a
// LITERAL operand are silently discarded (spec.md §4.2's addressing note).
func (tr *translator) storeOperand(op decode.Operand, src int) {
	c := tr.c
	switch op.Kind {
	case decode.KindRegister:
		c.emitStoreMem16Base(regDI, offsetOf(op.Reg), src)
	case decode.KindSP:
		c.emitStoreMem16Base(regDI, offSP, src)
	case decode.KindPC:
		c.emitStoreMem16Base(regDI, offPC, src)
	case decode.KindEX:
		c.emitStoreMem16Base(regDI, offEX, src)
	case decode.KindLiteral:
		// discard
	default:
		tr.addrToRBX(op)
		c.emitStoreMem16Base(regBX, 0, src)
	}
}

// resolvedOperand is the token resolveOperand hands back to storeResolved:
// enough to write a read-modify-write op's result back to the exact spot
// its current value was just read from, without resolving the operand a
// second time. Re-resolving a KindPushPop operand would mutate SP again,
// and resolving B before A would disagree with dcpu/decode.Execute's
// A-then-B order — both of which resolveOperand/storeResolved avoid.
type resolvedOperand struct {
	op        decode.Operand
	addressed bool
}

// resolveOperand loads op's current value into dst, signed per signed, and
// returns a token for the later storeResolved call. For the fixed-offset
// kinds (register, SP, PC, EX, literal) this is exactly loadOperand; for
// the addressed kinds (indirect, push/pop, peek, pick, memory-abs) the
// computed address is preserved in RSI across whatever else the caller
// does before writing back (RBX itself is scratch and may be reused).
func (tr *translator) resolveOperand(op decode.Operand, dst int, signed bool) resolvedOperand {
	switch op.Kind {
	case decode.KindRegister, decode.KindSP, decode.KindPC, decode.KindEX, decode.KindLiteral:
		tr.loadOperand(op, dst, signed)
		return resolvedOperand{op: op}
	default:
		c := tr.c
		tr.addrToRBX(op)
		c.emitMovRegReg64(regSI, regBX)
		if signed {
			c.emitLoadMem16SxBase(dst, regBX, 0)
		} else {
			c.emitLoadMem16ZxBase(dst, regBX, 0)
		}
		return resolvedOperand{addressed: true}
	}
}

// storeResolved writes src back to the location r.op/r.addressed was
// resolved from.
func (tr *translator) storeResolved(r resolvedOperand, src int) {
	if r.addressed {
		tr.c.emitStoreMem16Base(regSI, 0, src)
		return
	}
	tr.storeOperand(r.op, src)
}
