//go:build amd64

package jit

import "github.com/rsc-dcpu/dcpu16jit/dcpu/decode"

// emitInstructionBody emits the semantic effect of one non-conditional,
// non-boundary instruction (spec.md §4.2's "otherwise emits the
// instruction-specific semantics"). The caller has already stored the
// static successor PC and emits the cost debit/cycle hook afterward; every
// case here mirrors the corresponding branch of dcpu/decode.Execute.
func (tr *translator) emitInstructionBody(insn decode.Instruction) {
	c := tr.c

	switch insn.Op {
	case decode.SET:
		tr.loadOperand(insn.A, regAX, false)
		tr.storeOperand(insn.B, regAX)

	case decode.ADD:
		tr.loadOperand(insn.A, regDX, false)
		b := tr.resolveOperand(insn.B, regAX, false)
		c.emitAddRegReg32(regAX, regDX)
		tr.storeResolved(b, regAX)
		c.emitShiftImm8(5, regAX, 16) // shr eax,16 -> carry
		c.emitStoreMem16(offEX, regAX)

	case decode.SUB:
		tr.loadOperand(insn.A, regDX, false)
		b := tr.resolveOperand(insn.B, regAX, false)
		c.emitCmpRegReg32(regAX, regDX)
		borrow := tr.newLabel("subborrow")
		done := tr.newLabel("subdone")
		c.emitJcc(ccBelow, borrow)
		c.emitStoreImm16(offEX, 0)
		c.emitJmp(done)
		tr.bind(borrow)
		c.emitStoreImm16(offEX, 0xffff)
		tr.bind(done)
		c.emitSubRegReg32(regAX, regDX)
		tr.storeResolved(b, regAX)

	case decode.MUL:
		tr.loadOperand(insn.A, regDX, false)
		b := tr.resolveOperand(insn.B, regAX, false)
		c.emitImulRegReg32(regAX, regDX)
		tr.storeResolved(b, regAX)
		c.emitShiftImm8(5, regAX, 16)
		c.emitStoreMem16(offEX, regAX)

	case decode.MLI:
		tr.loadOperand(insn.A, regDX, true)
		b := tr.resolveOperand(insn.B, regAX, true)
		c.emitImulRegReg32(regAX, regDX)
		tr.storeResolved(b, regAX)
		c.emitShiftImm8(5, regAX, 16)
		c.emitStoreMem16(offEX, regAX)

	case decode.DIV, decode.DVI, decode.MOD, decode.MDI:
		tr.emitDivMod(insn)

	case decode.AND:
		tr.loadOperand(insn.A, regDX, false)
		b := tr.resolveOperand(insn.B, regAX, false)
		c.emitAndRegReg32(regAX, regDX)
		tr.storeResolved(b, regAX)

	case decode.BOR:
		tr.loadOperand(insn.A, regDX, false)
		b := tr.resolveOperand(insn.B, regAX, false)
		c.emitOrRegReg32(regAX, regDX)
		tr.storeResolved(b, regAX)

	case decode.XOR:
		tr.loadOperand(insn.A, regDX, false)
		b := tr.resolveOperand(insn.B, regAX, false)
		c.emitXorRegReg32(regAX, regDX)
		tr.storeResolved(b, regAX)

	case decode.SHR:
		tr.emitShift(insn, false, false)
	case decode.ASR:
		tr.emitShift(insn, true, false)
	case decode.SHL:
		tr.emitShift(insn, false, true)

	case decode.ADX:
		tr.loadOperand(insn.A, regDX, false)
		b := tr.resolveOperand(insn.B, regAX, false)
		c.emitAddRegReg32(regAX, regDX)
		c.emitLoadMem16Zx(regDX, offEX)
		c.emitAddRegReg32(regAX, regDX)
		tr.storeResolved(b, regAX)
		over := tr.newLabel("adxover")
		done := tr.newLabel("adxdone")
		c.emitCmpRegImm32(regAX, 0xffff)
		c.emitJcc(ccAbove, over)
		c.emitStoreImm16(offEX, 0)
		c.emitJmp(done)
		tr.bind(over)
		c.emitStoreImm16(offEX, 1)
		tr.bind(done)

	case decode.SBX:
		tr.loadOperand(insn.A, regDX, false)
		b := tr.resolveOperand(insn.B, regAX, false)
		c.emitSubRegReg32(regAX, regDX)
		c.emitLoadMem16Zx(regDX, offEX)
		c.emitAddRegReg32(regAX, regDX)
		tr.storeResolved(b, regAX)
		under := tr.newLabel("sbxunder")
		done := tr.newLabel("sbxdone")
		c.emitCmpRegImm32(regAX, 0)
		c.emitJcc(ccLess, under)
		c.emitStoreImm16(offEX, 0)
		c.emitJmp(done)
		tr.bind(under)
		c.emitStoreImm16(offEX, 0xffff)
		tr.bind(done)

	case decode.STI:
		tr.loadOperand(insn.A, regAX, false)
		tr.storeOperand(insn.B, regAX)
		for _, off := range []int32{offI, offJ} { // 16-bit wrap, no carry into the next field
			c.emitLoadMem16Zx(regAX, off)
			c.emitAddImm32(regAX, 1)
			c.emitStoreMem16(off, regAX)
		}

	case decode.STD:
		tr.loadOperand(insn.A, regAX, false)
		tr.storeOperand(insn.B, regAX)
		for _, off := range []int32{offI, offJ} { // 16-bit wrap, no borrow from the next field
			c.emitLoadMem16Zx(regAX, off)
			c.emitSubImm32(regAX, 1)
			c.emitStoreMem16(off, regAX)
		}

	case decode.JSR:
		// dcpu/decode.Execute resolves A before decrementing SP and
		// pushing; load A first so an SP-relative A (JSR POP/PEEK) reads
		// the stack as it stood before this JSR's own push.
		tr.loadOperand(insn.A, regAX, false)
		c.emitMovRegReg32(regDX, regAX)
		pushTarget := decode.Operand{Kind: decode.KindPushPop, IsB: true}
		c.emitLoadMem16Zx(regAX, offPC)
		tr.storeOperand(pushTarget, regAX)
		c.emitStoreMem16(offPC, regDX)

	case decode.IAG:
		c.emitLoadMem16Zx(regAX, offIA)
		tr.storeOperand(insn.A, regAX)

	case decode.IAS:
		tr.loadOperand(insn.A, regAX, false)
		c.emitStoreMem16(offIA, regAX)
	}
}

// emitDivMod covers DIV/DVI/MOD/MDI: on a zero divisor the result (and, for
// DIV/DVI, EX) is zero per spec.md §4.2; otherwise EX is set from a second,
// independent division of the dividend shifted left 16 bits, matching
// dcpu/decode.Execute's double-division formula exactly.
func (tr *translator) emitDivMod(insn decode.Instruction) {
	c := tr.c
	signed := insn.Op == decode.DVI || insn.Op == decode.MDI
	isDiv := insn.Op == decode.DIV || insn.Op == decode.DVI

	tr.loadOperand(insn.B, regAX, signed)
	tr.loadOperand(insn.A, regBX, signed) // divisor
	c.emitMovRegReg32(regCX, regAX)       // backup of B, survives the divisions

	zero := tr.newLabel("divzero")
	done := tr.newLabel("divdone")
	c.emit(0x85, modRM(3, regBX, regBX)) // test ebx, ebx
	c.emitJcc(ccEqual, zero)

	if isDiv {
		exDone := tr.newLabel("divexdone")
		if signed {
			// idiv faults on 0x80000000 / -1; (B<<16) / -1 always has zero
			// low 16 bits, so a divisor of -1 sets EX to 0 without dividing.
			exDiv := tr.newLabel("divex")
			c.emitCmpRegImm32(regBX, 0xffffffff)
			c.emitJcc(ccNotEqual, exDiv)
			c.emitStoreImm16(offEX, 0)
			c.emitJmp(exDone)
			tr.bind(exDiv)
		}
		c.emitMovRegReg32(regAX, regCX)
		c.emitShiftImm8(4, regAX, 16) // shl eax,16
		if signed {
			c.emitIdivSigned(regBX)
		} else {
			c.emitDivUnsigned(regBX)
		}
		c.emitStoreMem16(offEX, regAX)
		tr.bind(exDone)
	}

	c.emitMovRegReg32(regAX, regCX)
	if signed {
		c.emitIdivSigned(regBX)
	} else {
		c.emitDivUnsigned(regBX)
	}
	result := regAX // quotient
	if !isDiv {
		result = regDX // remainder
	}
	tr.storeOperand(insn.B, result)
	c.emitJmp(done)

	tr.bind(zero)
	c.emitMovImm32(regAX, 0)
	if isDiv {
		c.emitStoreImm16(offEX, 0)
	}
	tr.storeOperand(insn.B, regAX)

	tr.bind(done)
}

// emitShift covers SHR/ASR/SHL. left selects SHL, whose EX value is simply
// the upper 16 bits of the same 32-bit shift that produces B's new value;
// SHR/ASR instead need EX from an independent shift of B<<16, so both are
// computed before B is overwritten.
func (tr *translator) emitShift(insn decode.Instruction, arithmetic, left bool) {
	c := tr.c
	tr.loadOperand(insn.B, regAX, arithmetic)
	tr.loadOperand(insn.A, regCX, false) // shift count

	ext := byte(5) // shr
	if left {
		ext = 4
	} else if arithmetic {
		ext = 7 // sar
	}

	// x86's shl/shr/sar mask their count to cl&31 in hardware, but
	// dcpu/decode.Execute shifts with Go's native semantics, which has no
	// such wraparound: a real count of 32 or more must saturate (to 0, or
	// for ASR to the sign-filled value) rather than fall through to a
	// masked host shift by some smaller, effectively random amount.
	big := tr.newLabel("shiftbig")
	done := tr.newLabel("shiftdone")
	c.emitCmpRegImm32(regCX, 32)
	c.emitJcc(ccAboveEqual, big)

	if left {
		c.emitShiftCL(ext, regAX)
		tr.storeOperand(insn.B, regAX)
		c.emitShiftImm8(5, regAX, 16)
		c.emitStoreMem16(offEX, regAX)
		c.emitJmp(done)

		tr.bind(big)
		c.emitMovImm32(regAX, 0)
		tr.storeOperand(insn.B, regAX)
		c.emitStoreMem16(offEX, regAX)

		tr.bind(done)
		return
	}

	c.emitMovRegReg32(regDX, regAX) // backup of B for the EX computation
	c.emitShiftImm8(4, regAX, 16)   // eax = B<<16
	c.emitShiftCL(ext, regAX)
	c.emitStoreMem16(offEX, regAX)

	c.emitMovRegReg32(regAX, regDX)
	c.emitShiftCL(ext, regAX)
	tr.storeOperand(insn.B, regAX)
	c.emitJmp(done)

	tr.bind(big)
	if arithmetic {
		// ASR saturates to the sign-filled value: regAX still holds B
		// sign-extended to 32 bits, so its sign settles both B and EX.
		neg := tr.newLabel("shiftbigneg")
		c.emitCmpRegImm32(regAX, 0)
		c.emitJcc(ccLess, neg)
		c.emitMovImm32(regAX, 0)
		tr.storeOperand(insn.B, regAX)
		c.emitStoreMem16(offEX, regAX)
		c.emitJmp(done)

		tr.bind(neg)
		c.emitMovImm32(regAX, 0xffff)
		tr.storeOperand(insn.B, regAX)
		c.emitStoreMem16(offEX, regAX)
	} else {
		c.emitMovImm32(regAX, 0)
		tr.storeOperand(insn.B, regAX)
		c.emitStoreMem16(offEX, regAX)
	}

	tr.bind(done)
}
