//go:build amd64

package jit

// x86-64 host register encodings used by the emitter. RDI holds the
// *dcpu.RegisterInfo pointer for the whole chunk (System V AMD64 ABI's
// first integer argument) and is never clobbered; RAX/RBX/RCX/RDX are
// scratch, reloaded from the context on every instruction rather than
// register-allocated across the chunk — the same mem-to-reg-to-mem
// template style as original_source/src/jit.cpp's emitDCPUFetch/emitDCPUPut
// and other_examples/ascrivener-jam__recompiler.go's CodeBuffer.
const (
	regAX = 0
	regCX = 1
	regDX = 2
	regBX = 3
	regSP = 4
	regBP = 5
	regSI = 6
	regDI = 7
)

// codeBuffer accumulates emitted bytes for one chunk, plus a list of
// 32-bit relative-jump sites pending a backpatch once the target offset
// (the conditional chain's shared end label) is known.
type codeBuffer struct {
	code    []byte
	patches []patch
}

type patch struct {
	pos    int // byte offset of the 4-byte displacement to patch
	target string
}

type label struct {
	name string
	pos  int
}

func newCodeBuffer() *codeBuffer {
	return &codeBuffer{code: make([]byte, 0, 256)}
}

func (c *codeBuffer) pos() int { return len(c.code) }

func (c *codeBuffer) emit(b ...byte) { c.code = append(c.code, b...) }

func (c *codeBuffer) emitU32(v uint32) {
	c.emit(byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func (c *codeBuffer) emitI32(v int32) { c.emitU32(uint32(v)) }

func (c *codeBuffer) emitU64(v uint64) {
	c.emitU32(uint32(v))
	c.emitU32(uint32(v >> 32))
}

func rex(w, r, x, b bool) byte {
	v := byte(0x40)
	if w {
		v |= 0x08
	}
	if r {
		v |= 0x04
	}
	if x {
		v |= 0x02
	}
	if b {
		v |= 0x01
	}
	return v
}

func modRM(mod, reg, rm byte) byte { return (mod << 6) | ((reg & 7) << 3) | (rm & 7) }

// emitLoadMem64 emits `mov reg64, [base+disp]`.
func (c *codeBuffer) emitLoadMem64(dst int, disp int32) { c.emitLoadMem64Base(dst, regDI, disp) }

func (c *codeBuffer) emitLoadMem64Base(dst, base int, disp int32) {
	c.emit(rex(true, dst >= 8, false, base >= 8))
	c.emit(0x8b)
	c.emitModRMDisp(byte(dst), byte(base), disp)
}

// emitStoreMem64 emits `mov [base+disp], reg64`.
func (c *codeBuffer) emitStoreMem64(disp int32, src int) { c.emitStoreMem64Base(regDI, disp, src) }

func (c *codeBuffer) emitStoreMem64Base(base int, disp int32, src int) {
	c.emit(rex(true, src >= 8, false, base >= 8))
	c.emit(0x89)
	c.emitModRMDisp(byte(src), byte(base), disp)
}

// emitLoadMem16Zx emits `movzx reg32, word ptr [base+disp]`.
func (c *codeBuffer) emitLoadMem16Zx(dst int, disp int32) { c.emitLoadMem16ZxBase(dst, regDI, disp) }

func (c *codeBuffer) emitLoadMem16ZxBase(dst, base int, disp int32) {
	c.emit(rex(false, dst >= 8, false, base >= 8))
	c.emit(0x0f, 0xb7)
	c.emitModRMDisp(byte(dst), byte(base), disp)
}

// emitLoadMem16Sx emits `movsx reg32, word ptr [base+disp]`.
func (c *codeBuffer) emitLoadMem16Sx(dst int, disp int32) { c.emitLoadMem16SxBase(dst, regDI, disp) }

func (c *codeBuffer) emitLoadMem16SxBase(dst, base int, disp int32) {
	c.emit(rex(false, dst >= 8, false, base >= 8))
	c.emit(0x0f, 0xbf)
	c.emitModRMDisp(byte(dst), byte(base), disp)
}

// emitStoreMem16 emits `mov word ptr [base+disp], reg16` (16-bit operand
// prefix 0x66).
func (c *codeBuffer) emitStoreMem16(disp int32, src int) { c.emitStoreMem16Base(regDI, disp, src) }

func (c *codeBuffer) emitStoreMem16Base(base int, disp int32, src int) {
	c.emit(0x66)
	if src >= 8 || base >= 8 {
		c.emit(rex(false, false, false, base >= 8))
	}
	c.emit(0x89)
	c.emitModRMDisp(byte(src), byte(base), disp)
}

// emitLoadMemByteZx emits `movzx reg32, byte ptr [base+disp]`.
func (c *codeBuffer) emitLoadMemByteZx(dst int, disp int32) {
	c.emitLoadMemByteZxBase(dst, regDI, disp)
}

func (c *codeBuffer) emitLoadMemByteZxBase(dst, base int, disp int32) {
	c.emit(rex(false, dst >= 8, false, base >= 8))
	c.emit(0x0f, 0xb6)
	c.emitModRMDisp(byte(dst), byte(base), disp)
}

// emitStoreMemByte emits `mov byte ptr [base+disp], reg8`.
func (c *codeBuffer) emitStoreMemByte(disp int32, src int) {
	c.emitStoreMemByteBase(regDI, disp, src)
}

func (c *codeBuffer) emitStoreMemByteBase(base int, disp int32, src int) {
	c.emit(rex(false, src >= 8, false, base >= 8))
	c.emit(0x88)
	c.emitModRMDisp(byte(src), byte(base), disp)
}

func (c *codeBuffer) emitModRMDisp(reg, base byte, disp int32) {
	switch {
	case disp == 0 && base&7 != regBP:
		c.emit(modRM(0, reg, base))
	case disp >= -128 && disp <= 127:
		c.emit(modRM(1, reg, base))
		c.emit(byte(disp))
	default:
		c.emit(modRM(2, reg, base))
		c.emitI32(disp)
	}
}

func (c *codeBuffer) emitMovImm32(dst int, v uint32) {
	if dst >= 8 {
		c.emit(rex(false, false, false, true))
	}
	c.emit(0xb8 + byte(dst&7))
	c.emitU32(v)
}

func (c *codeBuffer) emitMovRegReg32(dst, src int) {
	c.emit(0x89)
	c.emit(modRM(3, byte(src), byte(dst)))
}

// emitMovRegReg64 emits `mov dst64, src64`, used to stash a computed
// address (e.g. RBX out of addrToRBX) somewhere it survives a later call
// that reuses RBX as scratch.
func (c *codeBuffer) emitMovRegReg64(dst, src int) {
	c.emit(rex(true, src >= 8, false, dst >= 8))
	c.emit(0x89)
	c.emit(modRM(3, byte(src), byte(dst)))
}

func (c *codeBuffer) emitAddRegReg32(dst, src int) { c.emitAluRegReg32(0x01, dst, src) }
func (c *codeBuffer) emitSubRegReg32(dst, src int) { c.emitAluRegReg32(0x29, dst, src) }
func (c *codeBuffer) emitAndRegReg32(dst, src int) { c.emitAluRegReg32(0x21, dst, src) }
func (c *codeBuffer) emitOrRegReg32(dst, src int)  { c.emitAluRegReg32(0x09, dst, src) }
func (c *codeBuffer) emitXorRegReg32(dst, src int) { c.emitAluRegReg32(0x31, dst, src) }
func (c *codeBuffer) emitCmpRegReg32(a, b int)     { c.emitAluRegReg32(0x39, a, b) }

// emitAluRegReg32 emits a two-operand `op r/m32, r32` form: dst <- dst OP src.
func (c *codeBuffer) emitAluRegReg32(opcode byte, dst, src int) {
	c.emit(opcode)
	c.emit(modRM(3, byte(src), byte(dst)))
}

func (c *codeBuffer) emitImulRegReg32(dst, src int) {
	c.emit(0x0f, 0xaf)
	c.emit(modRM(3, byte(dst), byte(src)))
}

func (c *codeBuffer) emitNotReg32(r int)     { c.emit(0xf7); c.emit(modRM(3, 2, byte(r))) }
func (c *codeBuffer) emitNegReg32(r int)     { c.emit(0xf7); c.emit(modRM(3, 3, byte(r))) }
func (c *codeBuffer) emitIncMem64(disp int32) {
	c.emit(rex(true, false, false, false))
	c.emit(0xff)
	c.emitModRMDisp(0, regDI, disp)
}
func (c *codeBuffer) emitDecMem64(disp int32) {
	c.emit(rex(true, false, false, false))
	c.emit(0xff)
	c.emitModRMDisp(1, regDI, disp)
}

// emitShiftCL emits `shl/shr/sar r32, cl`; ext picks the operation (4=shl,
// 5=shr, 7=sar per the /digit extension of opcode group 0xD3).
func (c *codeBuffer) emitShiftCL(ext byte, r int) {
	c.emit(0xd3)
	c.emit(modRM(3, ext, byte(r)))
}

// emitShiftImm8 emits `shl/shr/sar r32, imm8` (opcode group 0xC1).
func (c *codeBuffer) emitShiftImm8(ext byte, r int, imm uint8) {
	c.emit(0xc1)
	c.emit(modRM(3, ext, byte(r)))
	c.emit(imm)
}

// emitDivUnsigned emits `xor edx,edx; div ebx` (EAX:EDX / EBX -> EAX
// quotient, EDX remainder). Caller must have EAX loaded and the divisor in
// EBX, and must guard against zero itself (DIV/DVI by zero is special-cased
// by the translator rather than left to the host DIV instruction, which
// faults).
func (c *codeBuffer) emitDivUnsigned(divisor int) {
	c.emitXorRegReg32(regDX, regDX)
	c.emit(0xf7)
	c.emit(modRM(3, 6, byte(divisor)))
}

func (c *codeBuffer) emitIdivSigned(divisor int) {
	c.emit(0x99) // cdq: sign-extend eax into edx:eax
	c.emit(0xf7)
	c.emit(modRM(3, 7, byte(divisor)))
}

func (c *codeBuffer) emitAddImm32(dst int, imm uint32) {
	if dst == regAX {
		c.emit(0x05)
	} else {
		c.emit(0x81)
		c.emit(modRM(3, 0, byte(dst)))
	}
	c.emitU32(imm)
}

func (c *codeBuffer) emitSubImm32(dst int, imm uint32) {
	if dst == regAX {
		c.emit(0x2d)
	} else {
		c.emit(0x81)
		c.emit(modRM(3, 5, byte(dst)))
	}
	c.emitU32(imm)
}

func (c *codeBuffer) emitAndImm32(dst int, imm uint32) {
	if dst == regAX {
		c.emit(0x25)
	} else {
		c.emit(0x81)
		c.emit(modRM(3, 4, byte(dst)))
	}
	c.emitU32(imm)
}

// emitLeaSIB emits `lea dst64, [base64 + index64*scale]` — used to fold a
// 16-bit DCPU word address (already masked into index) against the base
// memory pointer into one host address, per the mem-to-mem addressing
// scheme described atop this file.
func (c *codeBuffer) emitLeaSIB(dst, base, index int, scale byte) {
	c.emit(rex(true, dst >= 8, index >= 8, base >= 8))
	c.emit(0x8d)
	c.emit(modRM(0, byte(dst), 4))
	c.emit(sibByte(scaleCode(scale), byte(index), byte(base)))
}

func sibByte(scale, index, base byte) byte { return (scale << 6) | ((index & 7) << 3) | (base & 7) }

func scaleCode(scale byte) byte {
	switch scale {
	case 2:
		return 1
	case 4:
		return 2
	case 8:
		return 3
	default:
		return 0
	}
}

// emitSubMem64Imm emits `sub qword ptr [RDI+disp], imm32`.
func (c *codeBuffer) emitSubMem64Imm(disp int32, imm int32) {
	c.emit(rex(true, false, false, false))
	c.emit(0x81)
	c.emitModRMDisp(5, regDI, disp)
	c.emitI32(imm)
}

// emitCmpMem64Imm0 emits `cmp qword ptr [RDI+disp], 0`.
func (c *codeBuffer) emitCmpMem64Imm0(disp int32) {
	c.emit(rex(true, false, false, false))
	c.emit(0x83)
	c.emitModRMDisp(7, regDI, disp)
	c.emit(0)
}

// emitCmpMemByteImm0 emits `cmp byte ptr [RDI+disp], 0`.
func (c *codeBuffer) emitCmpMemByteImm0(disp int32) {
	c.emit(0x80)
	c.emitModRMDisp(7, regDI, disp)
	c.emit(0)
}

// emitStoreImm16 emits `mov word ptr [RDI+disp], imm16`.
func (c *codeBuffer) emitStoreImm16(disp int32, value uint16) {
	c.emit(0x66)
	c.emit(0xc7)
	c.emitModRMDisp(0, regDI, disp)
	c.emit(byte(value), byte(value>>8))
}

// emitStoreImmByte emits `mov byte ptr [RDI+disp], imm8`.
func (c *codeBuffer) emitStoreImmByte(disp int32, value byte) {
	c.emit(0xc6)
	c.emitModRMDisp(0, regDI, disp)
	c.emit(value)
}

// emitCmpRegImm32 emits `cmp r32, imm32`.
func (c *codeBuffer) emitCmpRegImm32(r int, imm uint32) {
	if r == regAX {
		c.emit(0x3d)
	} else {
		c.emit(0x81)
		c.emit(modRM(3, 7, byte(r)))
	}
	c.emitU32(imm)
}

func (c *codeBuffer) emitRet() { c.emit(0xc3) }

// emitJmp emits a near jmp rel32 to a not-yet-known label, recording a
// backpatch site.
func (c *codeBuffer) emitJmp(target string) {
	c.emit(0xe9)
	c.recordPatch(target)
	c.emitI32(0)
}

// emitJcc emits a near conditional jump with condition code cc (following a
// cmp/test) to a not-yet-known label.
func (c *codeBuffer) emitJcc(cc byte, target string) {
	c.emit(0x0f, 0x80|cc)
	c.recordPatch(target)
	c.emitI32(0)
}

const (
	ccEqual        = 0x4
	ccNotEqual     = 0x5
	ccBelow        = 0x2 // unsigned <
	ccAboveEqual   = 0x3 // unsigned >=
	ccAbove        = 0x7 // unsigned >
	ccBelowEqual   = 0x6 // unsigned <=
	ccLess         = 0xc // signed <
	ccGreaterEqual = 0xd // signed >=
	ccGreater      = 0xf // signed >
	ccLessEqual    = 0xe // signed <=
)

func (c *codeBuffer) recordPatch(target string) {
	c.patches = append(c.patches, patch{pos: c.pos(), target: target})
}

// bindLabels resolves every pending jump against the given label offsets,
// patching each 4-byte relative displacement in place. Every named target
// must appear in labels or bindLabels panics — a translator bug, not a
// runtime condition.
func (c *codeBuffer) bindLabels(labels map[string]int) {
	for _, p := range c.patches {
		target, ok := labels[p.target]
		if !ok {
			panic("jit: unresolved label " + p.target)
		}
		rel := int32(target - (p.pos + 4))
		c.code[p.pos] = byte(rel)
		c.code[p.pos+1] = byte(rel >> 8)
		c.code[p.pos+2] = byte(rel >> 16)
		c.code[p.pos+3] = byte(rel >> 24)
	}
}
