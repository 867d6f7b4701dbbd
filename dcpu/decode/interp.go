package decode

import "github.com/rsc-dcpu/dcpu16jit/dcpu"

// locKind tags where a resolved operand reads from / writes back to.
type locKind uint8

const (
	locNone locKind = iota
	locGeneral
	locSP
	locPC
	locEX
	locMemory
)

type loc struct {
	kind locKind
	addr dcpu.Word // register index (as Word) or memory address
}

// resolve computes the operand's value and its writeback location. Order
// matters: resolving a PUSH (B) operand decrements SP before resolving
// anything else, and resolving a POP (A) operand increments SP after
// reading — callers must resolve A before B, per spec.md §4.1's tie-break
// note, so that an instruction pairing POP (A) with PUSH (B) observes SP
// mutated by the pop before the push computes its address.
func resolve(op Operand, s *dcpu.State) (val dcpu.Word, l loc) {
	switch op.Kind {
	case KindRegister:
		l = loc{locGeneral, dcpu.Word(op.Reg)}
	case KindIndirectRegister:
		l = loc{locMemory, s.Regs.Get(op.Reg)}
	case KindIndirectRegisterOffset:
		l = loc{locMemory, s.Regs.Get(op.Reg) + op.NextWord}
	case KindPushPop:
		if op.IsB {
			s.Regs.SP--
			l = loc{locMemory, s.Regs.SP}
		} else {
			l = loc{locMemory, s.Regs.SP}
			s.Regs.SP++
		}
	case KindPeek:
		l = loc{locMemory, s.Regs.SP}
	case KindPick:
		l = loc{locMemory, s.Regs.SP + op.NextWord}
	case KindSP:
		l = loc{locSP, 0}
	case KindPC:
		l = loc{locPC, 0}
	case KindEX:
		l = loc{locEX, 0}
	case KindMemoryAbs:
		l = loc{locMemory, op.NextWord}
	case KindLiteral:
		return op.NextWord, loc{locNone, 0}
	}
	return get(l, s), l
}

func get(l loc, s *dcpu.State) dcpu.Word {
	switch l.kind {
	case locGeneral:
		return s.Regs.Get(dcpu.Register(l.addr))
	case locSP:
		return s.Regs.SP
	case locPC:
		return s.Regs.PC
	case locEX:
		return s.Regs.EX
	case locMemory:
		return s.Mem.Load(l.addr)
	default:
		return 0
	}
}

func set(l loc, s *dcpu.State, v dcpu.Word) {
	switch l.kind {
	case locGeneral:
		s.Regs.Set(dcpu.Register(l.addr), v)
	case locSP:
		s.Regs.SP = v
	case locPC:
		s.Regs.PC = v
	case locEX:
		s.Regs.EX = v
	case locMemory:
		s.Mem.Store(l.addr, v)
	}
}

// Execute runs instr against s as a plain Go interpreter: it is the
// reference semantics every opcode must match (spec.md §4.2), used
// directly by dcpu/exec for HWN/HWQ/HWI/INT/RFI/IAQ — the opcodes the
// translator always leaves at a chunk boundary rather than inlining
// (SPEC_FULL.md §4.2) — and usable standalone as a full
// reference interpreter for tests that cross-check the JIT.
//
// s.Regs.PC must equal instr.Offset on entry. Execute advances it to
// instr.NextOffset (and, for skips/jumps, further) before returning.
// extra reports cycles beyond instr.Cost: the conditional-skip surcharge
// and, for HWI, the device's reported handler cost.
func Execute(mem *dcpu.Memory, s *dcpu.State, instr Instruction) (extra uint8, err error) {
	s.Regs.PC = instr.NextOffset

	if instr.Op.IsConditional() {
		return executeConditional(mem, s, instr)
	}

	av, _ := resolve(instr.A, s)
	var bv dcpu.Word
	var bl loc
	if !instr.Op.IsSpecial() {
		bv, bl = resolve(instr.B, s)
	}

	switch instr.Op {
	case SET:
		set(bl, s, av)
	case ADD:
		res := uint32(bv) + uint32(av)
		set(bl, s, dcpu.Word(res))
		s.Regs.EX = dcpu.Word(res >> 16)
	case SUB:
		res := uint32(bv) - uint32(av)
		set(bl, s, dcpu.Word(res))
		if bv < av {
			s.Regs.EX = 0xffff
		} else {
			s.Regs.EX = 0
		}
	case MUL:
		res := uint32(bv) * uint32(av)
		set(bl, s, dcpu.Word(res))
		s.Regs.EX = dcpu.Word(res >> 16)
	case MLI:
		res := int32(bv.Signed()) * int32(av.Signed())
		set(bl, s, dcpu.Word(res))
		s.Regs.EX = dcpu.Word(uint32(res) >> 16)
	case DIV:
		if av == 0 {
			set(bl, s, 0)
			s.Regs.EX = 0
		} else {
			set(bl, s, bv/av)
			s.Regs.EX = dcpu.Word((uint32(bv) << 16) / uint32(av))
		}
	case DVI:
		if av == 0 {
			set(bl, s, 0)
			s.Regs.EX = 0
		} else {
			set(bl, s, dcpu.Word(int32(bv.Signed())/int32(av.Signed())))
			s.Regs.EX = dcpu.Word((int32(bv.Signed()) << 16) / int32(av.Signed()))
		}
	case MOD:
		if av == 0 {
			set(bl, s, 0)
		} else {
			set(bl, s, bv%av)
		}
	case MDI:
		if av == 0 {
			set(bl, s, 0)
		} else {
			set(bl, s, dcpu.Word(int32(bv.Signed())%int32(av.Signed())))
		}
	case AND:
		set(bl, s, bv&av)
	case BOR:
		set(bl, s, bv|av)
	case XOR:
		set(bl, s, bv^av)
	case SHR:
		set(bl, s, bv>>av)
		s.Regs.EX = dcpu.Word((uint32(bv) << 16) >> av)
	case ASR:
		set(bl, s, dcpu.Word(int32(bv.Signed())>>av))
		s.Regs.EX = dcpu.Word((int32(bv.Signed()) << 16) >> av)
	case SHL:
		res := uint32(bv) << av
		set(bl, s, dcpu.Word(res))
		s.Regs.EX = dcpu.Word(res >> 16)
	case ADX:
		res := uint32(bv) + uint32(av) + uint32(s.Regs.EX)
		set(bl, s, dcpu.Word(res))
		if res > 0xffff {
			s.Regs.EX = 1
		} else {
			s.Regs.EX = 0
		}
	case SBX:
		sum := int64(bv) - int64(av) + int64(s.Regs.EX)
		set(bl, s, dcpu.Word(sum))
		if sum < 0 {
			s.Regs.EX = 0xffff
		} else {
			s.Regs.EX = 0
		}
	case STI:
		set(bl, s, av)
		s.Regs.I++
		s.Regs.J++
	case STD:
		set(bl, s, av)
		s.Regs.I--
		s.Regs.J--
	case JSR:
		ret := s.Regs.PC
		s.Regs.SP--
		s.Mem.Store(s.Regs.SP, ret)
		s.Regs.PC = av
	case INT:
		s.Interrupt(av)
	case IAG:
		writeSpecialA(instr.A, s, s.Regs.IA)
	case IAS:
		s.Regs.IA = av
	case RFI:
		s.Regs.QueueInterrupts = false
		popA := s.Regs.SP
		a := s.Mem.Load(popA)
		s.Regs.SP++
		pc := s.Mem.Load(s.Regs.SP)
		s.Regs.SP++
		s.Regs.A = a
		s.Regs.PC = pc
	case IAQ:
		s.Regs.QueueInterrupts = av != 0
	case HWN:
		writeSpecialA(instr.A, s, dcpu.Word(s.DeviceCount()))
	case HWQ:
		hwq(s, av)
	case HWI:
		c, herr := hwi(s, av)
		extra = c
		err = herr
	default:
		return 0, &OpcodeError{Offset: uint16(instr.Offset)}
	}
	return extra, err
}

// writeSpecialA writes v back to the one-operand (A-only) special
// opcodes' destination operand.
func writeSpecialA(a Operand, s *dcpu.State, v dcpu.Word) {
	_, l := resolve(a, s)
	set(l, s, v)
}

func hwq(s *dcpu.State, n dcpu.Word) {
	if s.Bus == nil || int(n) >= s.Bus.DeviceCount() {
		s.Regs.A, s.Regs.B, s.Regs.C, s.Regs.X, s.Regs.Y = 0, 0, 0, 0, 0
		return
	}
	id, mfg, rev := s.Bus.DeviceAt(int(n)).Identify()
	s.Regs.A = dcpu.Word(id)
	s.Regs.B = dcpu.Word(id >> 16)
	s.Regs.C = dcpu.Word(rev)
	s.Regs.X = dcpu.Word(mfg)
	s.Regs.Y = dcpu.Word(mfg >> 16)
}

func hwi(s *dcpu.State, n dcpu.Word) (uint8, error) {
	if s.Bus == nil || int(n) >= s.Bus.DeviceCount() {
		return 0, nil
	}
	return s.Bus.DeviceAt(int(n)).OnInterrupt(s)
}

// executeConditional implements one IF* test and, on failure, the
// conditional-chain skip: every immediately following IF* is skipped
// too, and finally exactly one non-conditional instruction is skipped,
// at a cost of 1 cycle per instruction skipped (spec.md §4.2, §8
// scenario 5), matching the DCPU-16 v1.7 skip-cost rule.
func executeConditional(mem *dcpu.Memory, s *dcpu.State, instr Instruction) (extra uint8, err error) {
	av, _ := resolve(instr.A, s)
	bv, _ := resolve(instr.B, s)

	var pass bool
	switch instr.Op {
	case IFB:
		pass = (bv & av) != 0
	case IFC:
		pass = (bv & av) == 0
	case IFE:
		pass = bv == av
	case IFN:
		pass = bv != av
	case IFG:
		pass = bv > av
	case IFA:
		pass = bv.Signed() > av.Signed()
	case IFL:
		pass = bv < av
	case IFU:
		pass = bv.Signed() < av.Signed()
	}
	if pass {
		return 0, nil
	}

	pc := s.Regs.PC
	for {
		length := Length(mem, pc)
		opcodeWord := mem.Load(pc)
		baseOp := uint8(opcodeWord & 0x1f)
		isConditional := baseOp != 0 && basicOpcodeTable[baseOp].IsConditional()
		pc += length
		extra++
		if !isConditional {
			break
		}
	}
	s.Regs.PC = pc
	return extra, nil
}
