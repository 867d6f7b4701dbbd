//go:build amd64

package jit

import (
	"fmt"

	"github.com/rsc-dcpu/dcpu16jit/dcpu"
	"github.com/rsc-dcpu/dcpu16jit/dcpu/decode"
)

// isBoundary reports whether op must never be chunk-internal: it always
// sits at the end of a chunk and is executed afterward by dcpu/decode's
// interpreter (SPEC_FULL.md §4.2's resolved host-call question).
func isBoundary(op decode.Opcode) bool {
	switch op {
	case decode.HWN, decode.HWQ, decode.HWI, decode.INT, decode.RFI, decode.IAQ:
		return true
	default:
		return false
	}
}

// isJump reports whether instr's writeback target is PC — the other kind
// of chunk terminator (spec.md §4.2: "ending at the first instruction
// whose writeback target is PC, or at JSR").
func isJump(instr decode.Instruction) bool {
	if instr.Op == decode.JSR {
		return true
	}
	return !instr.Op.IsSpecial() && instr.B.Kind == decode.KindPC
}

type translator struct {
	mem    *dcpu.Memory
	c      *codeBuffer
	labels map[string]int
	seq    int
}

// Translate decodes a straight-line chunk starting at pc and emits its x86-64
// translation, per spec.md §4.2. It stops at the first boundary opcode or
// writeback-to-PC instruction (inclusive for jumps, exclusive for boundary
// opcodes — the boundary instruction itself is left for dcpu/decode to run).
func Translate(mem *dcpu.Memory, pc dcpu.Word) (code []byte, staticCost uint32, err error) {
	tr := &translator{mem: mem, c: newCodeBuffer(), labels: map[string]int{}}

	cur := pc
	for {
		insn, derr := decode.Decode(mem, cur)
		if derr != nil {
			// INVALID_OPCODE: chunk terminates on first occurrence with a
			// plain return (spec.md §7); the guest observes a no-op.
			tr.c.emitStoreImm16(offPC, uint16(cur))
			tr.emitExit(ExitBoundary)
			break
		}

		if isBoundary(insn.Op) {
			tr.c.emitStoreImm16(offPC, uint16(insn.Offset))
			tr.emitExit(ExitBoundary)
			break
		}

		if insn.Op.IsConditional() {
			next, cerr := tr.emitConditionalChain(cur)
			if cerr != nil {
				return nil, 0, cerr
			}
			staticCost += uint32(chainCost(mem, cur, next))
			cur = next
			continue
		}

		staticCost += uint32(insn.Cost)
		tr.c.emitStoreImm16(offPC, uint16(insn.NextOffset))
		tr.emitInstructionBody(insn)
		tr.emitCostAndChecks(insn.Cost)

		if isJump(insn) {
			tr.emitExit(ExitBudget)
			break
		}
		cur = insn.NextOffset
	}

	tr.c.bindLabels(tr.labels)
	return tr.c.code, staticCost, nil
}

// chainCost re-walks [start,end) summing each instruction's static cost, for
// the cache's recorded chunk cost (spec.md §4.2's "cost map records the
// chunk's total static cost").
func chainCost(mem *dcpu.Memory, start, end dcpu.Word) uint32 {
	var total uint32
	for pc := start; pc < end; {
		insn, err := decode.Decode(mem, pc)
		if err != nil {
			break
		}
		total += uint32(insn.Cost)
		pc = insn.NextOffset
	}
	return total
}

func (tr *translator) newLabel(prefix string) string {
	tr.seq++
	return fmt.Sprintf("%s%d", prefix, tr.seq)
}

func (tr *translator) bind(name string) { tr.labels[name] = tr.c.pos() }

// emitExit stores the given exit reason into EAX and returns to the caller
// (the trampoline invoked from dcpu/exec — see call_amd64.go/.s).
func (tr *translator) emitExit(reason ExitReason) {
	tr.c.emitMovImm32(regAX, uint32(reason))
	tr.c.emitRet()
}

// emitCostAndChecks debits cost from the remaining-budget counter, then
// runs the shared budget/cycle-hook check below.
func (tr *translator) emitCostAndChecks(cost uint8) {
	tr.c.emitSubMem64Imm(offCycles, int32(cost))
	tr.emitBudgetCheckAndHook()
}

// emitBudgetCheckAndHook exits with ExitBudget if the remaining-budget
// counter is no longer positive, then runs the inline cycle hook (spec.md
// §4.3): if an interrupt is deliverable, sets ISR and exits. Callers that
// debit cost themselves (emitOneTest, which must debit on both its pass and
// fail paths) call this directly instead of going through emitCostAndChecks.
func (tr *translator) emitBudgetCheckAndHook() {
	tr.c.emitCmpMem64Imm0(offCycles)
	okBudget := tr.newLabel("budgetok")
	tr.c.emitJcc(ccGreater, okBudget)
	tr.emitExit(ExitBudget)
	tr.bind(okBudget)

	tr.emitCycleHook()
}

// emitCycleHook is the inline replacement for the reference implementation's
// `call cycleHook` (SPEC_FULL.md §4.2): IA == 0, or the queueing flag is set,
// or the queue is empty -> no-op; else set ISR and return.
func (tr *translator) emitCycleHook() {
	skip := tr.newLabel("hookskip")

	tr.c.emitLoadMem16Zx(regAX, offIA)
	tr.c.emit(0x66, 0x85, modRM(3, regAX, regAX)) // test ax, ax
	tr.c.emitJcc(ccEqual, skip)

	tr.c.emitCmpMemByteImm0(offQueueI)
	tr.c.emitJcc(ccNotEqual, skip)

	tr.c.emitCmpMemByteImm0(offQueueS)
	tr.c.emitJcc(ccEqual, skip)

	tr.c.emitStoreImmByte(offISR, 1)
	tr.emitExit(ExitISR)

	tr.bind(skip)
}

// emitConditionalChain implements spec.md §4.2 step 2: pre-scan the
// consecutive IF* run starting at pc, then emit one test per IF, each
// jumping to a shared chain-end label on failure with the decreasing
// skip-cost surcharge, finally falling through into (or bypassing) the
// guarded instruction that follows the chain.
func (tr *translator) emitConditionalChain(pc dcpu.Word) (next dcpu.Word, err error) {
	n := 0
	scan := pc
	for {
		insn, derr := decode.Decode(tr.mem, scan)
		if derr != nil || !insn.Op.IsConditional() {
			break
		}
		n++
		scan = insn.NextOffset
	}
	guardedOffset := scan
	guardedLen := decode.Length(tr.mem, guardedOffset)
	guardedNext := guardedOffset + guardedLen

	chainEnd := tr.newLabel("chainend")

	cur := pc
	for i := 0; i < n; i++ {
		insn, derr := decode.Decode(tr.mem, cur)
		if derr != nil {
			return 0, derr
		}

		tr.c.emitStoreImm16(offPC, uint16(insn.NextOffset))
		tr.emitOneTest(insn, chainEnd, uint8(n-i), guardedNext)

		cur = insn.NextOffset
	}

	// All tests passed: translate the guarded instruction normally, unless
	// it is itself a boundary opcode or decode failure, in which case the
	// chunk simply ends here (same handling as the main Translate loop).
	guarded, derr := decode.Decode(tr.mem, guardedOffset)
	if derr != nil {
		tr.c.emitStoreImm16(offPC, uint16(guardedOffset))
		tr.emitExit(ExitBoundary)
		tr.bind(chainEnd)
		return guardedNext, nil
	}
	if isBoundary(guarded.Op) {
		tr.c.emitStoreImm16(offPC, uint16(guarded.Offset))
		tr.emitExit(ExitBoundary)
		tr.bind(chainEnd)
		return guardedNext, nil
	}

	tr.c.emitStoreImm16(offPC, uint16(guarded.NextOffset))
	tr.emitInstructionBody(guarded)
	tr.emitCostAndChecks(guarded.Cost)
	if isJump(guarded) {
		// The pass path exits here; chainEnd (bound right below) becomes
		// the fail path's landing site, dead on the pass path.
		tr.emitExit(ExitBudget)
	}
	tr.bind(chainEnd)
	// If guarded is not a jump, chainEnd coincides with the position where
	// Translate's loop resumes ordinary translation at guardedNext — the
	// fail path's jmp lands exactly on the next real instruction, matching
	// dcpu/decode.Execute's skip semantics.
	return guardedNext, nil
}

// emitOneTest emits one IF* comparison. insn.Cost is debited unconditionally,
// before the test runs: dcpu/decode.Execute pays an IF's own base cost
// whether it passes or fails, and only the failure path additionally pays
// the surcharge for the instructions it causes to be skipped. On failure
// that surcharge is added, PC is stored past the guarded instruction, and
// control jumps to chainEnd; on success it falls through to the next test
// (or into the guarded instruction).
func (tr *translator) emitOneTest(insn decode.Instruction, chainEnd string, skip uint8, guardedNext dcpu.Word) {
	signed := insn.Op == decode.IFA || insn.Op == decode.IFU
	tr.loadOperand(insn.B, regAX, signed)
	tr.loadOperand(insn.A, regDX, signed)

	tr.c.emitSubMem64Imm(offCycles, int32(insn.Cost))

	pass := tr.newLabel("ifpass")

	switch insn.Op {
	case decode.IFB:
		tr.c.emitAndRegReg32(regAX, regDX)
		tr.c.emit(0x85, modRM(3, regAX, regAX)) // test eax, eax
		tr.c.emitJcc(ccNotEqual, pass)
	case decode.IFC:
		tr.c.emitAndRegReg32(regAX, regDX)
		tr.c.emit(0x85, modRM(3, regAX, regAX))
		tr.c.emitJcc(ccEqual, pass)
	case decode.IFE:
		tr.c.emitCmpRegReg32(regAX, regDX)
		tr.c.emitJcc(ccEqual, pass)
	case decode.IFN:
		tr.c.emitCmpRegReg32(regAX, regDX)
		tr.c.emitJcc(ccNotEqual, pass)
	case decode.IFG:
		tr.c.emitCmpRegReg32(regAX, regDX)
		tr.c.emitJcc(ccAbove, pass)
	case decode.IFA:
		tr.c.emitCmpRegReg32(regAX, regDX)
		tr.c.emitJcc(ccGreater, pass)
	case decode.IFL:
		tr.c.emitCmpRegReg32(regAX, regDX)
		tr.c.emitJcc(ccBelow, pass)
	case decode.IFU:
		tr.c.emitCmpRegReg32(regAX, regDX)
		tr.c.emitJcc(ccLess, pass)
	}

	// Failure path: surcharge the skip cost on top of the base cost already
	// debited above, position PC past the guarded instruction, run the same
	// budget/cycle-hook check every cost debit gets, and join chainEnd.
	tr.c.emitSubMem64Imm(offCycles, int32(skip))
	tr.c.emitStoreImm16(offPC, uint16(guardedNext))
	tr.emitBudgetCheckAndHook()
	tr.c.emitJmp(chainEnd)

	tr.bind(pass)
	tr.emitBudgetCheckAndHook()
}
