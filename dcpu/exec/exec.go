// Package exec implements the execution and interrupt loop (spec.md
// §4.3): budget injection, chunk dispatch through dcpu/jit's cache,
// interpreted execution of the opcodes the translator leaves at chunk
// boundaries, and interrupt delivery.
package exec

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/rsc-dcpu/dcpu16jit/dcpu"
	"github.com/rsc-dcpu/dcpu16jit/dcpu/decode"
	"github.com/rsc-dcpu/dcpu16jit/dcpu/jit"
)

// Executor drives one *dcpu.State through translated chunks, mirroring
// pdp11.CPU.Step's shape (state, code cache, and a Step-like entry point
// wrapped in a panic-to-error boundary for DEVICE_PANIC, spec.md §7).
type Executor struct {
	State   *dcpu.State
	cache   *jit.Cache
	Elapsed int64 // Σ(consumed cycles), spec.md §8 invariant 3

	// Trace, when set, logs each dispatched chunk's start PC and exit
	// reason (v6run/main.go's -trace flag, adapted).
	Trace func(pc dcpu.Word, reason jit.ExitReason)
}

// New constructs an Executor over s. s.Mem must not be replaced for the
// Executor's lifetime — the cache holds a pointer into it.
func New(s *dcpu.State) *Executor {
	return &Executor{State: s, cache: jit.NewCache(&s.Mem)}
}

// Close releases the code cache's executable mappings (spec.md §5's
// "released together with the emulator").
func (e *Executor) Close() error { return e.cache.Close() }

// Inject credits cycles to the budget and drives Cycle to exhaustion,
// spec.md §4.3's public inject(cycles) operation.
func (e *Executor) Inject(cycles int64) error {
	e.State.Regs.Cycles += cycles
	for {
		cont, err := e.Cycle()
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
	}
}

// Cycle runs exactly one dispatch step: translate-on-miss, invoke the
// chunk, account elapsed cycles, run any boundary instruction the chunk
// left untranslated, and deliver an interrupt if one became due. It
// returns false once the budget is drained or HCF is set.
func (e *Executor) Cycle() (cont bool, err error) {
	s := e.State
	if s.HCF {
		return false, dcpu.ErrHalted
	}
	if s.Regs.Cycles <= 0 {
		return false, nil
	}

	pc := s.Regs.PC
	ch, err := e.cache.Lookup(pc)
	if err != nil {
		return false, err
	}

	pre := s.Regs.Cycles
	reason := ch.Run(unsafe.Pointer(&s.Regs))
	e.Elapsed += pre - s.Regs.Cycles

	if e.Trace != nil {
		e.Trace(pc, reason)
	}

	if reason == jit.ExitBoundary {
		if err := e.stepBoundary(); err != nil {
			return false, err
		}
	}

	if s.Regs.ISR {
		s.Regs.ISR = false
		if err := e.deliverInterrupt(); err != nil {
			return false, err
		}
	}

	if s.HCF {
		return false, nil
	}
	return true, nil
}

// stepBoundary interprets the single instruction the translator refused
// to inline (HWN/HWQ/HWI/INT/RFI/IAQ, or an invalid opcode), via the same
// decode table the JIT consults (SPEC_FULL.md §4.2's resolved design).
// A device panic during HWI is recovered and converted to an error
// (DEVICE_PANIC, spec.md §7), matching pdp11.CPU.Step's recover pattern;
// a panic whose value is a runtime.Error is not converted but re-panicked.
func (e *Executor) stepBoundary() (err error) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(runtime.Error); ok {
				panic(r)
			}
			if e1, ok := r.(error); ok {
				err = fmt.Errorf("device panic: %w", e1)
			} else {
				err = fmt.Errorf("device panic: %v", r)
			}
		}
	}()

	s := e.State
	insn, derr := decode.Decode(&s.Mem, s.Regs.PC)
	if derr != nil {
		// INVALID_OPCODE: spec.md §7 leaves the guest-observable effect at
		// "a no-op" and is silent on how the executor itself keeps
		// advancing; debiting the minimal 1-cycle cost and stepping one
		// word is the executor-side choice that keeps a run of invalid
		// words from spinning the host loop without ever draining the
		// budget (recorded in DESIGN.md).
		s.Regs.PC++
		s.Regs.Cycles--
		e.Elapsed++
		return nil
	}

	extra, xerr := decode.Execute(&s.Mem, s, insn)
	if xerr != nil {
		return xerr
	}
	s.Regs.Cycles -= int64(insn.Cost) + int64(extra)
	e.Elapsed += int64(insn.Cost) + int64(extra)
	return nil
}

// deliverInterrupt implements spec.md §4.3 step 5: pop one interrupt,
// push PC then A, load A and jump to the handler, and set the queueing
// flag so nested interrupts wait for RFI. Overflow is caught at Push
// time (dcpu.State.Interrupt sets HCF there); there is nothing left to
// check here.
func (e *Executor) deliverInterrupt() error {
	s := e.State
	n, ok := s.Queue.Pop()
	if !ok {
		return nil
	}

	s.Regs.SP--
	s.Mem.Store(s.Regs.SP, s.Regs.PC)
	s.Regs.SP--
	s.Mem.Store(s.Regs.SP, s.Regs.A)

	s.Regs.A = n
	s.Regs.PC = s.Regs.IA
	s.Regs.QueueInterrupts = true
	return nil
}
