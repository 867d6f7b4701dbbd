// Package jit implements the dynamic translation engine (spec.md §4.2): it
// decodes a straight-line chunk of guest instructions starting at a given
// PC, emits x86-64 host code implementing the chunk's semantics, and hands
// back a function pointer the executor can invoke directly.
//
// Host calls from generated code are never emitted — SPEC_FULL.md §4.2
// explains why and what replaces them: the cycle hook is inlined
// compare/branch against fields in dcpu.RegisterInfo, and the handful of
// opcodes that must touch the hardware bus or interrupt queue (HWN, HWQ,
// HWI, INT, RFI, IAQ) are never chunk-internal — they always terminate a
// chunk and are executed afterward by dcpu/decode's Go interpreter.
package jit

import (
	"unsafe"

	"github.com/rsc-dcpu/dcpu16jit/dcpu"
)

// Byte offsets of dcpu.RegisterInfo's fields, computed against the live
// struct layout rather than hardcoded, per spec.md §9's "single
// source-of-truth table" requirement (grounded on
// lilyball-dcpu16/dcpu/dcpu.go's use of unsafe to bridge a Go struct to a
// fixed layout consumed outside ordinary Go code).
var (
	offA      = int32(unsafe.Offsetof(dcpu.RegisterInfo{}.A))
	offB      = int32(unsafe.Offsetof(dcpu.RegisterInfo{}.B))
	offC      = int32(unsafe.Offsetof(dcpu.RegisterInfo{}.C))
	offX      = int32(unsafe.Offsetof(dcpu.RegisterInfo{}.X))
	offY      = int32(unsafe.Offsetof(dcpu.RegisterInfo{}.Y))
	offZ      = int32(unsafe.Offsetof(dcpu.RegisterInfo{}.Z))
	offI      = int32(unsafe.Offsetof(dcpu.RegisterInfo{}.I))
	offJ      = int32(unsafe.Offsetof(dcpu.RegisterInfo{}.J))
	offPC     = int32(unsafe.Offsetof(dcpu.RegisterInfo{}.PC))
	offSP     = int32(unsafe.Offsetof(dcpu.RegisterInfo{}.SP))
	offEX     = int32(unsafe.Offsetof(dcpu.RegisterInfo{}.EX))
	offIA     = int32(unsafe.Offsetof(dcpu.RegisterInfo{}.IA))
	offCycles = int32(unsafe.Offsetof(dcpu.RegisterInfo{}.Cycles))
	offMemPtr = int32(unsafe.Offsetof(dcpu.RegisterInfo{}.MemPtr))
	offQueueI = int32(unsafe.Offsetof(dcpu.RegisterInfo{}.QueueInterrupts))
	offQueueS = int32(unsafe.Offsetof(dcpu.RegisterInfo{}.QueueSignal))
	offISR    = int32(unsafe.Offsetof(dcpu.RegisterInfo{}.ISR))
)

// regOffsets maps a dcpu.Register to its RegisterInfo byte offset, in
// register-field order (spec.md §4.1 / §6).
var regOffsets = [8]int32{offA, offB, offC, offX, offY, offZ, offI, offJ}

func offsetOf(r dcpu.Register) int32 { return regOffsets[r] }

// ExitReason is the value a compiled chunk leaves in its return register
// (spec.md §4.3's "enter interrupt delivery" / chunk-boundary handoff).
type ExitReason uint8

const (
	ExitBudget    ExitReason = iota // Cycles reached zero or below, or the chunk ended at a jump
	ExitISR                         // cycle hook observed a deliverable interrupt
	ExitBoundary                    // PC now sits at a hardware/interrupt opcode or an invalid opcode dcpu/exec must interpret
)
