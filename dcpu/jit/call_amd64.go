//go:build amd64

package jit

import "unsafe"

// invoke calls the compiled chunk at entry with ctx as its single argument
// (RDI, per the System V AMD64 ABI compiled code assumes — see
// asm_amd64.go's header comment) and returns the ExitReason it left in
// EAX. The call crosses from the Go runtime into raw generated bytes, so
// it is done through a hand-written assembly trampoline rather than a
// func value, the same shape as other_examples/ascrivener-jam__recompiler.go's
// //go:noescape declaration for calling JIT-compiled code.
//
//go:noescape
func callCompiledCode(entry uintptr, ctx unsafe.Pointer) uint64

func (ch *chunk) Run(ctx unsafe.Pointer) ExitReason {
	return ExitReason(callCompiledCode(ch.entry, ctx))
}
