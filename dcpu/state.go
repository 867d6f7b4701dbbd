package dcpu

import "unsafe"

// State is the full representation of an emulated DCPU (spec.md §3):
// register file, memory, interrupt queue, hardware bus and the sticky
// halt-and-catch-fire flag. Register file, memory, queue and bus are
// created together at construction and released together at teardown
// (there is no process-wide state — see spec.md §9).
type State struct {
	Regs  RegisterInfo
	Mem   Memory
	Queue *InterruptQueue
	Bus   Bus // nil in benchmarking mode (spec.md §6 --bench)

	HCF bool // sticky; once set, the executor refuses to advance
}

// New constructs a State with a zeroed register file and memory, ready
// for an image to be loaded into it.
func New() *State {
	s := &State{}
	s.Queue = newInterruptQueue(&s.Regs.QueueSignal)
	s.Regs.MemPtr = uintptr(unsafe.Pointer(s.Mem.Base()))
	s.Regs.State = unsafe.Pointer(s)
	return s
}

// AttachBus installs the hardware bus used by HWN/HWQ/HWI. Passing nil
// (benchmarking mode, spec.md §6 --bench) makes HWN report zero devices,
// HWQ zero A, B, C, X and Y, and HWI a no-op, per the "no hardware
// attached" rule.
func (s *State) AttachBus(b Bus) {
	s.Bus = b
}

// DeviceCount returns the attached device count, or 0 with no bus.
func (s *State) DeviceCount() int {
	if s.Bus == nil {
		return 0
	}
	return s.Bus.DeviceCount()
}

// Interrupt enqueues interrupt message n, honoring the queueing flag: if
// set, the interrupt waits in the queue for RFI to clear it (spec.md
// §4.2 INT, §4.3). Overflow sets HCF per spec.md §3/§7.
func (s *State) Interrupt(n Word) {
	if err := s.Queue.Push(n); err != nil {
		s.HCF = true
	}
}
