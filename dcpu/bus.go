package dcpu

// Device is the contract every attached piece of hardware satisfies
// (spec.md §4.5, §6). Handlers run synchronously on the executor
// goroutine with exclusive access to State; a device that wants to run
// in the background (a clock, a keyboard reader) does so on its own
// goroutine and talks to the emulator only through State's interrupt
// queue, never by touching registers or memory off that goroutine.
type Device interface {
	// Identify returns the values HWQ reports: hardware id, manufacturer
	// id, and revision.
	Identify() (id uint32, manufacturer uint32, revision uint16)

	// OnInterrupt runs the device's handler for the interrupt currently
	// addressed to it (by convention, with the message in s.Regs.A) and
	// returns the additional cycle cost HWI should debit.
	OnInterrupt(s *State) (cycles uint8, err error)
}

// Bus is the ordered list of devices HWN/HWQ/HWI address by index. dcpu/hw
// provides the concrete implementation; dcpu only needs the interface so
// that State can hold one without dcpu importing dcpu/hw (which itself
// imports dcpu).
type Bus interface {
	DeviceCount() int
	DeviceAt(i int) Device
}
