package dcpu

import "fmt"

// Sentinel errors for the dispositions in spec.md §7. Decoders and the
// translator wrap these with %w so callers can errors.Is against them
// while still getting positional context, the way pdp11.ErrInst/ErrMem
// are used in the teacher package. ErrInvalidOpcode in particular is what
// decode.OpcodeError unwraps to.
var (
	ErrInvalidOpcode     = fmt.Errorf("dcpu: invalid opcode")
	ErrInterruptOverflow = fmt.Errorf("dcpu: interrupt queue overflow")
	ErrHostAssembler     = fmt.Errorf("dcpu: host assembler error")
	ErrHalted            = fmt.Errorf("dcpu: machine halted and caught fire")
)
