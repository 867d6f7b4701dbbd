//go:build amd64

package jit

import (
	"testing"
	"unsafe"

	"github.com/rsc-dcpu/dcpu16jit/dcpu"
)

func asmWord(opcode uint8, b, a uint8) dcpu.Word {
	return dcpu.Word(uint16(opcode) | uint16(b)<<5 | uint16(a)<<10)
}

// specialWord encodes a one-operand instruction: base op 0, the special
// opcode in the B field, and the operand in the A field.
func specialWord(special uint8, a uint8) dcpu.Word {
	return dcpu.Word(uint16(special)<<5 | uint16(a)<<10)
}

// run translates the chunk at pc, installs it in a fresh Cache, and
// executes it once against s, returning the ExitReason the chunk left in
// its return register.
func run(t *testing.T, s *dcpu.State, pc dcpu.Word) ExitReason {
	t.Helper()
	c := NewCache(&s.Mem)
	defer c.Close()
	ch, err := c.Lookup(pc)
	if err != nil {
		t.Fatalf("Lookup(%#04x): %v", pc, err)
	}
	s.Regs.Cycles = 1 << 30
	return ch.Run(unsafe.Pointer(&s.Regs))
}

func TestTranslateSetLiteral(t *testing.T) {
	// SET A, 5; SET PC, PC (a jump to the next word — forces a chunk
	// boundary so the chunk body under test is exactly the one SET).
	s := dcpu.New()
	s.Mem.Store(0, asmWord(0x01, 0x00, 0x26)) // SET A, 5 (inline literal 5: field 0x21+5)
	s.Mem.Store(1, asmWord(0x01, 0x1c, 0x1c)) // SET PC, PC

	reason := run(t, s, 0)
	if reason != ExitBudget {
		t.Fatalf("exit reason = %v, want ExitBudget", reason)
	}
	if s.Regs.A != 5 {
		t.Errorf("A = %d, want 5", s.Regs.A)
	}
	if s.Regs.PC != 2 {
		t.Errorf("PC = %#04x, want 2 (SET PC,PC re-reads its own post-increment PC)", s.Regs.PC)
	}
}

func TestTranslateArithmeticChain(t *testing.T) {
	// SET A, 0xffff; ADD A, 1 (wraps to 0, EX=1); SET PC, PC
	s := dcpu.New()
	s.Mem.Store(0, asmWord(0x01, 0x00, 0x1f)) // SET A, next word (literal)
	s.Mem.Store(1, 0xffff)
	s.Mem.Store(2, asmWord(0x02, 0x00, 0x22)) // ADD A, 1 (inline literal 1)
	s.Mem.Store(3, asmWord(0x01, 0x1c, 0x1c)) // SET PC, PC

	run(t, s, 0)
	if s.Regs.A != 0 {
		t.Errorf("A = %#04x, want 0", s.Regs.A)
	}
	if s.Regs.EX != 1 {
		t.Errorf("EX = %#04x, want 1", s.Regs.EX)
	}
}

func TestTranslateStopsAtBoundary(t *testing.T) {
	// SET A, 1; HWN A (must not be inlined — chunk ends just before it).
	s := dcpu.New()
	s.Mem.Store(0, asmWord(0x01, 0x00, 0x22)) // SET A, 1
	s.Mem.Store(1, specialWord(0x10, 0x00))   // HWN A

	reason := run(t, s, 0)
	if reason != ExitBoundary {
		t.Fatalf("exit reason = %v, want ExitBoundary", reason)
	}
	if s.Regs.PC != 1 {
		t.Errorf("PC = %#04x, want 1 (parked at the boundary instruction)", s.Regs.PC)
	}
}

func TestTranslateJSRPushesReturnAddress(t *testing.T) {
	// JSR 0x40
	s := dcpu.New()
	s.Regs.SP = 0xffff
	s.Mem.Store(0, specialWord(0x01, 0x1f)) // JSR next-word-literal
	s.Mem.Store(1, 0x0040)

	reason := run(t, s, 0)
	if reason != ExitBudget {
		t.Fatalf("exit reason = %v, want ExitBudget", reason)
	}
	if s.Regs.PC != 0x0040 {
		t.Errorf("PC = %#04x, want 0x0040", s.Regs.PC)
	}
	if s.Regs.SP != 0xfffe {
		t.Errorf("SP = %#04x, want 0xfffe", s.Regs.SP)
	}
	if got := s.Mem.Load(0xfffe); got != 2 {
		t.Errorf("pushed return address = %#04x, want 2", got)
	}
}

func TestConditionalChainDebitsBaseCostOnFailure(t *testing.T) {
	// IFE A, 0; IFE B, 0; SET C, 1
	prog := func(s *dcpu.State) {
		s.Mem.Store(0, asmWord(0x12, 0x00, 0x21)) // IFE A, 0
		s.Mem.Store(1, asmWord(0x12, 0x01, 0x21)) // IFE B, 0
		s.Mem.Store(2, asmWord(0x01, 0x02, 0x22)) // SET C, 1
	}

	t.Run("second IF fails", func(t *testing.T) {
		s := dcpu.New()
		prog(s)
		s.Regs.A, s.Regs.B = 0, 1

		run(t, s, 0)
		if got := int64(1<<30) - s.Regs.Cycles; got != 5 {
			t.Errorf("cycles debited = %d, want 5 (IFE A,0 cost 2, pass; IFE B,0 cost 2 + skip surcharge 1)", got)
		}
		if s.Regs.C != 0 {
			t.Errorf("C = %d, want 0 (SET C,1 must not run)", s.Regs.C)
		}
	})

	t.Run("first IF fails", func(t *testing.T) {
		s := dcpu.New()
		prog(s)
		s.Regs.A = 1

		run(t, s, 0)
		if got := int64(1<<30) - s.Regs.Cycles; got != 4 {
			t.Errorf("cycles debited = %d, want 4 (IFE A,0 cost 2 + skip surcharge 2)", got)
		}
		if s.Regs.C != 0 {
			t.Errorf("C = %d, want 0 (SET C,1 must not run)", s.Regs.C)
		}
	})
}

func TestShiftCountAtOrAboveThirtyTwoSaturates(t *testing.T) {
	cases := []struct {
		name      string
		opcode    uint8
		bVal      dcpu.Word
		wantB, ex dcpu.Word
	}{
		{"SHR", 0x0d, 0xabcd, 0, 0},
		{"SHL", 0x0f, 0xabcd, 0, 0},
		{"ASR positive", 0x0e, 0x1234, 0, 0},
		{"ASR negative", 0x0e, 0x8000, 0xffff, 0xffff},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := dcpu.New()
			s.Regs.A = tc.bVal
			s.Mem.Store(0, asmWord(tc.opcode, 0x00, 0x1f)) // OP A, next-word literal
			s.Mem.Store(1, 32)

			run(t, s, 0)
			if s.Regs.A != tc.wantB {
				t.Errorf("A = %#04x, want %#04x", s.Regs.A, tc.wantB)
			}
			if s.Regs.EX != tc.ex {
				t.Errorf("EX = %#04x, want %#04x", s.Regs.EX, tc.ex)
			}
		})
	}
}

func TestAddToPushOperandMutatesSPOnce(t *testing.T) {
	// ADD PUSH, 5
	s := dcpu.New()
	s.Regs.SP = 0xffff
	s.Mem.Store(0, asmWord(0x02, 0x18, 0x26)) // ADD PUSH, 5

	run(t, s, 0)
	if s.Regs.SP != 0xfffe {
		t.Errorf("SP = %#04x, want 0xfffe (decremented exactly once)", s.Regs.SP)
	}
	if got := s.Mem.Load(0xfffe); got != 5 {
		t.Errorf("mem[SP] = %#04x, want 5 (0 + 5, read and written through the same slot)", got)
	}
}

func TestJSRResolvesOperandABeforePushing(t *testing.T) {
	// JSR POP, with the stack's top word holding the jump target.
	s := dcpu.New()
	s.Regs.SP = 0x8000
	s.Mem.Store(0x8000, 0x1234)
	s.Mem.Store(0, specialWord(0x01, 0x18)) // JSR POP

	run(t, s, 0)
	if s.Regs.PC != 0x1234 {
		t.Errorf("PC = %#04x, want 0x1234 (POP must read the pre-push stack top)", s.Regs.PC)
	}
	if s.Regs.SP != 0x8000 {
		t.Errorf("SP = %#04x, want 0x8000 (POP's ++ and JSR's -- cancel out)", s.Regs.SP)
	}
}

func TestCacheHitsSamePC(t *testing.T) {
	s := dcpu.New()
	s.Mem.Store(0, asmWord(0x01, 0x00, 0x21))
	s.Mem.Store(1, asmWord(0x01, 0x1c, 0x1c))

	c := NewCache(&s.Mem)
	defer c.Close()
	first, err := c.Lookup(0)
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.Lookup(0)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("Lookup did not hit the cache on the second call")
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}
