package decode

import (
	"testing"

	"github.com/rsc-dcpu/dcpu16jit/dcpu"
)

func step(t *testing.T, s *dcpu.State) (Instruction, uint8) {
	t.Helper()
	insn, err := Decode(&s.Mem, s.Regs.PC)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	extra, err := Execute(&s.Mem, s, insn)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	return insn, extra
}

func TestExecuteSet(t *testing.T) {
	s := dcpu.New()
	// SET A, 5
	s.Mem.Store(0, uint16Word(0x1)|uint16Word(0)<<5|uint16Word(0x1f)<<10)
	s.Mem.Store(1, 5)

	step(t, s)
	if s.Regs.A != 5 {
		t.Errorf("A = %d, want 5", s.Regs.A)
	}
	if s.Regs.PC != 2 {
		t.Errorf("PC = %d, want 2", s.Regs.PC)
	}
}

func TestExecuteAddCarry(t *testing.T) {
	s := dcpu.New()
	s.Regs.A = 0xffff
	s.Regs.B = 2
	// ADD B, A
	s.Mem.Store(0, uint16Word(0x2)|uint16Word(uint16(dcpu.B))<<5|uint16Word(0)<<10)

	step(t, s)
	if s.Regs.B != 1 {
		t.Errorf("B = %d, want 1 (wrapped)", s.Regs.B)
	}
	if s.Regs.EX != 1 {
		t.Errorf("EX = %d, want 1 (carry)", s.Regs.EX)
	}
}

func TestExecuteSubBorrow(t *testing.T) {
	s := dcpu.New()
	s.Regs.B = 1
	s.Regs.A = 2
	// SUB B, A
	s.Mem.Store(0, uint16Word(0x3)|uint16Word(uint16(dcpu.B))<<5|uint16Word(0)<<10)

	step(t, s)
	if s.Regs.B != 0xffff {
		t.Errorf("B = %#x, want 0xffff", s.Regs.B)
	}
	if s.Regs.EX != 0xffff {
		t.Errorf("EX = %#x, want 0xffff (borrow)", s.Regs.EX)
	}
}

func TestExecuteConditionalPass(t *testing.T) {
	s := dcpu.New()
	// IFE A, 0  ; SET C, 1
	s.Mem.Store(0, uint16Word(0x12)|uint16Word(0)<<5|uint16Word(0x21)<<10) // A field 0x21 = inline literal 0
	s.Mem.Store(1, uint16Word(0x1)|uint16Word(uint16(dcpu.C))<<5|uint16Word(0x22)<<10) // inline literal 1

	step(t, s)
	if s.Regs.PC != 1 {
		t.Errorf("PC = %d, want 1 (test passed, no skip)", s.Regs.PC)
	}
	step(t, s)
	if s.Regs.C != 1 {
		t.Errorf("C = %d, want 1", s.Regs.C)
	}
}

func TestExecuteConditionalChainSkip(t *testing.T) {
	s := dcpu.New()
	s.Regs.B = 1
	// IFE A, 0 (passes: A==0)  ; IFE B, 0 (fails: B==1)  ; SET C, 1
	s.Mem.Store(0, uint16Word(0x12)|uint16Word(0)<<5|uint16Word(0x21)<<10)
	s.Mem.Store(1, uint16Word(0x12)|uint16Word(uint16(dcpu.B))<<5|uint16Word(0x21)<<10)
	s.Mem.Store(2, uint16Word(0x1)|uint16Word(uint16(dcpu.C))<<5|uint16Word(0x22)<<10)

	step(t, s) // first IFE passes
	if s.Regs.PC != 1 {
		t.Fatalf("PC = %d, want 1", s.Regs.PC)
	}
	_, extra := step(t, s) // second IFE fails, skips the SET
	if s.Regs.PC != 3 {
		t.Errorf("PC = %d, want 3 (skipped the SET)", s.Regs.PC)
	}
	if extra != 1 {
		t.Errorf("extra = %d, want 1 (one instruction skipped)", extra)
	}
	if s.Regs.C != 0 {
		t.Errorf("C = %d, want 0 (SET was skipped)", s.Regs.C)
	}
}

func TestExecuteJSR(t *testing.T) {
	s := dcpu.New()
	s.Regs.SP = 0x100
	// JSR 0x40
	s.Mem.Store(0, uint16Word(0)|uint16Word(0x01)<<5|uint16Word(0x1f)<<10)
	s.Mem.Store(1, 0x40)

	step(t, s)
	if s.Regs.PC != 0x40 {
		t.Errorf("PC = %#x, want 0x40", s.Regs.PC)
	}
	if s.Regs.SP != 0xff {
		t.Errorf("SP = %#x, want 0xff", s.Regs.SP)
	}
	if got := s.Mem.Load(s.Regs.SP); got != 2 {
		t.Errorf("pushed return addr = %#x, want 2", got)
	}
}

func TestExecuteHWNNoBus(t *testing.T) {
	s := dcpu.New()
	// HWN A
	s.Mem.Store(0, uint16Word(0)|uint16Word(0x10)<<5|uint16Word(0)<<10)

	step(t, s)
	if s.Regs.A != 0 {
		t.Errorf("A = %d, want 0 with no bus attached", s.Regs.A)
	}
}
