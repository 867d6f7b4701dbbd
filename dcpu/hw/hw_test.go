package hw

import (
	"testing"
	"time"

	"github.com/rsc-dcpu/dcpu16jit/dcpu"
)

func TestBusAttachAndAddress(t *testing.T) {
	b := NewBus()
	clk := NewClock()
	kbd := NewKeyboard()
	b.Attach(clk)
	b.Attach(kbd)

	if b.DeviceCount() != 2 {
		t.Fatalf("DeviceCount() = %d, want 2", b.DeviceCount())
	}
	if b.DeviceAt(0) != dcpu.Device(clk) {
		t.Errorf("DeviceAt(0) did not return the clock")
	}
	if b.DeviceAt(1) != dcpu.Device(kbd) {
		t.Errorf("DeviceAt(1) did not return the keyboard")
	}

	id, mfg, rev := clk.Identify()
	if id != clockHWID || mfg != clockManufacturer || rev != clockRevision {
		t.Errorf("clock identify = %#x/%#x/%#x, want %#x/%#x/%#x", id, mfg, rev, clockHWID, clockManufacturer, clockRevision)
	}
}

func TestClockArmAndReadElapsed(t *testing.T) {
	s := dcpu.New()
	b := NewBus()
	clk := NewClock()
	b.Attach(clk)
	s.AttachBus(b)
	b.Start(s)
	defer b.Close()

	s.Regs.A, s.Regs.B = 0, 1 // arm: 1 tick-unit per elapsed tick
	if _, err := clk.OnInterrupt(s); err != nil {
		t.Fatalf("arm: %v", err)
	}

	time.Sleep(3 * tickUnit)

	s.Regs.A = 1
	if _, err := clk.OnInterrupt(s); err != nil {
		t.Fatalf("read: %v", err)
	}
	if s.Regs.C == 0 {
		t.Errorf("C = 0, want at least one elapsed tick after %v", 3*tickUnit)
	}
}

func TestClockDeliversInterruptMessage(t *testing.T) {
	s := dcpu.New()
	b := NewBus()
	clk := NewClock()
	b.Attach(clk)
	s.AttachBus(b)
	b.Start(s)
	defer b.Close()

	s.Regs.A, s.Regs.B = 2, 0xbeef
	clk.OnInterrupt(s)
	s.Regs.A, s.Regs.B = 0, 1
	clk.OnInterrupt(s)

	deadline := time.Now().Add(2 * time.Second)
	for s.Queue.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if s.Queue.Len() == 0 {
		t.Fatal("clock never delivered its armed interrupt message")
	}
	n, ok := s.Queue.Pop()
	if !ok || n != 0xbeef {
		t.Errorf("popped interrupt = %#04x, ok=%v, want 0xbeef", n, ok)
	}
}

func TestKeyboardBufferAndQuery(t *testing.T) {
	s := dcpu.New()
	kbd := NewKeyboard()

	kbd.PushKey(s, 'a')
	kbd.PushKey(s, 'b')

	s.Regs.A, s.Regs.B = 2, dcpu.Word('a')
	kbd.OnInterrupt(s)
	if s.Regs.C != 1 {
		t.Errorf("held-key query for 'a' = %d, want 1", s.Regs.C)
	}

	s.Regs.A = 1
	kbd.OnInterrupt(s)
	if s.Regs.C != dcpu.Word('a') {
		t.Errorf("first popped key = %q, want 'a'", rune(s.Regs.C))
	}

	s.Regs.A = 1
	kbd.OnInterrupt(s)
	if s.Regs.C != dcpu.Word('b') {
		t.Errorf("second popped key = %q, want 'b'", rune(s.Regs.C))
	}

	s.Regs.A = 1
	kbd.OnInterrupt(s)
	if s.Regs.C != 0 {
		t.Errorf("pop on empty buffer = %d, want 0", s.Regs.C)
	}
}

func TestKeyboardClear(t *testing.T) {
	s := dcpu.New()
	kbd := NewKeyboard()
	kbd.PushKey(s, 'x')

	s.Regs.A = 0
	kbd.OnInterrupt(s)

	s.Regs.A = 1
	kbd.OnInterrupt(s)
	if s.Regs.C != 0 {
		t.Errorf("C = %d after clear+pop, want 0", s.Regs.C)
	}
}

func TestKeyboardDeliversInterruptMessage(t *testing.T) {
	s := dcpu.New()
	kbd := NewKeyboard()

	s.Regs.A, s.Regs.B = 3, 0x1234
	kbd.OnInterrupt(s)

	kbd.PushKey(s, 'q')

	if s.Queue.Len() != 1 {
		t.Fatalf("Queue.Len() = %d, want 1", s.Queue.Len())
	}
	n, _ := s.Queue.Pop()
	if n != 0x1234 {
		t.Errorf("delivered message = %#04x, want 0x1234", n)
	}
}

func TestDisplayMapAndSnapshot(t *testing.T) {
	s := dcpu.New()
	disp := NewDisplay()
	s.Mem.Store(0x8000, 'H')
	s.Mem.Store(0x8001, 'i')

	s.Regs.A, s.Regs.B = 0, 0x8000
	disp.OnInterrupt(s)

	cells, ok := disp.Snapshot(&s.Mem)
	if !ok {
		t.Fatal("Snapshot reported not mapped after MEM_MAP_SCREEN")
	}
	if cells[0] != 'H' || cells[1] != 'i' {
		t.Errorf("cells[0:2] = %q%q, want H i", cells[0], cells[1])
	}

	s.Regs.A, s.Regs.B = 3, 5
	disp.OnInterrupt(s)
	if disp.BorderColor() != 5 {
		t.Errorf("BorderColor() = %d, want 5", disp.BorderColor())
	}
}

func TestDisplaySnapshotUnmapped(t *testing.T) {
	disp := NewDisplay()
	var mem dcpu.Memory
	if _, ok := disp.Snapshot(&mem); ok {
		t.Error("Snapshot reported mapped before any MEM_MAP_SCREEN message")
	}
}
