package image

import (
	"bytes"
	"testing"

	"github.com/rsc-dcpu/dcpu16jit/dcpu"
)

func TestLoadBigEndian(t *testing.T) {
	var mem dcpu.Memory
	data := []byte{0x12, 0x34, 0x00, 0x01}
	n, err := Load(bytes.NewReader(data), &mem, BigEndian)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if n != 2 {
		t.Fatalf("words = %d, want 2", n)
	}
	if mem[0] != 0x1234 || mem[1] != 0x0001 {
		t.Errorf("mem[0:2] = %#04x %#04x, want 0x1234 0x0001", mem[0], mem[1])
	}
	if mem[2] != 0 {
		t.Errorf("mem[2] = %#04x, want 0 (zero-filled tail)", mem[2])
	}
}

func TestLoadLittleEndian(t *testing.T) {
	var mem dcpu.Memory
	data := []byte{0x34, 0x12}
	if _, err := Load(bytes.NewReader(data), &mem, LittleEndian); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if mem[0] != 0x1234 {
		t.Errorf("mem[0] = %#04x, want 0x1234", mem[0])
	}
}

func TestLoadTruncatedTrailingByte(t *testing.T) {
	var mem dcpu.Memory
	data := []byte{0x12, 0x34, 0x56}
	if _, err := Load(bytes.NewReader(data), &mem, BigEndian); err == nil {
		t.Fatal("Load: want an error for a truncated trailing byte, got nil")
	}
}

func TestRoundTrip(t *testing.T) {
	var mem dcpu.Memory
	mem[0] = 0xdead
	mem[1] = 0xbeef
	mem[65535] = 0xface

	var buf bytes.Buffer
	if err := Save(&buf, &mem, BigEndian); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if buf.Len() != 65536*2 {
		t.Fatalf("saved %d bytes, want %d", buf.Len(), 65536*2)
	}

	var round dcpu.Memory
	if _, err := Load(&buf, &round, BigEndian); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if round != mem {
		t.Errorf("round-tripped memory did not match the original")
	}
}

func TestLoadRejectsOversizedImage(t *testing.T) {
	var mem dcpu.Memory
	data := make([]byte, 65536*2+2)
	if _, err := Load(bytes.NewReader(data), &mem, BigEndian); err == nil {
		t.Fatal("Load: want an error for an image longer than 65536 words, got nil")
	}
}
