// Package dcpu implements the data model of a DCPU-16: the 16-bit word,
// register file, word-addressed memory, interrupt queue and hardware bus
// that the decoder, translator and executor packages operate on.
package dcpu

// Word is an unsigned 16-bit DCPU value. Arithmetic on Word wraps modulo
// 2^16 using Go's native uint16 overflow, which is what PC/SP wraparound
// and every arithmetic opcode in the spec relies on.
type Word uint16

// Signed reinterprets w as a two's-complement 16-bit value, for the signed
// opcodes (MLI, DVI, MDI, ASR, IFA, IFU).
func (w Word) Signed() int16 {
	return int16(w)
}

// Memory is the DCPU's full 64 KiB word-addressed address space.
type Memory [65536]Word

// Load reads the word at addr.
func (m *Memory) Load(addr Word) Word {
	return m[addr]
}

// Store writes val at addr.
func (m *Memory) Store(addr Word, val Word) {
	m[addr] = val
}

// Base returns a pointer to the first word, for handing off to generated
// code (dcpu/jit) and to the image loader (dcpu/image).
func (m *Memory) Base() *Word {
	return &m[0]
}
