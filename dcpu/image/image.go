// Package image implements the memory image collaborator spec.md §4.4
// and §6 specify only as an interface contract: a raw stream of 16-bit
// words, big-endian by default, read into (or written out of) a
// dcpu.Memory.
package image

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/rsc-dcpu/dcpu16jit/dcpu"
)

// ByteOrder selects big- or little-endian word encoding (spec.md §6's
// -l/--little-endian flag).
type ByteOrder binary.ByteOrder

var (
	BigEndian    ByteOrder = binary.BigEndian
	LittleEndian ByteOrder = binary.LittleEndian
)

// Load reads words from r into mem starting at address 0, stopping at
// EOF; any remaining memory is set to zero (spec.md §4.4: "stop at EOF;
// remaining memory is zero"). It reports how many words were read. A
// trailing odd byte is treated as IMAGE_IO_FAILURE (spec.md §7):
// images are always a whole number of words.
func Load(r io.Reader, mem *dcpu.Memory, order ByteOrder) (words int, err error) {
	br := bufio.NewReader(r)
	var buf [2]byte
	for addr := 0; addr < len(mem); addr++ {
		n, rerr := io.ReadFull(br, buf[:])
		switch {
		case n == 0 && rerr == io.EOF:
			for ; addr < len(mem); addr++ {
				mem[addr] = 0
			}
			return words, nil
		case n == 1 && (rerr == io.ErrUnexpectedEOF || rerr == io.EOF):
			return words, fmt.Errorf("dcpu/image: truncated trailing byte: %w", io.ErrUnexpectedEOF)
		case rerr != nil:
			return words, fmt.Errorf("dcpu/image: read word %d: %w", addr, rerr)
		}
		mem[addr] = dcpu.Word(order.Uint16(buf[:]))
		words++
	}
	// Image exactly fills memory; confirm there isn't more data behind it.
	if _, rerr := br.ReadByte(); rerr != io.EOF {
		return words, fmt.Errorf("dcpu/image: image longer than 65536 words")
	}
	return words, nil
}

// Save writes every word of mem to w, inverse of Load.
func Save(w io.Writer, mem *dcpu.Memory, order ByteOrder) error {
	bw := bufio.NewWriter(w)
	var buf [2]byte
	for _, v := range mem {
		order.PutUint16(buf[:], uint16(v))
		if _, err := bw.Write(buf[:]); err != nil {
			return fmt.Errorf("dcpu/image: write word: %w", err)
		}
	}
	return bw.Flush()
}

// LoadFile opens path and Loads it into mem, wrapping open/read
// failures as the IMAGE_IO_FAILURE disposition (spec.md §7).
func LoadFile(path string, mem *dcpu.Memory, order ByteOrder) (words int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("dcpu/image: open %s: %w", path, err)
	}
	defer f.Close()
	return Load(f, mem, order)
}

// SaveFile creates (or truncates) path and Saves mem into it.
func SaveFile(path string, mem *dcpu.Memory, order ByteOrder) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("dcpu/image: create %s: %w", path, err)
	}
	defer f.Close()
	return Save(f, mem, order)
}
