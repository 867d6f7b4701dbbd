package hw

import (
	"sync"

	"github.com/rsc-dcpu/dcpu16jit/dcpu"
)

// displayHWID/Manufacturer/Revision: an LEM1802-shaped identification,
// exposed so a headless test harness can HWQ-recognize the device the
// way real guest programs probe for it.
const (
	displayHWID         = 0x7349f615
	displayManufacturer = 0x1c6c8b36
	displayRevision     = 0x1802
)

// screenWords is the LEM1802 character buffer's size: 32x12 cells.
const screenWords = 32 * 12

// Display is a monochrome/indexed character-cell display stub (spec.md
// §4.5, grounded on lilyball-dcpu16/dcpu/video.go): it tracks the
// memory-mapped screen/font/palette base addresses the MEM_MAP_*
// messages install, but renders nothing itself — full video output is
// out of the core's scope (spec.md §1). Snapshot lets a headless test
// harness read the mapped cells directly out of guest memory;
// cmd/dcpu16's --sped/--lem flags only attach the device.
type Display struct {
	mu          sync.Mutex
	screenBase  dcpu.Word
	screenOn    bool
	fontBase    dcpu.Word
	paletteBase dcpu.Word
	borderColor dcpu.Word
}

// NewDisplay constructs an unmapped display device.
func NewDisplay() *Display { return &Display{} }

func (d *Display) Identify() (id uint32, manufacturer uint32, revision uint16) {
	return displayHWID, displayManufacturer, displayRevision
}

// OnInterrupt implements the LEM1802 message set: 0 MEM_MAP_SCREEN, 1
// MEM_MAP_FONT, 2 MEM_MAP_PALETTE, 3 SET_BORDER_COLOR; other messages
// (blink/font-image queries) are accepted as no-ops, matching the
// stub's "collaborator, not a renderer" scope.
func (d *Display) OnInterrupt(s *dcpu.State) (uint8, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch s.Regs.A {
	case 0:
		d.screenBase = s.Regs.B
		d.screenOn = s.Regs.B != 0
	case 1:
		d.fontBase = s.Regs.B
	case 2:
		d.paletteBase = s.Regs.B
	case 3:
		d.borderColor = s.Regs.B
	}
	return 0, nil
}

// Snapshot copies the current 32x12 character cells out of mem at the
// mapped screen base, or reports ok=false if no screen is mapped.
func (d *Display) Snapshot(mem *dcpu.Memory) (cells [screenWords]dcpu.Word, ok bool) {
	d.mu.Lock()
	base, on := d.screenBase, d.screenOn
	d.mu.Unlock()
	if !on {
		return cells, false
	}
	for i := range cells {
		cells[i] = mem.Load(base + dcpu.Word(i))
	}
	return cells, true
}

// BorderColor reports the last color index SET_BORDER_COLOR installed.
func (d *Display) BorderColor() dcpu.Word {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.borderColor
}
