package hw

import (
	"sync"

	"github.com/rsc-dcpu/dcpu16jit/dcpu"
)

// keyboardHWID/Manufacturer/Revision: the historical generic keyboard
// ID used by lilyball-dcpu16's device table (SPEC_FULL.md §4.5).
const (
	keyboardHWID         = 0x30cf7406
	keyboardManufacturer = 0x904b3115
	keyboardRevision     = 1
)

const keyboardBufferSize = 16

// Keyboard is a 16-key ring-buffer input device (spec.md §4.5, grounded
// on lilyball-dcpu16/dcpu/keyboard.go's circular buffer): HWI message 0
// clears the buffer, message 1 pops the oldest pressed key into C (0 if
// none pending), message 2 reports whether the key named in B is
// currently held, message 3 sets the interrupt message sent on every
// keystroke (0 disables it).
type Keyboard struct {
	mu      sync.Mutex
	buf     [keyboardBufferSize]dcpu.Word
	head    int
	len     int
	held    map[dcpu.Word]bool
	message dcpu.Word
}

// NewKeyboard constructs an empty keyboard device.
func NewKeyboard() *Keyboard {
	return &Keyboard{held: make(map[dcpu.Word]bool)}
}

func (k *Keyboard) Identify() (id uint32, manufacturer uint32, revision uint16) {
	return keyboardHWID, keyboardManufacturer, keyboardRevision
}

func (k *Keyboard) OnInterrupt(s *dcpu.State) (uint8, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	switch s.Regs.A {
	case 0:
		k.head, k.len = 0, 0
		k.held = make(map[dcpu.Word]bool)
	case 1:
		s.Regs.C = k.popLocked()
	case 2:
		if k.held[s.Regs.B] {
			s.Regs.C = 1
		} else {
			s.Regs.C = 0
		}
	case 3:
		k.message = s.Regs.B
	}
	return 0, nil
}

func (k *Keyboard) popLocked() dcpu.Word {
	if k.len == 0 {
		return 0
	}
	v := k.buf[k.head]
	k.head = (k.head + 1) % keyboardBufferSize
	k.len--
	return v
}

// PushKey records a key press (from the CLI's terminal reader, or a
// test harness) and, if an interrupt message is armed, delivers it
// through s — called off the executor goroutine, same as Clock's
// ticker, so access to the buffer is mutex-guarded rather than
// synchronized with OnInterrupt via the executor.
func (k *Keyboard) PushKey(s *dcpu.State, key dcpu.Word) {
	k.mu.Lock()
	k.held[key] = true
	if k.len < keyboardBufferSize {
		k.buf[(k.head+k.len)%keyboardBufferSize] = key
		k.len++
	}
	message := k.message
	k.mu.Unlock()

	if message != 0 {
		s.Interrupt(message)
	}
}

// ReleaseKey clears the held state PushKey set, for message 2 queries.
func (k *Keyboard) ReleaseKey(key dcpu.Word) {
	k.mu.Lock()
	delete(k.held, key)
	k.mu.Unlock()
}
