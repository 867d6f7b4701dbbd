// Package hw supplies dcpu.Bus and the bundled devices spec.md §4.5
// specifies only as collaborators: a generic clock, a buffered
// keyboard, and a character-display stub (spec.md §1, §6).
package hw

import (
	"sync"

	"github.com/rsc-dcpu/dcpu16jit/dcpu"
)

// starter is implemented by devices that run background work on their
// own goroutine (spec.md §4.5, §5: "devices that run background work
// own their own thread"). Bus starts and stops them together with
// itself rather than each device managing its own lifecycle.
type starter interface {
	start(s *dcpu.State, stop <-chan struct{}, wg *sync.WaitGroup)
}

// Bus is the concrete, ordered hardware bus dcpu.State.Bus holds
// (spec.md §4.5). Devices are addressed by their index in attach
// order, matching HWN/HWQ/HWI's "hardware number" semantics.
type Bus struct {
	devices []dcpu.Device

	mu      sync.Mutex
	stop    chan struct{}
	wg      sync.WaitGroup
	started bool
}

// NewBus constructs an empty bus. Attach devices before calling Start.
func NewBus() *Bus {
	return &Bus{}
}

// Attach appends d to the bus, giving it the next hardware index.
func (b *Bus) Attach(d dcpu.Device) {
	b.devices = append(b.devices, d)
}

func (b *Bus) DeviceCount() int { return len(b.devices) }

func (b *Bus) DeviceAt(i int) dcpu.Device { return b.devices[i] }

// Start launches the background goroutine of every attached device
// that implements starter, against the given live state. Matches
// v6run/main.go's explicit teardown-pairing style: every Start has a
// corresponding Close.
func (b *Bus) Start(s *dcpu.State) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return
	}
	b.started = true
	b.stop = make(chan struct{})
	for _, d := range b.devices {
		if st, ok := d.(starter); ok {
			st.start(s, b.stop, &b.wg)
		}
	}
}

// Close signals every running device goroutine to stop and waits for
// them to exit, mirroring rsc-unix/v6unix/proc.go's exit bookkeeping
// idiom (signal, then join).
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.started {
		return
	}
	close(b.stop)
	b.wg.Wait()
	b.started = false
}
