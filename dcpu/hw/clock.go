package hw

import (
	"sync"
	"time"

	"github.com/rsc-dcpu/dcpu16jit/dcpu"
)

// clockHWID/Manufacturer/Revision are the generic clock's HWQ
// identification, per spec.md §6 (grounded on
// original_source/src/hw/clock.cpp's getInformation).
const (
	clockHWID         = 0x12d0b402
	clockManufacturer = 0
	clockRevision     = 1
)

// tickUnit is 1/60 second, clock.cpp's atomic_time ratio<60,0xffff> —
// one tick fires every timeDivisor units.
const tickUnit = time.Second / 60

// Clock is the generic timer device (spec.md §4.5, grounded on
// original_source/src/hw/clock.cpp): HWI message 0 arms the timer with
// a tick divisor and restarts the background ticker; message 1 reports
// elapsed ticks since arming into C; message 2 sets the interrupt
// message sent on each tick (0 disarms delivery, matching the
// original's "while(message != 0)" loop condition).
type Clock struct {
	mu      sync.Mutex
	divisor dcpu.Word
	message dcpu.Word
	armedAt time.Time
	ticks   uint64
	rearm   chan struct{}
}

// NewClock constructs an unarmed clock device.
func NewClock() *Clock { return &Clock{rearm: make(chan struct{}, 1)} }

func (c *Clock) Identify() (id uint32, manufacturer uint32, revision uint16) {
	return clockHWID, clockManufacturer, clockRevision
}

func (c *Clock) OnInterrupt(s *dcpu.State) (uint8, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch s.Regs.A {
	case 0:
		c.divisor = s.Regs.B
		c.armedAt = time.Now()
		c.ticks = 0
		select {
		case c.rearm <- struct{}{}:
		default:
		}
	case 1:
		s.Regs.C = dcpu.Word(c.ticks)
	case 2:
		c.message = s.Regs.B
	}
	return 0, nil
}

// start runs the background ticking goroutine (spec.md §4.5's "devices
// that run background work own their own thread"): it sleeps one tick
// unit at a time and, once the armed divisor's worth of ticks has
// elapsed, increments the elapsed-tick counter and enqueues the
// interrupt message if one is set, mirroring clock.cpp's runThread.
func (c *Clock) start(s *dcpu.State, stop <-chan struct{}, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(tickUnit)
		defer ticker.Stop()
		var accum dcpu.Word
		for {
			select {
			case <-stop:
				return
			case <-c.rearm:
				accum = 0
			case <-ticker.C:
				c.mu.Lock()
				divisor := c.divisor
				message := c.message
				c.mu.Unlock()
				if divisor == 0 {
					continue
				}
				accum++
				if accum < divisor {
					continue
				}
				accum = 0
				c.mu.Lock()
				c.ticks++
				c.mu.Unlock()
				if message != 0 {
					s.Interrupt(message)
				}
			}
		}
	}()
}
