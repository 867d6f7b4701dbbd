// Command dcpu16 loads a memory image and runs it on the dynamic-
// translation DCPU-16 core, per spec.md §6's CLI surface.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/rsc-dcpu/dcpu16jit/dcpu"
	"github.com/rsc-dcpu/dcpu16jit/dcpu/exec"
	"github.com/rsc-dcpu/dcpu16jit/dcpu/hw"
	"github.com/rsc-dcpu/dcpu16jit/dcpu/image"
)

var (
	littleEndian = flag.Bool("little-endian", false, "load (and dump) the image in little-endian")
	lFlag        = flag.Bool("l", false, "shorthand for --little-endian")
	cycles       = flag.Int64("cycles", 0, "run exactly N cycles then exit; 0 = unbounded")
	speed        = flag.Int("speed", 0, "throttle execution to the given kilohertz; 0 = unthrottled")
	bench        = flag.Bool("bench", false, "benchmarking mode: no hardware attached")
	test         = flag.Bool("test", false, "dump the register file to stdout after exit")
	testMem      = flag.Bool("test-mem", false, "dump full memory after exit")
	dumpFile     = flag.String("dump-file", "", "file to write the --test-mem memory dump to")
	sped         = flag.Bool("sped", false, "attach the LEM1802-style display device")
	lem          = flag.Bool("lem", false, "alias for --sped")
)

// speedAtom is the cycle-count granularity --speed paces in (spec.md
// §6: "throttled ... paced in 100-cycle atoms").
const speedAtom = 100

func main() {
	log.SetPrefix("dcpu16: ")
	log.SetFlags(0)
	flag.Parse()

	if flag.NArg() < 1 {
		log.Print("missing image argument")
		flag.Usage()
		os.Exit(1)
	}
	imagePath := flag.Arg(0)

	order := image.BigEndian
	if *littleEndian || *lFlag {
		order = image.LittleEndian
	}

	s := dcpu.New()
	if _, err := image.LoadFile(imagePath, &s.Mem, order); err != nil {
		log.Print(err)
		os.Exit(1)
	}

	var bus *hw.Bus
	if !*bench {
		bus = hw.NewBus()
		bus.Attach(hw.NewClock())
		bus.Attach(hw.NewKeyboard())
		if *sped || *lem {
			bus.Attach(hw.NewDisplay())
		}
		s.AttachBus(bus)
		bus.Start(s)
		defer bus.Close()
	}

	e := exec.New(s)
	defer e.Close()

	budget := *cycles
	if budget == 0 {
		budget = 1<<63 - 1
	}

	start := time.Now()
	var err error
	if *speed > 0 {
		err = runThrottled(e, budget, *speed)
	} else {
		err = e.Inject(budget)
	}
	elapsed := time.Since(start)
	if err != nil && err != dcpu.ErrHalted {
		log.Print(err)
		os.Exit(1)
	}

	if *bench {
		hz := float64(e.Elapsed) / elapsed.Seconds()
		log.Printf("ran %d cycles in %v (%.2f kHz effective)", e.Elapsed, elapsed, hz/1000)
	}

	if *test {
		dumpRegisters(s)
	}
	if *testMem {
		if *dumpFile == "" {
			log.Print("--test-mem requires --dump-file")
			os.Exit(1)
		}
		if err := image.SaveFile(*dumpFile, &s.Mem, order); err != nil {
			log.Print(err)
			os.Exit(1)
		}
	}
}

// runThrottled injects budget cycles in speedAtom-sized installments,
// sleeping between them to approximate speedKHz (spec.md §5: "never
// held across a lock").
func runThrottled(e *exec.Executor, budget int64, speedKHz int) error {
	atomDuration := time.Duration(speedAtom) * time.Second / time.Duration(speedKHz*1000)
	for budget > 0 {
		n := int64(speedAtom)
		if n > budget {
			n = budget
		}
		if err := e.Inject(n); err != nil {
			return err
		}
		budget -= n
		time.Sleep(atomDuration)
	}
	return nil
}

func dumpRegisters(s *dcpu.State) {
	r := s.Regs
	fmt.Printf("A=%#04x B=%#04x C=%#04x X=%#04x Y=%#04x Z=%#04x I=%#04x J=%#04x\n",
		r.A, r.B, r.C, r.X, r.Y, r.Z, r.I, r.J)
	fmt.Printf("PC=%#04x SP=%#04x EX=%#04x IA=%#04x\n", r.PC, r.SP, r.EX, r.IA)
}
