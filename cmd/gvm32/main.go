// Command gvm32 loads a flat binary image into the machine's physical
// memory and drives its Step loop. Program loading, assembly and
// disassembly are out of scope for the core -- this binary is a thin
// driver around the core, not a replacement for a real loader/toolchain.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"gvm32/internal/cpu"
	"gvm32/internal/engine"
	"gvm32/internal/interrupt"
	"gvm32/internal/membus"
	"gvm32/internal/telemetry"
)

func main() {
	app := &cli.App{
		Name:  "gvm32",
		Usage: "run programs against the 32-bit register/MMU/interrupt core",
		Commands: []*cli.Command{
			runCommand(),
			stepCommand(),
			irqCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var imageFlag = &cli.StringFlag{
	Name:     "image",
	Aliases:  []string{"i"},
	Usage:    "flat binary image loaded at physical address 0",
	Required: true,
}

var verboseFlag = &cli.BoolFlag{
	Name:    "verbose",
	Aliases: []string{"v"},
	Usage:   "mirror engine trace logging to stderr",
}

var maxStepsFlag = &cli.Uint64Flag{
	Name:  "max-steps",
	Usage: "stop after N ticks (0 = unlimited)",
}

var consoleIRQFlag = &cli.UintFlag{
	Name:  "console-irq",
	Usage: "IRQ id to raise on each keystroke when stdin is an interactive terminal",
	Value: 0,
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "run an image until --max-steps is reached (0 runs without limit)",
		Flags: []cli.Flag{imageFlag, verboseFlag, maxStepsFlag, consoleIRQFlag},
		Action: func(c *cli.Context) error {
			m, err := newMachine(c)
			if err != nil {
				return err
			}
			if isInteractive() {
				stop, err := m.attachConsole(uint8(c.Uint("console-irq")))
				if err != nil {
					return err
				}
				defer stop()
			}
			return m.runLoop(c.Uint64("max-steps"))
		},
	}
}

func stepCommand() *cli.Command {
	return &cli.Command{
		Name:  "step",
		Usage: "single-step an image, printing register state after each tick",
		Flags: []cli.Flag{imageFlag, verboseFlag, maxStepsFlag},
		Action: func(c *cli.Context) error {
			m, err := newMachine(c)
			if err != nil {
				return err
			}
			return m.stepLoop(c.Uint64("max-steps"))
		},
	}
}

func irqCommand() *cli.Command {
	return &cli.Command{
		Name:  "irq",
		Usage: "run an image, injecting one IRQ at a given tick count",
		Flags: []cli.Flag{
			imageFlag, verboseFlag, maxStepsFlag,
			&cli.UintFlag{Name: "id", Usage: "IRQ id (0-7), maskable", Required: true},
			&cli.Uint64Flag{Name: "at", Usage: "tick count at which to raise the IRQ"},
		},
		Action: func(c *cli.Context) error {
			m, err := newMachine(c)
			if err != nil {
				return err
			}
			return m.runWithScheduledIRQ(c.Uint64("max-steps"), uint8(c.Uint("id")), c.Uint64("at"))
		},
	}
}

// machine bundles the core's collaborators: register file, bus,
// interrupt controller, and the engine that drives them. It has no
// loader or assembler of its own -- those are out of scope for this
// binary.
type machine struct {
	state      *cpu.State
	bus        *membus.RAM
	interrupts *interrupt.Controller
	engine     *engine.Engine
}

func newMachine(c *cli.Context) (*machine, error) {
	image, err := os.ReadFile(c.String("image"))
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}
	if len(image) > membus.PhysicalSize {
		return nil, fmt.Errorf("image is %d bytes, exceeds physical memory of %d bytes", len(image), membus.PhysicalSize)
	}

	bus := membus.NewRAM()
	for i, b := range image {
		bus.Write(uint32(i), b)
	}

	var verbose *os.File
	if c.Bool("verbose") {
		verbose = os.Stderr
	}
	level := slog.LevelInfo
	if c.Bool("verbose") {
		level = slog.LevelDebug
	}
	log := telemetry.New(os.Stdout, verbose, level)

	state := cpu.New()
	ic := interrupt.NewController()
	eng := engine.New(state, bus, ic, log)

	return &machine{state: state, bus: bus, interrupts: ic, engine: eng}, nil
}

func (m *machine) runLoop(maxSteps uint64) error {
	for i := uint64(0); maxSteps == 0 || i < maxSteps; i++ {
		if err := m.engine.Step(); err != nil {
			return err
		}
	}
	return nil
}

func (m *machine) stepLoop(maxSteps uint64) error {
	for i := uint64(0); maxSteps == 0 || i < maxSteps; i++ {
		if err := m.engine.Step(); err != nil {
			return err
		}
		fmt.Printf("tick %d: pc=%#010x sp=%#010x bp=%#010x flags=%#010x\n",
			i, m.state.PC(), m.state.SP(), m.state.BP(), uint32(m.state.Flags))
	}
	return nil
}

func (m *machine) runWithScheduledIRQ(maxSteps uint64, id uint8, at uint64) error {
	for i := uint64(0); maxSteps == 0 || i < maxSteps; i++ {
		if i == at {
			m.interrupts.IRQ(id)
		}
		if err := m.engine.Step(); err != nil {
			return err
		}
	}
	return nil
}

// isInteractive reports whether stdin is a terminal, the gate a console
// device should check before switching into raw/cbreak mode.
func isInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// attachConsole puts stdin into raw mode and starts a goroutine that
// raises irqID on the controller once per keystroke, giving the
// machine a minimal hosted input device without the core itself ever
// knowing stdin exists -- it only ever sees IRQs arrive on
// interrupt.Controller, the same boundary kept around device
// peripherals generally.
func (m *machine) attachConsole(irqID uint8) (stop func(), err error) {
	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("entering raw mode: %w", err)
	}

	done := make(chan struct{})
	go func() {
		buf := make([]byte, 1)
		for {
			select {
			case <-done:
				return
			default:
			}
			n, err := os.Stdin.Read(buf)
			if err != nil || n == 0 {
				return
			}
			m.interrupts.IRQ(irqID)
		}
	}()

	return func() {
		close(done)
		_ = term.Restore(fd, oldState)
	}, nil
}
