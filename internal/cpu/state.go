// Package cpu holds the architectural state of a single core: the
// integer and floating-point register files, the flags word, and the
// privileged control registers. It knows nothing about memory,
// translation, or decoding -- those live in mmu and engine and operate
// on a *State passed in.
package cpu

const (
	// NumIntRegisters is the size of the integer register file.
	NumIntRegisters = 16
	// NumFloatRegisters is the size of the float register file.
	NumFloatRegisters = 16

	// RegLastInterrupt holds the id of the most recently serviced
	// interrupt.
	RegLastInterrupt = 12
	// RegPC is the program counter.
	RegPC = 13
	// RegBP is the stack base pointer.
	RegBP = 14
	// RegSP is the stack pointer.
	RegSP = 15
)

// Flags is the 32-bit flags word.
type Flags uint32

const (
	FlagInterruptEnable Flags = 1 << 3
	FlagZero            Flags = 1 << 4
	FlagOverflow        Flags = 1 << 5
	FlagCarry           Flags = 1 << 6
	FlagParity          Flags = 1 << 7
	FlagNegative        Flags = 1 << 8
	FlagNaN             Flags = 1 << 9
	FlagInfinite        Flags = 1 << 10
	FlagUserRing        Flags = 1 << 11
	FlagMemmapEnable    Flags = 1 << 12
)

// Has reports whether every bit in mask is set.
func (f Flags) Has(mask Flags) bool {
	return f&mask == mask
}

// Set returns f with mask set or cleared according to val.
func (f Flags) Set(mask Flags, val bool) Flags {
	if val {
		return f | mask
	}
	return f &^ mask
}

// ClearSet returns f with every bit in clearMask cleared. This is the
// "cleared before set en bloc" idiom the architecture mandates for every
// ALU op: callers pass the full set of flags the operation owns as
// clearMask, then apply each bit with a separate Set call against the
// already-cleared word.
func (f Flags) ClearSet(clearMask Flags) Flags {
	return f &^ clearMask
}

// State is the per-core architectural register file.
type State struct {
	Int   [NumIntRegisters]uint32
	Float [NumFloatRegisters]float32

	Flags Flags

	// Memmap is the physical base address of the top-level translation
	// table.
	Memmap uint32
	// InterruptMask is the 8-bit IRQ mask; bit i enables IRQ id i.
	InterruptMask uint8
	// SystemSP is the saved system-ring stack pointer across a ring
	// transition into user code.
	SystemSP uint32
}

// New returns a State with zeroed registers and flags, matching the
// machine's documented lifecycle. The interrupt mask itself lives on
// the interrupt.Controller, not here; InterruptMask mirrors it only for
// the privileged-move read/write path (see engine.Engine.privilegedMove).
// It defaults to 0xff (all IRQs enabled) to match interrupt.NewController's
// own default, so the mirror is never stale before the first privileged
// write to the interrupt-mask control register.
func New() *State {
	return &State{InterruptMask: 0xff}
}

// PC returns the program counter register.
func (s *State) PC() uint32 { return s.Int[RegPC] }

// SetPC sets the program counter register.
func (s *State) SetPC(v uint32) { s.Int[RegPC] = v }

// SP returns the stack pointer register.
func (s *State) SP() uint32 { return s.Int[RegSP] }

// BP returns the stack base pointer register.
func (s *State) BP() uint32 { return s.Int[RegBP] }
