package engine

import (
	"testing"

	"gvm32/internal/cpu"
	"gvm32/internal/interrupt"
	"gvm32/internal/membus"
	"gvm32/internal/telemetry"
)

func newTestEngine() *Engine {
	state := cpu.New()
	bus := membus.NewRAM()
	ic := interrupt.NewController()
	return New(state, bus, ic, telemetry.Discard())
}

// TestIAdd covers plain add, signed overflow, and carry-in wraparound.
func TestIAdd(t *testing.T) {
	e := newTestEngine()

	e.State.Int[0] = 5
	e.State.Int[1] = 10
	e.State.Int[0] = e.iadd(0, 1)
	if e.State.Int[0] != 15 {
		t.Fatalf("5+10 = %d, want 15", e.State.Int[0])
	}
	if e.State.Flags.Has(cpu.FlagCarry) || e.State.Flags.Has(cpu.FlagOverflow) || e.State.Flags.Has(cpu.FlagNegative) {
		t.Fatalf("unexpected flags after plain add: %#x", uint32(e.State.Flags))
	}

	e.State.Int[0] = (1 << 31) - 1
	e.State.Int[1] = 1
	e.State.Int[0] = e.iadd(0, 1)
	if e.State.Int[0] != 0x80000000 {
		t.Fatalf("overflow add = %#x, want 0x80000000", e.State.Int[0])
	}
	if !e.State.Flags.Has(cpu.FlagOverflow) || !e.State.Flags.Has(cpu.FlagNegative) || e.State.Flags.Has(cpu.FlagCarry) {
		t.Fatalf("overflow add flags = %#x, want OVERFLOW|NEGATIVE only", uint32(e.State.Flags))
	}

	e.State.Int[0] = 0xffffffff
	e.State.Int[1] = 0
	e.State.Flags = e.State.Flags.Set(cpu.FlagCarry, true)
	e.State.Int[0] = e.iadd(0, 1)
	if e.State.Int[0] != 0 {
		t.Fatalf("carry-in add = %#x, want 0", e.State.Int[0])
	}
	if !e.State.Flags.Has(cpu.FlagCarry) || e.State.Flags.Has(cpu.FlagOverflow) || e.State.Flags.Has(cpu.FlagNegative) {
		t.Fatalf("carry-in add flags = %#x, want CARRY set, OVERFLOW and NEGATIVE clear", uint32(e.State.Flags))
	}
}

// TestBSL covers plain left shift, a shift amount >= 32, and the
// shift-by-1 carry-out convention.
func TestBSL(t *testing.T) {
	e := newTestEngine()

	e.State.Int[0] = 3
	e.State.Int[1] = 2
	e.State.Int[0] = e.bShift(0, 1, true)
	if e.State.Int[0] != 12 {
		t.Fatalf("3<<2 = %d, want 12", e.State.Int[0])
	}
	if e.State.Flags.Has(cpu.FlagCarry) {
		t.Fatalf("unexpected carry after 3<<2")
	}

	e.State.Int[0] = 3
	e.State.Int[1] = 32
	e.State.Int[0] = e.bShift(0, 1, true)
	if e.State.Int[0] != 0 {
		t.Fatalf("3<<32 = %d, want 0 (amount >= 32 zeroes the result)", e.State.Int[0])
	}

	e.State.Int[0] = 0xffffffff
	e.State.Int[1] = 1
	e.State.Int[0] = e.bShift(0, 1, true)
	if e.State.Int[0] != 0xfffffffe {
		t.Fatalf("0xffffffff<<1 = %#x, want 0xfffffffe", e.State.Int[0])
	}
	if !e.State.Flags.Has(cpu.FlagCarry) {
		t.Fatalf("expected CARRY set after a shift-by-1 that loses the top bit")
	}
}

func TestDivModByZeroSubstituteZero(t *testing.T) {
	if got := divOrZero(7, 0); got != 0 {
		t.Fatalf("divOrZero(7, 0) = %d, want 0", got)
	}
	if got := modOrZero(7, 0); got != 0 {
		t.Fatalf("modOrZero(7, 0) = %d, want 0", got)
	}
	if got := divOrZero(10, 3); got != 3 {
		t.Fatalf("divOrZero(10, 3) = %d, want 3", got)
	}
}
