package cpu

import "testing"

func TestFlagsHasSet(t *testing.T) {
	var f Flags
	if f.Has(FlagCarry) {
		t.Fatalf("zero-value flags should have no bits set")
	}

	f = f.Set(FlagCarry, true)
	if !f.Has(FlagCarry) {
		t.Fatalf("Set(true) did not set FlagCarry")
	}
	if f.Has(FlagZero) {
		t.Fatalf("Set(true) on FlagCarry leaked into FlagZero")
	}

	f = f.Set(FlagCarry, false)
	if f.Has(FlagCarry) {
		t.Fatalf("Set(false) did not clear FlagCarry")
	}
}

func TestFlagsClearSet(t *testing.T) {
	f := FlagZero | FlagCarry | FlagNegative
	group := FlagZero | FlagOverflow | FlagCarry | FlagNegative | FlagParity
	f = f.ClearSet(group)
	if f != 0 {
		t.Fatalf("ClearSet did not clear the full mask, got %#x", uint32(f))
	}
}

func TestStateRegisterAccessors(t *testing.T) {
	s := New()
	s.SetPC(0x1234)
	if s.PC() != 0x1234 {
		t.Fatalf("PC() = %#x, want 0x1234", s.PC())
	}
	s.Int[RegSP] = 0xbfc8
	s.Int[RegBP] = 0xbfff
	if s.SP() != 0xbfc8 || s.BP() != 0xbfff {
		t.Fatalf("SP()/BP() = %#x/%#x, want 0xbfc8/0xbfff", s.SP(), s.BP())
	}
}
