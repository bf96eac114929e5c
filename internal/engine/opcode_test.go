package engine

import "testing"

func TestOpcodeStringMnemonics(t *testing.T) {
	cases := []struct {
		op   Opcode
		want string
	}{
		{Opcode(classZeroOperand | subCall), "call"},
		{Opcode(classZeroOperand | subRet), "ret"},
		{Opcode(classZeroOperand | subIRet), "iret"},
		{Opcode(classZeroOperand | subBranchTrueZero), "bt"},
		{Opcode(classZeroOperand | subBranchFalseCarry), "bf"},
		{Opcode(classTwoRegister | subIAdd), "iadd"},
		{Opcode(classTwoRegister | subPrivilegedMove), "pmov"},
		{Opcode(classRegImm32 | subLoadLitInt), "ldl.i"},
		{Opcode(classStoreImm32 | subStoreByte), "st.b"},
	}
	for _, c := range cases {
		if got := c.op.String(); got != c.want {
			t.Errorf("Opcode(%#x).String() = %q, want %q", uint8(c.op), got, c.want)
		}
	}
}
