// Package engine implements the fetch/decode/execute loop that drives
// the cpu register file, the mmu translator, and the interrupt
// controller. One Step call either services a pending interrupt or
// executes exactly one instruction, per the architecture's tick
// definition.
package engine

import (
	"log/slog"

	"gvm32/internal/cpu"
	"gvm32/internal/interrupt"
	"gvm32/internal/membus"
	"gvm32/internal/mmu"
)

// vectorTableBase is the physical (untranslated) address of the fixed
// interrupt dispatch vector: one little-endian uint32 handler address
// per interrupt id, indexed id*4. Vector fetches bypass the MMU
// entirely -- resolving the handler for a fault must never itself be
// able to fault.
const vectorTableBase = 0

// Engine ties the register/flag file, the bus, the MMU, and the
// interrupt controller together and drives the tick loop.
type Engine struct {
	State      *cpu.State
	Bus        membus.Bus
	Interrupts *interrupt.Controller
	Log        *slog.Logger

	// handler context snapshot, captured on interrupt entry and
	// consumed by iret.
	savedFlags   cpu.Flags
	savedPC      uint32
	savedBP      uint32
	savedUserSP  uint32
	cameFromUser bool
}

// New returns an Engine wired to the given state, bus, and interrupt
// controller. log may be telemetry.Discard() to disable tracing
// entirely.
func New(state *cpu.State, bus membus.Bus, ic *interrupt.Controller, log *slog.Logger) *Engine {
	return &Engine{State: state, Bus: bus, Interrupts: ic, Log: log}
}

// Step advances the machine by one tick: if INTERRUPT_ENABLE is set and
// an interrupt is queued (or an NMI is queued regardless of the flag),
// it services that interrupt; otherwise it executes one instruction.
//
// Any MMU or privilege fault raised during fetch or operand access
// aborts the instruction without applying updates attempted past the
// fault point, and raises the matching NMI -- it is not returned to the
// caller as a Go error. Step returns a non-nil error only when
// instruction execution fails with an error that is not an
// interrupt.Fault; every error the current instruction set raises is a
// Fault. A nil bus is not checked for.
func (e *Engine) Step() error {
	enabled := e.State.Flags.Has(cpu.FlagInterruptEnable)
	if e.Interrupts.Pending(enabled) {
		id, ok := e.Interrupts.Dequeue(enabled)
		if ok {
			e.service(id)
		}
		return nil
	}

	if err := e.executeOne(); err != nil {
		if f, ok := err.(interrupt.Fault); ok {
			e.Log.Warn("fault during instruction, raising NMI", "error", f)
			e.Interrupts.RaiseFault(f)
			return nil
		}
		return err
	}
	return nil
}

// fetch reads and consumes the byte at the current PC, translating
// through the MMU with EXEC permission and post-incrementing PC.
func (e *Engine) fetch() (uint8, error) {
	pc := e.State.PC()
	phys, err := mmu.Translate(e.Bus, e.State.Memmap, e.State.Flags.Has(cpu.FlagMemmapEnable), pc, mmu.Exec)
	if err != nil {
		return 0, err
	}
	e.State.SetPC(pc + 1)
	return e.Bus.Read(phys), nil
}

// fetch32 assembles a little-endian 32-bit immediate from four
// consecutive fetch() calls.
func (e *Engine) fetch32() (uint32, error) {
	var v uint32
	for i := uint(0); i < 4; i++ {
		b, err := e.fetch()
		if err != nil {
			return 0, err
		}
		v |= uint32(b) << (8 * i)
	}
	return v, nil
}

// readMem reads one byte at a translated data address with READ
// permission.
func (e *Engine) readMem(addr uint32) (uint8, error) {
	phys, err := mmu.Translate(e.Bus, e.State.Memmap, e.State.Flags.Has(cpu.FlagMemmapEnable), addr, mmu.Read)
	if err != nil {
		return 0, err
	}
	return e.Bus.Read(phys), nil
}

// writeMem writes one byte at a translated data address with WRITE
// permission.
func (e *Engine) writeMem(addr uint32, v uint8) error {
	phys, err := mmu.Translate(e.Bus, e.State.Memmap, e.State.Flags.Has(cpu.FlagMemmapEnable), addr, mmu.Write)
	if err != nil {
		return err
	}
	e.Bus.Write(phys, v)
	return nil
}

// readMem32 / writeMem32 move a little-endian word through readMem /
// writeMem. Partial writes that fault partway through are observable:
// the architecture does not promise transactional instructions.
func (e *Engine) readMem32(addr uint32) (uint32, error) {
	var v uint32
	for i := uint32(0); i < 4; i++ {
		b, err := e.readMem(addr + i)
		if err != nil {
			return 0, err
		}
		v |= uint32(b) << (8 * i)
	}
	return v, nil
}

func (e *Engine) writeMem32(addr uint32, v uint32) error {
	for i := uint32(0); i < 4; i++ {
		if err := e.writeMem(addr+i, uint8(v>>(8*i))); err != nil {
			return err
		}
	}
	return nil
}

// requirePrivileged returns UnprivilegedOpcode if the machine is in
// user ring.
func (e *Engine) requirePrivileged() error {
	if e.State.Flags.Has(cpu.FlagUserRing) {
		return interrupt.UnprivilegedOpcode{}
	}
	return nil
}

func (e *Engine) executeOne() error {
	pc := e.State.PC()
	opcode, err := e.fetch()
	if err != nil {
		return err
	}
	op := Opcode(opcode)
	e.Log.Debug("exec", "pc", pc, "op", op.String())

	switch op.class() {
	case classZeroOperand:
		return e.execZeroOperand(op & 0x3f)
	case classRegImm32:
		return e.execRegImm32(op)
	case classTwoRegister:
		return e.execTwoRegister(op)
	case classStoreImm32:
		return e.execStoreImm32(op)
	}
	return nil
}

var branchFlags = [8]cpu.Flags{
	cpu.FlagZero, cpu.FlagOverflow, cpu.FlagCarry, cpu.FlagNegative,
	cpu.FlagParity, cpu.FlagNaN, cpu.FlagInfinite, cpu.FlagMemmapEnable,
}

func (e *Engine) execZeroOperand(sub Opcode) error {
	switch {
	case sub <= subBranchTrueMemmapEnable:
		return e.branch(branchFlags[sub], true)
	case sub <= subBranchFalseMemmapEnable:
		return e.branch(branchFlags[sub-subBranchFalseZero], false)
	}

	switch sub {
	case subClearCarry:
		e.State.Flags = e.State.Flags.Set(cpu.FlagCarry, false)
	case subSetCarry:
		e.State.Flags = e.State.Flags.Set(cpu.FlagCarry, true)
	case subClearMemmapEnable:
		if err := e.requirePrivileged(); err != nil {
			return err
		}
		e.State.Flags = e.State.Flags.Set(cpu.FlagMemmapEnable, false)
	case subSetMemmapEnable:
		if err := e.requirePrivileged(); err != nil {
			return err
		}
		e.State.Flags = e.State.Flags.Set(cpu.FlagMemmapEnable, true)
	case subClearInterruptEnable:
		if err := e.requirePrivileged(); err != nil {
			return err
		}
		e.State.Flags = e.State.Flags.Set(cpu.FlagInterruptEnable, false)
	case subSetInterruptEnable:
		if err := e.requirePrivileged(); err != nil {
			return err
		}
		e.State.Flags = e.State.Flags.Set(cpu.FlagInterruptEnable, true)
	case subSetUserRing:
		if err := e.requirePrivileged(); err != nil {
			return err
		}
		e.State.SystemSP = e.State.SP()
		e.State.Flags = e.State.Flags.Set(cpu.FlagUserRing, true)
	case subCall:
		return e.call()
	case subRet:
		return e.ret()
	case subIRet:
		if err := e.requirePrivileged(); err != nil {
			return err
		}
		return e.iret()
	}
	return nil
}

// branch reads its 32-bit target before testing the flag, so PC is
// always consistently advanced past the immediate regardless of
// whether the branch is taken.
func (e *Engine) branch(flag cpu.Flags, wantSet bool) error {
	target, err := e.fetch32()
	if err != nil {
		return err
	}
	if e.State.Flags.Has(flag) == wantSet {
		e.State.SetPC(target)
	}
	return nil
}

// call pushes BP then PC (each four bytes, high byte written first) onto
// the stack, writing each byte at the current SP and decrementing SP
// afterward, sets BP to the post-push SP, and sets PC to the 32-bit
// target immediate. This produces a frame laid out, from low to high
// address, as [saved PC byte0..byte3, saved BP byte0..byte3], with SP
// pointing one below the lowest pushed byte and BP pointing to SP's
// post-push value -- write-then-decrement with the most-significant
// byte first is what leaves the *least* significant byte at the lowest
// address once the dust settles, matching ret's BP+1..BP+4 ascending
// read.
func (e *Engine) call() error {
	target, err := e.fetch32()
	if err != nil {
		return err
	}

	if err := e.pushWord(e.State.BP()); err != nil {
		return err
	}
	if err := e.pushWord(e.State.PC()); err != nil {
		return err
	}

	e.State.Int[cpu.RegBP] = e.State.SP()
	e.State.SetPC(target)
	return nil
}

// pushWord writes value's four bytes high-to-low, each at the current
// SP with SP decremented immediately after, per call's doc comment.
func (e *Engine) pushWord(value uint32) error {
	for i := 3; i >= 0; i-- {
		sp := e.State.SP()
		if err := e.writeMem(sp, uint8(value>>(8*i))); err != nil {
			return err
		}
		e.State.Int[cpu.RegSP] = sp - 1
	}
	return nil
}

// ret pops PC then BP by reading the saved frame at BP+1..BP+4 (PC) and
// BP+5..BP+8 (BP) -- each read pre-increments BP before touching
// memory, the exact mirror of pushWord's write-then-decrement -- then
// sets SP to the reconstructed post-frame address and BP to the saved
// BP. ret never restores USER_RING -- that is iret's job.
func (e *Engine) ret() error {
	var savedPC, savedBP uint32
	bp := e.State.BP()

	for i := uint(0); i < 4; i++ {
		bp++
		b, err := e.readMem(bp)
		if err != nil {
			return err
		}
		savedPC |= uint32(b) << (8 * i)
	}
	for i := uint(0); i < 4; i++ {
		bp++
		b, err := e.readMem(bp)
		if err != nil {
			return err
		}
		savedBP |= uint32(b) << (8 * i)
	}

	e.State.Int[cpu.RegSP] = bp
	e.State.Int[cpu.RegBP] = savedBP
	e.State.SetPC(savedPC)
	return nil
}

// iret restores PC, flags, BP, SP, and USER_RING from the snapshot
// captured on interrupt entry. It is the dedicated interrupt epilogue,
// distinct from ret's function-call epilogue.
func (e *Engine) iret() error {
	e.State.Flags = e.savedFlags
	e.State.SetPC(e.savedPC)
	e.State.Int[cpu.RegBP] = e.savedBP
	if e.cameFromUser {
		e.State.Int[cpu.RegSP] = e.savedUserSP
	}
	return nil
}
