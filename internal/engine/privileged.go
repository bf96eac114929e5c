package engine

import (
	"gvm32/internal/cpu"
	"gvm32/internal/interrupt"
)

// privilegedMove writes control register ctrl from integer register
// src. Faults with UnprivilegedOpcode in user ring and leaves the
// target control register untouched.
func (e *Engine) privilegedMove(src, ctrl uint32) error {
	if err := e.requirePrivileged(); err != nil {
		return err
	}
	switch ctrl {
	case ctrlFlags:
		e.State.Flags = cpu.Flags(e.State.Int[src])
	case ctrlMemmap:
		e.State.Memmap = e.State.Int[src]
	case ctrlInterruptMask:
		mask := uint8(e.State.Int[src])
		e.State.InterruptMask = mask
		e.Interrupts.SetMask(mask)
	}
	return nil
}

// unprivilegedMove reads control register ctrl into integer register
// dst. Reading control registers is unrestricted in either ring.
func (e *Engine) unprivilegedMove(ctrl, dst uint32) {
	switch ctrl {
	case ctrlFlags:
		e.State.Int[dst] = uint32(e.State.Flags)
	case ctrlMemmap:
		e.State.Int[dst] = e.State.Memmap
	case ctrlInterruptMask:
		e.State.Int[dst] = uint32(e.State.InterruptMask)
	}
}

// service handles one queued interrupt (IRQ or NMI): it snapshots
// flags/PC/BP (and the user SP, switching to the system stack, if the
// machine was in user ring), sets the last-interrupt register, and
// transfers control to the vector table entry for id.
//
// The vector fetch reads directly off the bus at a fixed physical
// offset rather than going through the MMU (see vectorTableBase's
// doc), so servicing an interrupt can never itself raise one.
func (e *Engine) service(id uint32) {
	kind := id
	if interrupt.IsNMI(id) {
		kind = interrupt.Untag(id)
	}

	e.savedFlags = e.State.Flags
	e.savedPC = e.State.PC()
	e.savedBP = e.State.BP()

	e.State.Int[cpu.RegLastInterrupt] = kind

	e.cameFromUser = e.State.Flags.Has(cpu.FlagUserRing)
	if e.cameFromUser {
		e.savedUserSP = e.State.SP()
		e.State.Int[cpu.RegSP] = e.State.SystemSP
		e.State.Int[cpu.RegBP] = 0
		e.State.Flags = e.State.Flags.Set(cpu.FlagUserRing, false)
	}

	handler := membusReadVector(e, kind)
	e.State.SetPC(handler)

	e.Log.Debug("interrupt serviced",
		"id", id, "handler", handler, "from_user", e.cameFromUser)
}

func membusReadVector(e *Engine, kind uint32) uint32 {
	addr := vectorTableBase + kind*4
	return uint32(e.Bus.Read(addr)) |
		uint32(e.Bus.Read(addr+1))<<8 |
		uint32(e.Bus.Read(addr+2))<<16 |
		uint32(e.Bus.Read(addr+3))<<24
}
