// Package mmu implements the two-level page-table translation layer:
// virtual address plus a requested permission set in, physical address
// or a fault out. Translation never mutates architectural state -- it
// is a pure function of the memmap base, the enable flag, the bus bytes
// at the table addresses, and the request.
package mmu

import (
	"gvm32/internal/interrupt"
	"gvm32/internal/membus"
)

// Permission bits requested of a translation.
const (
	Read  uint8 = 0b100
	Write uint8 = 0b010
	Exec  uint8 = 0b001
)

// presentBit is bit 3 of the leaf permission nibble.
const presentBit uint8 = 0b1000

// Translate resolves a virtual address to a physical one under the
// given permission request. If enabled is false, the identity map
// applies. Otherwise the address is decomposed into an 8-bit top index,
// an 8-bit mid index, and a 16-bit page offset, and two table probes are
// made through bus, per the architecture's two-level format.
func Translate(bus membus.Bus, memmap uint32, enabled bool, vaddr uint32, perm uint8) (uint32, error) {
	if !enabled {
		return vaddr, nil
	}

	top := vaddr >> 24
	mid := (vaddr >> 16) & 0xff
	low := vaddr & 0xffff

	t2 := membus.ReadUint32(bus, memmap+top*4)
	if t2 == 0 {
		return 0, interrupt.UsedFreePage{}
	}

	leaf := membus.ReadUint32(bus, t2+mid*4)
	perms := uint8(leaf>>28) & 0xf
	base := leaf & 0x0fff_ffff

	if perms&presentBit == 0 {
		return 0, interrupt.UsedFreePage{}
	}
	if perms&perm != perm {
		return 0, interrupt.InvalidPermissions{Granted: perms, Requested: perm}
	}

	return base + low, nil
}
