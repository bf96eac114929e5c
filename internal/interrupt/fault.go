// Package interrupt implements the masked, queued IRQ mechanism and the
// synchronous NMI faults raised by MMU and privilege violations.
package interrupt

import "fmt"

// Fault is the closed sum of synchronous faults the core can raise.
// Every fault kind in the architecture implements it; callers recover
// the concrete kind with a type switch or type assertion rather than
// matching on an error string.
type Fault interface {
	error
	// id is the untagged NMI identifier this fault kind raises; IDOf
	// adds the NMI high bit (see Controller.RaiseFault).
	id() uint32
}

// UsedFreePage is raised when a top-level table slot is zero, or a leaf
// entry lacks the PRESENT bit.
type UsedFreePage struct{}

func (UsedFreePage) Error() string { return "used free page" }
func (UsedFreePage) id() uint32    { return NMIUsedFreePage }

// InvalidPermissions is raised when a leaf is present but its permission
// nibble lacks a bit the access requested.
type InvalidPermissions struct {
	Granted   uint8
	Requested uint8
}

func (f InvalidPermissions) Error() string {
	return fmt.Sprintf("invalid permissions: granted %#03b, requested %#03b", f.Granted, f.Requested)
}
func (InvalidPermissions) id() uint32 { return NMIInvalidPermissions }

// UnprivilegedOpcode is raised when user-ring code attempts a privileged
// operation.
type UnprivilegedOpcode struct{}

func (UnprivilegedOpcode) Error() string { return "unprivileged opcode" }
func (UnprivilegedOpcode) id() uint32    { return NMIUnprivilegedOpcode }

// NMI identifiers, per the architecture's enumerated fault kinds.
const (
	NMIUsedFreePage       uint32 = 0
	NMIInvalidPermissions uint32 = 1
	NMIUnprivilegedOpcode uint32 = 2
)

// nmiTag marks an id as an NMI rather than an IRQ: the high bit
// distinguishes the two in the shared interrupt queue.
const nmiTag uint32 = 0x8000_0000

// IDOf returns the tagged interrupt-queue id for a synchronous fault.
func IDOf(f Fault) uint32 {
	return f.id() | nmiTag
}

// IsNMI reports whether a queued interrupt id is a tagged NMI.
func IsNMI(id uint32) bool {
	return id&nmiTag != 0
}

// Untag strips the NMI tag, returning the underlying NMI kind id.
func Untag(id uint32) uint32 {
	return id &^ nmiTag
}
