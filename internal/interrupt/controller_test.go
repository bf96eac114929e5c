package interrupt_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"gvm32/internal/interrupt"
)

func TestIRQMaskedOutIsDropped(t *testing.T) {
	c := interrupt.NewController()
	c.SetMask(0x00) // all IRQs masked
	c.IRQ(3)
	require.Equal(t, 0, c.Len())
}

func TestIRQEnqueuesFIFO(t *testing.T) {
	c := interrupt.NewController()
	c.IRQ(1)
	c.IRQ(2)

	id, ok := c.Dequeue(true)
	require.True(t, ok)
	require.Equal(t, uint32(1), id)

	id, ok = c.Dequeue(true)
	require.True(t, ok)
	require.Equal(t, uint32(2), id)

	_, ok = c.Dequeue(true)
	require.False(t, ok)
}

func TestIRQNotPendingWithoutEnable(t *testing.T) {
	c := interrupt.NewController()
	c.IRQ(1)
	require.False(t, c.Pending(false))
	_, ok := c.Dequeue(false)
	require.False(t, ok)
}

func TestRaiseFaultPreemptsQueue(t *testing.T) {
	c := interrupt.NewController()
	c.IRQ(1)
	c.RaiseFault(interrupt.UsedFreePage{})

	require.True(t, c.Pending(false), "an NMI must be serviceable even with interrupts disabled")

	id, ok := c.Dequeue(false)
	require.True(t, ok)
	require.True(t, interrupt.IsNMI(id))
	require.Equal(t, interrupt.NMIUsedFreePage, interrupt.Untag(id))

	// the IRQ queued before the fault is still behind it.
	require.False(t, c.Pending(false))
	require.True(t, c.Pending(true))
	id, ok = c.Dequeue(true)
	require.True(t, ok)
	require.Equal(t, uint32(1), id)
}

func TestQueueDropsNewestOnOverflow(t *testing.T) {
	c := interrupt.NewController()
	c.SetMask(0xff)
	for i := 0; i < 100; i++ {
		c.IRQ(uint8(i % 8))
	}
	require.LessOrEqual(t, c.Len(), 64)

	// the oldest ids were kept: the head is still the first IRQ offered.
	id, ok := c.Dequeue(true)
	require.True(t, ok)
	require.Equal(t, uint32(0), id)
}
