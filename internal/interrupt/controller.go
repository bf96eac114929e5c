package interrupt

import "sync"

// queueCapacity bounds the pending-interrupt FIFO. Overflow policy is
// drop-newest with no flag raised: a full queue refuses the new id
// rather than blocking or growing.
const queueCapacity = 64

// Controller owns the pending-interrupt queue and the interrupt mask.
// IRQ is safe to call concurrently with Dequeue/RaiseFault: the queue is
// guarded by a plain sync.Mutex, since there is a single bounded FIFO
// here rather than a multi-producer response bus.
type Controller struct {
	mu    sync.Mutex
	queue []uint32
	mask  uint8
}

// NewController returns a Controller with an all-enabled interrupt mask
// and an empty queue, per the machine's lifecycle.
func NewController() *Controller {
	return &Controller{mask: 0xff}
}

// Mask returns the current 8-bit interrupt mask.
func (c *Controller) Mask() uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mask
}

// SetMask replaces the interrupt mask. Bit i enables IRQ id i.
func (c *Controller) SetMask(mask uint8) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mask = mask
}

// IRQ offers a maskable interrupt id from an external producer. If bit
// id of the mask is clear, the id is dropped silently.
func (c *Controller) IRQ(id uint8) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if uint8(1<<id)&c.mask == 0 {
		return
	}
	c.enqueueLocked(uint32(id))
}

// RaiseFault injects a synchronous NMI. NMIs bypass both the interrupt
// mask and INTERRUPT_ENABLE: the engine always services a queued NMI
// before considering the enable flag (see Controller.Dequeue), and
// RaiseFault pushes to the front of the queue so it preempts any
// already-pending IRQs: NMIs are serviced at the next tick regardless
// of mask/enable state.
func (c *Controller) RaiseFault(f Fault) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := IDOf(f)
	if len(c.queue) >= queueCapacity {
		return
	}
	c.queue = append([]uint32{id}, c.queue...)
}

func (c *Controller) enqueueLocked(id uint32) {
	if len(c.queue) >= queueCapacity {
		return
	}
	c.queue = append(c.queue, id)
}

// Pending reports whether there is at least one queued NMI (which
// bypasses the enable flag) or, when enabled is true, any queued
// interrupt at all.
func (c *Controller) Pending(interruptEnable bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return false
	}
	if interruptEnable {
		return true
	}
	return IsNMI(c.queue[0])
}

// Dequeue pops the next interrupt to service. Callers must have already
// checked Pending. NMIs at the head of the queue are always returned
// regardless of interruptEnable; a plain IRQ is only returned when
// interruptEnable is set.
func (c *Controller) Dequeue(interruptEnable bool) (id uint32, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return 0, false
	}
	if !interruptEnable && !IsNMI(c.queue[0]) {
		return 0, false
	}
	id, c.queue = c.queue[0], c.queue[1:]
	return id, true
}

// Len reports the number of queued interrupts, test/diagnostic use only.
func (c *Controller) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}
