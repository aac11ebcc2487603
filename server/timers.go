package server

import (
	"sync/atomic"
	"time"
)

const (
	// ConnectRetryTime default per RFC 4271 is configurable; the
	// implementation uses a short retry to re-dial quickly.
	defaultConnectRetryTime = 5

	// HoldTimer value armed right after sending OPEN, before the
	// hold time is negotiated. RFC 4271 suggests "a large value";
	// 4 minutes is the customary choice.
	initialHoldTime = 240
)

// countdown is a 1 Hz countdown timer. Writing 0 stops it, writing
// N >= 1 (re)starts it at N seconds. When a tick moves the value to
// zero the owning FSM enqueues eventID. Values are atomics because
// the tick task and the FSM dispatch loop touch them concurrently.
type countdown struct {
	secs    atomic.Int32
	eventID int
}

func newCountdown(eventID int) *countdown {
	return &countdown{eventID: eventID}
}

// set (re)starts the countdown at v seconds; v == 0 stops it.
func (c *countdown) set(v int) {
	c.secs.Store(int32(v))
}

func (c *countdown) stop() {
	c.secs.Store(0)
}

func (c *countdown) get() int {
	return int(c.secs.Load())
}

// tick decrements a running countdown and reports whether it just
// expired.
func (c *countdown) tick() bool {
	for {
		v := c.secs.Load()
		if v <= 0 {
			return false
		}
		if c.secs.CompareAndSwap(v, v-1) {
			return v == 1
		}
	}
}

// runTimer is a tomb task decrementing one countdown every second.
// Expiration is delivered through the event queue, never by calling
// into FSM logic directly.
func (fsm *FSM) runTimer(c *countdown) func() error {
	return func() error {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if c.tick() {
					fsm.enqueueEvent(&event{id: c.eventID})
				}
			case <-fsm.t.Dying():
				return nil
			}
		}
	}
}
