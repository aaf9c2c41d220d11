// Package countdown is a bootloader timer built on time.AfterFunc.
package countdown

import (
	"errors"
	"sync"
	"time"
)

var ErrInvalidArgs = errors.New("countdown: delay must be positive and callback non-nil")

// Timer runs a callback after a delay, once or repeatedly. Starting it again
// replaces the pending countdown; Stop cancels it. Callbacks run on their own
// goroutine.
type Timer struct {
	mu  sync.Mutex
	t   *time.Timer
	gen uint64
}

func New() *Timer {
	return &Timer{}
}

// Start arms the timer. A repeating timer keeps firing every delay until
// Stop or the next Start.
func (c *Timer) Start(delay time.Duration, oneshot bool, onExpire func()) error {
	if delay <= 0 || onExpire == nil {
		return ErrInvalidArgs
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	gen := c.gen

	var fire func()
	fire = func() {
		c.mu.Lock()
		if c.gen != gen {
			// stopped or restarted meanwhile
			c.mu.Unlock()
			return
		}
		if oneshot {
			c.t = nil
		} else {
			c.t = time.AfterFunc(delay, fire)
		}
		c.mu.Unlock()
		onExpire()
	}
	c.t = time.AfterFunc(delay, fire)
	return nil
}

// Stop cancels the countdown. It is a no-op if nothing is armed.
func (c *Timer) Stop() {
	c.mu.Lock()
	c.stopLocked()
	c.mu.Unlock()
}

// Active reports whether a countdown is armed.
func (c *Timer) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t != nil
}

func (c *Timer) stopLocked() {
	if c.t != nil {
		c.t.Stop()
		c.t = nil
	}
	c.gen++
}
