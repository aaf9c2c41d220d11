package boot

import "sync/atomic"

// State is the bootloader session state.
type State uint32

const (
	StateIdle State = iota
	StateLocked
	StateUnlocked
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateLocked:
		return "Locked"
	case StateUnlocked:
		return "Unlocked"
	case StateDone:
		return "Done"
	default:
		return "Unknown"
	}
}

// stateCell is shared between the polling loop and the countdown callback.
// Every access goes through sync/atomic.
type stateCell struct {
	v atomic.Uint32
}

func (c *stateCell) Load() State { return State(c.v.Load()) }

func (c *stateCell) Store(s State) { c.v.Store(uint32(s)) }

func (c *stateCell) CompareAndSwap(old, new State) bool {
	return c.v.CompareAndSwap(uint32(old), uint32(new))
}
