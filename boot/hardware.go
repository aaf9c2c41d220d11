package boot

import (
	"time"

	"github.com/LoveWonYoung/cannuccia/protocol"
)

// Transport frames CAN messages onto and off the bus. Identifiers are in the
// tagged form described by package protocol.
type Transport interface {
	// Init sets up the acceptance filter. Calling it again only changes the filter.
	Init(f protocol.Filter) error
	// Send transmits at most eight payload bytes and returns how many were sent.
	Send(id uint32, payload []byte) (int, error)
	// PollReceive returns the next accepted frame without blocking.
	PollReceive() (id uint32, payload []byte, ok bool)
}

// FlashStore is page-granular access to the application flash.
type FlashStore interface {
	PageSize() uint32
	TotalSize() uint32
	IsPageWritable(addr uint32) bool
	Unlock() error
	Lock() error
	// BeginWrite starts an erase/program cycle of the page at addr.
	BeginWrite(addr uint32) error
	// Fill copies data offset bytes into the current page and returns the
	// number of bytes accepted (0 on error).
	Fill(offset uint32, data []byte) int
	// EndWrite commits the current page.
	EndWrite() error
}

// Timer is a single countdown. onExpire runs outside the caller's goroutine.
type Timer interface {
	Start(delay time.Duration, oneshot bool, onExpire func()) error
	Stop()
}

// Indicator is the debug LED.
type Indicator interface {
	Init() error
	Set(on bool)
}

// IdentityProvider yields the device address for this session.
type IdentityProvider interface {
	DeviceAddress() uint8
}

// Launcher hands control to the resident application. Implementations for
// real targets never return.
type Launcher interface {
	Launch()
}

// StaticAddress is an IdentityProvider with a fixed address.
type StaticAddress uint8

func (a StaticAddress) DeviceAddress() uint8 { return uint8(a) }

// Hardware bundles the collaborators owned by one Engine.
type Hardware struct {
	Transport Transport
	Flash     FlashStore
	Timer     Timer
	Indicator Indicator
	Identity  IdentityProvider
	Launcher  Launcher
}

func (h Hardware) validate() error {
	switch {
	case h.Transport == nil:
		return NewBootError("transport is required")
	case h.Flash == nil:
		return NewBootError("flash store is required")
	case h.Timer == nil:
		return NewBootError("timer is required")
	case h.Identity == nil:
		return NewBootError("identity provider is required")
	}
	return nil
}
