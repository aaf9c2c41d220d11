package boot

import (
	"errors"
	"time"
)

// Config defines the runtime parameters of the bootloader engine.
type Config struct {
	// IdleTimeout is how long the engine waits for a first PROG_REQ before
	// handing control to the application.
	IdleTimeout time.Duration

	// ArchID is the machine-type constant reported in PROG_REQ_RESP.
	ArchID uint16

	// PollInterval is the pause between two empty receive polls.
	// 0 yields the processor instead of sleeping.
	PollInterval time.Duration
}

// Well-known architecture identifiers.
const (
	ArchUnknown uint16 = 0x0000
	ArchAVR     uint16 = 0x0001
	ArchSTM32   uint16 = 0x0002
	ArchLinux   uint16 = 0x00FF
)

// DefaultConfig returns the settings used by the reference boards.
func DefaultConfig() Config {
	return Config{
		IdleTimeout:  3 * time.Second,
		ArchID:       ArchUnknown,
		PollInterval: time.Millisecond,
	}
}

// Validate checks if the configuration parameters are valid.
func (c *Config) Validate() error {
	if c.IdleTimeout <= 0 {
		return errors.New("idle timeout must be positive")
	}
	if c.PollInterval < 0 {
		return errors.New("poll interval cannot be negative")
	}
	return nil
}
