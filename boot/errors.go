package boot

import (
	"fmt"

	"github.com/LoveWonYoung/cannuccia/protocol"
)

// messageOrDefault returns msg if present, otherwise fallback.
func messageOrDefault(msg, fallback string) string {
	if msg != "" {
		return msg
	}
	return fallback
}

type BootError struct {
	msg string
}

func NewBootError(msg string) BootError {
	return BootError{msg: msg}
}

func (e BootError) Error() string {
	return messageOrDefault(e.msg, "bootloader error")
}

// TransportError covers filter setup failures and dropped sends.
type TransportError struct {
	BootError
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	base := messageOrDefault(e.msg, "transport "+e.Op+" failed")
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", base, e.Err)
	}
	return base
}

func (e *TransportError) Unwrap() error { return e.Err }

// FlashError covers unlock rejection and begin/fill/end-write failures.
type FlashError struct {
	BootError
	Op   string
	Addr uint32
	Err  error
}

func (e *FlashError) Error() string {
	base := messageOrDefault(e.msg, fmt.Sprintf("flash %s at 0x%08X failed", e.Op, e.Addr))
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", base, e.Err)
	}
	return base
}

func (e *FlashError) Unwrap() error { return e.Err }

// ProtocolError reasons.
const (
	ReasonUnrecognized  = "unrecognized message"
	ReasonPayloadLength = "invalid payload length"
	ReasonIllegalState  = "command not allowed in current state"
	ReasonOutOfRange    = "argument out of range"
	ReasonNotWritable   = "page not writable"
)

// ProtocolError describes a frame the engine dropped without answering.
type ProtocolError struct {
	BootError
	Class  protocol.Class
	State  State
	Reason string
}

func (e *ProtocolError) Error() string {
	return messageOrDefault(e.msg, fmt.Sprintf("%s dropped in state %s: %s", e.Class, e.State, e.Reason))
}

func newProtocolError(c protocol.Class, s State, reason string) *ProtocolError {
	return &ProtocolError{Class: c, State: s, Reason: reason}
}
