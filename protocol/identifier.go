package protocol

import (
	"encoding/binary"
	"errors"
)

// Tagged identifier layout, low to high:
//
//	bit 0      TXRQ (transmit request, ignored on decode)
//	bit 1      RTR  (remote transmission request)
//	bit 2      IDE  (extended identifier, always set)
//	bit 3      unused
//	bits 4-11  device address
//	bits 12-31 message class
//
// The 29-bit identifier seen on the bus is the tagged value shifted right by 3.
const (
	FlagTXRQ uint32 = 0x00000001
	FlagRTR  uint32 = 0x00000002
	FlagIDE  uint32 = 0x00000004

	ClassMask   uint32 = 0xFFFFF000
	AddrMask    uint32 = 0x00000FF0
	addrShift          = 4
	busIDShift         = 3
	maxExtended uint32 = 0x1FFFFFFF
)

var (
	ErrUnrecognized  = errors.New("unrecognized message")
	ErrPayloadLength = errors.New("invalid payload length")
)

// DevMask ORs an 8-bit device address (<< 4) and the IDE bit into base.
func DevMask(base uint32, addr uint8) uint32 {
	return base | uint32(addr)<<addrShift | FlagIDE
}

// Encode builds the tagged identifier for class c sent by (or to) device addr.
func Encode(c Class, addr uint8, payload []byte) (uint32, []byte) {
	if len(payload) > MaxPayload {
		payload = payload[:MaxPayload]
	}
	return DevMask(uint32(c), addr), payload
}

// Decode maps a tagged identifier and payload back to a Message.
// Frames without the IDE bit, with an unknown class or with more than eight
// data bytes decode to ErrUnrecognized.
func Decode(id uint32, payload []byte) (Message, error) {
	if id&FlagIDE == 0 || len(payload) > MaxPayload {
		return Message{}, ErrUnrecognized
	}
	c := Class(id & ClassMask)
	if !c.Known() {
		return Message{}, ErrUnrecognized
	}
	return Message{
		Class:   c,
		Addr:    uint8((id & AddrMask) >> addrShift),
		Payload: payload,
	}, nil
}

// BusID converts a tagged identifier to the identifier carried on the wire.
func BusID(tagged uint32) (id uint32, extended, remote bool) {
	extended = tagged&FlagIDE != 0
	remote = tagged&FlagRTR != 0
	id = tagged >> busIDShift
	if !extended {
		id &= 0x7FF
	}
	return id, extended, remote
}

// Tagged converts an identifier received from the wire to its tagged form.
func Tagged(id uint32, extended, remote bool) uint32 {
	t := (id & maxExtended) << busIDShift
	if extended {
		t |= FlagIDE
	}
	if remote {
		t |= FlagRTR
	}
	return t
}

// U32 reads a little-endian uint32 from the first four payload bytes.
func U32(payload []byte) (uint32, error) {
	if len(payload) < 4 {
		return 0, ErrPayloadLength
	}
	return binary.LittleEndian.Uint32(payload), nil
}

// PutU16 returns v as two little-endian bytes.
func PutU16(v uint16) []byte {
	return binary.LittleEndian.AppendUint16(nil, v)
}

// PutU32 returns v as four little-endian bytes.
func PutU32(v uint32) []byte {
	return binary.LittleEndian.AppendUint32(nil, v)
}
