package protocol

import "fmt"

// Class identifies a CANnuccia message type. It occupies bits 12..31 of a
// tagged identifier; the low 12 bits of a Class value are always zero.
type Class uint32

// Host -> device commands.
const (
	ProgReq      Class = 0xCA001000
	ProgDone     Class = 0xCA002000
	Unlock       Class = 0xCA003000
	SelectPage   Class = 0xCA004000
	Seek         Class = 0xCA005000
	Write        Class = 0xCA006000
	CheckWrites  Class = 0xCA007000
	CommitWrites Class = 0xCA008000
)

// Device -> host responses. Each response shares the low bits of the command
// it answers, only the direction byte differs.
const (
	ProgReqResp     Class = 0xCB001000
	ProgDoneAck     Class = 0xCB002000
	Unlocked        Class = 0xCB003000
	PageSelected    Class = 0xCB004000
	WritesChecked   Class = 0xCB007000
	WritesCommitted Class = 0xCB008000
)

// Direction bytes (top byte of a class).
const (
	DirHostToDevice = 0xCA
	DirDeviceToHost = 0xCB
)

// Version is the protocol revision described by the class table above.
const Version = 1

// MaxPayload is the classic CAN data field limit.
const MaxPayload = 8

var classNames = map[Class]string{
	ProgReq:         "PROG_REQ",
	ProgDone:        "PROG_DONE",
	Unlock:          "UNLOCK",
	SelectPage:      "SELECT_PAGE",
	Seek:            "SEEK",
	Write:           "WRITE",
	CheckWrites:     "CHECK_WRITES",
	CommitWrites:    "COMMIT_WRITES",
	ProgReqResp:     "PROG_REQ_RESP",
	ProgDoneAck:     "PROG_DONE_ACK",
	Unlocked:        "UNLOCKED",
	PageSelected:    "PAGE_SELECTED",
	WritesChecked:   "WRITES_CHECKED",
	WritesCommitted: "WRITES_COMMITTED",
}

func (c Class) String() string {
	if name, ok := classNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Class(0x%08X)", uint32(c))
}

// Known reports whether c is part of the message table.
func (c Class) Known() bool {
	_, ok := classNames[c]
	return ok
}

// Direction returns the top byte of the class.
func (c Class) Direction() byte {
	return byte(c >> 24)
}

// IsCommand reports whether c travels host -> device.
func (c Class) IsCommand() bool {
	return c.Known() && c.Direction() == DirHostToDevice
}

// Response returns the class a device uses to answer command c. The second
// result is false for commands that are never answered (SEEK, WRITE).
func (c Class) Response() (Class, bool) {
	if !c.IsCommand() {
		return 0, false
	}
	r := Class(uint32(c)&0x00FFFFFF | DirDeviceToHost<<24)
	return r, r.Known()
}

// ValidPayload reports whether n is an acceptable payload length for c.
func (c Class) ValidPayload(n int) bool {
	switch c {
	case SelectPage, Seek:
		return n == 4
	case Write:
		return n >= 1 && n <= MaxPayload
	case ProgReq, ProgDone, Unlock, CheckWrites, CommitWrites:
		return n == 0
	case ProgReqResp:
		return n == 5
	case PageSelected, WritesCommitted:
		return n == 4
	case WritesChecked:
		return n == 2
	case ProgDoneAck, Unlocked:
		return n == 0
	}
	return false
}

// Message is a decoded CANnuccia frame.
type Message struct {
	Class   Class
	Addr    uint8
	Payload []byte
}

func (m Message) String() string {
	return fmt.Sprintf("<%s addr=0x%02X [%d] % X>", m.Class, m.Addr, len(m.Payload), m.Payload)
}
