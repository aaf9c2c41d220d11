package mcp2515

// SPI instructions.
const (
	instReset      = 0xC0
	instRead       = 0x03
	instWrite      = 0x02
	instBitModify  = 0x05
	instReadRxBuf  = 0x90 // | n<<2
	instLoadTxBuf  = 0x40 // | n<<1
	instRTS        = 0x80 // | 1<<n
	instReadStatus = 0xA0
)

// Register addresses.
const (
	regRXF0SIDH = 0x00
	regRXF1SIDH = 0x04
	regRXF2SIDH = 0x08
	regRXF3SIDH = 0x10
	regRXF4SIDH = 0x14
	regRXF5SIDH = 0x18
	regRXM0SIDH = 0x20
	regRXM1SIDH = 0x24

	regCANSTAT = 0x0E
	regCANCTRL = 0x0F
	regCNF3    = 0x28
	regCNF2    = 0x29
	regCNF1    = 0x2A
	regCANINTE = 0x2B
	regCANINTF = 0x2C

	regTXB0CTRL = 0x30
	regRXB0CTRL = 0x60
	regRXB1CTRL = 0x70
)

// Operating modes (CANCTRL.REQOP / CANSTAT.OPMOD, bits 7:5).
const (
	modeMask       = 0xE0
	ModeNormal     = 0x00
	ModeSleep      = 0x20
	ModeLoopback   = 0x40
	ModeListenOnly = 0x60
	ModeConfig     = 0x80
)

// Bit fields.
const (
	sidlEXIDE = 0x08 // extended identifier enable, TXBnSIDL/RXFnSIDL/RXBnSIDL
	sidlSRR   = 0x10 // standard remote request, RXBnSIDL
	dlcRTR    = 0x40 // remote frame, TXBnDLC/RXBnDLC
	dlcMask   = 0x0F

	statusRX0IF  = 0x01
	statusRX1IF  = 0x02
	statusTX0REQ = 0x04
	statusTX1REQ = 0x10
	statusTX2REQ = 0x40
)

var filterRegs = [...]byte{regRXF0SIDH, regRXF1SIDH, regRXF2SIDH, regRXF3SIDH, regRXF4SIDH, regRXF5SIDH}

var txReqBits = [...]byte{statusTX0REQ, statusTX1REQ, statusTX2REQ}

// putEID packs a 29-bit identifier in SIDH, SIDL, EID8, EID0 order.
// withIDE sets EXIDE, which filters need and masks ignore.
func putEID(eid uint32, withIDE bool, out []byte) {
	out[0] = byte(eid >> 21)
	out[1] = byte((eid>>18)&0x07)<<5 | byte((eid>>16)&0x03)
	if withIDE {
		out[1] |= sidlEXIDE
	}
	out[2] = byte(eid >> 8)
	out[3] = byte(eid)
}

// putSID packs an 11-bit identifier in SIDH, SIDL order.
func putSID(sid uint32, out []byte) {
	out[0] = byte(sid >> 3)
	out[1] = byte(sid&0x07) << 5
	out[2] = 0
	out[3] = 0
}

// getID decodes SIDH, SIDL, EID8, EID0 as read from a receive buffer.
func getID(regs []byte) (id uint32, extended bool) {
	sid := uint32(regs[0])<<3 | uint32(regs[1])>>5
	if regs[1]&sidlEXIDE == 0 {
		return sid, false
	}
	eid := sid<<18 |
		uint32(regs[1]&0x03)<<16 |
		uint32(regs[2])<<8 |
		uint32(regs[3])
	return eid, true
}
