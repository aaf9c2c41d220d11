// Package mcp2515 drives a Microchip MCP2515/MCP25625 stand-alone CAN
// controller over SPI and exposes it as a bootloader transport.
//
// Only classic CAN is supported. Bit timing is written once from Config and
// never negotiated. The receive path is polled; the controller's interrupt
// line is not used.
package mcp2515

import (
	"errors"
	"fmt"
	"time"

	"tinygo.org/x/drivers"

	"github.com/LoveWonYoung/cannuccia/protocol"
)

var (
	ErrNoTxBuffer = errors.New("mcp2515: all transmit buffers busy")
	ErrModeChange = errors.New("mcp2515: mode change not acknowledged")
)

// Pin is the chip-select output. machine.Pin satisfies it.
type Pin interface {
	High()
	Low()
}

// Config holds the bit timing register values.
type Config struct {
	CNF1, CNF2, CNF3 byte

	// ResetDelay is how long to wait after the RESET instruction.
	ResetDelay time.Duration
}

// DefaultConfig is 1 Mbit/s with a 16 MHz oscillator, 75% sample point.
func DefaultConfig() Config {
	return Config{
		CNF1:       0x00,
		CNF2:       0x91,
		CNF3:       0x01,
		ResetDelay: time.Millisecond,
	}
}

// Device is an MCP2515 attached to an SPI bus.
type Device struct {
	bus    drivers.SPI
	cs     Pin
	cfg    Config
	tx     [14]byte
	rx     [14]byte
	inited bool
}

// New returns a Device. Nothing is sent on the bus until Init.
func New(bus drivers.SPI, cs Pin, cfg Config) *Device {
	cs.High()
	return &Device{bus: bus, cs: cs, cfg: cfg}
}

// Init resets and configures the controller on first use. Later calls only
// swap the acceptance filter.
func (d *Device) Init(f protocol.Filter) error {
	if d.inited {
		if err := d.setMode(ModeConfig); err != nil {
			return err
		}
		if err := d.setFilter(f); err != nil {
			return err
		}
		return d.setMode(ModeNormal)
	}

	if err := d.command(instReset); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	time.Sleep(d.cfg.ResetDelay)

	if err := d.setMode(ModeConfig); err != nil {
		return err
	}
	// CNF3, CNF2, CNF1 are consecutive
	if err := d.write(regCNF3, d.cfg.CNF3, d.cfg.CNF2, d.cfg.CNF1); err != nil {
		return fmt.Errorf("bit timing: %w", err)
	}
	if err := d.write(regCANINTE, 0x00); err != nil {
		return err
	}
	// receive buffers: filters on, no rollover
	if err := d.write(regRXB0CTRL, 0x00); err != nil {
		return err
	}
	if err := d.write(regRXB1CTRL, 0x00); err != nil {
		return err
	}
	if err := d.setFilter(f); err != nil {
		return err
	}
	if err := d.setMode(ModeNormal); err != nil {
		return err
	}
	d.inited = true
	return nil
}

// Send loads the first free transmit buffer and requests transmission.
func (d *Device) Send(id uint32, payload []byte) (int, error) {
	status, err := d.readStatus()
	if err != nil {
		return 0, err
	}
	n := -1
	for i, bit := range txReqBits {
		if status&bit == 0 {
			n = i
			break
		}
	}
	if n < 0 {
		return 0, ErrNoTxBuffer
	}

	if len(payload) > protocol.MaxPayload {
		payload = payload[:protocol.MaxPayload]
	}
	busID, extended, remote := protocol.BusID(id)

	buf := d.tx[:14]
	buf[0] = instLoadTxBuf | byte(n)<<1
	if extended {
		putEID(busID, true, buf[1:5])
	} else {
		putSID(busID, buf[1:5])
	}
	buf[5] = byte(len(payload))
	if remote {
		buf[5] |= dlcRTR
	}
	copy(buf[6:], payload)
	if err := d.transfer(buf[:6+len(payload)], nil); err != nil {
		return 0, err
	}
	if err := d.command(instRTS | 1<<n); err != nil {
		return 0, err
	}
	return len(payload), nil
}

// PollReceive reads one pending frame, receive buffer 0 first.
func (d *Device) PollReceive() (uint32, []byte, bool) {
	status, err := d.readStatus()
	if err != nil {
		return 0, nil, false
	}
	var n byte
	switch {
	case status&statusRX0IF != 0:
		n = 0
	case status&statusRX1IF != 0:
		n = 1
	default:
		return 0, nil, false
	}

	// READ RX BUFFER clears RXnIF when chip select is released
	w := d.tx[:14]
	for i := range w {
		w[i] = 0
	}
	w[0] = instReadRxBuf | n<<2
	r := d.rx[:14]
	if err := d.transfer(w, r); err != nil {
		return 0, nil, false
	}
	regs := r[1:]

	busID, extended := getID(regs)
	var remote bool
	if extended {
		remote = regs[4]&dlcRTR != 0
	} else {
		remote = regs[1]&sidlSRR != 0
	}
	dlc := int(regs[4] & dlcMask)
	if dlc > protocol.MaxPayload {
		dlc = protocol.MaxPayload
	}
	payload := make([]byte, dlc)
	copy(payload, regs[5:5+dlc])
	return protocol.Tagged(busID, extended, remote), payload, true
}

// Mode returns the current operating mode from CANSTAT.
func (d *Device) Mode() (byte, error) {
	v, err := d.read(regCANSTAT)
	return v & modeMask, err
}

func (d *Device) setMode(mode byte) error {
	if err := d.modify(regCANCTRL, modeMask, mode); err != nil {
		return err
	}
	got, err := d.Mode()
	if err != nil {
		return err
	}
	if got != mode {
		return fmt.Errorf("%w: want 0x%02X, got 0x%02X", ErrModeChange, mode, got)
	}
	return nil
}

// setFilter programs both masks and all six filters with the same pair, so
// neither receive buffer accepts frames outside f.
func (d *Device) setFilter(f protocol.Filter) error {
	var regs [4]byte
	mask, _, _ := protocol.BusID(f.Mask | protocol.FlagIDE)
	putEID(mask, false, regs[:])
	for _, addr := range []byte{regRXM0SIDH, regRXM1SIDH} {
		if err := d.write(addr, regs[:]...); err != nil {
			return fmt.Errorf("mask 0x%02X: %w", addr, err)
		}
	}

	id, _, _ := protocol.BusID(f.ID | protocol.FlagIDE)
	putEID(id, true, regs[:])
	for _, addr := range filterRegs {
		if err := d.write(addr, regs[:]...); err != nil {
			return fmt.Errorf("filter 0x%02X: %w", addr, err)
		}
	}
	return nil
}

func (d *Device) readStatus() (byte, error) {
	w := d.tx[:2]
	w[0], w[1] = instReadStatus, 0
	r := d.rx[:2]
	if err := d.transfer(w, r); err != nil {
		return 0, err
	}
	return r[1], nil
}

func (d *Device) read(addr byte) (byte, error) {
	w := d.tx[:3]
	w[0], w[1], w[2] = instRead, addr, 0
	r := d.rx[:3]
	if err := d.transfer(w, r); err != nil {
		return 0, err
	}
	return r[2], nil
}

func (d *Device) write(addr byte, values ...byte) error {
	w := d.tx[:2+len(values)]
	w[0], w[1] = instWrite, addr
	copy(w[2:], values)
	return d.transfer(w, nil)
}

func (d *Device) modify(addr, mask, value byte) error {
	w := d.tx[:4]
	w[0], w[1], w[2], w[3] = instBitModify, addr, mask, value
	return d.transfer(w, nil)
}

func (d *Device) command(inst byte) error {
	w := d.tx[:1]
	w[0] = inst
	return d.transfer(w, nil)
}

// transfer runs one chip-select framed SPI transaction.
func (d *Device) transfer(w, r []byte) error {
	d.cs.Low()
	err := d.bus.Tx(w, r)
	d.cs.High()
	return err
}
