package boot

import (
	"context"
	"fmt"
	"math/bits"
	"runtime"
	"time"

	"github.com/LoveWonYoung/cannuccia/protocol"
)

var (
	ErrNoLauncher     = NewBootError("no application launcher configured")
	ErrLaunchReturned = NewBootError("application launcher returned")
)

// Reason used when a frame carries another device's address.
const ReasonForeignAddress = "addressed to another device"

// Option configures optional Engine collaborators.
type Option func(*Engine)

// WithLogger sets the engine logger. The default discards everything.
func WithLogger(l Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// Engine is one bootloader session: the state machine, the page staging
// buffer and the collaborators it drives.
type Engine struct {
	cfg Config
	hw  Hardware
	log Logger

	state stateCell
	page  *Page

	addr      uint8
	pageShift uint8
	pageCount uint16
	started   bool
}

// New checks the configuration and the flash geometry and allocates the page
// buffer. Nothing is touched on the hardware until Start.
func New(cfg Config, hw Hardware, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := hw.validate(); err != nil {
		return nil, err
	}
	if hw.Indicator == nil {
		hw.Indicator = noIndicator{}
	}

	ps := hw.Flash.PageSize()
	if ps == 0 || ps&(ps-1) != 0 {
		return nil, NewBootError(fmt.Sprintf("page size %d is not a power of two", ps))
	}
	count := hw.Flash.TotalSize() / ps
	if count == 0 || count > 0xFFFF {
		return nil, NewBootError(fmt.Sprintf("page count %d out of range", count))
	}

	e := &Engine{
		cfg:       cfg,
		hw:        hw,
		log:       nopLogger{},
		page:      NewPage(ps),
		pageShift: uint8(bits.TrailingZeros32(ps)),
		pageCount: uint16(count),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// State returns the current session state.
func (e *Engine) State() State { return e.state.Load() }

// Page returns the staging buffer.
func (e *Engine) Page() *Page { return e.page }

// Address returns the device address read at Start.
func (e *Engine) Address() uint8 { return e.addr }

// Start powers the indicator, installs the device filter and arms the idle
// countdown. If the transport or the countdown cannot be set up the engine
// moves straight to Done so the application still gets control.
func (e *Engine) Start() error {
	if e.started {
		return nil
	}
	e.started = true

	if err := e.hw.Indicator.Init(); err != nil {
		e.log.Error("indicator init failed", "err", err)
	}
	e.hw.Indicator.Set(true)

	e.addr = e.hw.Identity.DeviceAddress()
	e.state.Store(StateIdle)

	filter := protocol.DeviceFilter(e.addr)
	if err := e.hw.Transport.Init(filter); err != nil {
		e.state.Store(StateDone)
		return &TransportError{Op: "init", Err: err}
	}
	if err := e.hw.Timer.Start(e.cfg.IdleTimeout, true, e.expire); err != nil {
		e.state.Store(StateDone)
		return NewBootError(fmt.Sprintf("arm idle countdown: %v", err))
	}

	e.log.Info("bootloader started",
		"addr", fmt.Sprintf("0x%02X", e.addr),
		"filter", fmt.Sprintf("0x%08X/0x%08X", filter.ID, filter.Mask),
		"timeout", e.cfg.IdleTimeout)
	return nil
}

// expire runs on the countdown goroutine.
func (e *Engine) expire() {
	e.state.CompareAndSwap(StateIdle, StateDone)
}

// Serve runs the session until Done and then performs the shutdown sequence:
// indicator off and flash locked. Cancelling ctx forces Done and Serve
// returns ctx.Err(). A session that reached Done on its own returns nil even
// if ctx is cancelled afterwards.
func (e *Engine) Serve(ctx context.Context) error {
	if err := e.Start(); err != nil {
		e.log.Error("startup failed, leaving bootloader", "err", err)
	}

	var cancelled error
	for e.state.Load() != StateDone {
		if cancelled = ctx.Err(); cancelled != nil {
			e.state.Store(StateDone)
			break
		}
		if !e.Poll() {
			e.wait()
		}
	}

	e.finish()
	return cancelled
}

// Run serves the session and hands control to the application. It only
// returns if the context was cancelled or the launcher came back.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.Serve(ctx); err != nil {
		return err
	}
	if e.hw.Launcher == nil {
		return ErrNoLauncher
	}
	e.log.Info("jumping to application")
	e.hw.Launcher.Launch()
	return ErrLaunchReturned
}

// Poll handles at most one received frame and reports whether one arrived.
func (e *Engine) Poll() bool {
	id, payload, ok := e.hw.Transport.PollReceive()
	if !ok {
		return false
	}
	if err := e.Handle(id, payload); err != nil {
		if _, dropped := err.(*ProtocolError); dropped {
			e.log.Debug("frame dropped", "id", fmt.Sprintf("0x%08X", id), "err", err)
		} else {
			e.log.Error("command failed", "id", fmt.Sprintf("0x%08X", id), "err", err)
		}
	}
	return true
}

func (e *Engine) wait() {
	if e.cfg.PollInterval == 0 {
		runtime.Gosched()
		return
	}
	time.Sleep(e.cfg.PollInterval)
}

func (e *Engine) finish() {
	e.hw.Timer.Stop()
	e.hw.Indicator.Set(false)
	if err := e.hw.Flash.Lock(); err != nil {
		e.log.Error("flash lock failed", "err", err)
	}
	e.log.Info("bootloader finished")
}

// Handle processes one frame. Nothing is ever sent back for a dropped frame;
// the returned error only tells the caller why.
func (e *Engine) Handle(id uint32, payload []byte) error {
	st := e.state.Load()
	msg, err := protocol.Decode(id, payload)
	if err != nil || !msg.Class.IsCommand() {
		return newProtocolError(protocol.Class(id&protocol.ClassMask), st, ReasonUnrecognized)
	}
	if msg.Addr != e.addr {
		return newProtocolError(msg.Class, st, ReasonForeignAddress)
	}
	if !msg.Class.ValidPayload(len(msg.Payload)) {
		return newProtocolError(msg.Class, st, ReasonPayloadLength)
	}
	if st == StateDone {
		return newProtocolError(msg.Class, st, ReasonIllegalState)
	}

	switch msg.Class {
	case protocol.ProgReq:
		return e.progReq(st)
	case protocol.Unlock:
		return e.unlock(st)
	case protocol.SelectPage:
		return e.selectPage(msg)
	case protocol.Seek:
		return e.seek(msg)
	case protocol.Write:
		e.page.Write(msg.Payload)
		return nil
	case protocol.CheckWrites:
		return e.reply(protocol.WritesChecked, protocol.PutU16(e.page.Checksum()))
	case protocol.CommitWrites:
		return e.commit(st)
	case protocol.ProgDone:
		e.state.Store(StateDone)
		return e.reply(protocol.ProgDoneAck, nil)
	}
	return newProtocolError(msg.Class, st, ReasonUnrecognized)
}

func (e *Engine) progReq(st State) error {
	// a host is present: the idle countdown must never fire after this
	e.hw.Timer.Stop()
	if st == StateIdle && e.state.CompareAndSwap(StateIdle, StateLocked) {
		e.log.Info("host attached, session locked")
	}
	resp := make([]byte, 0, 5)
	resp = append(resp, e.pageShift)
	resp = append(resp, protocol.PutU16(e.pageCount)...)
	resp = append(resp, protocol.PutU16(e.cfg.ArchID)...)
	return e.reply(protocol.ProgReqResp, resp)
}

func (e *Engine) unlock(st State) error {
	if st != StateIdle {
		return newProtocolError(protocol.Unlock, st, ReasonIllegalState)
	}
	if err := e.hw.Flash.Unlock(); err != nil {
		return &FlashError{Op: "unlock", Err: err}
	}
	if !e.state.CompareAndSwap(StateIdle, StateUnlocked) {
		return newProtocolError(protocol.Unlock, e.state.Load(), ReasonIllegalState)
	}
	e.hw.Timer.Stop()
	e.log.Info("flash unlocked")
	return e.reply(protocol.Unlocked, nil)
}

func (e *Engine) selectPage(msg protocol.Message) error {
	addr, err := protocol.U32(msg.Payload)
	if err != nil {
		return newProtocolError(msg.Class, e.state.Load(), ReasonPayloadLength)
	}
	aligned := addr &^ (e.page.Size() - 1)
	if !e.hw.Flash.IsPageWritable(aligned) {
		return newProtocolError(msg.Class, e.state.Load(), ReasonNotWritable)
	}
	e.page.Select(aligned)
	return e.reply(protocol.PageSelected, protocol.PutU32(aligned))
}

func (e *Engine) seek(msg protocol.Message) error {
	off, err := protocol.U32(msg.Payload)
	if err != nil {
		return newProtocolError(msg.Class, e.state.Load(), ReasonPayloadLength)
	}
	if !e.page.Seek(off) {
		return newProtocolError(msg.Class, e.state.Load(), ReasonOutOfRange)
	}
	return nil
}

func (e *Engine) commit(st State) error {
	if st != StateUnlocked {
		return newProtocolError(protocol.CommitWrites, st, ReasonIllegalState)
	}
	base := e.page.Base()
	if err := e.hw.Flash.BeginWrite(base); err != nil {
		return &FlashError{Op: "begin write", Addr: base, Err: err}
	}
	if n := e.hw.Flash.Fill(0, e.page.Bytes()); uint32(n) != e.page.Size() {
		return &FlashError{Op: "fill", Addr: base,
			Err: fmt.Errorf("filled %d of %d bytes", n, e.page.Size())}
	}
	if err := e.hw.Flash.EndWrite(); err != nil {
		return &FlashError{Op: "end write", Addr: base, Err: err}
	}
	e.log.Debug("page committed", "addr", fmt.Sprintf("0x%08X", base))
	return e.reply(protocol.WritesCommitted, protocol.PutU32(base))
}

func (e *Engine) reply(c protocol.Class, payload []byte) error {
	id, data := protocol.Encode(c, e.addr, payload)
	if _, err := e.hw.Transport.Send(id, data); err != nil {
		return &TransportError{Op: "send " + c.String(), Err: err}
	}
	return nil
}

type noIndicator struct{}

func (noIndicator) Init() error { return nil }
func (noIndicator) Set(bool)    {}
