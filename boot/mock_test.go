package boot

import (
	"errors"
	"sync"
	"time"

	"github.com/LoveWonYoung/cannuccia/protocol"
)

// ============================================================================
// Mock 实现
// ============================================================================

type sentFrame struct {
	ID      uint32
	Payload []byte
}

// mockTransport 记录所有发送的帧, 并按顺序返回预设的接收帧
type mockTransport struct {
	mu      sync.Mutex
	rx      []sentFrame
	sent    []sentFrame
	filters []protocol.Filter
	initErr error
	sendErr error
	onSend  func(protocol.Class) // 发送成功后回调, 可为 nil
}

func (m *mockTransport) Init(f protocol.Filter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filters = append(m.filters, f)
	return m.initErr
}

func (m *mockTransport) Send(id uint32, payload []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return 0, m.sendErr
	}
	m.sent = append(m.sent, sentFrame{ID: id, Payload: append([]byte(nil), payload...)})
	if m.onSend != nil {
		m.onSend(protocol.Class(id & protocol.ClassMask))
	}
	return len(payload), nil
}

func (m *mockTransport) PollReceive() (uint32, []byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.rx) == 0 {
		return 0, nil, false
	}
	f := m.rx[0]
	m.rx = m.rx[1:]
	return f.ID, f.Payload, true
}

// inject 注入一条主机发往设备的命令
func (m *mockTransport) inject(c protocol.Class, addr uint8, payload []byte) {
	id, data := protocol.Encode(c, addr, payload)
	m.mu.Lock()
	m.rx = append(m.rx, sentFrame{ID: id, Payload: data})
	m.mu.Unlock()
}

func (m *mockTransport) sentFrames() []sentFrame {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentFrame(nil), m.sent...)
}

func (m *mockTransport) reset() {
	m.mu.Lock()
	m.sent = nil
	m.mu.Unlock()
}

// mockFlash 是一个最小的内存 flash, 页写入在 EndWrite 时生效
type mockFlash struct {
	mem      []byte
	pageSize uint32
	reserved uint32

	unlocked  bool
	locks     int
	cur       uint32
	staged    []byte
	writing   bool
	unlockErr error
	beginErr  error
	endErr    error
	shortFill bool
}

func newMockFlash(pageSize, total, reserved uint32) *mockFlash {
	mem := make([]byte, total)
	for i := range mem {
		mem[i] = 0xFF
	}
	return &mockFlash{mem: mem, pageSize: pageSize, reserved: reserved}
}

func (f *mockFlash) PageSize() uint32  { return f.pageSize }
func (f *mockFlash) TotalSize() uint32 { return uint32(len(f.mem)) }

func (f *mockFlash) IsPageWritable(addr uint32) bool {
	return addr >= f.reserved && addr+f.pageSize <= uint32(len(f.mem))
}

func (f *mockFlash) Unlock() error {
	if f.unlockErr != nil {
		return f.unlockErr
	}
	f.unlocked = true
	return nil
}

func (f *mockFlash) Lock() error {
	f.unlocked = false
	f.locks++
	return nil
}

func (f *mockFlash) BeginWrite(addr uint32) error {
	if f.beginErr != nil {
		return f.beginErr
	}
	f.cur = addr
	f.staged = make([]byte, f.pageSize)
	f.writing = true
	return nil
}

func (f *mockFlash) Fill(offset uint32, data []byte) int {
	if !f.writing {
		return 0
	}
	if f.shortFill && len(data) > 0 {
		data = data[:len(data)-1]
	}
	return copy(f.staged[offset:], data)
}

func (f *mockFlash) EndWrite() error {
	if f.endErr != nil {
		return f.endErr
	}
	if !f.writing || !f.unlocked {
		return errors.New("not writing")
	}
	copy(f.mem[f.cur:], f.staged)
	f.writing = false
	return nil
}

// mockTimer 保存回调, 由测试决定何时触发
type mockTimer struct {
	mu       sync.Mutex
	onExpire func()
	delay    time.Duration
	oneshot  bool
	starts   int
	stops    int
	armed    bool
	startErr error
	fireNow  bool
}

func (t *mockTimer) Start(delay time.Duration, oneshot bool, onExpire func()) error {
	if t.startErr != nil {
		return t.startErr
	}
	t.mu.Lock()
	t.delay, t.oneshot, t.onExpire = delay, oneshot, onExpire
	t.starts++
	t.armed = true
	fire := t.fireNow
	t.mu.Unlock()
	if fire {
		t.fire()
	}
	return nil
}

func (t *mockTimer) Stop() {
	t.mu.Lock()
	t.stops++
	t.armed = false
	t.mu.Unlock()
}

// fire 模拟计时器到期, 已停止的计时器不会触发
func (t *mockTimer) fire() {
	t.mu.Lock()
	cb, armed := t.onExpire, t.armed
	t.armed = false
	t.mu.Unlock()
	if armed && cb != nil {
		cb()
	}
}

type mockIndicator struct {
	inited bool
	on     bool
	sets   []bool
}

func (i *mockIndicator) Init() error { i.inited = true; return nil }
func (i *mockIndicator) Set(on bool) { i.on = on; i.sets = append(i.sets, on) }

type mockLauncher struct {
	launched int
}

func (l *mockLauncher) Launch() { l.launched++ }

// ============================================================================
// 辅助函数
// ============================================================================

const (
	testAddr     uint8  = 0x2A
	testPageSize uint32 = 64
	testTotal    uint32 = 1024
)

type rig struct {
	eng *Engine
	tr  *mockTransport
	fl  *mockFlash
	tm  *mockTimer
	led *mockIndicator
	app *mockLauncher
}

func newRig(reserved uint32) *rig {
	r := &rig{
		tr:  &mockTransport{},
		fl:  newMockFlash(testPageSize, testTotal, reserved),
		tm:  &mockTimer{},
		led: &mockIndicator{},
		app: &mockLauncher{},
	}
	return r
}

func (r *rig) build(cfg Config) (*Engine, error) {
	eng, err := New(cfg, Hardware{
		Transport: r.tr,
		Flash:     r.fl,
		Timer:     r.tm,
		Indicator: r.led,
		Identity:  StaticAddress(testAddr),
		Launcher:  r.app,
	})
	r.eng = eng
	return eng, err
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ArchID = ArchSTM32
	cfg.PollInterval = 0
	return cfg
}

// send 在引擎上直接执行一条命令
func (r *rig) send(c protocol.Class, payload []byte) error {
	id, data := protocol.Encode(c, testAddr, payload)
	return r.eng.Handle(id, data)
}
