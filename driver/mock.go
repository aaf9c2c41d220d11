package driver

import (
	"context"
	"errors"
	"log"
	"sync"
)

// ErrRxFull 表示虚拟设备的接收缓冲已满
var ErrRxFull = errors.New("接收通道已满")

// Peer 模拟总线上的另一端: 每收到一帧被写出的报文, 返回要回送的帧
type Peer func(sent Frame) []Frame

// MockCan 是不依赖硬件的虚拟 CAN 驱动, 用于开发和测试。
// 写出的帧被记录下来, 并可交给 Peer 产生回送帧。
type MockCan struct {
	mu      sync.Mutex
	rx      chan Frame
	ctx     context.Context
	cancel  context.CancelFunc
	running bool
	quiet   bool
	written []Frame
	peer    Peer
}

var _ CANDriver = (*MockCan)(nil)

func NewMockCan() *MockCan {
	ctx, cancel := context.WithCancel(context.Background())
	return &MockCan{
		rx:     make(chan Frame, RxChannelBufferSize),
		ctx:    ctx,
		cancel: cancel,
	}
}

// SetQuiet 关闭收发日志
func (m *MockCan) SetQuiet(quiet bool) {
	m.mu.Lock()
	m.quiet = quiet
	m.mu.Unlock()
}

// SetPeer 安装对端, nil 表示无人应答
func (m *MockCan) SetPeer(p Peer) {
	m.mu.Lock()
	m.peer = p
	m.mu.Unlock()
}

func (m *MockCan) Init() error {
	m.logf("初始化完成 (虚拟模式)")
	return nil
}

func (m *MockCan) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running || m.ctx.Err() != nil {
		return
	}
	m.running = true
	m.logLocked("已启动")
}

// Stop 关闭接收通道, 虚拟设备不能再次启动
func (m *MockCan) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	m.running = false
	m.cancel()
	close(m.rx)
	m.logLocked("已停止")
}

func (m *MockCan) Write(f Frame) error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return ErrNotRunning
	}
	m.written = append(m.written, f)
	m.logLocked("TX %v", f)
	peer := m.peer
	m.mu.Unlock()

	if peer == nil {
		return nil
	}
	for _, reply := range peer(f) {
		if err := m.Inject(reply); err != nil {
			log.Printf("[Mock] 对端回送失败: %v", err)
		}
	}
	return nil
}

func (m *MockCan) RxChan() <-chan Frame     { return m.rx }
func (m *MockCan) Context() context.Context { return m.ctx }

// Inject 把一帧放入接收通道, 如同从总线上收到
func (m *MockCan) Inject(f Frame) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return ErrNotRunning
	}
	select {
	case m.rx <- f:
		m.logLocked("RX %v", f)
		return nil
	default:
		return ErrRxFull
	}
}

// Written 返回已写出帧的副本
func (m *MockCan) Written() []Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Frame(nil), m.written...)
}

// ResetWritten 清空写出记录
func (m *MockCan) ResetWritten() {
	m.mu.Lock()
	m.written = nil
	m.mu.Unlock()
}

func (m *MockCan) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *MockCan) logf(format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logLocked(format, args...)
}

func (m *MockCan) logLocked(format string, args ...interface{}) {
	if !m.quiet {
		log.Printf("[Mock] "+format, args...)
	}
}
