//go:build linux

package driver

import (
	"context"
	"fmt"
	"log"
	"net"
	"sync"

	"github.com/brutella/can"
)

// SocketCAN 标识符标志位 (与 linux/can.h 一致)
const (
	effFlag uint32 = 0x80000000
	rtrFlag uint32 = 0x40000000
	effMask uint32 = 0x1FFFFFFF
	sffMask uint32 = 0x000007FF
)

// SocketCAN 是基于 Linux SocketCAN 的驱动实现
type SocketCAN struct {
	mu      sync.Mutex
	iface   string
	bus     *can.Bus
	rxChan  chan Frame
	ctx     context.Context
	cancel  context.CancelFunc
	running bool
}

// NewSocketCAN 创建一个绑定到指定网络接口 (如 can0, vcan0) 的驱动
func NewSocketCAN(iface string) *SocketCAN {
	ctx, cancel := context.WithCancel(context.Background())
	return &SocketCAN{
		iface:  iface,
		rxChan: make(chan Frame, RxChannelBufferSize),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Init 打开 CAN 套接字
func (s *SocketCAN) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bus != nil {
		return nil
	}

	iface, err := net.InterfaceByName(s.iface)
	if err != nil {
		return fmt.Errorf("找不到网络接口 %s: %w", s.iface, err)
	}
	conn, err := can.NewReadWriteCloserForInterface(iface)
	if err != nil {
		return fmt.Errorf("无法打开 CAN 总线 %s: %w", s.iface, err)
	}
	s.bus = can.NewBus(conn)
	s.bus.SubscribeFunc(s.handle)
	log.Printf("[SocketCAN] %s 初始化成功", s.iface)
	return nil
}

// Start 启动接收协程
func (s *SocketCAN) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running || s.bus == nil {
		return
	}
	s.running = true

	bus := s.bus
	go func() {
		if err := bus.ConnectAndPublish(); err != nil && s.ctx.Err() == nil {
			log.Printf("[SocketCAN] %s 接收中断: %v", s.iface, err)
		}
	}()
	log.Printf("[SocketCAN] %s 已启动", s.iface)
}

// Stop 断开总线
func (s *SocketCAN) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	s.cancel()
	if err := s.bus.Disconnect(); err != nil {
		log.Printf("[SocketCAN] %s 断开失败: %v", s.iface, err)
	}
	log.Printf("[SocketCAN] %s 已停止", s.iface)
}

// Write 发送一帧
func (s *SocketCAN) Write(f Frame) error {
	s.mu.Lock()
	bus, running := s.bus, s.running
	s.mu.Unlock()
	if !running {
		return ErrNotRunning
	}
	return bus.Publish(toSocketFrame(f))
}

// RxChan 返回接收通道
func (s *SocketCAN) RxChan() <-chan Frame {
	return s.rxChan
}

// Context 返回设备上下文
func (s *SocketCAN) Context() context.Context {
	return s.ctx
}

func (s *SocketCAN) handle(cf can.Frame) {
	f := fromSocketFrame(cf)
	select {
	case s.rxChan <- f:
	case <-s.ctx.Done():
	default:
		log.Printf("[SocketCAN] 接收通道已满, 丢弃 %v", f)
	}
}

func toSocketFrame(f Frame) can.Frame {
	cf := can.Frame{Length: f.DLC, Data: f.Data}
	if f.Extended {
		cf.ID = f.ID&effMask | effFlag
	} else {
		cf.ID = f.ID & sffMask
	}
	if f.Remote {
		cf.ID |= rtrFlag
	}
	return cf
}

func fromSocketFrame(cf can.Frame) Frame {
	f := Frame{
		Extended: cf.ID&effFlag != 0,
		Remote:   cf.ID&rtrFlag != 0,
		DLC:      cf.Length,
		Data:     cf.Data,
	}
	if f.DLC > 8 {
		f.DLC = 8
	}
	if f.Extended {
		f.ID = cf.ID & effMask
	} else {
		f.ID = cf.ID & sffMask
	}
	return f
}
