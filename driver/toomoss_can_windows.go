//go:build windows

package driver

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
	"unsafe"
)

const (
	CanChannel      = 0
	CAN_SUCCESS     = 0
	DefaultBitrate  = 1_000_000
	MsgBufferSize   = 1024
	PollingInterval = 3 * time.Millisecond
)

type CAN_MSG struct {
	ID            uint32
	TimeStamp     uint32
	RemoteFlag    byte
	ExternFlag    byte
	DataLen       byte
	Data          [8]byte
	TimeStampHigh byte
}

type CAN_INIT_CONFIG struct {
	CAN_BRP  uint32
	CAN_SJW  byte
	CAN_BS1  byte
	CAN_BS2  byte
	CAN_Mode byte
	CAN_ABOM byte
	CAN_NART byte
	CAN_RFLM byte
	CAN_TXFP byte
}

// ToomossCan 是 Toomoss USB2XXX 适配器的经典 CAN 驱动
type ToomossCan struct {
	mu      sync.Mutex
	dev     *usbDevice
	rxChan  chan Frame
	ctx     context.Context
	cancel  context.CancelFunc
	bitrate uint32
}

// 确保 ToomossCan 实现了 CANDriver 接口
var _ CANDriver = (*ToomossCan)(nil)

// NewToomossCan 创建驱动, bitrate 为 0 时使用 1 Mbit/s
func NewToomossCan(bitrate uint32) *ToomossCan {
	if bitrate == 0 {
		bitrate = DefaultBitrate
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &ToomossCan{
		rxChan:  make(chan Frame, RxChannelBufferSize),
		ctx:     ctx,
		cancel:  cancel,
		bitrate: bitrate,
	}
}

// Init 打开 USB 设备并初始化 CAN 通道
func (t *ToomossCan) Init() error {
	dev, err := openUSB()
	if err != nil {
		return err
	}

	var canInitConfig = CAN_INIT_CONFIG{
		CAN_Mode: 0,
		CAN_ABOM: 0,
		CAN_NART: 1,
		CAN_RFLM: 0,
		CAN_TXFP: 1,
	}
	r, _, _ := procCANGetSpeedArg.Call(dev.h(), uintptr(unsafe.Pointer(&canInitConfig)), uintptr(t.bitrate))
	r1, _, _ := procCANInit.Call(dev.h(), uintptr(CanChannel), uintptr(unsafe.Pointer(&canInitConfig)))
	canStart, _, _ := procCANStartGetMsg.Call(dev.h(), uintptr(CanChannel))
	if !(r == CAN_SUCCESS && r1 == CAN_SUCCESS && canStart == CAN_SUCCESS) {
		dev.close()
		return fmt.Errorf("CAN 硬件初始化失败: CAN_GetCANSpeedArg=%d, CAN_Init=%d, CAN_StartGetMsg=%d",
			int32(r), int32(r1), int32(canStart))
	}
	t.mu.Lock()
	t.dev = dev
	t.mu.Unlock()
	log.Printf("[Toomoss] CAN 硬件初始化成功, %d bit/s", t.bitrate)
	return nil
}

// Start 启动后台读取协程
func (t *ToomossCan) Start() {
	log.Println("[Toomoss] 读取服务已启动")
	go t.readLoop()
}

// Stop 停止服务并释放资源
func (t *ToomossCan) Stop() {
	log.Println("[Toomoss] 正在停止驱动")
	t.cancel()
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dev != nil {
		t.dev.close()
		t.dev = nil
	}
}

func (t *ToomossCan) device() *usbDevice {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dev
}

func (t *ToomossCan) readLoop() {
	ticker := time.NewTicker(PollingInterval)
	defer ticker.Stop()

	dev := t.device()
	if dev == nil {
		return
	}
	var buf [MsgBufferSize]CAN_MSG
	for {
		select {
		case <-t.ctx.Done():
			return
		case <-ticker.C:
			n, _, _ := procCANGetMsg.Call(dev.h(), uintptr(CanChannel), uintptr(unsafe.Pointer(&buf[0])))
			for i := 0; i < int(int32(n)); i++ {
				msg := buf[i]
				f := Frame{
					ID:       msg.ID,
					Extended: msg.ExternFlag != 0,
					Remote:   msg.RemoteFlag != 0,
					DLC:      msg.DataLen,
					Data:     msg.Data,
				}
				if f.DLC > 8 {
					f.DLC = 8
				}
				log.Printf("[Toomoss] RX %v", f)

				select {
				case t.rxChan <- f:
				default:
					log.Println("[Toomoss] 接收通道已满，消息被丢弃")
				}
			}
		}
	}
}

// Write 发送一帧
func (t *ToomossCan) Write(f Frame) error {
	msg := CAN_MSG{
		ID:      f.ID,
		DataLen: f.DLC,
		Data:    f.Data,
	}
	if f.Extended {
		msg.ExternFlag = 1
	}
	if f.Remote {
		msg.RemoteFlag = 1
	}

	dev := t.device()
	if dev == nil {
		return ErrNotRunning
	}
	msgs := []CAN_MSG{msg}
	r, _, _ := procCANSendMsg.Call(dev.h(), uintptr(CanChannel), uintptr(unsafe.Pointer(&msgs[0])), uintptr(len(msgs)))
	if int(int32(r)) != len(msgs) {
		log.Printf("[Toomoss] 发送失败 %v", f)
		return errors.New("CAN 消息发送失败")
	}
	log.Printf("[Toomoss] TX %v", f)
	return nil
}

func (t *ToomossCan) RxChan() <-chan Frame { return t.rxChan }

func (t *ToomossCan) Context() context.Context { return t.ctx }
