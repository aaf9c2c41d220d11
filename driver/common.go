package driver

import (
	"context"
	"errors"
	"fmt"
)

// Frame 是一帧经典 CAN 报文 (最多 8 字节数据)。
// ID 为总线上的原始标识符: 扩展帧 29 位, 标准帧 11 位。
type Frame struct {
	ID       uint32
	Extended bool
	Remote   bool
	DLC      byte
	Data     [8]byte
}

// NewFrame 根据数据构造一帧, 超过 8 字节的部分被丢弃
func NewFrame(id uint32, extended bool, data []byte) Frame {
	f := Frame{ID: id, Extended: extended}
	f.DLC = byte(copy(f.Data[:], data))
	return f
}

// Payload 返回有效数据部分
func (f Frame) Payload() []byte {
	n := int(f.DLC)
	if n > len(f.Data) {
		n = len(f.Data)
	}
	return f.Data[:n]
}

func (f Frame) String() string {
	kind := "STD"
	if f.Extended {
		kind = "EXT"
	}
	if f.Remote {
		kind += "|RTR"
	}
	return fmt.Sprintf("%s ID=0x%08X DLC=%d Data=% 02X", kind, f.ID, f.DLC, f.Payload())
}

// ErrNotRunning 在设备未启动时返回
var ErrNotRunning = errors.New("driver not running")

// CANDriver 定义了 CAN 驱动的统一接口
type CANDriver interface {
	Init() error
	Start()
	Stop()
	Write(f Frame) error
	RxChan() <-chan Frame
	Context() context.Context
}

// 缓冲区配置常量
const (
	RxChannelBufferSize = 1024
)
