package driver

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/LoveWonYoung/cannuccia/protocol"
)

// Adapter 把一个 CANDriver 适配为 boot.Transport。
// 驱动层收发的是总线上的原始标识符, 引擎使用带标志位的 tagged 标识符,
// 转换在这里完成; 过滤器由软件实现。
type Adapter struct {
	driver CANDriver
	rxChan <-chan Frame

	mu      sync.Mutex
	filter  protocol.Filter
	started bool
}

// NewAdapter 是适配器的构造函数, 设备在第一次 Init 时启动
func NewAdapter(dev CANDriver) (*Adapter, error) {
	if dev == nil {
		return nil, errors.New("CAN driver instance cannot be nil")
	}
	return &Adapter{driver: dev, filter: protocol.AcceptAll()}, nil
}

// Init 安装接收过滤器。重复调用只更新过滤器, 不会重启设备。
func (a *Adapter) Init(f protocol.Filter) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.filter = f
	if a.started {
		log.Printf("[Adapter] 过滤器已更新: ID=0x%08X Mask=0x%08X", f.ID, f.Mask)
		return nil
	}
	if err := a.driver.Init(); err != nil {
		return fmt.Errorf("failed to initialize CAN device: %w", err)
	}
	a.driver.Start()
	a.rxChan = a.driver.RxChan()
	a.started = true

	log.Printf("[Adapter] 设备已启动, 过滤器: ID=0x%08X Mask=0x%08X", f.ID, f.Mask)
	return nil
}

// Close 用于停止驱动并释放资源
func (a *Adapter) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.started {
		return
	}
	log.Println("[Adapter] Closing...")
	a.driver.Stop()
	a.started = false
}

// Send 发送一帧, tagged 标识符中的 IDE/RTR 位决定帧格式
func (a *Adapter) Send(id uint32, payload []byte) (int, error) {
	busID, extended, remote := protocol.BusID(id)
	f := NewFrame(busID, extended, payload)
	f.Remote = remote
	if err := a.driver.Write(f); err != nil {
		return 0, err
	}
	return int(f.DLC), nil
}

// PollReceive 非阻塞地取出下一帧通过过滤器的报文
func (a *Adapter) PollReceive() (uint32, []byte, bool) {
	a.mu.Lock()
	rx, filter := a.rxChan, a.filter
	a.mu.Unlock()
	if rx == nil {
		return 0, nil, false
	}

	for {
		select {
		case f, ok := <-rx:
			if !ok {
				// 通道已关闭
				return 0, nil, false
			}
			id := protocol.Tagged(f.ID, f.Extended, f.Remote)
			if !filter.Match(id) {
				continue
			}
			payload := append([]byte(nil), f.Payload()...)
			return id, payload, true
		default:
			// 通道中无可用消息
			return 0, nil, false
		}
	}
}
