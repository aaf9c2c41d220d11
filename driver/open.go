package driver

import "strings"

// Open 根据名称创建驱动:
//
//	mock               虚拟设备
//	toomoss[:bitrate]  Toomoss USB2XXX (仅 Windows)
//	其他               SocketCAN 接口名, 如 can0 (仅 Linux)
func Open(name string) (CANDriver, error) {
	if name == "mock" {
		return NewMockCan(), nil
	}
	return openPlatform(strings.TrimSpace(name))
}
