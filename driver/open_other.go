//go:build !linux && !windows

package driver

import "fmt"

func openPlatform(name string) (CANDriver, error) {
	return nil, fmt.Errorf("CAN 接口 %q 在此平台不可用, 请使用 mock", name)
}
