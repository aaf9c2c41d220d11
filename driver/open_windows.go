//go:build windows

package driver

import (
	"fmt"
	"strconv"
	"strings"
)

func openPlatform(name string) (CANDriver, error) {
	kind, rate, _ := strings.Cut(name, ":")
	if kind != "toomoss" {
		return nil, fmt.Errorf("不支持的 CAN 接口 %q", name)
	}
	var bitrate uint64
	if rate != "" {
		var err error
		if bitrate, err = strconv.ParseUint(rate, 10, 32); err != nil {
			return nil, fmt.Errorf("无效的波特率 %q: %w", rate, err)
		}
	}
	return NewToomossCan(uint32(bitrate)), nil
}
