//go:build windows

package driver

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"runtime"
	"unsafe"

	"golang.org/x/sys/windows"
)

// DLL 放在程序目录下的 DLLs\windows_x64 或 DLLs\windows_x86
func dllDir() string {
	if runtime.GOARCH == "386" {
		return filepath.Join("DLLs", "windows_x86")
	}
	return filepath.Join("DLLs", "windows_x64")
}

var (
	libusbDLL = windows.NewLazyDLL(filepath.Join(dllDir(), "libusb-1.0.dll"))
	usb2xxx   = windows.NewLazyDLL(filepath.Join(dllDir(), "USB2XXX.dll"))

	procScanDevice  = usb2xxx.NewProc("USB_ScanDevice")
	procOpenDevice  = usb2xxx.NewProc("USB_OpenDevice")
	procCloseDevice = usb2xxx.NewProc("USB_CloseDevice")

	procCANGetSpeedArg = usb2xxx.NewProc("CAN_GetCANSpeedArg")
	procCANInit        = usb2xxx.NewProc("CAN_Init")
	procCANSendMsg     = usb2xxx.NewProc("CAN_SendMsg")
	procCANGetMsg      = usb2xxx.NewProc("CAN_GetMsg")
	procCANStartGetMsg = usb2xxx.NewProc("CAN_StartGetMsg")
)

// loadUSB 加载 DLL 并解析所有入口, libusb 必须先于 USB2XXX 加载
func loadUSB() error {
	if err := libusbDLL.Load(); err != nil {
		return fmt.Errorf("加载 libusb 失败: %w", err)
	}
	procs := []*windows.LazyProc{
		procScanDevice, procOpenDevice, procCloseDevice,
		procCANGetSpeedArg, procCANInit, procCANSendMsg, procCANGetMsg, procCANStartGetMsg,
	}
	for _, p := range procs {
		if err := p.Find(); err != nil {
			return fmt.Errorf("加载 USB2XXX 失败: %w", err)
		}
	}
	return nil
}

// usbDevice 是一个已打开的 USB2XXX 适配器
type usbDevice struct {
	handle int32
}

// openUSB 扫描并打开第一个适配器
func openUSB() (*usbDevice, error) {
	if err := loadUSB(); err != nil {
		return nil, err
	}
	var handles [10]int32
	n, _, _ := procScanDevice.Call(uintptr(unsafe.Pointer(&handles[0])))
	if int32(n) <= 0 {
		return nil, errors.New("未找到 Toomoss 设备")
	}
	d := &usbDevice{handle: handles[0]}
	if ok, _, _ := procOpenDevice.Call(d.h()); int32(ok) < 1 {
		return nil, errors.New("打开 Toomoss 设备失败")
	}
	log.Printf("[Toomoss] 设备已打开 handle=0x%08X (共 %d 个)", uint32(d.handle), int32(n))
	return d, nil
}

func (d *usbDevice) h() uintptr { return uintptr(d.handle) }

func (d *usbDevice) close() {
	if ok, _, _ := procCloseDevice.Call(d.h()); int32(ok) < 1 {
		log.Println("[Toomoss] 关闭设备失败")
	}
}
