//go:build linux

package driver

func openPlatform(name string) (CANDriver, error) {
	return NewSocketCAN(name), nil
}
