//go:build tinygo && cortexm

// Command cannuccia-mcu is the bootloader firmware for boards with an
// MCP2515 on SPI0. The application is linked at machine.FlashDataStart(),
// which must be aligned to a flash erase block.
//
// Only Cortex-M targets are supported: the hand-off to the application
// relocates VTOR and reloads MSP. AVR boards have no such jump and are not
// built.
//
//	tinygo flash -target <board> -ldflags "-X main.deviceAddress=0x2A" ./cmd/cannuccia-mcu
package main

import (
	"context"
	"machine"
	"strconv"

	"github.com/LoveWonYoung/cannuccia/boot"
	"github.com/LoveWonYoung/cannuccia/countdown"
	"github.com/LoveWonYoung/cannuccia/flash/blockdev"
	"github.com/LoveWonYoung/cannuccia/indicator"
	"github.com/LoveWonYoung/cannuccia/launch"
	"github.com/LoveWonYoung/cannuccia/mcp2515"
)

// Set at link time.
var (
	deviceAddress = "0x01"
	archID        = "0x0002"
)

var csPin = machine.D10

func main() {
	if err := machine.SPI0.Configure(machine.SPIConfig{Frequency: 8_000_000, Mode: 0}); err != nil {
		println("spi:", err.Error())
	}
	csPin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	csPin.High()

	app := launch.Jump{VectorTable: machine.FlashDataStart()}

	store, err := blockdev.New(machine.Flash, uint32(machine.FlashDataStart()))
	if err != nil {
		println("flash:", err.Error())
		app.Launch()
	}

	led := &indicator.GPIO{
		Pin: machine.LED,
		Setup: func() error {
			machine.LED.Configure(machine.PinConfig{Mode: machine.PinOutput})
			return nil
		},
	}

	cfg := boot.DefaultConfig()
	cfg.ArchID = uint16(parseUint(archID, uint64(boot.ArchSTM32)))
	cfg.PollInterval = 0

	eng, err := boot.New(cfg, boot.Hardware{
		Transport: mcp2515.New(machine.SPI0, csPin, mcp2515.DefaultConfig()),
		Flash:     store,
		Timer:     countdown.New(),
		Indicator: led,
		Identity:  boot.StaticAddress(parseUint(deviceAddress, 1)),
		Launcher:  app,
	})
	if err != nil {
		println("boot:", err.Error())
		app.Launch()
	}
	eng.Run(context.Background())
}

func parseUint(s string, fallback uint64) uint64 {
	n, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return fallback
	}
	return n
}
