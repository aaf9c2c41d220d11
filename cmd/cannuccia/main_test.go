package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/LoveWonYoung/cannuccia/boot"
	"github.com/LoveWonYoung/cannuccia/driver"
	"github.com/LoveWonYoung/cannuccia/flash"
	"github.com/LoveWonYoung/cannuccia/flash/sim"
	"github.com/LoveWonYoung/cannuccia/protocol"
)

const testAddr = 0x11

var testKey = []byte("0123456789abcdef")

func mapEnv(m map[string]string) env {
	return func(k string) string { return m[k] }
}

// ==================== 参数解析 ====================

func TestParseOptions_Defaults(t *testing.T) {
	o, err := parseOptions("cannuccia", nil, mapEnv(nil), &bytes.Buffer{})
	if err != nil {
		t.Fatalf("parseOptions() error = %v", err)
	}
	if o.iface != "can0" || o.addr != 1 || o.image != "cannuccia.hex" {
		t.Errorf("unexpected defaults %+v", o)
	}
	if o.timeout != 3*time.Second || o.arch != boot.ArchLinux {
		t.Errorf("timeout=%v arch=%d", o.timeout, o.arch)
	}
	if o.geo.PageSize != 256 || o.geo.TotalSize != 64*1024 || o.sealKey != nil {
		t.Errorf("unexpected geometry %+v", o.geo)
	}
}

func TestParseOptions_EnvAndFlags(t *testing.T) {
	e := mapEnv(map[string]string{
		"CANNUCCIA_IFACE":    "vcan0",
		"CANNUCCIA_ADDR":     "0x2A",
		"CANNUCCIA_TIMEOUT":  "500ms",
		"CANNUCCIA_SEAL_KEY": "00112233445566778899aabbccddeeff",
		"CANNUCCIA_VERBOSE":  "true",
	})
	o, err := parseOptions("cannuccia", []string{"-iface", "mock", "-page-size", "64", "-flash-size", "4096", "--", "-x"}, e, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("parseOptions() error = %v", err)
	}
	if o.iface != "mock" {
		t.Errorf("flag should override env, iface = %q", o.iface)
	}
	if o.addr != 0x2A || o.timeout != 500*time.Millisecond || !o.verbose {
		t.Errorf("env not applied: %+v", o)
	}
	if len(o.sealKey) != 16 || o.sealKey[15] != 0xFF {
		t.Errorf("sealKey = % X", o.sealKey)
	}
	if o.geo.PageSize != 64 || o.geo.TotalSize != 4096 {
		t.Errorf("geo = %+v", o.geo)
	}
	if len(o.appArgs) != 1 || o.appArgs[0] != "-x" {
		t.Errorf("appArgs = %v", o.appArgs)
	}
}

func TestParseOptions_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"address", []string{"-addr", "256"}},
		{"arch", []string{"-arch", "65536"}},
		{"page size", []string{"-page-size", "100"}},
		{"reserved", []string{"-page-size", "64", "-flash-size", "1024", "-reserved", "2048"}},
		{"flash size overflow", []string{"-page-size", "64", "-flash-size", "4294971392"}},
		{"reserved overflow", []string{"-page-size", "64", "-flash-size", "8192", "-reserved", "4294967360"}},
		{"key", []string{"-seal-key", "abcd"}},
		{"unknown flag", []string{"-nope"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseOptions("cannuccia", tt.args, mapEnv(nil), &bytes.Buffer{}); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestParseKey(t *testing.T) {
	tests := []struct {
		in      string
		wantLen int
		wantErr bool
	}{
		{"", 0, false},
		{"000102030405060708090a0b0c0d0e0f", 16, false},
		{"00 01 02 03 04 05 06 07 08 09 0A 0B 0C 0D 0E 0F", 16, false},
		{strings.Repeat("ab", 24), 24, false},
		{strings.Repeat("ab", 32), 32, false},
		{strings.Repeat("ab", 8), 0, true},
		{"0g" + strings.Repeat("00", 15), 0, true},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		key, err := parseKey(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseKey(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if len(key) != tt.wantLen {
			t.Errorf("parseKey(%q) len = %d, want %d", tt.in, len(key), tt.wantLen)
		}
	}
}

// ==================== 会话 ====================

func testOptions(t *testing.T) options {
	return options{
		iface:   "mock",
		addr:    testAddr,
		image:   filepath.Join(t.TempDir(), "flash.hex"),
		timeout: 50 * time.Millisecond,
		arch:    boot.ArchLinux,
		geo:     flash.Geometry{PageSize: 64, TotalSize: 1024},
	}
}

func startedMock(t *testing.T) *driver.MockCan {
	dev := driver.NewMockCan()
	dev.SetQuiet(true)
	dev.Start()
	return dev
}

func inject(t *testing.T, dev *driver.MockCan, c protocol.Class, payload []byte) {
	t.Helper()
	id, data := protocol.Encode(c, testAddr, payload)
	busID, ext, _ := protocol.BusID(id)
	if err := dev.Inject(driver.NewFrame(busID, ext, data)); err != nil {
		t.Fatal(err)
	}
}

func TestSession_IdleTimeout(t *testing.T) {
	o := testOptions(t)
	start, err := session(context.Background(), o, startedMock(t))
	if err != nil {
		t.Fatalf("session() error = %v", err)
	}
	if start {
		t.Error("no application configured, should not start")
	}
	if _, err := os.Stat(o.image); !os.IsNotExist(err) {
		t.Error("image should not be written without commits")
	}
}

func TestSession_Cancelled(t *testing.T) {
	o := testOptions(t)
	o.timeout = time.Hour
	o.app = "/bin/true"
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start, err := session(ctx, o, startedMock(t))
	if err != nil || start {
		t.Errorf("session() = %v, %v; want false, nil", start, err)
	}
}

func TestSession_ProgramsAndSeals(t *testing.T) {
	o := testOptions(t)
	o.timeout = time.Hour
	o.sealKey = testKey
	dev := startedMock(t)

	data := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	inject(t, dev, protocol.Unlock, nil)
	inject(t, dev, protocol.SelectPage, protocol.PutU32(0x40))
	inject(t, dev, protocol.Write, data)
	inject(t, dev, protocol.CheckWrites, nil)
	inject(t, dev, protocol.CommitWrites, nil)
	inject(t, dev, protocol.ProgDone, nil)

	start, err := session(context.Background(), o, dev)
	if err != nil {
		t.Fatalf("session() error = %v", err)
	}
	if start {
		t.Error("no application configured, should not start")
	}

	var got []protocol.Class
	for _, f := range dev.Written() {
		id := protocol.Tagged(f.ID, f.Extended, f.Remote)
		got = append(got, protocol.Class(id&protocol.ClassMask))
	}
	want := []protocol.Class{protocol.Unlocked, protocol.PageSelected, protocol.WritesChecked,
		protocol.WritesCommitted, protocol.ProgDoneAck}
	if len(got) != len(want) {
		t.Fatalf("responses = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("response %d = %v, want %v", i, got[i], want[i])
		}
	}

	reloaded, err := sim.New(o.geo)
	if err != nil {
		t.Fatal(err)
	}
	if err := reloaded.LoadFile(o.image); err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if !bytes.Equal(reloaded.Page(0x40)[:len(data)], data) {
		t.Errorf("page 0x40 = % X", reloaded.Page(0x40)[:len(data)])
	}
	if err := reloaded.VerifyFile(o.image, testKey); err != nil {
		t.Errorf("VerifyFile() error = %v", err)
	}
}

func TestSession_SealGatesLaunch(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("exec hand-off is Linux only")
	}
	o := testOptions(t)
	o.sealKey = testKey
	o.app = filepath.Join(t.TempDir(), "app")
	if err := os.WriteFile(o.app, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	// 写入带有效封印的镜像
	img, err := sim.New(o.geo)
	if err != nil {
		t.Fatal(err)
	}
	if err := img.SaveFile(o.image); err != nil {
		t.Fatal(err)
	}
	if err := img.WriteSeal(o.image, testKey); err != nil {
		t.Fatal(err)
	}

	start, err := session(context.Background(), o, startedMock(t))
	if err != nil || !start {
		t.Fatalf("sealed image: session() = %v, %v; want true, nil", start, err)
	}

	// 篡改封印
	if err := os.WriteFile(o.image+sim.SealSuffix, []byte(strings.Repeat("00", 16)+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	start, err = session(context.Background(), o, startedMock(t))
	if err != nil || start {
		t.Errorf("tampered seal: session() = %v, %v; want false, nil", start, err)
	}
}
