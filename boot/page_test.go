package boot

import (
	"bytes"
	"testing"

	"github.com/LoveWonYoung/cannuccia/protocol"
)

func TestPage(t *testing.T) {
	p := NewPage(16)
	if p.Size() != 16 || p.Offset() != 0 || p.Base() != 0 {
		t.Fatalf("new page = size %d offset %d base %d", p.Size(), p.Offset(), p.Base())
	}
	if p.Checksum() != protocol.CRC16(make([]byte, 16)) {
		t.Error("fresh page should checksum as zeros")
	}

	if n := p.Write([]byte{1, 2, 3, 4}); n != 4 || p.Offset() != 4 {
		t.Errorf("Write() = %d, offset %d", n, p.Offset())
	}
	if !p.Seek(14) {
		t.Fatal("Seek(14) rejected")
	}
	if n := p.Write([]byte{9, 9, 9, 9}); n != 2 {
		t.Errorf("Write() at tail = %d, want 2", n)
	}
	if n := p.Write([]byte{7}); n != 0 {
		t.Errorf("Write() past end = %d, want 0", n)
	}
	if p.Seek(16) || p.Offset() != 16 {
		t.Errorf("Seek(16) accepted or moved cursor to %d", p.Offset())
	}

	p.Select(0x400)
	want := []byte{1, 2, 3, 4, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 9, 9}
	if p.Base() != 0x400 || !bytes.Equal(p.Bytes(), want) {
		t.Errorf("after Select: base 0x%X data % X", p.Base(), p.Bytes())
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default", func(*Config) {}, false},
		{"zero poll", func(c *Config) { c.PollInterval = 0 }, false},
		{"zero timeout", func(c *Config) { c.IdleTimeout = 0 }, true},
		{"negative poll", func(c *Config) { c.PollInterval = -1 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestErrors(t *testing.T) {
	pe := newProtocolError(protocol.Seek, StateLocked, ReasonOutOfRange)
	if got := pe.Error(); got != "SEEK dropped in state Locked: argument out of range" {
		t.Errorf("ProtocolError = %q", got)
	}
	fe := &FlashError{Op: "fill", Addr: 0x100}
	if got := fe.Error(); got != "flash fill at 0x00000100 failed" {
		t.Errorf("FlashError = %q", got)
	}
	if got := (BootError{}).Error(); got != "bootloader error" {
		t.Errorf("BootError = %q", got)
	}
}
