package sim

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/marcinbor85/gohex"
)

// LoadHex replaces the flash contents with an Intel HEX image. Unused
// addresses read back erased.
func (s *Store) LoadHex(r io.Reader) error {
	mem := gohex.NewMemory()
	if err := mem.ParseIntelHex(r); err != nil {
		return fmt.Errorf("parse hex: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	fill(s.mem, erased)
	for _, seg := range mem.GetDataSegments() {
		end := uint64(seg.Address) + uint64(len(seg.Data))
		if end > uint64(len(s.mem)) {
			return fmt.Errorf("segment 0x%08X+%d exceeds flash size 0x%X", seg.Address, len(seg.Data), len(s.mem))
		}
		copy(s.mem[seg.Address:], seg.Data)
	}
	return nil
}

// DumpHex writes every non-erased page as Intel HEX records.
func (s *Store) DumpHex(w io.Writer) error {
	mem := gohex.NewMemory()

	s.mu.Lock()
	ps := s.geo.PageSize
	blank := bytes.Repeat([]byte{erased}, int(ps))
	for addr := uint32(0); addr < uint32(len(s.mem)); addr += ps {
		page := s.mem[addr : addr+ps]
		if bytes.Equal(page, blank) {
			continue
		}
		if err := mem.AddBinary(addr, append([]byte(nil), page...)); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("add page 0x%08X: %w", addr, err)
		}
	}
	s.mu.Unlock()

	return mem.DumpIntelHex(w, 16)
}

// LoadFile loads an Intel HEX image from path.
func (s *Store) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := s.LoadHex(f); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	log.Printf("[sim] loaded %s", path)
	return nil
}

// SaveFile writes the image to path, replacing it atomically.
func (s *Store) SaveFile(path string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := s.DumpHex(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return err
	}
	log.Printf("[sim] saved %s", path)
	return nil
}
