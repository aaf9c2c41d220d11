// Package blockdev is a flash store over an erase/program block device such
// as TinyGo's machine.Flash.
package blockdev

import (
	"fmt"
	"math"
	"sync"

	"github.com/LoveWonYoung/cannuccia/flash"
)

// BlockDevice is the subset of machine.Flash the store needs.
type BlockDevice interface {
	ReadAt(p []byte, off int64) (int, error)
	WriteAt(p []byte, off int64) (int, error)
	Size() int64
	WriteBlockSize() int64
	EraseBlockSize() int64
	EraseBlocks(start, len int64) error
}

// Store maps flash addresses [Base, Base+dev.Size()) onto the device.
// Everything below Base belongs to the bootloader.
type Store struct {
	mu   sync.Mutex
	dev  BlockDevice
	base uint32
	geo  flash.Geometry

	scratch []byte
	cur     uint32
	writing bool
	locked  bool
}

// New wraps dev. base is the flash address of device offset 0.
func New(dev BlockDevice, base uint32) (*Store, error) {
	erase := dev.EraseBlockSize()
	wbs := dev.WriteBlockSize()
	if wbs <= 0 || erase%wbs != 0 {
		return nil, fmt.Errorf("erase block %d is not a multiple of write block %d", erase, wbs)
	}
	size := dev.Size()
	if erase <= 0 || erase > math.MaxUint32 {
		return nil, fmt.Errorf("erase block %d out of range", erase)
	}
	if size < 0 || uint64(base)+uint64(size) > math.MaxUint32 {
		return nil, fmt.Errorf("device of %d bytes at 0x%08X exceeds the 32-bit address space", size, base)
	}
	geo := flash.Geometry{
		PageSize:     uint32(erase),
		TotalSize:    base + uint32(size),
		ReservedSize: base,
	}
	if err := geo.Validate(); err != nil {
		return nil, fmt.Errorf("invalid device layout: %w", err)
	}
	return &Store{
		dev:     dev,
		base:    base,
		geo:     geo,
		scratch: make([]byte, erase),
		locked:  true,
	}, nil
}

func (s *Store) Geometry() flash.Geometry { return s.geo }
func (s *Store) PageSize() uint32         { return s.geo.PageSize }
func (s *Store) TotalSize() uint32        { return s.geo.TotalSize }

func (s *Store) IsPageWritable(addr uint32) bool {
	return s.geo.Writable(addr)
}

func (s *Store) Unlock() error {
	s.mu.Lock()
	s.locked = false
	s.mu.Unlock()
	return nil
}

func (s *Store) Lock() error {
	s.mu.Lock()
	s.locked = true
	s.mu.Unlock()
	return nil
}

func (s *Store) BeginWrite(addr uint32) error {
	if !s.geo.Writable(addr) {
		return fmt.Errorf("%w: 0x%08X", flash.ErrNotWritable, addr)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur = addr
	s.writing = true
	for i := range s.scratch {
		s.scratch[i] = 0xFF
	}
	return nil
}

func (s *Store) Fill(offset uint32, data []byte) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.writing || offset >= s.geo.PageSize {
		return 0
	}
	return copy(s.scratch[offset:], data)
}

// EndWrite erases the device block and programs the staged page.
func (s *Store) EndWrite() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.writing {
		return flash.ErrNoPage
	}
	if s.locked {
		return flash.ErrLocked
	}

	off := int64(s.cur - s.base)
	block := off / int64(s.geo.PageSize)
	if err := s.dev.EraseBlocks(block, 1); err != nil {
		return fmt.Errorf("erase block %d: %w", block, err)
	}
	if _, err := s.dev.WriteAt(s.scratch, off); err != nil {
		return fmt.Errorf("program 0x%08X: %w", s.cur, err)
	}
	s.writing = false
	return nil
}
