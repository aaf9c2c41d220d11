// Package sim is an in-memory flash store. Pages are staged in a scratch
// buffer and only reach the backing memory at EndWrite, the way the AVR
// self-programming page buffer works. Images can be loaded from and saved
// to Intel HEX files and sealed with AES-CMAC.
package sim

import (
	"errors"
	"fmt"
	"sync"

	"github.com/LoveWonYoung/cannuccia/flash"
)

const erased = 0xFF

var (
	ErrLocked       = flash.ErrLocked
	ErrNotWritable  = flash.ErrNotWritable
	ErrNoPage       = flash.ErrNoPage
	ErrSealMismatch = errors.New("image seal mismatch")
)

// Option configures a Store.
type Option func(*Store)

// WithWordFill makes Fill work in 16-bit words: the accepted count is always
// even and an odd trailing byte is padded with 0xFF.
func WithWordFill() Option {
	return func(s *Store) { s.wordFill = true }
}

// Store is a simulated flash. It starts erased and locked.
type Store struct {
	mu  sync.Mutex
	geo flash.Geometry
	mem []byte

	scratch  []byte
	cur      uint32
	writing  bool
	locked   bool
	wordFill bool
	commits  int
}

// New allocates an erased flash with the given layout.
func New(geo flash.Geometry, opts ...Option) (*Store, error) {
	if err := geo.Validate(); err != nil {
		return nil, fmt.Errorf("invalid geometry: %w", err)
	}
	s := &Store{
		geo:     geo,
		mem:     make([]byte, geo.TotalSize),
		scratch: make([]byte, geo.PageSize),
		locked:  true,
	}
	fill(s.mem, erased)
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func fill(b []byte, v byte) {
	for i := range b {
		b[i] = v
	}
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

// Locked reports the software lock state.
func (s *Store) Locked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locked
}

// BeginWrite starts staging the page at addr. Pages outside the application
// region are refused here even though callers are expected to check first.
func (s *Store) BeginWrite(addr uint32) error {
	if !s.geo.Writable(addr) {
		return fmt.Errorf("%w: 0x%08X", ErrNotWritable, addr)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur = addr
	s.writing = true
	fill(s.scratch, erased)
	return nil
}

// Fill copies data into the scratch page at offset and returns how many bytes
// were taken. It returns 0 if no page write is in progress.
func (s *Store) Fill(offset uint32, data []byte) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.writing || offset >= s.geo.PageSize {
		return 0
	}
	if s.wordFill && offset%2 != 0 {
		return 0
	}
	n := copy(s.scratch[offset:], data)
	if s.wordFill && n%2 != 0 {
		s.scratch[offset+uint32(n)] = erased
		n++
	}
	return n
}

// EndWrite erases the target page and programs the scratch page into it.
func (s *Store) EndWrite() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.writing {
		return ErrNoPage
	}
	if s.locked {
		return ErrLocked
	}
	copy(s.mem[s.cur:s.cur+s.geo.PageSize], s.scratch)
	s.writing = false
	s.commits++
	return nil
}

// Commits returns how many pages have been programmed.
func (s *Store) Commits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits
}

// ReadAt copies flash contents starting at off into p.
func (s *Store) ReadAt(p []byte, off int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if off < 0 || off >= int64(len(s.mem)) {
		return 0, fmt.Errorf("offset %d out of range", off)
	}
	return copy(p, s.mem[off:]), nil
}

// Page returns a copy of the page at addr.
func (s *Store) Page(addr uint32) []byte {
	p := make([]byte, s.geo.PageSize)
	s.ReadAt(p, int64(s.geo.Align(addr)))
	return p
}

// Erase resets the whole flash to 0xFF.
func (s *Store) Erase() {
	s.mu.Lock()
	fill(s.mem, erased)
	s.mu.Unlock()
}
