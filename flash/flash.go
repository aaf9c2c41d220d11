// Package flash describes the page layout shared by the flash store
// implementations.
package flash

import (
	"errors"
	"fmt"
)

// Errors shared by the store implementations.
var (
	ErrLocked      = errors.New("flash is locked")
	ErrNotWritable = errors.New("page is not writable")
	ErrNoPage      = errors.New("no page write in progress")
)

// Geometry is the page layout of the application flash.
type Geometry struct {
	// PageSize is the erase unit in bytes, a power of two.
	PageSize uint32
	// TotalSize is the size of the whole flash in bytes.
	TotalSize uint32
	// ReservedSize bytes are kept for the bootloader and never written.
	ReservedSize uint32
	// ReservedAtEnd places the reserved region at the top of flash (AVR
	// boot section) instead of the bottom.
	ReservedAtEnd bool
}

// Validate checks if the geometry is usable.
func (g Geometry) Validate() error {
	if g.PageSize == 0 || g.PageSize&(g.PageSize-1) != 0 {
		return fmt.Errorf("page size %d is not a power of two", g.PageSize)
	}
	if g.TotalSize == 0 || g.TotalSize%g.PageSize != 0 {
		return fmt.Errorf("total size %d is not a multiple of the page size", g.TotalSize)
	}
	if g.ReservedSize%g.PageSize != 0 {
		return fmt.Errorf("reserved size %d is not a multiple of the page size", g.ReservedSize)
	}
	if g.ReservedSize >= g.TotalSize {
		return errors.New("reserved region covers the whole flash")
	}
	return nil
}

// PageCount is the number of pages in the whole flash.
func (g Geometry) PageCount() uint32 {
	return g.TotalSize / g.PageSize
}

// Align rounds addr down to its page base.
func (g Geometry) Align(addr uint32) uint32 {
	return addr &^ (g.PageSize - 1)
}

// AppStart and AppEnd bound the region the bootloader may write.
func (g Geometry) AppStart() uint32 {
	if g.ReservedAtEnd {
		return 0
	}
	return g.ReservedSize
}

func (g Geometry) AppEnd() uint32 {
	if g.ReservedAtEnd {
		return g.TotalSize - g.ReservedSize
	}
	return g.TotalSize
}

// Writable reports whether the page starting at addr lies entirely inside
// the application region. addr must be page aligned.
func (g Geometry) Writable(addr uint32) bool {
	if addr&(g.PageSize-1) != 0 {
		return false
	}
	if addr < g.AppStart() {
		return false
	}
	end := uint64(addr) + uint64(g.PageSize)
	return end <= uint64(g.AppEnd())
}
