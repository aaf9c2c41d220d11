package boot

import "github.com/LoveWonYoung/cannuccia/protocol"

// Page is the staging buffer for the flash page being assembled. One Page is
// allocated per engine and reused for the whole session.
type Page struct {
	base   uint32
	offset uint32
	data   []byte
}

// NewPage returns a zeroed page of size bytes.
func NewPage(size uint32) *Page {
	return &Page{data: make([]byte, size)}
}

func (p *Page) Size() uint32   { return uint32(len(p.data)) }
func (p *Page) Base() uint32   { return p.base }
func (p *Page) Offset() uint32 { return p.offset }

// Bytes exposes the staging arena. Callers must not retain it.
func (p *Page) Bytes() []byte { return p.data }

// Select sets the flash address the page will be committed to.
// The contents are left untouched.
func (p *Page) Select(base uint32) {
	p.base = base
}

// Seek moves the write cursor. Offsets at or past the page end are rejected.
func (p *Page) Seek(offset uint32) bool {
	if offset >= p.Size() {
		return false
	}
	p.offset = offset
	return true
}

// Write copies b at the cursor and advances it, silently dropping whatever
// does not fit before the end of the page.
func (p *Page) Write(b []byte) int {
	n := copy(p.data[p.offset:], b)
	p.offset += uint32(n)
	return n
}

// Checksum is the CRC-16/XMODEM of the whole page, written or not.
func (p *Page) Checksum() uint16 {
	return protocol.CRC16(p.data)
}
