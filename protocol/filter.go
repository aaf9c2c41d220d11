package protocol

// Base filters. A frame is accepted when (id & Mask) == (Filter.ID & Mask);
// the mask checks the direction byte, the device address, bit 3 and IDE.
const (
	FilterMask         uint32 = 0xFF000FFC
	deviceFilterBaseID uint32 = 0xCA000004
	hostFilterBaseID   uint32 = 0xCB000004
)

// Filter is an acceptance filter expressed on tagged identifiers.
type Filter struct {
	ID   uint32
	Mask uint32
}

// Match reports whether tagged identifier id passes the filter.
func (f Filter) Match(id uint32) bool {
	return id&f.Mask == f.ID&f.Mask
}

// DeviceFilter selects host -> device frames addressed to addr.
func DeviceFilter(addr uint8) Filter {
	return Filter{ID: DevMask(deviceFilterBaseID, addr), Mask: FilterMask}
}

// HostFilter selects device -> host frames sent by addr.
func HostFilter(addr uint8) Filter {
	return Filter{ID: DevMask(hostFilterBaseID, addr), Mask: FilterMask}
}

// AcceptAll lets every frame through.
func AcceptAll() Filter {
	return Filter{}
}
