package protocol

// CRC-16/XMODEM parameters.
const (
	CRC16Polynomial   = 0x1021
	CRC16InitialValue = 0x0000
	crc16HighBit      = 0x8000
)

// UpdateCRC16 feeds one byte into a running CRC-16/XMODEM.
func UpdateCRC16(crc uint16, b byte) uint16 {
	crc ^= uint16(b) << 8
	for i := 0; i < 8; i++ {
		if crc&crc16HighBit != 0 {
			crc = crc<<1 ^ CRC16Polynomial
		} else {
			crc <<= 1
		}
	}
	return crc
}

// CRC16 computes the CRC-16/XMODEM of data: polynomial 0x1021, initial value
// 0, no reflection, no final XOR.
func CRC16(data []byte) uint16 {
	crc := uint16(CRC16InitialValue)
	for _, b := range data {
		crc = UpdateCRC16(crc, b)
	}
	return crc
}
