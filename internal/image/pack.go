package image

// FadeColor is the fade plane fill: black with the alpha nibble at maximum.
// The compositor ignores the nibble for the fade layer and applies the
// layer opacity instead.
const FadeColor uint16 = 0x000F

// Pack truncates each 8-bit channel to its top 4 bits and packs the result
// as R(15:12) G(11:8) B(7:4) A(3:0).
func Pack(r, g, b, a uint8) uint16 {
	return uint16(r>>4)<<12 | uint16(g>>4)<<8 | uint16(b>>4)<<4 | uint16(a>>4)
}

// Unpack returns the four 4-bit channel values of a packed pixel.
func Unpack(v uint16) (r, g, b, a uint8) {
	return uint8(v>>12) & 0xF, uint8(v>>8) & 0xF, uint8(v>>4) & 0xF, uint8(v) & 0xF
}

// Expand returns the channels of a packed pixel scaled back to 8 bits.
// 0xF expands to 0xFF and 0x0 to 0x00.
func Expand(v uint16) (r, g, b, a uint8) {
	r, g, b, a = Unpack(v)
	return r * 17, g * 17, b * 17, a * 17
}
