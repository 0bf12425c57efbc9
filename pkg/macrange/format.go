package macrange

const hexDigits = "0123456789abcdef"

// Format renders addr in canonical form: twelve lowercase, zero-padded hex
// digits grouped in pairs by colons, e.g. "00:1a:2b:3c:4d:5e".
//
// Only the low 48 bits of addr are rendered, so Parse(Format(x)) == x for
// every x in [0, MaxAddress].
func Format(addr uint64) string {
	var buf [17]byte
	for i := 0; i < 6; i++ {
		octet := byte(addr >> (40 - 8*uint(i)))
		pos := i * 3
		buf[pos] = hexDigits[octet>>4]
		buf[pos+1] = hexDigits[octet&0x0f]
		if i < 5 {
			buf[pos+2] = ':'
		}
	}
	return string(buf[:])
}
