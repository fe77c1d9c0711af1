package core

// Itoa converts an integer to a string without the fmt package,
// which is too large for the AVR targets
func Itoa(n int) string {
	var buf [20]byte
	pos := len(buf)

	negative := n < 0
	u := uint64(n)
	if negative {
		u = uint64(-n)
	}

	for {
		pos--
		buf[pos] = byte('0' + u%10)
		u /= 10
		if u == 0 {
			break
		}
	}

	if negative {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}
