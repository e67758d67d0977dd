package core

// Lightweight number formatting for firmware builds that avoid fmt.

// itoa converts an integer to a string
func itoa(n int) string {
	if n < 0 {
		return "-" + string(appendUint(nil, uint64(-n)))
	}
	return string(appendUint(nil, uint64(n)))
}

// utoa converts an unsigned integer to a string
func utoa(n uint32) string {
	return string(appendUint(nil, uint64(n)))
}

// appendUint appends the decimal digits of n to buf
func appendUint(buf []byte, n uint64) []byte {
	var digits [20]byte
	pos := len(digits)
	for {
		pos--
		digits[pos] = byte('0' + n%10)
		n /= 10
		if n == 0 {
			break
		}
	}
	return append(buf, digits[pos:]...)
}

// valueToString converts a dictionary constant to its string form
func valueToString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case int:
		return itoa(val)
	case int32:
		return itoa(int(val))
	case uint8:
		return utoa(uint32(val))
	case uint16:
		return utoa(uint32(val))
	case uint32:
		return utoa(val)
	case uint64:
		return string(appendUint(nil, val))
	default:
		return ""
	}
}
