package protocol

import "errors"

var (
	ErrInvalidVLQ     = errors.New("invalid VLQ encoding")
	ErrBufferTooSmall = errors.New("buffer too small for VLQ")
)

// vlqMaxBytes is the longest encoding of a 32-bit value
const vlqMaxBytes = 5

// vlqBounds holds, for each continuation byte from the most significant down,
// the exponent e such that values in [-(1<<e), 3<<e) need no byte at that
// position. The ranges are asymmetric so small negatives stay short.
var vlqBounds = [vlqMaxBytes - 1]uint{26, 19, 12, 5}

// EncodeVLQInt writes v as a sign-extended variable length quantity
func EncodeVLQInt(output OutputBuffer, v int32) {
	var buf [vlqMaxBytes]byte
	n := 0
	for i, e := range vlqBounds {
		if v >= -(1<<e) && v < 3<<e {
			continue
		}
		shift := uint(7 * (len(vlqBounds) - i))
		buf[n] = byte(v>>shift)&0x7F | 0x80
		n++
	}
	buf[n] = byte(v) & 0x7F
	output.Output(buf[:n+1])
}

// EncodeVLQUint writes v using the signed encoding of its bit pattern
func EncodeVLQUint(output OutputBuffer, v uint32) {
	EncodeVLQInt(output, int32(v))
}

// DecodeVLQInt reads one VLQ from the front of data and advances it
func DecodeVLQInt(data *[]byte) (int32, error) {
	buf := *data
	if len(buf) == 0 {
		return 0, ErrBufferTooSmall
	}

	c := uint32(buf[0])
	v := c & 0x7F
	if c&0x60 == 0x60 {
		v |= ^uint32(0x1F)
	}

	i := 1
	for c&0x80 != 0 {
		if i >= len(buf) {
			return 0, ErrBufferTooSmall
		}
		if i >= vlqMaxBytes {
			return 0, ErrInvalidVLQ
		}
		c = uint32(buf[i])
		v = v<<7 | c&0x7F
		i++
	}

	*data = buf[i:]
	return int32(v), nil
}

// DecodeVLQUint reads one VLQ and reinterprets it as unsigned
func DecodeVLQUint(data *[]byte) (uint32, error) {
	v, err := DecodeVLQInt(data)
	return uint32(v), err
}

// EncodeVLQBytes writes a length-prefixed byte string
func EncodeVLQBytes(output OutputBuffer, b []byte) {
	EncodeVLQUint(output, uint32(len(b)))
	output.Output(b)
}

// DecodeVLQBytes reads a length-prefixed byte string. The result aliases data.
func DecodeVLQBytes(data *[]byte) ([]byte, error) {
	n, err := DecodeVLQUint(data)
	if err != nil {
		return nil, err
	}
	if uint32(len(*data)) < n {
		return nil, ErrBufferTooSmall
	}
	b := (*data)[:n]
	*data = (*data)[n:]
	return b, nil
}

// EncodeVLQString writes s as a length-prefixed byte string
func EncodeVLQString(output OutputBuffer, s string) {
	EncodeVLQBytes(output, []byte(s))
}

// DecodeVLQString reads a length-prefixed byte string as a string
func DecodeVLQString(data *[]byte) (string, error) {
	b, err := DecodeVLQBytes(data)
	return string(b), err
}
