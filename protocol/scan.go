package protocol

// scanStatus classifies the bytes at the front of a receive buffer
type scanStatus uint8

const (
	scanNeedMore scanStatus = iota // a message may start here but is incomplete
	scanMessage                    // a valid message of the returned length
	scanInvalid                    // not a message, resynchronize
)

// scan inspects data, which must not start with a sync byte, and reports
// whether a complete, checksummed message sits at the front.
func scan(data []byte) (int, scanStatus) {
	if len(data) < MessageLengthMin {
		return 0, scanNeedMore
	}

	n := int(data[MessagePositionLen])
	if n < MessageLengthMin || n > MessageLengthMax {
		return 0, scanInvalid
	}
	if data[MessagePositionSeq]&^MessageSeqMask != MessageDest {
		return 0, scanInvalid
	}
	if len(data) < n {
		return 0, scanNeedMore
	}
	if data[n-MessageTrailerSync] != MessageValueSync {
		return 0, scanInvalid
	}

	crc := uint16(data[n-MessageTrailerCRC])<<8 | uint16(data[n-MessageTrailerCRC+1])
	if crc != CRC16(data[:n-MessageTrailerSize]) {
		return 0, scanInvalid
	}
	return n, scanMessage
}

// scanner walks a receive buffer message by message, dropping garbage up to
// the next sync byte whenever a frame fails validation.
type scanner struct {
	synced bool
}

// next returns the next valid message in *data, advancing past it. ok is
// false when no complete message remains; *data then holds the unconsumed
// tail. resync is called each time the scanner regains sync.
func (s *scanner) next(data *[]byte, resync func()) (msg []byte, ok bool) {
	buf := *data
	defer func() { *data = buf }()

	for len(buf) > 0 {
		if !s.synced {
			i := indexSync(buf)
			if i < 0 {
				buf = nil
				return nil, false
			}
			buf = buf[i+1:]
			s.synced = true
			if resync != nil {
				resync()
			}
			continue
		}

		if buf[0] == MessageValueSync {
			buf = buf[1:]
			continue
		}

		n, status := scan(buf)
		switch status {
		case scanNeedMore:
			return nil, false
		case scanInvalid:
			s.synced = false
			continue
		}
		msg, buf = buf[:n], buf[n:]
		return msg, true
	}
	return nil, false
}

func indexSync(data []byte) int {
	for i, b := range data {
		if b == MessageValueSync {
			return i
		}
	}
	return -1
}

// appendMessage appends a complete message carrying seq and payload to dst
func appendMessage(dst []byte, seq uint8, payload []byte) []byte {
	start := len(dst)
	dst = append(dst, uint8(len(payload)+MessageLengthMin), seq)
	dst = append(dst, payload...)
	crc := CRC16(dst[start:])
	return append(dst, uint8(crc>>8), uint8(crc), MessageValueSync)
}
