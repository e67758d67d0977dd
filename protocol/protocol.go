// Package protocol implements the framed serial protocol spoken between the
// DDS firmware and its host tools.
//
// Every message is
//
//	len seq payload... crc_hi crc_lo 0x7E
//
// where len covers the whole message, seq carries MessageDest in its high
// nibble and a 4-bit sequence number, and the payload is a run of VLQ
// encoded command IDs and arguments. A message with an empty payload is an
// ACK/NAK carrying the receiver's next expected sequence.
package protocol

// Version is the wire protocol version reported in the dictionary
const Version = "ddsgen-0.1.0"

// Message layout
const (
	MessageHeaderSize  = 2
	MessageTrailerSize = 3
	MessageLengthMin   = MessageHeaderSize + MessageTrailerSize
	MessageLengthMax   = 64
	MessagePositionLen = 0
	MessagePositionSeq = 1
	MessageTrailerCRC  = 3
	MessageTrailerSync = 1
	MessageValueSync   = 0x7E
	MessageDest        = 0x10
	MessageSeqMask     = 0x0F

	// MessageMax bounds a scratch output buffer holding several messages
	MessageMax = 512
)

// CRC16 returns the CRC-16/MCRF4XX checksum (reflected 0x1021, init 0xFFFF)
// used to guard each message.
func CRC16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		b ^= uint8(crc)
		b ^= b << 4
		w := uint16(b)
		crc = (w<<8 | crc>>8) ^ (w >> 4) ^ (w << 3)
	}
	return crc
}

// nextSeq returns the sequence byte that follows seq
func nextSeq(seq uint8) uint8 {
	return ((seq + 1) & MessageSeqMask) | MessageDest
}
