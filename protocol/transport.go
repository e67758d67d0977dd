package protocol

import "sync/atomic"

// CommandHandler runs one decoded command. data holds the remaining frame
// bytes; the handler consumes its own arguments from the front.
type CommandHandler func(cmdID uint16, data *[]byte) error

// Transport is the firmware end of the link. It validates incoming frames,
// dispatches their commands in order and answers every frame with an
// ACK/NAK carrying the next sequence it expects.
type Transport struct {
	scan    scanner
	nextSeq atomic.Uint32

	output  OutputBuffer
	handler CommandHandler

	resetCallback func()
	flushCallback func()
}

// NewTransport returns a synchronized transport expecting sequence 0
func NewTransport(output OutputBuffer, handler CommandHandler) *Transport {
	t := &Transport{
		scan:    scanner{synced: true},
		output:  output,
		handler: handler,
	}
	t.nextSeq.Store(MessageDest)
	return t
}

// Receive consumes every complete message in input
func (t *Transport) Receive(input InputBuffer) {
	data := input.Data()
	total := len(data)

	for {
		msg, ok := t.scan.next(&data, t.encodeAckNak)
		if !ok {
			break
		}
		t.receiveMessage(msg)
	}

	input.Pop(total - len(data))
}

func (t *Transport) receiveMessage(msg []byte) {
	seq := msg[MessagePositionSeq]
	expected := uint8(t.nextSeq.Load())

	// A host that restarts begins again at sequence 0
	if seq == MessageDest && expected != MessageDest {
		t.nextSeq.Store(MessageDest)
		expected = MessageDest
		if t.resetCallback != nil {
			t.resetCallback()
		}
	}

	if seq == expected {
		t.nextSeq.Store(uint32(nextSeq(seq)))
		t.dispatch(msg[MessageHeaderSize : len(msg)-MessageTrailerSize])
	}

	// Out of order frames are not run; the ACK doubles as a NAK naming the
	// sequence we still want.
	t.encodeAckNak()
}

// dispatch runs each command in frame. A panicking handler drops sync so the
// host retransmits from a clean state.
func (t *Transport) dispatch(frame []byte) {
	defer func() {
		if r := recover(); r != nil {
			t.scan.synced = false
		}
	}()

	for len(frame) > 0 {
		cmdID, err := DecodeVLQUint(&frame)
		if err != nil {
			t.scan.synced = false
			return
		}
		if t.handler == nil {
			return
		}
		if err := t.handler(uint16(cmdID), &frame); err != nil {
			return
		}
	}
}

// encodeAckNak emits an empty message and flushes it ahead of later output
func (t *Transport) encodeAckNak() {
	var buf [MessageLengthMin]byte
	t.output.Output(appendMessage(buf[:0], uint8(t.nextSeq.Load()), nil))
	if t.flushCallback != nil {
		t.flushCallback()
	}
}

// EncodeFrame writes one message whose payload is produced by frameData.
// Responses carry the same sequence as the ACK for the frame that caused them.
func (t *Transport) EncodeFrame(frameData func(output OutputBuffer)) {
	start := t.output.CurPosition()
	t.output.Output([]byte{0, uint8(t.nextSeq.Load())})
	frameData(t.output)

	t.output.Update(start+MessagePositionLen, uint8(len(t.output.DataSince(start))+MessageTrailerSize))
	crc := CRC16(t.output.DataSince(start))
	t.output.Output([]byte{uint8(crc >> 8), uint8(crc), MessageValueSync})
}

// SendCommand sends cmdID followed by the arguments written by args
func (t *Transport) SendCommand(cmdID uint16, args func(output OutputBuffer)) {
	t.EncodeFrame(func(output OutputBuffer) {
		EncodeVLQUint(output, uint32(cmdID))
		if args != nil {
			args(output)
		}
	})
}

// Reset returns to sequence 0, for example after a USB reconnect
func (t *Transport) Reset() {
	t.scan.synced = true
	t.nextSeq.Store(MessageDest)
	if t.resetCallback != nil {
		t.resetCallback()
	}
}

// SetResetCallback registers fn to run whenever the host restarts the link
func (t *Transport) SetResetCallback(fn func()) {
	t.resetCallback = fn
}

// SetFlushCallback registers fn to push pending output to the wire right
// after each ACK.
func (t *Transport) SetFlushCallback(fn func()) {
	t.flushCallback = fn
}
