package protocol

import (
	"bytes"
	"net"
	"sync"
	"testing"
	"time"
)

func TestCRC16(t *testing.T) {
	testCases := []struct {
		data []byte
		crc  uint16
	}{
		{[]byte("123456789"), 0x6F91},
		{[]byte{5, 0x10}, 0x9E81},
		{nil, 0xFFFF},
	}

	for _, tc := range testCases {
		if got := CRC16(tc.data); got != tc.crc {
			t.Errorf("CRC16(%x) = 0x%04X, want 0x%04X", tc.data, got, tc.crc)
		}
	}
}

func buildCommand(seq uint8, cmdID uint32, args ...uint32) []byte {
	payload := NewScratchOutput()
	EncodeVLQUint(payload, cmdID)
	for _, a := range args {
		EncodeVLQUint(payload, a)
	}
	return appendMessage(nil, seq, payload.Result())
}

type recordedCommand struct {
	id   uint16
	args []uint32
}

// newRecordingTransport returns a transport whose handler consumes argc
// arguments per command.
func newRecordingTransport(argc int) (*Transport, *ScratchOutput, *[]recordedCommand) {
	out := NewScratchOutput()
	var got []recordedCommand
	tr := NewTransport(out, func(cmdID uint16, data *[]byte) error {
		cmd := recordedCommand{id: cmdID}
		for i := 0; i < argc; i++ {
			v, err := DecodeVLQUint(data)
			if err != nil {
				return err
			}
			cmd.args = append(cmd.args, v)
		}
		got = append(got, cmd)
		return nil
	})
	return tr, out, &got
}

func ackFor(seq uint8) []byte {
	return appendMessage(nil, seq, nil)
}

func TestTransportDispatchAndAck(t *testing.T) {
	tr, out, got := newRecordingTransport(2)

	input := NewSliceInputBuffer(buildCommand(0x10, 7, 1000000, 2048))
	tr.Receive(input)

	if len(*got) != 1 || (*got)[0].id != 7 || (*got)[0].args[0] != 1000000 || (*got)[0].args[1] != 2048 {
		t.Fatalf("Unexpected dispatch: %+v", *got)
	}
	if input.Available() != 0 {
		t.Errorf("Receive left %d bytes", input.Available())
	}
	if !bytes.Equal(out.Result(), ackFor(0x11)) {
		t.Errorf("ACK = %x, want %x", out.Result(), ackFor(0x11))
	}
}

func TestTransportPartialMessage(t *testing.T) {
	tr, out, got := newRecordingTransport(0)
	msg := buildCommand(0x10, 3)

	fifo := NewFifoBuffer(64)
	fifo.Write(msg[:3])
	tr.Receive(fifo)
	if len(*got) != 0 || fifo.Available() != 3 {
		t.Fatalf("Partial message should wait, dispatched %d, %d buffered", len(*got), fifo.Available())
	}

	fifo.Write(msg[3:])
	tr.Receive(fifo)
	if len(*got) != 1 || !fifo.IsEmpty() {
		t.Fatalf("Completed message not dispatched: %+v", *got)
	}
	if !bytes.Equal(out.Result(), ackFor(0x11)) {
		t.Errorf("ACK = %x", out.Result())
	}
}

func TestTransportOutOfOrderIsNakked(t *testing.T) {
	tr, out, got := newRecordingTransport(0)

	tr.Receive(NewSliceInputBuffer(buildCommand(0x10, 1)))
	out.Reset()

	// Replay of the same sequence is acknowledged but not run again
	tr.Receive(NewSliceInputBuffer(buildCommand(0x13, 1)))
	if len(*got) != 1 {
		t.Errorf("Out of order frame dispatched: %+v", *got)
	}
	if !bytes.Equal(out.Result(), ackFor(0x11)) {
		t.Errorf("NAK = %x, want %x", out.Result(), ackFor(0x11))
	}
}

func TestTransportHostRestart(t *testing.T) {
	tr, _, got := newRecordingTransport(0)
	resets := 0
	tr.SetResetCallback(func() { resets++ })

	tr.Receive(NewSliceInputBuffer(buildCommand(0x10, 1)))
	tr.Receive(NewSliceInputBuffer(buildCommand(0x11, 1)))
	tr.Receive(NewSliceInputBuffer(buildCommand(0x10, 2)))

	if resets != 1 {
		t.Errorf("Expected one reset callback, got %d", resets)
	}
	if len(*got) != 3 || (*got)[2].id != 2 {
		t.Errorf("Frame after restart not dispatched: %+v", *got)
	}
}

func TestTransportResyncAfterCorruption(t *testing.T) {
	tr, out, got := newRecordingTransport(0)

	bad := buildCommand(0x10, 1)
	bad[2] ^= 0xFF
	stream := append(bad, buildCommand(0x10, 5)...)
	tr.Receive(NewSliceInputBuffer(stream))

	if len(*got) != 1 || (*got)[0].id != 5 {
		t.Fatalf("Expected only the valid frame to run, got %+v", *got)
	}
	// One ACK on regaining sync, one for the good frame
	want := append(ackFor(0x10), ackFor(0x11)...)
	if !bytes.Equal(out.Result(), want) {
		t.Errorf("Output = %x, want %x", out.Result(), want)
	}
}

func TestTransportHandlerPanicDropsSync(t *testing.T) {
	out := NewScratchOutput()
	tr := NewTransport(out, func(uint16, *[]byte) error { panic("boom") })

	tr.Receive(NewSliceInputBuffer(buildCommand(0x10, 1)))
	if tr.scan.synced {
		t.Error("Transport should lose sync after a handler panic")
	}
}

func TestTransportEncodeFrame(t *testing.T) {
	tr, out, _ := newRecordingTransport(0)
	tr.SendCommand(9, func(o OutputBuffer) {
		EncodeVLQUint(o, 300)
	})

	data := out.Result()
	n, status := scan(data)
	if status != scanMessage || n != len(data) {
		t.Fatalf("Encoded frame failed validation: %x", data)
	}

	payload := data[MessageHeaderSize : n-MessageTrailerSize]
	id, _ := DecodeVLQUint(&payload)
	arg, _ := DecodeVLQUint(&payload)
	if id != 9 || arg != 300 || data[MessagePositionSeq] != 0x10 {
		t.Errorf("Decoded id=%d arg=%d seq=0x%02x", id, arg, data[MessagePositionSeq])
	}
}

// pipeFirmware serves a Transport on one end of a net.Pipe
func pipeFirmware(t *testing.T, conn net.Conn, handler func(tr *Transport, id uint16, data *[]byte) error) {
	t.Helper()
	out := NewScratchOutput()
	var tr *Transport
	tr = NewTransport(out, func(id uint16, data *[]byte) error {
		return handler(tr, id, data)
	})

	go func() {
		fifo := NewFifoBuffer(256)
		buf := make([]byte, 64)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				return
			}
			fifo.Write(buf[:n])
			tr.Receive(fifo)
			if len(out.Result()) > 0 {
				if _, err := conn.Write(out.Result()); err != nil {
					return
				}
				out.Reset()
			}
		}
	}()
}

func TestHostTransportRoundTrip(t *testing.T) {
	hostConn, mcuConn := net.Pipe()
	defer mcuConn.Close()

	pipeFirmware(t, mcuConn, func(tr *Transport, id uint16, data *[]byte) error {
		v, err := DecodeVLQUint(data)
		if err != nil {
			return err
		}
		tr.SendCommand(id+1, func(o OutputBuffer) { EncodeVLQUint(o, v*2) })
		return nil
	})

	host := NewHostTransport(hostConn)
	defer host.Close()

	var mu sync.Mutex
	var handled []uint16
	host.SetResponseHandler(func(id uint16, data *[]byte) error {
		mu.Lock()
		handled = append(handled, id)
		mu.Unlock()
		return nil
	})

	for i := uint32(1); i <= 20; i++ {
		if err := host.SendCommand(4, func(o OutputBuffer) { EncodeVLQUint(o, i) }); err != nil {
			t.Fatalf("SendCommand %d: %v", i, err)
		}
		resp, err := host.ReceiveResponse(time.Second)
		if err != nil {
			t.Fatalf("ReceiveResponse %d: %v", i, err)
		}
		payload := resp.Payload
		id, _ := DecodeVLQUint(&payload)
		v, _ := DecodeVLQUint(&payload)
		if id != 5 || v != i*2 {
			t.Errorf("Response %d: id=%d v=%d", i, id, v)
		}
	}

	// 20 commands wrap the 4-bit sequence
	if seq := host.CurrentSequence(); seq != nextSeq(0x10+3) {
		t.Errorf("CurrentSequence = 0x%02x, want 0x14", seq)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(handled) != 20 {
		t.Errorf("Response handler saw %d responses, want 20", len(handled))
	}
}

func TestHostTransportAckTimeout(t *testing.T) {
	hostConn, mcuConn := net.Pipe()
	defer mcuConn.Close()

	// Swallow everything without answering
	go func() {
		buf := make([]byte, 64)
		for {
			if _, err := mcuConn.Read(buf); err != nil {
				return
			}
		}
	}()

	host := NewHostTransport(hostConn)
	defer host.Close()

	if err := host.SendCommandWithTimeout(1, nil, 20*time.Millisecond); err == nil {
		t.Error("Expected ACK timeout")
	}
}

func TestHostTransportMessageTooLong(t *testing.T) {
	hostConn, mcuConn := net.Pipe()
	defer mcuConn.Close()

	host := NewHostTransport(hostConn)
	defer host.Close()

	err := host.SendCommand(1, func(o OutputBuffer) { EncodeVLQBytes(o, make([]byte, MessageLengthMax)) })
	if err == nil {
		t.Error("Expected oversize message to be rejected")
	}
}

func TestHostTransportCloseUnblocksReader(t *testing.T) {
	hostConn, mcuConn := net.Pipe()
	defer mcuConn.Close()

	host := NewHostTransport(hostConn)
	done := make(chan struct{})
	go func() {
		host.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close did not return")
	}

	if _, err := host.ReceiveResponse(time.Second); err != ErrTransportClosed {
		t.Errorf("ReceiveResponse after Close = %v, want ErrTransportClosed", err)
	}
}
