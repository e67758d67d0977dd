package protocol

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

// DefaultAckTimeout bounds how long SendCommand waits for the firmware ACK
const DefaultAckTimeout = 2 * time.Second

var ErrTransportClosed = errors.New("transport closed")

// ResponseHandler is called from the read loop for every response frame
type ResponseHandler func(cmdID uint16, data *[]byte) error

// Message is a validated frame received from the firmware
type Message struct {
	Sequence uint8
	Payload  []byte
}

// HostTransport is the host end of the link. Commands are sent one frame at
// a time and each waits for its ACK; responses are queued for
// ReceiveResponse and optionally passed to a ResponseHandler.
type HostTransport struct {
	port io.ReadWriteCloser

	sendMu sync.Mutex
	seq    uint8

	mu      sync.Mutex
	handler ResponseHandler

	ackChan      chan *Message
	responseChan chan *Message

	stopOnce sync.Once
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewHostTransport starts reading port in the background
func NewHostTransport(port io.ReadWriteCloser) *HostTransport {
	t := &HostTransport{
		port:         port,
		seq:          MessageDest,
		ackChan:      make(chan *Message, 4),
		responseChan: make(chan *Message, 16),
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
	go t.readLoop()
	return t
}

// SendCommand sends one command and waits for its ACK
func (t *HostTransport) SendCommand(cmdID uint16, args func(output OutputBuffer)) error {
	return t.SendCommandWithTimeout(cmdID, args, DefaultAckTimeout)
}

// SendCommandWithTimeout is SendCommand with an explicit ACK timeout
func (t *HostTransport) SendCommandWithTimeout(cmdID uint16, args func(output OutputBuffer), timeout time.Duration) error {
	payload := NewScratchOutput()
	EncodeVLQUint(payload, uint32(cmdID))
	if args != nil {
		args(payload)
	}
	if n := len(payload.Result()) + MessageLengthMin; n > MessageLengthMax {
		return fmt.Errorf("message too long: %d bytes (max %d)", n, MessageLengthMax)
	}

	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	t.drainAcks()
	msg := appendMessage(nil, t.seq, payload.Result())
	if _, err := t.port.Write(msg); err != nil {
		return fmt.Errorf("write command: %w", err)
	}
	return t.waitForAck(timeout)
}

// waitForAck waits for the firmware to acknowledge t.seq. The ACK names the
// sequence the firmware expects next, so anything else is a NAK.
func (t *HostTransport) waitForAck(timeout time.Duration) error {
	want := nextSeq(t.seq)
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case ack := <-t.ackChan:
			if ack.Sequence == want {
				t.seq = want
				return nil
			}
			if ack.Sequence == t.seq {
				// NAK for a frame we have not sent yet; keep waiting
				continue
			}
			return fmt.Errorf("sequence mismatch: expected 0x%02x, got 0x%02x", want, ack.Sequence)
		case <-timer.C:
			return fmt.Errorf("ACK timeout after %v", timeout)
		case <-t.stopChan:
			return ErrTransportClosed
		}
	}
}

func (t *HostTransport) drainAcks() {
	for {
		select {
		case <-t.ackChan:
		default:
			return
		}
	}
}

// ReceiveResponse returns the oldest queued response
func (t *HostTransport) ReceiveResponse(timeout time.Duration) (*Message, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp := <-t.responseChan:
		return resp, nil
	case <-timer.C:
		return nil, fmt.Errorf("response timeout after %v", timeout)
	case <-t.stopChan:
		return nil, ErrTransportClosed
	}
}

// SetResponseHandler registers a callback for asynchronous responses
func (t *HostTransport) SetResponseHandler(handler ResponseHandler) {
	t.mu.Lock()
	t.handler = handler
	t.mu.Unlock()
}

// CurrentSequence returns the sequence byte the next command will carry
func (t *HostTransport) CurrentSequence() uint8 {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()
	return t.seq
}

func (t *HostTransport) readLoop() {
	defer close(t.doneChan)

	var (
		sc      = scanner{synced: true}
		pending []byte
		buf     = make([]byte, 256)
	)
	for {
		n, err := t.port.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			data := pending
			for {
				msg, ok := sc.next(&data, nil)
				if !ok {
					break
				}
				t.dispatch(msg)
			}
			pending = append(pending[:0], data...)
		}
		if err != nil {
			select {
			case <-t.stopChan:
				return
			default:
			}
			if errors.Is(err, io.ErrClosedPipe) {
				return
			}
			// Serial ports with a read timeout report EOF when idle
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func (t *HostTransport) dispatch(raw []byte) {
	payload := make([]byte, len(raw)-MessageLengthMin)
	copy(payload, raw[MessageHeaderSize:])
	msg := &Message{Sequence: raw[MessagePositionSeq], Payload: payload}

	if len(payload) == 0 {
		select {
		case t.ackChan <- msg:
		default:
		}
		return
	}

	t.mu.Lock()
	handler := t.handler
	t.mu.Unlock()
	if handler != nil {
		data := payload
		if cmdID, err := DecodeVLQUint(&data); err == nil {
			_ = handler(uint16(cmdID), &data)
		}
	}

	// Drop the oldest response rather than stall the reader
	for {
		select {
		case t.responseChan <- msg:
			return
		default:
		}
		select {
		case <-t.responseChan:
		default:
		}
	}
}

// Close closes the port and waits for the read loop to exit. The port is
// closed first so a blocked Read returns.
func (t *HostTransport) Close() error {
	var err error
	t.stopOnce.Do(func() {
		close(t.stopChan)
		err = t.port.Close()
		<-t.doneChan
	})
	return err
}

// Reset restarts the sequence at 0 and discards queued messages
func (t *HostTransport) Reset() {
	t.sendMu.Lock()
	t.seq = MessageDest
	t.sendMu.Unlock()

	t.drainAcks()
	for {
		select {
		case <-t.responseChan:
		default:
			return
		}
	}
}
