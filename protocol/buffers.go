package protocol

// InputBuffer is a source of received bytes that the transport consumes
// from the front.
type InputBuffer interface {
	Data() []byte
	Available() int
	Pop(n int)
}

// OutputBuffer collects encoded bytes. Frames are built in place, so the
// transport needs to patch the length byte and checksum what it wrote.
type OutputBuffer interface {
	Output(data []byte)
	CurPosition() int
	Update(pos int, val byte)
	DataSince(pos int) []byte
}

// SliceInputBuffer serves a fixed byte slice
type SliceInputBuffer struct {
	data []byte
}

func NewSliceInputBuffer(data []byte) *SliceInputBuffer {
	return &SliceInputBuffer{data: data}
}

func (s *SliceInputBuffer) Data() []byte   { return s.data }
func (s *SliceInputBuffer) Available() int { return len(s.data) }

func (s *SliceInputBuffer) Pop(n int) {
	s.data = s.data[min(n, len(s.data)):]
}

// ScratchOutput is a fixed-size OutputBuffer. Writes past MessageMax are
// dropped.
type ScratchOutput struct {
	buf [MessageMax]byte
	pos int
}

func NewScratchOutput() *ScratchOutput {
	return &ScratchOutput{}
}

func (s *ScratchOutput) Output(data []byte) {
	s.pos += copy(s.buf[s.pos:], data)
}

func (s *ScratchOutput) CurPosition() int { return s.pos }

func (s *ScratchOutput) Update(pos int, val byte) {
	if pos >= 0 && pos < s.pos {
		s.buf[pos] = val
	}
}

func (s *ScratchOutput) DataSince(pos int) []byte {
	if pos < 0 || pos > s.pos {
		return nil
	}
	return s.buf[pos:s.pos]
}

// Result returns everything written since the last Reset
func (s *ScratchOutput) Result() []byte { return s.buf[:s.pos] }

func (s *ScratchOutput) Reset() { s.pos = 0 }

// FifoBuffer is a byte ring used between the USB/UART driver and the
// transport. It implements InputBuffer.
type FifoBuffer struct {
	buf   []byte
	head  int
	count int
}

func NewFifoBuffer(capacity int) *FifoBuffer {
	return &FifoBuffer{buf: make([]byte, capacity)}
}

// Write stores as much of data as fits and returns the number of bytes taken
func (f *FifoBuffer) Write(data []byte) int {
	n := min(len(data), f.Free())
	for i := 0; i < n; i++ {
		f.buf[(f.head+f.count+i)%len(f.buf)] = data[i]
	}
	f.count += n
	return n
}

// Read moves up to len(data) bytes out of the ring
func (f *FifoBuffer) Read(data []byte) int {
	n := min(len(data), f.count)
	for i := 0; i < n; i++ {
		data[i] = f.buf[(f.head+i)%len(f.buf)]
	}
	f.Pop(n)
	return n
}

func (f *FifoBuffer) Available() int { return f.count }
func (f *FifoBuffer) Free() int      { return len(f.buf) - f.count }
func (f *FifoBuffer) IsEmpty() bool  { return f.count == 0 }

// Data returns the buffered bytes in order. A wrapped ring is copied into a
// fresh slice so frames spanning the wrap point parse as one run.
func (f *FifoBuffer) Data() []byte {
	end := f.head + f.count
	if end <= len(f.buf) {
		return f.buf[f.head:end]
	}
	out := make([]byte, 0, f.count)
	out = append(out, f.buf[f.head:]...)
	return append(out, f.buf[:end-len(f.buf)]...)
}

func (f *FifoBuffer) Pop(n int) {
	n = min(n, f.count)
	f.head = (f.head + n) % len(f.buf)
	f.count -= n
	if f.count == 0 {
		f.head = 0
	}
}

func (f *FifoBuffer) Reset() {
	f.head = 0
	f.count = 0
}
