package panel

import (
	"math"
	"sync"
	"testing"

	"ddsgen/core"
)

// matrixGPIO simulates the keypad matrix: a row reads high when a pressed
// key sits in a column that is driven high.
type matrixGPIO struct {
	levels  map[core.GPIOPin]bool
	inputs  map[core.GPIOPin]bool
	outputs map[core.GPIOPin]bool
	rows    []core.GPIOPin
	cols    []core.GPIOPin
	pressed map[[2]int]bool // {row, col}
	edges   map[core.GPIOPin]int
}

func newMatrixGPIO() *matrixGPIO {
	return &matrixGPIO{
		levels:  make(map[core.GPIOPin]bool),
		inputs:  make(map[core.GPIOPin]bool),
		outputs: make(map[core.GPIOPin]bool),
		rows:    []core.GPIOPin{2, 3, 4, 5},
		cols:    []core.GPIOPin{6, 7, 8, 9},
		pressed: make(map[[2]int]bool),
		edges:   make(map[core.GPIOPin]int),
	}
}

func (g *matrixGPIO) ConfigureOutput(pin core.GPIOPin) error {
	g.outputs[pin] = true
	return nil
}

func (g *matrixGPIO) ConfigureInputPullDown(pin core.GPIOPin) error {
	g.inputs[pin] = true
	return nil
}

func (g *matrixGPIO) SetPin(pin core.GPIOPin, value bool) error {
	if value && !g.levels[pin] {
		g.edges[pin]++
	}
	g.levels[pin] = value
	return nil
}

func (g *matrixGPIO) GetPin(pin core.GPIOPin) (bool, error) {
	for r, rp := range g.rows {
		if rp != pin {
			continue
		}
		for c, cp := range g.cols {
			if g.pressed[[2]int{r, c}] && g.levels[cp] {
				return true, nil
			}
		}
		return false, nil
	}
	return g.levels[pin], nil
}

func newTestKeypad(t *testing.T) (*Keypad, *matrixGPIO) {
	t.Helper()
	g := newMatrixGPIO()
	k, err := NewKeypad(g, g.rows, g.cols)
	if err != nil {
		t.Fatalf("NewKeypad: %v", err)
	}
	return k, g
}

func TestKeypadSetup(t *testing.T) {
	k, g := newTestKeypad(t)

	for _, pin := range g.rows {
		if !g.inputs[pin] {
			t.Errorf("row pin %d not an input", pin)
		}
	}
	for _, pin := range g.cols {
		if !g.outputs[pin] || !g.levels[pin] {
			t.Errorf("column pin %d should be an output driven high", pin)
		}
	}
	if len(k.RowPins()) != 4 {
		t.Errorf("RowPins = %v", k.RowPins())
	}

	if _, err := NewKeypad(g, g.rows[:3], g.cols); err != ErrKeypadPins {
		t.Errorf("expected ErrKeypadPins, got %v", err)
	}
}

func TestKeypadScanEveryKey(t *testing.T) {
	k, g := newTestKeypad(t)

	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			g.pressed = map[[2]int]bool{{r, c}: true}
			key, ok := k.Scan()
			if !ok || key != KeyMap[r][c] {
				t.Errorf("row %d col %d: got %q %t, want %q", r, c, key, ok, KeyMap[r][c])
			}
		}
	}

	for _, pin := range g.cols {
		if !g.levels[pin] {
			t.Errorf("column %d left low after scan", pin)
		}
	}
}

func TestKeypadFirstKeyWins(t *testing.T) {
	k, g := newTestKeypad(t)

	// '6' (row 1, col 2) and '8' (row 2, col 1): column 1 is scanned first
	g.pressed = map[[2]int]bool{{1, 2}: true, {2, 1}: true}
	if key, _ := k.Scan(); key != '8' {
		t.Errorf("got %q, want '8'", key)
	}

	// Same column: the lower row index wins
	g.pressed = map[[2]int]bool{{3, 0}: true, {0, 0}: true}
	if key, _ := k.Scan(); key != '1' {
		t.Errorf("got %q, want '1'", key)
	}
}

func TestKeypadInterruptLatch(t *testing.T) {
	k, g := newTestKeypad(t)

	if _, ok := k.LastKey(); ok {
		t.Error("LastKey before any interrupt")
	}

	g.pressed = map[[2]int]bool{{2, 3}: true}
	k.OnInterrupt()
	g.pressed = nil

	key, ok := k.LastKey()
	if !ok || key != 'm' {
		t.Errorf("LastKey = %q %t, want 'm'", key, ok)
	}
	if _, ok := k.LastKey(); ok {
		t.Error("LastKey should consume the latched key")
	}

	// Bounce: interrupt with nothing pressed latches no key
	k.OnInterrupt()
	if _, ok := k.LastKey(); ok {
		t.Error("bounce reported a key")
	}
}

func TestEntryFrequency(t *testing.T) {
	e := NewEntry(75000000, TuningRequest{})

	testCases := []struct {
		keys string
		want uint32
	}{
		{"440h", 440},
		{"12k", 12000},
		{"1m", 1000000},
		{"37500000f", 37500000},
		{"0h", 0},
	}
	for _, tc := range testCases {
		var req TuningRequest
		var ok bool
		for i := 0; i < len(tc.keys); i++ {
			req, ok = e.Press(tc.keys[i])
		}
		if !ok || req.FrequencyHz != tc.want {
			t.Errorf("%q: got %d %t, want %d", tc.keys, req.FrequencyHz, ok, tc.want)
		}
	}
}

func TestEntryPhaseKeepsFrequency(t *testing.T) {
	e := NewEntry(75000000, TuningRequest{FrequencyHz: 1000})
	e.Press('9')
	e.Press('0')
	req, ok := e.Press('p')

	if !ok || req.FrequencyHz != 1000 || math.Abs(req.PhaseRadians-math.Pi/2) > 1e-12 {
		t.Errorf("got %+v %t", req, ok)
	}
	if e.Current() != req {
		t.Errorf("Current = %+v", e.Current())
	}
}

func TestEntryRejects(t *testing.T) {
	e := NewEntry(75000000, TuningRequest{FrequencyHz: 5})

	press := func(keys string) bool {
		var ok bool
		for i := 0; i < len(keys); i++ {
			_, ok = e.Press(keys[i])
		}
		return ok
	}

	if press("75m") {
		t.Error("frequency at the reference clock accepted")
	}
	if press("360p") {
		t.Error("phase of a full turn accepted")
	}
	if press("h") {
		t.Error("unit without digits committed")
	}
	if press("12e") {
		t.Error("clear committed")
	}
	if v, n := e.Pending(); v != 0 || n != 0 {
		t.Errorf("pending after clear = %d (%d digits)", v, n)
	}
	if e.Current().FrequencyHz != 5 {
		t.Errorf("rejected input changed the tuning: %+v", e.Current())
	}

	// Digits past the limit are ignored rather than overflowing
	press("99999999999")
	if v, n := e.Pending(); v != 999999999 || n != maxDigits {
		t.Errorf("pending = %d (%d digits)", v, n)
	}
	if press("k") {
		t.Error("overflowing kHz value accepted")
	}
}

func runMS(from, to uint32) {
	for ms := from; ms <= to; ms++ {
		core.SetTime(core.TimerFromMS(ms))
		core.ProcessTimers()
	}
}

func TestBlinker(t *testing.T) {
	core.SetTime(0)
	g := newMatrixGPIO()
	b, err := NewBlinker(g, 25, 250, 750)
	if err != nil {
		t.Fatal(err)
	}
	b.Start()
	defer b.Stop()

	runMS(1, 749)
	if b.On() {
		t.Error("LED on before the first off period elapsed")
	}
	runMS(750, 750)
	if !b.On() || !g.levels[25] {
		t.Error("LED should switch on at 750ms")
	}
	runMS(751, 999)
	if !b.On() {
		t.Error("LED should stay on for 250ms")
	}
	runMS(1000, 1000)
	if b.On() {
		t.Error("LED should switch off at 1000ms")
	}

	runMS(1001, 4000)
	// On at 750, 1750, 2750, 3750
	if g.edges[25] != 4 {
		t.Errorf("rising edges = %d, want 4", g.edges[25])
	}

	b.Stop()
	runMS(4001, 6000)
	if b.On() || g.edges[25] != 4 {
		t.Error("stopped blinker kept running")
	}
}

func TestHeartbeat(t *testing.T) {
	core.SetTime(0)
	g := newMatrixGPIO()
	h, err := NewHeartbeat(g, 15, 100, 100, 700)
	if err != nil {
		t.Fatal(err)
	}
	h.Start()
	defer h.Stop()

	// Pulses at 700-800 and 900-1000, then 700 off: 1700-1800, 1900-2000
	var onAt []uint32
	for ms := uint32(1); ms <= 2100; ms++ {
		was := h.On()
		runMS(ms, ms)
		if h.On() && !was {
			onAt = append(onAt, ms)
		}
	}

	want := []uint32{700, 900, 1700, 1900}
	if len(onAt) != len(want) {
		t.Fatalf("pulses at %v, want %v", onAt, want)
	}
	for i := range want {
		if onAt[i] != want[i] {
			t.Errorf("pulses at %v, want %v", onAt, want)
			break
		}
	}
}

// Row interrupts arrive on their own goroutine on Linux hosts while the main
// loop advances the clock and records events.
func TestKeypadInterruptConcurrentWithMainLoop(t *testing.T) {
	k, g := newTestKeypad(t)
	g.pressed = map[[2]int]bool{{2, 3}: true}
	core.ClearEventRing()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			k.OnInterrupt()
		}
	}()
	for i := uint32(0); i < 200; i++ {
		core.SetTime(i)
		core.RecordEvent(core.EvtDDSSkip, core.GetTime(), 0, 0)
	}
	wg.Wait()

	if key, ok := k.LastKey(); !ok || key != 'm' {
		t.Errorf("LastKey = %q %t, want 'm'", key, ok)
	}
	for _, evt := range core.Events() {
		if evt.Type == core.EvtKeyPress && evt.Value1 != 'm' {
			t.Errorf("key event value %d", evt.Value1)
		}
	}
}
