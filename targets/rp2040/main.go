//go:build rp2040

package main

import (
	_ "embed"
	"machine"
	"time"

	"ddsgen/config"
	"ddsgen/core"
	"ddsgen/panel"
	"ddsgen/protocol"
)

//go:embed board.json
var boardJSON []byte

var (
	inputBuffer  *protocol.FifoBuffer
	outputBuffer *protocol.ScratchOutput
	transport    *protocol.Transport

	msgErrors                uint32
	usbWasDisconnected       bool
	consecutiveWriteFailures uint32
)

// frontPanel is the keypad entry state and the LEDs that report it
type frontPanel struct {
	keypad    *panel.Keypad
	entry     *panel.Entry
	blink     *panel.Blinker
	heartbeat *panel.Heartbeat
	leds      config.LEDConfig
}

func main() {
	// Clear any watchdog left running by a previous reset
	if err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0}); err != nil {
		return
	}

	InitUSB()
	InitClock()

	cfg, err := config.LoadConfig(boardJSON)
	if err != nil {
		cfg = config.DefaultConfig()
	}
	if cfg.Debug && InitDebugUART() {
		core.SetDebugWriter(debugWrite)
		core.SetDebugEnabled(true)
	}
	if err != nil {
		core.DebugPrintln("[BOOT] board.json: " + err.Error())
	}

	gpio := NewRPGPIODriver()
	core.SetGPIODriver(gpio)

	dds, err := initGenerator(cfg, gpio)
	if err != nil {
		fatal(gpio, cfg, err)
	}

	core.InitCoreCommands()
	core.InitDDSCommands(dds)
	core.GetGlobalDictionary().BuildDictionary()

	fp, err := initPanel(cfg, gpio, dds)
	if err != nil {
		// The generator still works from the host without a panel
		core.DebugPrintln("[BOOT] panel: " + err.Error())
	}

	inputBuffer = protocol.NewFifoBuffer(256)
	outputBuffer = protocol.NewScratchOutput()

	transport = protocol.NewTransport(outputBuffer, core.DispatchCommand)
	transport.SetResetCallback(func() {
		inputBuffer.Reset()
		outputBuffer.Reset()
	})
	// ACKs must reach the host ahead of anything queued after them
	transport.SetFlushCallback(writeUSB)
	core.SetGlobalTransport(transport)

	core.SetResetHandler(func() {
		if machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 1}) != nil {
			return
		}
		if machine.Watchdog.Start() != nil {
			return
		}
		for {
			time.Sleep(time.Millisecond)
		}
	})

	go usbReaderLoop()

	for {
		func() {
			defer func() {
				if r := recover(); r != nil {
					msgErrors++
					inputBuffer.Reset()
					outputBuffer.Reset()
				}
			}()

			UpdateSystemTime()

			if inputBuffer.Available() > 0 {
				data := inputBuffer.Data()
				in := protocol.NewSliceInputBuffer(data)
				transport.Receive(in)
				if consumed := len(data) - in.Available(); consumed > 0 {
					inputBuffer.Pop(consumed)
				}
			}

			if len(outputBuffer.Result()) > 0 {
				writeUSB()
			}

			// Reset only after the ACK for the reset command went out
			core.CheckPendingReset()

			if fp != nil {
				fp.poll(dds)
			}
			core.ProcessTimers()
		}()

		time.Sleep(10 * time.Microsecond)
	}
}

// initGenerator brings up the shared bus and the DDS, then applies the boot
// tuning from the board file.
func initGenerator(cfg *config.MachineConfig, gpio *RPGPIODriver) (*core.DDS, error) {
	spi, err := ConfigureSPI(cfg.Bus, gpio)
	if err != nil {
		return nil, err
	}
	busCfg, err := cfg.PinBus()
	if err != nil {
		return nil, err
	}
	bus, err := core.NewPinBus(gpio, spi, busCfg)
	if err != nil {
		return nil, err
	}
	core.SetBusDriver(bus)

	dds := core.NewDDS(bus, cfg.DDS())
	dds.Init()
	dds.Program(cfg.Generator.StartFrequencyHz, panel.DegreesToRadians(cfg.Generator.StartPhaseDeg))
	return dds, bus.Err()
}

func initPanel(cfg *config.MachineConfig, gpio *RPGPIODriver, dds *core.DDS) (*frontPanel, error) {
	rows, cols, err := cfg.KeypadPins()
	if err != nil {
		return nil, err
	}
	kp, err := panel.NewKeypad(gpio, rows, cols)
	if err != nil {
		return nil, err
	}
	for _, pin := range kp.RowPins() {
		if err := gpio.OnRisingEdge(pin, kp.OnInterrupt); err != nil {
			return nil, err
		}
	}

	blinkPin, err := config.ParsePin(cfg.LEDs.Blink)
	if err != nil {
		return nil, err
	}
	heartPin, err := config.ParsePin(cfg.LEDs.Heartbeat)
	if err != nil {
		return nil, err
	}
	blink, err := panel.NewBlinker(gpio, blinkPin, cfg.LEDs.SlowOnMS, cfg.LEDs.SlowOffMS)
	if err != nil {
		return nil, err
	}
	heartbeat, err := panel.NewHeartbeat(gpio, heartPin, cfg.LEDs.PulseMS, cfg.LEDs.ShortGapMS, cfg.LEDs.LongGapMS)
	if err != nil {
		return nil, err
	}

	UpdateSystemTime()
	blink.Start()
	heartbeat.Start()

	st := dds.State()
	return &frontPanel{
		keypad:    kp,
		entry:     panel.NewEntry(dds.Config().ReferenceClockHz, panel.TuningRequest{FrequencyHz: st.FrequencyHz, PhaseRadians: st.PhaseRadians}),
		blink:     blink,
		heartbeat: heartbeat,
		leds:      cfg.LEDs,
	}, nil
}

// poll feeds a latched key to the entry. The blink LED runs fast while
// digits are pending.
func (fp *frontPanel) poll(dds *core.DDS) {
	key, ok := fp.keypad.LastKey()
	if !ok {
		return
	}
	if req, ok := fp.entry.Press(key); ok {
		dds.Program(req.FrequencyHz, req.PhaseRadians)
	}
	if _, digits := fp.entry.Pending(); digits > 0 {
		fp.blink.SetTiming(fp.leds.FastOnMS, fp.leds.FastOffMS)
	} else {
		fp.blink.SetTiming(fp.leds.SlowOnMS, fp.leds.SlowOffMS)
	}
}

// fatal blinks the board LED rapidly forever
func fatal(gpio *RPGPIODriver, cfg *config.MachineConfig, err error) {
	core.DebugPrintln("[BOOT] " + err.Error())
	led, perr := config.ParsePin(cfg.LEDs.Blink)
	if perr != nil || gpio.ConfigureOutput(led) != nil {
		for {
			time.Sleep(time.Second)
		}
	}
	for on := true; ; on = !on {
		gpio.SetPin(led, on)
		time.Sleep(100 * time.Millisecond)
	}
}

// usbReaderLoop moves received bytes into inputBuffer
func usbReaderLoop() {
	defer func() {
		if r := recover(); r != nil {
			msgErrors++
			time.Sleep(100 * time.Millisecond)
			go usbReaderLoop()
		}
	}()

	for {
		if USBAvailable() > 0 {
			b, err := USBRead()
			if err != nil {
				msgErrors++
				time.Sleep(time.Millisecond)
				continue
			}

			// Data after a disconnect means a new host session
			if usbWasDisconnected {
				usbWasDisconnected = false
				inputBuffer.Reset()
				outputBuffer.Reset()
				transport.Reset()
				consecutiveWriteFailures = 0
			}

			if inputBuffer.Write([]byte{b}) == 0 {
				msgErrors++
				time.Sleep(10 * time.Millisecond)
			}
			continue
		}
		time.Sleep(100 * time.Microsecond)
	}
}

// writeUSB sends outputBuffer. After repeated failures the host is assumed
// gone and pending data is dropped.
func writeUSB() {
	result := outputBuffer.Result()
	for written := 0; written < len(result); {
		n, err := USBWriteBytes(result[written:])
		if err != nil || n == 0 {
			consecutiveWriteFailures++
			if consecutiveWriteFailures > 10 {
				usbWasDisconnected = true
				consecutiveWriteFailures = 0
				outputBuffer.Reset()
				inputBuffer.Reset()
			}
			return
		}
		written += n
	}
	consecutiveWriteFailures = 0
	outputBuffer.Reset()
}
