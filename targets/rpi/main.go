//go:build linux

// Command rpi runs the generator core on a Raspberry Pi wired directly to the
// DDS board: the shared bus is bit-banged on the header GPIOs, the keypad and
// LEDs work as on the RP2040 build, and control comes over the websocket
// bridge instead of USB.
package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ddsgen/config"
	"ddsgen/core"
	"ddsgen/host/wsbridge"
	"ddsgen/panel"
)

var (
	configPath = flag.String("config", "", "Board JSON (defaults when empty)")
	listen     = flag.String("listen", ":8080", "Websocket bridge address")
	debug      = flag.Bool("debug", false, "Log bus and DDS debug output")
)

func main() {
	flag.Parse()

	cfg := config.DefaultConfig()
	if *configPath != "" {
		data, err := os.ReadFile(*configPath)
		if err != nil {
			log.Fatal(err)
		}
		if cfg, err = config.LoadConfig(data); err != nil {
			log.Fatalf("%s: %v", *configPath, err)
		}
	}
	if *debug || cfg.Debug {
		core.SetDebugWriter(func(s string) { log.Println(s) })
		core.SetDebugEnabled(true)
	}

	pins, err := OpenGPIO()
	if err != nil {
		log.Fatalf("gpio: %v", err)
	}
	defer pins.Close()

	dds, err := initGenerator(cfg, pins)
	if err != nil {
		log.Fatalf("generator: %v", err)
	}
	gen := &localGenerator{dds: dds}

	bridge := wsbridge.New(gen)
	go func() {
		log.Printf("websocket bridge on ws://%s/ws", *listen)
		if err := http.ListenAndServe(*listen, bridge.Handler()); err != nil {
			log.Fatal(err)
		}
	}()

	fp, err := initPanel(cfg, pins, gen)
	if err != nil {
		log.Printf("panel disabled: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	// The core scheduler runs on a 1 MHz tick derived from the wall clock
	start := time.Now()
	tick := time.NewTicker(time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-stop:
			log.Println("shutting down")
			return
		case <-tick.C:
			core.SetTime(uint32(time.Since(start).Microseconds()))
			if fp != nil {
				fp.poll(gen)
			}
			core.ProcessTimers()
		}
	}
}

func initGenerator(cfg *config.MachineConfig, pins *PiGPIO) (*core.DDS, error) {
	sck, err := config.ParsePin(cfg.Bus.SCK)
	if err != nil {
		return nil, err
	}
	sdo, err := config.ParsePin(cfg.Bus.SDO)
	if err != nil {
		return nil, err
	}
	sdi, err := config.ParsePin(cfg.Bus.SDI)
	if err != nil {
		return nil, err
	}
	spi, err := core.NewSoftSPI(pins, sck, sdo, sdi, cfg.Bus.SPIMode, cfg.Bus.SPIFrequency)
	if err != nil {
		return nil, err
	}

	busCfg, err := cfg.PinBus()
	if err != nil {
		return nil, err
	}
	bus, err := core.NewPinBus(pins, spi, busCfg)
	if err != nil {
		return nil, err
	}

	dds := core.NewDDS(bus, cfg.DDS())
	dds.Init()
	dds.Program(cfg.Generator.StartFrequencyHz, panel.DegreesToRadians(cfg.Generator.StartPhaseDeg))
	return dds, bus.Err()
}
