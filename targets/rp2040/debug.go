//go:build rp2040

package main

import "machine"

// Debug output goes to UART0 on GPIO0 (TX) / GPIO1 (RX) at 115200 baud,
// keeping the USB port free for the host protocol.
var debugUART *machine.UART

// InitDebugUART routes core.DebugPrintln to UART0
func InitDebugUART() bool {
	uart := machine.UART0
	err := uart.Configure(machine.UARTConfig{
		BaudRate: 115200,
		TX:       machine.GPIO0,
		RX:       machine.GPIO1,
	})
	if err != nil {
		return false
	}
	debugUART = uart
	return true
}

func debugWrite(s string) {
	if debugUART == nil {
		return
	}
	debugUART.Write([]byte(s))
	debugUART.Write([]byte("\r\n"))
}
