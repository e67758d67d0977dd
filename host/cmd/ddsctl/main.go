// Command ddsctl tunes the waveform generator over its USB serial link.
//
//	ddsctl -device /dev/ttyACM0                 interactive shell
//	ddsctl -device /dev/ttyACM0 program 1MHz 90 one command, then exit
//	ddsctl -device /dev/ttyACM0 -serve :8080    websocket bridge only
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"ddsgen/host/ddsctl"
)

var (
	device  = flag.String("device", "/dev/ttyACM0", "Serial device path")
	serve   = flag.String("serve", "", "Serve the websocket bridge on this address and do nothing else")
	timeout = flag.Duration("timeout", ddsctl.DefaultResponseTimeout, "Response timeout")
)

func main() {
	flag.Parse()

	client, err := ddsctl.Dial(*device)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: connect %s: %v\n", *device, err)
		os.Exit(1)
	}
	defer client.Close()
	client.SetTimeout(*timeout)

	sh := newShell(client, os.Stdout)

	if *serve != "" {
		if err := sh.listen(*serve); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if flag.NArg() > 0 {
		if _, err := sh.run(flag.Args()); err != nil {
			sh.fail(err)
			os.Exit(1)
		}
		return
	}

	sh.banner(*device)
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(sh.styles.prompt.Render("dds> "))
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		quit, err := sh.exec(line)
		if err != nil {
			sh.fail(err)
		}
		if quit {
			return
		}
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		os.Exit(1)
	}
}
