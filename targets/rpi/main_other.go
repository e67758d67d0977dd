//go:build !linux

package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Fprintln(os.Stderr, "ddsgen-pi drives the Raspberry Pi GPIO header and only runs on Linux")
	os.Exit(1)
}
