//go:build windows

package main

import (
	"os"
)

// terminationSignals stop the server and the interactive loop (Ctrl+C).
var terminationSignals = []os.Signal{os.Interrupt}
