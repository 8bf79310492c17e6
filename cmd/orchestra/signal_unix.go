//go:build !windows

package main

import (
	"os"
	"syscall"
)

// terminationSignals stop the server and the interactive loop.
// SIGTERM is what systemd and launchd send on stop.
var terminationSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}
