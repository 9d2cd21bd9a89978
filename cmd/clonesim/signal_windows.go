//go:build windows

package main

import (
	"os"
	"os/signal"
)

// notifySignals subscribes ch to the signals that should cancel an
// in-flight simulation. Windows has no SIGTERM, so only Ctrl+C counts.
func notifySignals(ch chan<- os.Signal) {
	signal.Notify(ch, os.Interrupt)
}
