// Package daemonsig is the Signal Layer (spec.md §4.6): async-signal-safe
// flag setters for "wake now" and "terminate after this cycle", shared
// between the worker goroutine and the OS signal dispatcher.
//
// Go's runtime delivers OS signals to user code through os/signal's channel,
// not through a raw C-style handler function invoked on the signal stack;
// the code below is the narrow, lock-free surface that channel is allowed to
// touch (spec.md §9's "bounded async-signal-safe surface"). It sets atomics
// and logs — it never blocks on anything the reconciliation cycle holds.
package daemonsig

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/opsdaemons/filesyncd/internal/synclog"
)

// Flags are the three control flags (spec.md §3): two mutable booleans
// shared with the signal dispatcher, plus a busy flag that gates wake
// coalescing.
type Flags struct {
	WakeRequested      atomic.Bool
	TerminateRequested atomic.Bool
	DaemonBusy         atomic.Bool
}

// RequestWake is the wake signal's effect (bound to SIGUSR1): if the daemon
// is busy it is logged and dropped; otherwise WakeRequested is set.
func (f *Flags) RequestWake(log *synclog.Logger) {
	if f.DaemonBusy.Load() {
		log.Log(synclog.SignalReceived, "wake signal received but daemon is busy; dropped")

		return
	}

	log.Log(synclog.SignalReceived, "wake signal received")
	f.WakeRequested.Store(true)
}

// RequestTerminate is the terminate signal's effect (bound to SIGTERM).
func (f *Flags) RequestTerminate(log *synclog.Logger) {
	log.Log(synclog.SignalReceived, "terminate signal received")
	f.TerminateRequested.Store(true)
}

// Install registers the daemon's signal dispatcher: SIGUSR1 wakes a sleeping
// cycle, SIGTERM requests termination after the in-flight cycle, SIGCHLD and
// SIGHUP are ignored, everything else retains default disposition. It
// returns a stop function that must be called to release the channel.
func Install(ctx context.Context, flags *Flags, log *synclog.Logger) (stop func()) {
	sigChan := make(chan os.Signal, 4)
	signal.Notify(sigChan, syscall.SIGUSR1, syscall.SIGTERM, syscall.SIGCHLD, syscall.SIGHUP)

	quit := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)

		for {
			select {
			case <-ctx.Done():
				return

			case <-quit:
				return

			case sig := <-sigChan:
				switch sig {
				case syscall.SIGUSR1:
					flags.RequestWake(log)
				case syscall.SIGTERM:
					flags.RequestTerminate(log)
				case syscall.SIGCHLD, syscall.SIGHUP:
					// Explicitly ignored (spec.md §4.6).
				}
			}
		}
	}()

	return func() {
		signal.Stop(sigChan)
		close(quit)
		<-done
	}
}
