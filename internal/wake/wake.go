// Package wake implements the Wake Controller (spec.md §4.5): a cooperative
// timer that sleeps up to the configured number of seconds but returns
// early when the Signal Layer has set wake_requested.
package wake

import (
	"context"
	"fmt"
	"time"

	"github.com/opsdaemons/filesyncd/internal/config"
	"github.com/opsdaemons/filesyncd/internal/daemonsig"
	"github.com/opsdaemons/filesyncd/internal/synclog"
)

// Wait blocks the calling goroutine up to cfg.SleepSeconds, polling
// flags.WakeRequested once per second. If the flag is observed true it is
// cleared and Wait returns immediately, logging a wake-by-signal event.
// Otherwise Wait returns when the timer elapses, logging a wake-by-timer
// event tagged by whether the configured sleep equals the hard-coded
// default. Wait also returns early if ctx is cancelled, without logging a
// wake event, so the daemon can shut down without waiting out a full cycle.
func Wait(ctx context.Context, flags *daemonsig.Flags, cfg *config.Config, log *synclog.Logger) {
	for elapsed := 0; elapsed < cfg.SleepSeconds; elapsed++ {
		if flags.WakeRequested.CompareAndSwap(true, false) {
			log.Log(synclog.DaemonWakeUpBySignal, "daemon woken by signal")

			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}

	if cfg.IsDefaultSleep() {
		log.Log(synclog.DaemonWakeUpDefaultTime,
			fmt.Sprintf("daemon woken by timer with default sleep time: %d seconds", cfg.SleepSeconds))

		return
	}

	log.Log(synclog.DaemonWakeUpCustomTime,
		fmt.Sprintf("daemon woken by timer with custom sleep time: %d seconds", cfg.SleepSeconds))
}
