package wake

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/opsdaemons/filesyncd/internal/config"
	"github.com/opsdaemons/filesyncd/internal/daemonsig"
	"github.com/opsdaemons/filesyncd/internal/synclog"
)

type fakeSink struct {
	lines []string
}

func (f *fakeSink) Log(line string) error {
	f.lines = append(f.lines, line)

	return nil
}

func (f *fakeSink) Close() error { return nil }

func TestWait_ReturnsEarlyOnWakeRequested(t *testing.T) {
	t.Parallel()

	var flags daemonsig.Flags
	flags.WakeRequested.Store(true)

	sink := &fakeSink{}
	logger := synclog.NewWithSink(sink, false, nil)
	cfg := &config.Config{SleepSeconds: 60}

	start := time.Now()
	Wait(context.Background(), &flags, cfg, logger)
	elapsed := time.Since(start)

	require.Less(t, elapsed, 2*time.Second)
	require.False(t, flags.WakeRequested.Load())
	require.Contains(t, sink.lines[0], "DAEMON_WAKE_UP_BY_SIGNAL")
}

func TestWait_WakeRequestedMidSleep(t *testing.T) {
	t.Parallel()

	var flags daemonsig.Flags
	sink := &fakeSink{}
	logger := synclog.NewWithSink(sink, false, nil)
	cfg := &config.Config{SleepSeconds: 60}

	go func() {
		time.Sleep(1200 * time.Millisecond)
		flags.WakeRequested.Store(true)
	}()

	start := time.Now()
	Wait(context.Background(), &flags, cfg, logger)
	elapsed := time.Since(start)

	require.Less(t, elapsed, 4*time.Second)
	require.Contains(t, sink.lines[0], "DAEMON_WAKE_UP_BY_SIGNAL")
}

func TestWait_DefaultSleep_CancelledBeforeTimerTag(t *testing.T) {
	t.Parallel()

	var flags daemonsig.Flags
	sink := &fakeSink{}
	logger := synclog.NewWithSink(sink, false, nil)
	cfg := &config.Config{SleepSeconds: config.DefaultSleepSeconds}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		time.Sleep(500 * time.Millisecond)
		cancel()
	}()

	Wait(ctx, &flags, cfg, logger)
	// Context cancellation aborts the default-length sleep before the timer
	// tag is logged.
	require.Empty(t, sink.lines)
}

func TestWait_TimerElapses_CustomTag(t *testing.T) {
	t.Parallel()

	var flags daemonsig.Flags
	sink := &fakeSink{}
	logger := synclog.NewWithSink(sink, false, nil)
	cfg := &config.Config{SleepSeconds: 1}

	Wait(context.Background(), &flags, cfg, logger)

	require.Len(t, sink.lines, 1)
	require.Contains(t, sink.lines[0], "DAEMON_WAKE_UP_BY_TIMER_CUSTOM_TIME")
}

func TestWait_ContextCancelled_ReturnsWithoutTimerLog(t *testing.T) {
	t.Parallel()

	var flags daemonsig.Flags
	sink := &fakeSink{}
	logger := synclog.NewWithSink(sink, false, nil)
	cfg := &config.Config{SleepSeconds: 60}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	Wait(ctx, &flags, cfg, logger)

	require.Empty(t, sink.lines)
}
