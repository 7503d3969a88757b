package daemonsig

import (
	"bytes"
	"context"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

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

func TestRequestWake_SetsFlagWhenNotBusy(t *testing.T) {
	t.Parallel()

	var flags Flags
	logger := synclog.NewWithSink(&fakeSink{}, false, nil)

	flags.RequestWake(logger)

	require.True(t, flags.WakeRequested.Load())
}

func TestRequestWake_DroppedWhenBusy(t *testing.T) {
	t.Parallel()

	var flags Flags
	flags.DaemonBusy.Store(true)
	sink := &fakeSink{}
	logger := synclog.NewWithSink(sink, false, nil)

	flags.RequestWake(logger)

	require.False(t, flags.WakeRequested.Load())
	require.Contains(t, sink.lines[0], "busy")
}

func TestRequestTerminate_SetsFlag(t *testing.T) {
	t.Parallel()

	var flags Flags
	logger := synclog.NewWithSink(&fakeSink{}, false, nil)

	flags.RequestTerminate(logger)

	require.True(t, flags.TerminateRequested.Load())
}

func TestInstall_SIGUSR1SetsWakeRequested(t *testing.T) {
	var flags Flags
	var out bytes.Buffer
	logger := synclog.NewWithSink(&fakeSink{}, true, &out)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := Install(ctx, &flags, logger)
	defer stop()

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGUSR1))

	require.Eventually(t, func() bool {
		return flags.WakeRequested.Load()
	}, time.Second, 10*time.Millisecond)
}

func TestInstall_SIGTERMSetsTerminateRequested(t *testing.T) {
	var flags Flags
	logger := synclog.NewWithSink(&fakeSink{}, false, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := Install(ctx, &flags, logger)
	defer stop()

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGTERM))

	require.Eventually(t, func() bool {
		return flags.TerminateRequested.Load()
	}, time.Second, 10*time.Millisecond)
}

func TestInstall_StopReleasesDispatcher(t *testing.T) {
	var flags Flags
	logger := synclog.NewWithSink(&fakeSink{}, false, nil)

	ctx := context.Background()
	stop := Install(ctx, &flags, logger)
	stop()
}
