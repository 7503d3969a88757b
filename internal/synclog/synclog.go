// Package synclog is the Structured Logger (spec.md §4.8): one-line records
// routed to the host syslog facility under a closed set of operation tags,
// duplicated to standard output in debug mode.
//
// The syslog coupling is isolated here so the rest of the daemon can be
// tested against an in-memory Sink instead of a real syslogd.
package synclog

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/RackSec/srslog"
	"github.com/lmittmann/tint"
)

// OpTag is one of the closed set of operation tags recognized by filesyncd's
// logger (spec.md §4.8).
type OpTag string

const (
	DaemonInit              OpTag = "DAEMON_INIT"
	DaemonInitError         OpTag = "DAEMON_INIT_ERROR"
	DaemonSleep             OpTag = "DAEMON_SLEEP"
	DaemonWakeUpBySignal    OpTag = "DAEMON_WAKE_UP_BY_SIGNAL"
	DaemonWakeUpDefaultTime OpTag = "DAEMON_WAKE_UP_BY_TIMER_DEFAULT_TIME"
	DaemonWakeUpCustomTime  OpTag = "DAEMON_WAKE_UP_BY_TIMER_CUSTOM_TIME"
	DaemonWorkInfo          OpTag = "DAEMON_WORK_INFO"
	SignalReceived          OpTag = "SIGNAL_RECEIVED"
	FileOperationInfo       OpTag = "FILE_OPERATION_INFO"
	FileOperationError      OpTag = "FILE_OPERATION_ERROR"

	syslogIdentity = "file_sync_daemon"
)

// Sink receives one already-formatted log line per call. A real Logger's
// sink writes to syslog; tests substitute an in-memory Sink and assert on
// the lines it collected.
type Sink interface {
	Log(line string) error
	Close() error
}

// Logger formats and dispatches one-line operational records.
type Logger struct {
	sink  Sink
	debug bool
	out   io.Writer
	slog  *slog.Logger
}

// New builds a Logger that writes to syslog (identity "file_sync_daemon",
// owner-user facility, informational priority). In debug mode, lines are
// additionally duplicated to stdout via a tint-colored slog handler.
func New(debug bool, stdout io.Writer) (*Logger, error) {
	writer, err := srslog.Dial("", "", srslog.LOG_INFO|srslog.LOG_USER, syslogIdentity)
	if err != nil {
		return nil, fmt.Errorf("failed to dial syslog: %w", err)
	}

	return newWithSink(&syslogSink{writer: writer}, debug, stdout), nil
}

// NewWithSink builds a Logger against an arbitrary Sink, for tests.
func NewWithSink(sink Sink, debug bool, stdout io.Writer) *Logger {
	return newWithSink(sink, debug, stdout)
}

func newWithSink(sink Sink, debug bool, stdout io.Writer) *Logger {
	l := &Logger{
		sink:  sink,
		debug: debug,
		out:   stdout,
	}

	if debug && stdout != nil {
		l.slog = slog.New(tint.NewHandler(stdout, &tint.Options{
			TimeFormat: time.TimeOnly,
		}))
	}

	return l
}

// Log formats "<local-time ISO> | <op_tag> | <message>" at whole-second
// resolution, emits it to syslog, and in debug mode duplicates it to stdout.
func (l *Logger) Log(tag OpTag, message string) {
	ts := time.Now().Truncate(time.Second).Format("2006-01-02T15:04:05")
	line := fmt.Sprintf("%s | %s | %s", ts, tag, message)

	if err := l.sink.Log(line); err != nil && l.debug && l.out != nil {
		fmt.Fprintf(l.out, "%s | SYSLOG_ERROR | failed to write to syslog: %v\n", ts, err)
	}

	if l.debug && l.slog != nil {
		l.slog.Info(message, "op", string(tag))
	}
}

// Close releases the underlying syslog connection.
func (l *Logger) Close() error {
	return l.sink.Close()
}

type syslogSink struct {
	writer *srslog.Writer
}

func (s *syslogSink) Log(line string) error {
	return s.writer.Info(line) //nolint:wrapcheck
}

func (s *syslogSink) Close() error {
	return s.writer.Close() //nolint:wrapcheck
}
