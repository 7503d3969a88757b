// Package lifecycle is the Daemon Lifecycle (spec.md §4.7): double-fork
// detachment, session leadership, working directory, file-descriptor
// hygiene, /dev/null redirection, and the perpetual reconciliation loop.
//
// Go's runtime is multi-threaded from startup (the scheduler, GC, and
// sysmon all run on OS threads), so calling the raw fork(2) syscall directly
// mid-process is unsafe: only the calling thread survives into the child,
// while the runtime's bookkeeping for every other thread does not. The
// idiomatic Go substitute — and the one used here — is to re-exec the
// daemon's own binary as a fresh, Setsid'd child process and let the parent
// exit; doing this twice reproduces the double-fork's guarantee that the
// final process is not a session leader. A side effect of re-exec is that
// the new process starts with a clean descriptor table (Go marks runtime
// internal fds CLOEXEC), satisfying spec.md §4.7's "close every descriptor
// from 3 up to OPEN_MAX" without needing to enumerate them by hand.
package lifecycle

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/opsdaemons/filesyncd/internal/config"
	"github.com/opsdaemons/filesyncd/internal/daemonsig"
	"github.com/opsdaemons/filesyncd/internal/reconciler"
	"github.com/opsdaemons/filesyncd/internal/synclog"
	"github.com/opsdaemons/filesyncd/internal/wake"
	"github.com/spf13/afero"
)

// stageEnvVar marks which re-exec generation the running process is: unset
// for the original foreground invocation, "1" for the session-leader child,
// "2" for the final, non-session-leader grandchild that becomes the daemon.
const stageEnvVar = "FILESYNCD_DAEMON_STAGE"

// Result tells the caller what to do once Detach returns successfully.
type Result int

const (
	// Continue means this process should proceed into Run.
	Continue Result = iota
	// ExitParent means this process has finished its job (spawning the next
	// generation) and must exit(0) immediately without entering Run.
	ExitParent
)

// Detach performs the Foreground -> Detaching transition. In debug mode it
// is a no-op that returns Continue. Otherwise it re-execs through the two
// stages described above, returning ExitParent for the original process and
// the intermediate session leader, and Continue for the final daemon
// process (after umask(0), chdir("/"), and /dev/null redirection).
func Detach(cfg *config.Config, log *synclog.Logger) (Result, error) {
	if cfg.Debug {
		return Continue, nil
	}

	switch os.Getenv(stageEnvVar) {
	case "":
		if err := reexec("1"); err != nil {
			return Continue, fmt.Errorf("failed to fork session-leader child: %w", err)
		}

		return ExitParent, nil

	case "1":
		if err := reexec("2"); err != nil {
			return Continue, fmt.Errorf("failed to fork daemon grandchild: %w", err)
		}

		return ExitParent, nil

	case "2":
		unix.Umask(0)

		if err := os.Chdir("/"); err != nil {
			return Continue, fmt.Errorf("failed to chdir to /: %w", err)
		}

		return Continue, nil

	default:
		return Continue, fmt.Errorf("unrecognized %s=%q", stageEnvVar, os.Getenv(stageEnvVar))
	}
}

// reexec spawns the current binary with the same arguments, stdio
// redirected to /dev/null, and stageEnvVar set to nextStage. The first
// generation additionally becomes a session leader via Setsid.
func reexec(nextStage string) error {
	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", os.DevNull, err)
	}
	defer devNull.Close()

	cmd := exec.Command(os.Args[0], os.Args[1:]...)
	cmd.Env = append(os.Environ(), stageEnvVar+"="+nextStage)
	cmd.Stdin = devNull
	cmd.Stdout = devNull
	cmd.Stderr = devNull
	cmd.Dir = "/"

	if nextStage == "1" {
		cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	}

	return cmd.Start() //nolint:wrapcheck
}

// Run enters the Running state: a perpetual cycle of check-terminate,
// wait-for-wake, reconcile, log-complete, until terminate_requested is
// observed at the top of a cycle, at which point it returns.
func Run(ctx context.Context, fsys afero.Fs, cfg *config.Config, flags *daemonsig.Flags, log *synclog.Logger) {
	log.Log(synclog.DaemonInit, fmt.Sprintf(
		"daemon running: source=%q destination=%q recursive=%t sleep=%ds big-file-threshold=%dMB",
		cfg.SourceRoot, cfg.DestRoot, cfg.Recursive, cfg.SleepSeconds, cfg.BigFileThresholdMB,
	))

	for {
		if flags.TerminateRequested.Load() {
			log.Log(synclog.DaemonWorkInfo, "terminate requested; exiting")

			return
		}

		wake.Wait(ctx, flags, cfg, log)

		if ctx.Err() != nil {
			return
		}

		flags.DaemonBusy.Store(true)

		if err := reconciler.Reconcile(fsys, cfg, log); err != nil {
			log.Log(synclog.FileOperationError, fmt.Sprintf("reconciliation cycle failed: %v", err))
		}

		flags.DaemonBusy.Store(false)

		log.Log(synclog.DaemonWorkInfo, "reconciliation cycle complete")
	}
}
