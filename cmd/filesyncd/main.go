// Command filesyncd is a one-way directory-mirroring background daemon: it
// periodically reconciles a destination tree to match a source tree,
// copying new or stale files, deleting orphans, and pruning directories
// left empty by those deletions.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/afero"

	"github.com/opsdaemons/filesyncd/internal/daemonsig"
	"github.com/opsdaemons/filesyncd/internal/lifecycle"
	"github.com/opsdaemons/filesyncd/internal/synclog"
)

const (
	exitCodeSuccess = 0
	exitCodeFailure = 1
)

func main() {
	os.Exit(run(os.Args[1:], afero.NewOsFs()))
}

func run(args []string, fsys afero.Fs) int {
	cfg, fs, err := parseArgs(args, fsys, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n\n", err)
		fs.Usage()

		return exitCodeFailure
	}

	if err := validatePaths(fsys, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n\n", err)

		return exitCodeFailure
	}

	log, err := synclog.New(cfg.Debug, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: failed to initialize logger: %v\n\n", err)

		return exitCodeFailure
	}
	defer log.Close()

	result, err := lifecycle.Detach(cfg, log)
	if err != nil {
		log.Log(synclog.DaemonInitError, fmt.Sprintf("daemonization failed: %v", err))

		return exitCodeFailure
	}

	if result == lifecycle.ExitParent {
		return exitCodeSuccess
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var flags daemonsig.Flags

	stop := daemonsig.Install(ctx, &flags, log)
	defer stop()

	lifecycle.Run(ctx, fsys, cfg, &flags, log)

	return exitCodeSuccess
}
