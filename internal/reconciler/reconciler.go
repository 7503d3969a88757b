// Package reconciler implements the Reconciler (spec.md §4.4): it diffs two
// scan results and issues copy/delete/mkdir actions so that destination
// becomes a structural replica of source.
package reconciler

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/opsdaemons/filesyncd/internal/config"
	"github.com/opsdaemons/filesyncd/internal/copyengine"
	"github.com/opsdaemons/filesyncd/internal/pathutil"
	"github.com/opsdaemons/filesyncd/internal/scanner"
	"github.com/opsdaemons/filesyncd/internal/synclog"
)

// Reconcile runs one reconciliation cycle: scan source, scan destination,
// delete orphans, copy missing/stale files, and prune directories left
// empty by the delete phase.
func Reconcile(fsys afero.Fs, cfg *config.Config, log *synclog.Logger) error {
	src := scanner.Scan(fsys, cfg.SourceRoot, cfg.DestRoot, cfg.Recursive, log)

	if len(src) == 0 {
		// Deliberate design choice (spec.md §9 open question, preserved
		// verbatim): an empty source never triggers deletion of the
		// destination, even though this means stale destination orphans
		// survive an accidentally-empty source mount.
		log.Log(synclog.DaemonSleep, "no files found in source directory; skipping cycle to avoid destination wipe")

		return nil
	}

	dst := scanner.Scan(fsys, cfg.DestRoot, cfg.SourceRoot, cfg.Recursive, log)

	deleteOrphans(fsys, dst, log)

	if len(dst) == 0 {
		for _, s := range src {
			copyFile(fsys, cfg, s, log)
		}

		return nil
	}

	dstByPath := make(map[string]scanner.FileRecord, len(dst))
	for _, d := range dst {
		dstByPath[d.Path] = d
	}

	for _, s := range src {
		d, found := dstByPath[s.MirrorPath]
		if !found {
			copyFile(fsys, cfg, s, log)

			continue
		}

		if s.Size != d.Size || !s.Mtime.Equal(d.Mtime) {
			copyFile(fsys, cfg, s, log)
		}
	}

	pruneEmptyDirectories(fsys, cfg.DestRoot, log)

	return nil
}

func copyFile(fsys afero.Fs, cfg *config.Config, s scanner.FileRecord, log *synclog.Logger) {
	if err := copyengine.CopyFile(fsys, s, s.MirrorPath, cfg.BigFileThresholdBytes()); err != nil {
		log.Log(synclog.FileOperationError, fmt.Sprintf("failed to copy %q to %q: %v", s.Path, s.MirrorPath, err))

		return
	}

	log.Log(synclog.FileOperationInfo, fmt.Sprintf("copied %q to %q", s.Path, s.MirrorPath))
}

func deleteOrphans(fsys afero.Fs, dst scanner.Result, log *synclog.Logger) {
	for _, d := range dst {
		if pathutil.Exists(fsys, d.MirrorPath) {
			continue
		}

		if err := pathutil.Unlink(fsys, d.Path); err != nil {
			log.Log(synclog.FileOperationError, fmt.Sprintf("failed to delete orphan %q: %v", d.Path, err))

			continue
		}

		log.Log(synclog.FileOperationInfo, fmt.Sprintf("deleted orphan %q", d.Path))
	}
}

// pruneEmptyDirectories walks destRoot depth-first and removes every
// directory (other than destRoot itself) whose entries reduce to none,
// applying recursively so a directory emptied by a pruned child is itself
// prunable.
func pruneEmptyDirectories(fsys afero.Fs, destRoot string, log *synclog.Logger) {
	pruneDir(fsys, destRoot, destRoot, log)
}

// pruneDir reports whether dir is empty after pruning; non-root empty
// directories are removed as a side effect before returning true.
func pruneDir(fsys afero.Fs, dir, root string, log *synclog.Logger) bool {
	entries, err := afero.ReadDir(fsys, dir)
	if err != nil {
		log.Log(synclog.FileOperationError, fmt.Sprintf("failed to list %q during pruning: %v", dir, err))

		return false
	}

	for _, entry := range entries {
		if entry.IsDir() {
			pruneDir(fsys, filepath.Join(dir, entry.Name()), root, log)
		}
	}

	empty, err := pathutil.IsEmptyDirectory(fsys, dir)
	if err != nil {
		log.Log(synclog.FileOperationError, fmt.Sprintf("failed to list %q during pruning: %v", dir, err))

		return false
	}

	if !empty {
		return false
	}

	if dir == root {
		return true
	}

	if err := pathutil.Rmdir(fsys, dir); err != nil {
		log.Log(synclog.FileOperationError, fmt.Sprintf("failed to prune empty directory %q: %v", dir, err))

		return false
	}

	log.Log(synclog.FileOperationInfo, fmt.Sprintf("pruned empty directory %q", dir))

	return true
}
