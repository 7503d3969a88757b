// Package scanner implements the Tree Scanner (spec.md §4.3): a flat list of
// file descriptor records for one tree, each annotated with the path it
// would have on the opposite side under the mirror bijection (spec.md §3).
package scanner

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/opsdaemons/filesyncd/internal/pathutil"
	"github.com/opsdaemons/filesyncd/internal/synclog"
)

// FileRecord describes one scanned regular file (spec.md §3).
type FileRecord struct {
	// Path is the file's absolute location on its own side.
	Path string
	// MirrorPath is the absolute location it would occupy on the opposite
	// side, precomputed under the (root, oppositeRoot) bijection.
	MirrorPath string
	// Mtime is the last-modification time, whole-second resolution.
	Mtime time.Time
	// Size is the file length in bytes.
	Size int64
}

// Result is an unordered set of file descriptor records for one root.
type Result []FileRecord

// Scan walks root depth-first and returns a record for every regular file
// found. Directories are recursed into only when recursive is true; they are
// never themselves emitted as records. Entries "." and ".." are never
// visited (afero/os directory reads never yield them). Open failures on a
// subdirectory are logged and that subtree is skipped, not fatal.
func Scan(fsys afero.Fs, root, oppositeRoot string, recursive bool, log *synclog.Logger) Result {
	var out Result

	scanDir(fsys, root, oppositeRoot, "", recursive, log, &out)

	return out
}

func scanDir(fsys afero.Fs, root, oppositeRoot, relPrefix string, recursive bool, log *synclog.Logger, out *Result) {
	dirPath := root
	if relPrefix != "" {
		dirPath = filepath.Join(root, relPrefix)
	}

	entries, err := afero.ReadDir(fsys, dirPath)
	if err != nil {
		if log != nil {
			log.Log(synclog.FileOperationError, "failed to open directory for scanning: "+dirPath+": "+err.Error())
		}

		return
	}

	for _, entry := range entries {
		name := entry.Name()
		rel := name
		if relPrefix != "" {
			rel = filepath.Join(relPrefix, name)
		}

		full := filepath.Join(root, rel)

		if isRegularFile(fsys, full, entry) {
			size, mtime, err := statFile(fsys, full)
			if err != nil {
				if log != nil {
					log.Log(synclog.FileOperationError, "failed to stat during scan: "+full+": "+err.Error())
				}

				continue
			}

			*out = append(*out, FileRecord{
				Path:       full,
				MirrorPath: filepath.Join(oppositeRoot, rel),
				Mtime:      mtime,
				Size:       size,
			})

			continue
		}

		if !entry.IsDir() {
			// Symlink, socket, device, etc. — not materialized as a record.
			continue
		}

		if !recursive {
			continue
		}

		scanDir(fsys, root, oppositeRoot, rel, recursive, log, out)
	}
}

// isRegularFile reports whether full names a regular file. It classifies by
// the directory entry's own mode as returned by the directory read, which
// does not follow symlinks: a symlink is neither recursed into nor emitted,
// whatever its target is. The reconciler's pruning walk classifies
// directories from the same kind of entry.
func isRegularFile(fsys afero.Fs, full string, entry os.FileInfo) bool {
	if entry.IsDir() {
		return false
	}

	return entry.Mode().IsRegular()
}

func statFile(fsys afero.Fs, full string) (int64, time.Time, error) {
	size, err := pathutil.FileSize(fsys, full)
	if err != nil {
		return 0, time.Time{}, err
	}

	mtime, err := pathutil.Mtime(fsys, full)
	if err != nil {
		return 0, time.Time{}, err
	}

	return size, mtime, nil
}
