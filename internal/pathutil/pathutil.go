// Package pathutil provides the Path Primitives (spec.md §4.1): thin,
// synchronous wrappers over filesystem syscalls, mediated through an
// afero.Fs so the rest of the daemon is testable against an in-memory tree.
package pathutil

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
)

const (
	// DirPerm is the mode new directories are created with (umask-filtered).
	DirPerm = 0o777

	// FilePerm is the mode new files are created with (umask-filtered).
	FilePerm = 0o666
)

// Exists reports whether any inode exists at p.
func Exists(fsys afero.Fs, p string) bool {
	_, err := fsys.Stat(p)

	return err == nil
}

// IsDirectory reports whether p exists and is a directory.
func IsDirectory(fsys afero.Fs, p string) bool {
	info, err := fsys.Stat(p)
	if err != nil {
		return false
	}

	return info.IsDir()
}

// FileSize returns the size in bytes of the regular file at p.
func FileSize(fsys afero.Fs, p string) (int64, error) {
	info, err := fsys.Stat(p)
	if err != nil {
		return 0, err //nolint:wrapcheck
	}

	return info.Size(), nil
}

// Mtime returns the last-modification time of p, truncated to whole seconds.
func Mtime(fsys afero.Fs, p string) (time.Time, error) {
	info, err := fsys.Stat(p)
	if err != nil {
		return time.Time{}, err //nolint:wrapcheck
	}

	return info.ModTime().Truncate(time.Second), nil
}

// Mkdir creates a single directory at p with DirPerm.
func Mkdir(fsys afero.Fs, p string) error {
	return fsys.Mkdir(p, DirPerm) //nolint:wrapcheck
}

// Rmdir removes the empty directory at p.
func Rmdir(fsys afero.Fs, p string) error {
	return fsys.Remove(p) //nolint:wrapcheck
}

// Unlink removes the file at p.
func Unlink(fsys afero.Fs, p string) error {
	return fsys.Remove(p) //nolint:wrapcheck
}

// SetMtime sets both the access and modification times of p to t.
func SetMtime(fsys afero.Fs, p string, t time.Time) error {
	return fsys.Chtimes(p, t, t) //nolint:wrapcheck
}

// CreateSubdirectories ensures every ancestor directory along p exists,
// given p is a destination *file* path. This is the only place ancestor
// directories are created (spec.md §4.1).
func CreateSubdirectories(fsys afero.Fs, p string) error {
	dir := filepath.Dir(p)
	if dir == "." || dir == string(filepath.Separator) {
		return nil
	}

	parts := strings.Split(filepath.ToSlash(dir), "/")
	prefix := ""

	if filepath.IsAbs(dir) {
		prefix = "/"
	}

	for _, part := range parts {
		if part == "" {
			continue
		}

		if prefix == "" || prefix == "/" {
			prefix += part
		} else {
			prefix = prefix + "/" + part
		}

		if IsDirectory(fsys, prefix) {
			continue
		}

		if err := Mkdir(fsys, prefix); err != nil && !errors.Is(err, os.ErrExist) {
			return err
		}
	}

	return nil
}

// IsEmptyDirectory reports whether p is a directory containing no entries
// (besides "." and ".." which afero.ReadDir never returns).
func IsEmptyDirectory(fsys afero.Fs, p string) (bool, error) {
	entries, err := afero.ReadDir(fsys, p)
	if err != nil {
		return false, err //nolint:wrapcheck
	}

	return len(entries) == 0, nil
}
