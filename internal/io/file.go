package ioutils

import (
	"errors"
	"io/fs"
	"os"
)

// PartialSuffix is appended to files that are still being written.
const PartialSuffix = ".part"

// EnsureDir creates a directory and all parent directories if they don't exist.
//
// Directories are created with mode 0755 (rwxr-xr-x).
// If the directory already exists, no error is returned.
//
// Example:
//
//	err := EnsureDir("/data/2021/MS/ms_m_2021")
//	// Creates /data, /data/2021, /data/2021/MS and /data/2021/MS/ms_m_2021 if needed
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// Exists reports whether path names an existing file or directory.
//
// Any error other than "does not exist" is treated as existing so that the
// caller errs on the side of not overwriting.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil || !errors.Is(err, fs.ErrNotExist)
}

// CommitFile moves a fully written temporary file into place.
//
// The destination is replaced if it exists. On failure the temporary file is
// removed so no partial data is left under the final name.
func CommitFile(tmpPath, destPath string) error {
	if err := os.Rename(tmpPath, destPath); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

// CommitDir moves a fully populated temporary directory into place,
// replacing any existing directory at destPath.
func CommitDir(tmpPath, destPath string) error {
	if err := os.RemoveAll(destPath); err != nil {
		return err
	}
	return os.Rename(tmpPath, destPath)
}
