package ioutils

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/handiism/naip-downloader/internal/model"
)

// extractingSuffix marks a directory that is still being populated.
const extractingSuffix = ".extracting"

// ExtractZip extracts every entry of the zip archive at archivePath into
// destDir, preserving the entries' relative paths.
//
// Entries are first written to destDir + ".extracting" which is renamed to
// destDir only once every entry has been written, so an interrupted run
// never leaves a half-populated destDir behind. An existing destDir is
// replaced.
//
// Errors wrap model.ErrInvalidArchive when the file is not a readable zip
// (bad header, bad checksum, unsupported method, entry escaping destDir).
// Any other error is a filesystem failure.
//
// Returns the number of regular files extracted.
//
// Example:
//
//	n, err := ExtractZip("/data/2021/MS/ms_m_2021/ms_m_2021.zip", "/data/2021/MS/ms_m_2021/ms_m_2021")
//	if errors.Is(err, model.ErrInvalidArchive) {
//	    // keep the archive, warn the user
//	}
func ExtractZip(archivePath, destDir string) (int, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		if r != nil {
			// insecure entry names are reported alongside a usable reader
			_ = r.Close()
			return 0, fmt.Errorf("%w: %v", model.ErrInvalidArchive, err)
		}
		if isZipFormatError(err) {
			return 0, fmt.Errorf("%w: %v", model.ErrInvalidArchive, err)
		}
		return 0, err
	}
	defer r.Close()

	tmpDir := destDir + extractingSuffix
	if err := os.RemoveAll(tmpDir); err != nil {
		return 0, err
	}
	if err := EnsureDir(tmpDir); err != nil {
		return 0, err
	}

	count := 0
	for _, entry := range r.File {
		written, err := extractEntry(entry, tmpDir)
		if err != nil {
			_ = os.RemoveAll(tmpDir)
			return 0, err
		}
		if written {
			count++
		}
	}

	if err := CommitDir(tmpDir, destDir); err != nil {
		_ = os.RemoveAll(tmpDir)
		return 0, err
	}
	return count, nil
}

// extractEntry writes a single entry below root. It reports whether a
// regular file was written.
func extractEntry(entry *zip.File, root string) (bool, error) {
	target, err := entryPath(root, entry.Name)
	if err != nil {
		return false, err
	}

	if entry.FileInfo().IsDir() {
		return false, EnsureDir(target)
	}
	if err := EnsureDir(filepath.Dir(target)); err != nil {
		return false, err
	}

	src, err := entry.Open()
	if err != nil {
		if isZipFormatError(err) {
			return false, fmt.Errorf("%w: %s: %v", model.ErrInvalidArchive, entry.Name, err)
		}
		return false, err
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return false, err
	}

	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		if isZipFormatError(err) {
			return false, fmt.Errorf("%w: %s: %v", model.ErrInvalidArchive, entry.Name, err)
		}
		return false, err
	}
	return true, dst.Close()
}

// entryPath joins an entry name onto root, rejecting names that would
// escape it.
func entryPath(root, name string) (string, error) {
	target := filepath.Join(root, filepath.FromSlash(name))
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(name) {
		return "", fmt.Errorf("%w: entry %q escapes destination", model.ErrInvalidArchive, name)
	}
	return target, nil
}

func isZipFormatError(err error) bool {
	return errors.Is(err, zip.ErrFormat) ||
		errors.Is(err, zip.ErrChecksum) ||
		errors.Is(err, zip.ErrAlgorithm) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}
