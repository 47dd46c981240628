package model

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// ArchiveExtension is the suffix of files that can be auto-extracted.
const ArchiveExtension = ".zip"

// DownloadTarget maps a remote file onto its local paths.
//
// Paths are computed by NewDownloadTarget:
//
//	target := NewDownloadTarget(file, "/data/2021/MS/ms_m_2021")
//	// target.Path       = "/data/2021/MS/ms_m_2021/ms_m_2021.zip"
//	// target.ExtractDir = "/data/2021/MS/ms_m_2021/ms_m_2021"
type DownloadTarget struct {
	// ID is the Box file identifier used to build the download URL.
	ID string

	// Name is the remote display name.
	Name string

	// Path is the local file the bytes are written to.
	Path string

	// ExtractDir is the sibling directory an archive is extracted into.
	// Empty for files that are not archives.
	ExtractDir string
}

// NewDownloadTarget computes the local paths for file inside dir.
// Invalid filename characters are replaced with underscores.
func NewDownloadTarget(file File, dir string) DownloadTarget {
	name := sanitizeFileName(file.Name)
	target := DownloadTarget{
		ID:   file.ID,
		Name: file.Name,
		Path: filepath.Join(dir, name),
	}
	if IsArchive(name) {
		target.ExtractDir = filepath.Join(dir, name[:len(name)-len(ArchiveExtension)])
	}
	return target
}

// IsArchive reports whether name ends in the archive extension, ignoring case.
func IsArchive(name string) bool {
	return len(name) > len(ArchiveExtension) &&
		strings.EqualFold(name[len(name)-len(ArchiveExtension):], ArchiveExtension)
}

// CompositeDir returns outputDir/<year>/<STATE>/<compositeFolderName>.
func CompositeDir(outputDir string, year int, state string, composite Folder) string {
	return filepath.Join(StateDir(outputDir, year, state), sanitizeFileName(composite.Name))
}

// StateDir returns outputDir/<year>/<STATE>.
func StateDir(outputDir string, year int, state string) string {
	return filepath.Join(outputDir, strconv.Itoa(year), sanitizeFileName(NormalizeState(state)))
}

var (
	invalidChars   = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	trailingDots   = regexp.MustCompile(`\.+$`)
	repeatedSpaces = regexp.MustCompile(`\s+`)
)

// sanitizeFileName removes or replaces characters that are invalid in file/folder names.
//
// The following transformations are applied:
//   - Invalid characters (<>:"/\|?* and control chars) are replaced with underscore
//   - Trailing dots are removed (Windows limitation)
//   - Multiple whitespace is collapsed to single space
//   - Surrounding whitespace is removed
//
// A name that sanitizes to nothing becomes "_".
func sanitizeFileName(name string) string {
	name = invalidChars.ReplaceAllString(name, "_")
	name = trailingDots.ReplaceAllString(name, "")
	name = repeatedSpaces.ReplaceAllString(name, " ")
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." {
		return "_"
	}
	return name
}
