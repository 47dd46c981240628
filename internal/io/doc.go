// Package ioutils provides file system utilities for the naip-downloader.
//
// This package contains functions for:
//   - Directory creation and existence checks
//   - Atomic placement of downloaded files and extracted directories
//   - Zip archive extraction
//
// # File Operations
//
//	// Ensure directory exists
//	err := ioutils.EnsureDir("/data/2021/MS/ms_m_2021")
//
//	// Move a finished download into place
//	err := ioutils.CommitFile(path+ioutils.PartialSuffix, path)
//
// # Archives
//
// ExtractZip unpacks into a temporary sibling directory and renames it once
// complete. Unreadable archives are reported with model.ErrInvalidArchive:
//
//	n, err := ioutils.ExtractZip(zipPath, extractDir)
//	if errors.Is(err, model.ErrInvalidArchive) {
//	    // keep the archive and warn
//	}
package ioutils
