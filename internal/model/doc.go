// Package model defines the core data structures used throughout
// the naip-downloader application.
//
// # Listings
//
// A FolderListing is one parsed page of a Box shared folder. Its Items are
// tagged folders or files:
//
//	for _, folder := range listing.Folders() {
//	    fmt.Println(folder.Name, folder.FilesCount)
//	}
//
// # Composites
//
// State folders contain composite folders whose names encode the band
// combination (<state>_m, <state>_c, <state>_n). SelectComposites applies the
// multispectral exclusivity rule and the CIR/RGB filter:
//
//	composites := model.SelectComposites(children, "MS", model.FilterAll)
//
// # Local paths
//
// DownloadTarget maps a remote file onto outputDir/<year>/<STATE>/<composite>/<name>
// and, for archives, the sibling extraction directory.
//
// # Errors
//
// errors.go holds the error taxonomy shared by every package: TransportError,
// ParseError, NotFoundError, ArchiveError and ValidationError.
package model
