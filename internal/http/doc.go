// Package http provides the HTTP client used to fetch Box listing pages and
// download files.
//
// The Client in this package handles:
//   - User-Agent headers and request timeouts
//   - Retry of transient failures with exponential cooldown
//   - Atomic file downloads with progress tracking
//
// Failures are reported as *model.TransportError so callers can tell
// network errors and HTTP status failures apart with errors.As.
//
// # Basic Usage
//
//	client := http.NewClient(http.DefaultOptions(), logger)
//
//	// Fetch a listing page
//	page, err := client.Get(ctx, listingURL)
//
//	// Download file with progress callback
//	n, err := client.DownloadFile(ctx, fileURL, "/data/ms_m_2021.zip", func(written, total int64) {
//	    fmt.Printf("%d / %d\n", written, total)
//	})
package http
