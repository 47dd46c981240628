// Package download provides the download orchestration logic for
// fetching NAIP composites from the NRCS Box share.
//
// # Manager
//
// The Manager resolves (year, state) targets and downloads them:
//
//  1. Resolve the year folder under the root
//  2. Resolve the state folder under the year
//  3. Select the composite folders (all, CIR only or RGB only)
//  4. Download each composite with a FolderDownloader
//  5. Extract .zip archives and delete them (optional)
//
// # Basic Usage
//
//	manager, err := download.NewManager(settings, logger, func(event download.ProgressEvent) {
//	    fmt.Println(event.Message)
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	year := 2021
//	report, err := manager.Download(ctx, &year, "MS")
//
// A nil year or an empty state widens the run to every year or every
// state. Bulk runs continue past failing targets; their errors are in
// RunReport.Errors.
//
// # Idempotence
//
// Files already on disk, or archives whose extraction directory exists,
// are skipped unless Policy.Overwrite is set. Downloads are written to a
// temporary file first so an interrupted run never leaves a truncated file
// under the final name.
//
// # Progress Tracking
//
// Progress is reported via a callback function that receives ProgressEvent:
//
//	type ProgressEvent struct {
//	    Message string
//	    Level   ProgressLevel // Info, Verbose, Warning, Error, Success
//	}
//
// Byte and file counters can be polled with Manager.GetProgress.
package download
