package download

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/handiism/naip-downloader/internal/box"
	ioutils "github.com/handiism/naip-downloader/internal/io"
	"github.com/handiism/naip-downloader/internal/model"
)

// Policy decides what happens to files that already exist locally and to
// downloaded archives.
type Policy struct {
	// Overwrite re-downloads files whose target or extraction directory exists.
	Overwrite bool

	// AutoExtract extracts .zip files next to the archive and deletes the archive.
	AutoExtract bool
}

// FileEvent describes one processed file.
type FileEvent struct {
	Folder  model.Folder
	Target  model.DownloadTarget
	Outcome model.Outcome
	Bytes   int64
	Err     error
}

// FileClient downloads one URL to a local path. *http.Client satisfies it.
type FileClient interface {
	DownloadFile(ctx context.Context, url, destPath string, onProgress func(written, total int64)) (int64, error)
}

// FolderDownloader downloads every file of one composite folder.
type FolderDownloader struct {
	pages     *box.Paginator
	client    FileClient
	endpoints box.Endpoints
	logger    zerolog.Logger

	// OnFile is called once per processed file, whatever the outcome.
	OnFile func(FileEvent)

	// OnBytes is called while a file is being received.
	OnBytes func(target model.DownloadTarget, written, total int64)
}

// NewFolderDownloader creates a FolderDownloader listing folders through
// source and fetching files through client.
func NewFolderDownloader(source box.ListingSource, client FileClient, endpoints box.Endpoints, logger zerolog.Logger) *FolderDownloader {
	return &FolderDownloader{
		pages:     box.NewPaginator(source),
		client:    client,
		endpoints: endpoints,
		logger:    logger.With().Str("component", "folder").Logger(),
	}
}

// DownloadFolder downloads the files of folder into destDir.
//
// The folder's FilesCount bounds the work: listing pages are walked until
// that many files have been processed or a page holds no files. A folder
// with FilesCount 0 is not listed at all.
//
// Unless policy.Overwrite is set, a file is skipped when either its target
// path or, for archives, its extraction directory exists. With
// policy.AutoExtract, downloaded archives are extracted and deleted; an
// archive that cannot be extracted is kept and a warning is recorded.
//
// File-level failures are recorded in the report and do not stop the
// folder. The returned error is non-nil only when listing the folder failed
// or ctx was cancelled; the report then holds what was done so far.
func (d *FolderDownloader) DownloadFolder(ctx context.Context, folder model.Folder, destDir string, policy Policy) (*model.DownloadReport, error) {
	report := &model.DownloadReport{Folder: folder}
	if folder.FilesCount <= 0 {
		d.logger.Info().Str("folder", folder.Name).Msg("folder has no files")
		return report, nil
	}

	if err := ioutils.EnsureDir(destDir); err != nil {
		return report, err
	}

	processed := 0
	err := d.pages.Walk(ctx, folder.ID, func(listing *model.FolderListing) (bool, error) {
		files := listing.Files()
		if len(files) == 0 {
			return true, nil
		}

		for _, file := range files {
			if processed >= folder.FilesCount {
				return true, nil
			}
			if err := d.processFile(ctx, folder, file, destDir, policy, report); err != nil {
				return true, err
			}
			processed++
		}
		return processed >= folder.FilesCount, nil
	})

	if processed < folder.FilesCount && err == nil {
		d.logger.Warn().
			Str("folder", folder.Name).
			Int("expected", folder.FilesCount).
			Int("processed", processed).
			Msg("listing ended before the declared file count")
	}

	return report, err
}

// processFile handles one file. It returns an error only when ctx is done.
func (d *FolderDownloader) processFile(ctx context.Context, folder model.Folder, file model.File, destDir string, policy Policy, report *model.DownloadReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	target := model.NewDownloadTarget(file, destDir)
	event := FileEvent{Folder: folder, Target: target}

	if !policy.Overwrite && d.exists(target) {
		d.logger.Debug().Str("file", target.Name).Msg("already present, skipping")
		report.Skipped++
		event.Outcome = model.OutcomeSkipped
		d.emit(event)
		return nil
	}

	var onProgress func(written, total int64)
	if d.OnBytes != nil {
		onProgress = func(written, total int64) { d.OnBytes(target, written, total) }
	}

	n, err := d.client.DownloadFile(ctx, d.endpoints.DownloadURL(file.ID), target.Path, onProgress)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		d.logger.Error().Err(err).Str("file", target.Name).Msg("download failed")
		report.Failed = append(report.Failed, model.FailedFile{File: file, Err: err})
		event.Outcome = model.OutcomeFailed
		event.Err = err
		d.emit(event)
		return nil
	}

	report.Downloaded++
	report.Bytes += n
	event.Outcome = model.OutcomeDownloaded
	event.Bytes = n

	if policy.AutoExtract && target.ExtractDir != "" {
		if err := d.extract(target, report); err != nil {
			event.Err = err
		}
	}

	d.emit(event)
	return nil
}

// exists applies the skip rule: the extraction directory or the file itself.
func (d *FolderDownloader) exists(target model.DownloadTarget) bool {
	if target.ExtractDir != "" && ioutils.Exists(target.ExtractDir) {
		return true
	}
	return ioutils.Exists(target.Path)
}

// extract unpacks an archive and removes it. Failures become warnings.
func (d *FolderDownloader) extract(target model.DownloadTarget, report *model.DownloadReport) error {
	entries, err := ioutils.ExtractZip(target.Path, target.ExtractDir)
	if err != nil {
		aerr := &model.ArchiveError{Path: target.Path, Err: err}
		if aerr.Corrupt() {
			report.Warnings = append(report.Warnings, fmt.Sprintf("%s is not a valid zip file, keeping original", target.Name))
		} else {
			report.Warnings = append(report.Warnings, fmt.Sprintf("failed to extract %s: %v", target.Name, err))
		}
		d.logger.Warn().Err(err).Str("file", target.Name).Msg("extraction failed, archive kept")
		return aerr
	}

	report.Extracted++
	d.logger.Debug().Str("file", target.Name).Int("entries", entries).Msg("extracted")

	if err := os.Remove(target.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		report.Warnings = append(report.Warnings, fmt.Sprintf("extracted %s but could not delete it: %v", target.Name, err))
	}
	return nil
}

func (d *FolderDownloader) emit(event FileEvent) {
	if d.OnFile != nil {
		d.OnFile(event)
	}
}
