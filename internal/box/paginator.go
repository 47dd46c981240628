package box

import (
	"context"
	"fmt"

	"github.com/handiism/naip-downloader/internal/model"
)

// VisitFunc receives each listing page in order. Returning done=true stops
// the walk before the next page is fetched.
type VisitFunc func(listing *model.FolderListing) (done bool, err error)

// Paginator walks the pages of a folder listing.
type Paginator struct {
	source ListingSource
}

// NewPaginator creates a Paginator reading pages from source.
func NewPaginator(source ListingSource) *Paginator {
	return &Paginator{source: source}
}

// Walk fetches page 1, 2, ... of folderID and passes each to visit.
//
// The walk stops when visit reports done, when visit returns an error, or
// after the page whose number reaches the page count reported by Box.
// Every page is fetched at most once and none is skipped.
//
// Fetch errors are wrapped with the folder and page; the caller decides
// whether the results gathered so far are usable.
func (p *Paginator) Walk(ctx context.Context, folderID string, visit VisitFunc) error {
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		listing, err := p.source.FetchListing(ctx, folderID, page)
		if err != nil {
			return fmt.Errorf("folder %s page %d: %w", folderID, page, err)
		}

		done, err := visit(listing)
		if err != nil || done {
			return err
		}
		if page >= listing.PageCount {
			return nil
		}
	}
}

// Folders collects the folder entries of every page of folderID.
func (p *Paginator) Folders(ctx context.Context, folderID string) ([]model.Folder, error) {
	var folders []model.Folder
	err := p.Walk(ctx, folderID, func(listing *model.FolderListing) (bool, error) {
		folders = append(folders, listing.Folders()...)
		return false, nil
	})
	return folders, err
}

// FindFolder walks folderID until a folder satisfying match is found.
// ok is false when the pages are exhausted without a match.
func (p *Paginator) FindFolder(ctx context.Context, folderID string, match func(model.Folder) bool) (folder model.Folder, ok bool, err error) {
	err = p.Walk(ctx, folderID, func(listing *model.FolderListing) (bool, error) {
		for _, f := range listing.Folders() {
			if match(f) {
				folder, ok = f, true
				return true, nil
			}
		}
		return false, nil
	})
	return folder, ok, err
}
