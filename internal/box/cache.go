package box

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/handiism/naip-downloader/internal/model"
)

type pageKey struct {
	folderID string
	page     int
}

// CachedSource keeps recently fetched listing pages in memory.
//
// Listing queries walk the same year folders repeatedly; a small cache
// turns the repeated walks into memory lookups. Cached listings are shared
// between callers and must not be modified.
type CachedSource struct {
	source ListingSource
	pages  *lru.Cache[pageKey, *model.FolderListing]
}

// NewCachedSource wraps source with an LRU cache holding up to size pages.
// A size of zero or less disables caching and returns source unchanged.
func NewCachedSource(source ListingSource, size int) (ListingSource, error) {
	if size <= 0 {
		return source, nil
	}
	pages, err := lru.New[pageKey, *model.FolderListing](size)
	if err != nil {
		return nil, err
	}
	return &CachedSource{source: source, pages: pages}, nil
}

// FetchListing implements ListingSource. Errors are not cached.
func (c *CachedSource) FetchListing(ctx context.Context, folderID string, page int) (*model.FolderListing, error) {
	key := pageKey{folderID: folderID, page: page}
	if listing, ok := c.pages.Get(key); ok {
		return listing, nil
	}

	listing, err := c.source.FetchListing(ctx, folderID, page)
	if err != nil {
		return nil, err
	}
	c.pages.Add(key, listing)
	return listing, nil
}
