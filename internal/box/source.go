package box

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/handiism/naip-downloader/internal/model"
)

// Endpoints locates the Box shared folder that hosts the imagery.
type Endpoints struct {
	// BaseURL is the Box host, e.g. https://nrcs.app.box.com.
	BaseURL string

	// VanityName is the shared-link vanity name, e.g. "naip".
	VanityName string

	// RootFolderID is the id of the folder holding one sub-folder per year.
	RootFolderID string
}

// DefaultEndpoints returns the endpoints of the public NAIP share.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		BaseURL:      "https://nrcs.app.box.com",
		VanityName:   "naip",
		RootFolderID: "17936490251",
	}
}

// ListingURL returns the URL of one page of a folder listing:
// <base>/v/<vanity>/folder/<id>?page=<n>.
func (e Endpoints) ListingURL(folderID string, page int) string {
	return fmt.Sprintf("%s/v/%s/folder/%s?page=%d",
		strings.TrimRight(e.BaseURL, "/"),
		url.PathEscape(e.VanityName),
		url.PathEscape(folderID),
		page)
}

// DownloadURL returns the shared-file download URL of a file.
func (e Endpoints) DownloadURL(fileID string) string {
	return fmt.Sprintf("%s/index.php?rm=box_download_shared_file&vanity_name=%s&file_id=f_%s",
		strings.TrimRight(e.BaseURL, "/"),
		url.QueryEscape(e.VanityName),
		url.QueryEscape(fileID))
}

// ListingSource returns one parsed page of a folder listing.
type ListingSource interface {
	FetchListing(ctx context.Context, folderID string, page int) (*model.FolderListing, error)
}

// Fetcher performs a GET and returns the body. *http.Client satisfies it.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// HTTPSource fetches listing pages over HTTP and parses them with ParsePage.
type HTTPSource struct {
	fetcher   Fetcher
	endpoints Endpoints
	logger    zerolog.Logger
}

// NewHTTPSource creates a ListingSource backed by fetcher.
func NewHTTPSource(fetcher Fetcher, endpoints Endpoints, logger zerolog.Logger) *HTTPSource {
	return &HTTPSource{
		fetcher:   fetcher,
		endpoints: endpoints,
		logger:    logger.With().Str("component", "box").Logger(),
	}
}

// FetchListing implements ListingSource.
func (s *HTTPSource) FetchListing(ctx context.Context, folderID string, page int) (*model.FolderListing, error) {
	pageURL := s.endpoints.ListingURL(folderID, page)
	s.logger.Debug().Str("folder_id", folderID).Int("page", page).Msg("fetching listing")

	body, err := s.fetcher.Get(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	listing, err := ParsePage(body)
	if err != nil {
		return nil, err
	}
	if listing.PageIndex == 0 {
		listing.PageIndex = page
	}
	return listing, nil
}
