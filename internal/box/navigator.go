package box

import (
	"context"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/handiism/naip-downloader/internal/model"
)

// Navigator resolves root → year → state → composite folders.
//
// Example usage:
//
//	nav := box.NewNavigator(source, box.DefaultEndpoints().RootFolderID, logger)
//
//	path, err := nav.Resolve(ctx, 2021, "MS", model.FilterAll)
//	if errors.Is(err, model.ErrNotFound) {
//	    // year or state not published
//	}
//	for _, composite := range path.Composites {
//	    fmt.Println(composite.Name, composite.FilesCount)
//	}
type Navigator struct {
	pages  *Paginator
	rootID string
	logger zerolog.Logger
}

// NewNavigator creates a Navigator rooted at rootFolderID.
func NewNavigator(source ListingSource, rootFolderID string, logger zerolog.Logger) *Navigator {
	return &Navigator{
		pages:  NewPaginator(source),
		rootID: rootFolderID,
		logger: logger.With().Str("component", "navigator").Logger(),
	}
}

// ResolveYear finds the year folder whose name is the decimal year.
//
// Root pages are fetched only until the folder is found. Returns a
// *model.NotFoundError when no page has it.
func (n *Navigator) ResolveYear(ctx context.Context, year int) (model.Folder, error) {
	name := strconv.Itoa(year)
	folder, ok, err := n.pages.FindFolder(ctx, n.rootID, func(f model.Folder) bool {
		return f.Name == name
	})
	if err != nil {
		return model.Folder{}, err
	}
	if !ok {
		return model.Folder{}, &model.NotFoundError{Kind: "year", Name: name}
	}

	n.logger.Debug().Int("year", year).Str("folder_id", folder.ID).Msg("resolved year")
	return folder, nil
}

// ResolveState finds the state folder inside yearFolder. The match is
// case-insensitive.
func (n *Navigator) ResolveState(ctx context.Context, yearFolder model.Folder, state string) (model.Folder, error) {
	state = model.NormalizeState(state)
	folder, ok, err := n.pages.FindFolder(ctx, yearFolder.ID, func(f model.Folder) bool {
		return strings.EqualFold(f.Name, state)
	})
	if err != nil {
		return model.Folder{}, err
	}
	if !ok {
		return model.Folder{}, &model.NotFoundError{Kind: "state", Name: state, Parent: yearFolder.Name}
	}

	n.logger.Debug().Str("state", state).Str("folder_id", folder.ID).Msg("resolved state")
	return folder, nil
}

// ResolveComposites lists the composite folders of stateFolder and applies
// the multispectral exclusivity rule and filter. An empty result is valid.
func (n *Navigator) ResolveComposites(ctx context.Context, stateFolder model.Folder, state string, filter model.FilterMode) ([]model.Folder, error) {
	children, err := n.pages.Folders(ctx, stateFolder.ID)
	if err != nil {
		return nil, err
	}
	return model.SelectComposites(children, state, filter), nil
}

// Resolve walks the whole path for one (year, state) pair.
func (n *Navigator) Resolve(ctx context.Context, year int, state string, filter model.FilterMode) (*model.ResolvedPath, error) {
	state = model.NormalizeState(state)

	yearFolder, err := n.ResolveYear(ctx, year)
	if err != nil {
		return nil, err
	}

	stateFolder, err := n.ResolveState(ctx, yearFolder, state)
	if err != nil {
		return nil, err
	}

	composites, err := n.ResolveComposites(ctx, stateFolder, state, filter)
	if err != nil {
		return nil, err
	}

	return &model.ResolvedPath{
		Year:        year,
		State:       state,
		YearFolder:  yearFolder,
		StateFolder: stateFolder,
		Composites:  composites,
	}, nil
}

// Years returns every year folder of the root. Folders whose name is not a
// year are left out.
func (n *Navigator) Years(ctx context.Context) ([]model.Folder, error) {
	folders, err := n.pages.Folders(ctx, n.rootID)
	if err != nil {
		return nil, err
	}

	years := make([]model.Folder, 0, len(folders))
	for _, f := range folders {
		if _, err := strconv.Atoi(f.Name); err == nil {
			years = append(years, f)
		}
	}
	return years, nil
}

// States returns every child folder of yearFolder.
func (n *Navigator) States(ctx context.Context, yearFolder model.Folder) ([]model.Folder, error) {
	return n.pages.Folders(ctx, yearFolder.ID)
}
