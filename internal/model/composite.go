package model

import (
	"strings"
)

// CompositeKind is the band combination a composite folder holds.
type CompositeKind int

const (
	// CompositeUnknown is any folder that does not follow the naming convention.
	CompositeUnknown CompositeKind = iota

	// CompositeMultispectral is the 4-band composite (<state>_m).
	CompositeMultispectral

	// CompositeCIR is the color infrared composite (<state>_c).
	CompositeCIR

	// CompositeRGB is the natural color composite (<state>_n).
	CompositeRGB
)

// String returns a short human-readable name for the kind.
func (k CompositeKind) String() string {
	switch k {
	case CompositeMultispectral:
		return "multispectral"
	case CompositeCIR:
		return "cir"
	case CompositeRGB:
		return "rgb"
	default:
		return "unknown"
	}
}

// ClassifyComposite derives the composite kind from a folder name.
//
// The match is a case-insensitive substring test on "<state>_m",
// "<state>_c" and "<state>_n", checked in that order.
func ClassifyComposite(folderName, state string) CompositeKind {
	name := strings.ToLower(folderName)
	prefix := strings.ToLower(state)

	switch {
	case strings.Contains(name, prefix+"_m"):
		return CompositeMultispectral
	case strings.Contains(name, prefix+"_c"):
		return CompositeCIR
	case strings.Contains(name, prefix+"_n"):
		return CompositeRGB
	default:
		return CompositeUnknown
	}
}

// FilterMode restricts which 3-band composites are kept when no
// multispectral folder exists.
type FilterMode int

const (
	// FilterAll keeps both CIR and RGB composites.
	FilterAll FilterMode = iota

	// FilterCIROnly keeps CIR composites only.
	FilterCIROnly

	// FilterRGBOnly keeps RGB composites only.
	FilterRGBOnly
)

// String returns the flag-style name of the mode.
func (m FilterMode) String() string {
	switch m {
	case FilterCIROnly:
		return "cir-only"
	case FilterRGBOnly:
		return "rgb-only"
	default:
		return "all"
	}
}

// NewFilterMode builds a FilterMode from the two mutually exclusive switches.
//
// Returns a *ValidationError when both are set.
func NewFilterMode(cirOnly, rgbOnly bool) (FilterMode, error) {
	switch {
	case cirOnly && rgbOnly:
		return FilterAll, &ValidationError{
			Field:   "cir-only/rgb-only",
			Message: "cannot use both --cir-only and --rgb-only at the same time",
		}
	case cirOnly:
		return FilterCIROnly, nil
	case rgbOnly:
		return FilterRGBOnly, nil
	default:
		return FilterAll, nil
	}
}

// allows reports whether a 3-band composite kind passes the filter.
func (m FilterMode) allows(kind CompositeKind) bool {
	switch kind {
	case CompositeCIR:
		return m != FilterRGBOnly
	case CompositeRGB:
		return m != FilterCIROnly
	default:
		return false
	}
}

// SelectComposites picks the composite folders to download for a state.
//
// If any child is a multispectral folder, the first one found is returned
// alone and the filter is ignored. Otherwise every CIR/RGB folder allowed by
// the filter is returned in listing order. An empty result is valid.
func SelectComposites(children []Folder, state string, filter FilterMode) []Folder {
	for _, folder := range children {
		if ClassifyComposite(folder.Name, state) == CompositeMultispectral {
			return []Folder{folder}
		}
	}

	selected := make([]Folder, 0, len(children))
	for _, folder := range children {
		if filter.allows(ClassifyComposite(folder.Name, state)) {
			selected = append(selected, folder)
		}
	}
	return selected
}

// ResolvedPath is the outcome of walking root → year → state → composites
// for one (year, state) request.
type ResolvedPath struct {
	Year        int
	State       string
	YearFolder  Folder
	StateFolder Folder
	Composites  []Folder
}
