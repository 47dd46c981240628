package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/handiism/naip-downloader/internal/model"
)

// Wildcard selects every year or every state.
const Wildcard = "*"

// ParseTarget reads a "YEAR STATE" request. Either part may be the
// wildcard; a single field is taken as a year when it is numeric and as a
// state otherwise. A nil year or an empty state means "all".
func ParseTarget(input string) (year *int, state string, err error) {
	fields := strings.Fields(input)

	switch len(fields) {
	case 1:
		if fields[0] == Wildcard {
			return nil, "", nil
		}
		if y, err := strconv.Atoi(fields[0]); err == nil {
			return validYear(y)
		}
		return nil, model.NormalizeState(fields[0]), nil

	case 2:
		if fields[0] != Wildcard {
			y, err := strconv.Atoi(fields[0])
			if err != nil {
				return nil, "", fmt.Errorf("invalid year: %s", fields[0])
			}
			if year, _, err = validYear(y); err != nil {
				return nil, "", err
			}
		}
		if fields[1] != Wildcard {
			state = model.NormalizeState(fields[1])
		}
		return year, state, nil

	default:
		return nil, "", fmt.Errorf("expected YEAR STATE, got %q", input)
	}
}

func validYear(y int) (*int, string, error) {
	if y <= 0 {
		return nil, "", fmt.Errorf("invalid year: %d", y)
	}
	return &y, "", nil
}

// describeTarget renders a parsed target for the status line.
func describeTarget(year *int, state string) string {
	y := "all years"
	if year != nil {
		y = strconv.Itoa(*year)
	}
	s := "all states"
	if state != "" {
		s = state
	}
	return s + ", " + y
}
