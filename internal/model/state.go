package model

import (
	"sort"
	"strings"
)

var knownStates = map[string]struct{}{
	"AL": {}, "AK": {}, "AZ": {}, "AR": {}, "CA": {}, "CO": {}, "CT": {}, "DE": {}, "FL": {}, "GA": {},
	"HI": {}, "ID": {}, "IL": {}, "IN": {}, "IA": {}, "KS": {}, "KY": {}, "LA": {}, "ME": {}, "MD": {},
	"MA": {}, "MI": {}, "MN": {}, "MS": {}, "MO": {}, "MT": {}, "NE": {}, "NV": {}, "NH": {}, "NJ": {},
	"NM": {}, "NY": {}, "NC": {}, "ND": {}, "OH": {}, "OK": {}, "OR": {}, "PA": {}, "RI": {}, "SC": {},
	"SD": {}, "TN": {}, "TX": {}, "UT": {}, "VT": {}, "VA": {}, "WA": {}, "WV": {}, "WI": {}, "WY": {},
}

// NormalizeState upper-cases a state abbreviation.
//
// Codes outside the 50-state reference set are returned upper-cased rather
// than rejected, so callers must not assume membership afterwards. Use
// IsKnownState to check.
//
// Example:
//
//	NormalizeState("ms") // "MS"
//	NormalizeState("zz") // "ZZ"
func NormalizeState(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsKnownState reports whether code, once normalized, is one of the 50 states.
func IsKnownState(code string) bool {
	_, ok := knownStates[NormalizeState(code)]
	return ok
}

// KnownStates returns the reference set sorted alphabetically.
func KnownStates() []string {
	states := make([]string, 0, len(knownStates))
	for s := range knownStates {
		states = append(states, s)
	}
	sort.Strings(states)
	return states
}
