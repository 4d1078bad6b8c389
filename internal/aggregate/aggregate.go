// Package aggregate groups active conflicts by country and decides how each
// country is highlighted on the map.
package aggregate

import (
	"sort"

	"github.com/ppiankov/conflictmap/internal/model"
)

// CountryStat summarises the active conflicts touching one country
type CountryStat struct {
	Code        string               `json:"code"`
	Count       int                  `json:"count"`
	Types       []model.ConflictType `json:"types"` // distinct, first-seen order
	PrimaryType model.ConflictType   `json:"primaryType"`
	Multiple    bool                 `json:"multiple"`
}

// Aggregate builds per-country stats from the active conflicts.
// Countries with no active conflicts are absent from the result.
func Aggregate(active []model.Conflict) map[string]CountryStat {
	stats := make(map[string]CountryStat)

	for _, c := range active {
		for _, code := range c.Countries {
			stat, ok := stats[code]
			if !ok {
				stat = CountryStat{Code: code}
			}
			stat.Count++
			if !containsType(stat.Types, c.Type) {
				stat.Types = append(stat.Types, c.Type)
			}
			stats[code] = stat
		}
	}

	for code, stat := range stats {
		stat.PrimaryType = primaryType(stat.Types)
		stat.Multiple = stat.Count > 1
		stats[code] = stat
	}

	return stats
}

// primaryType picks the most severe type present, falling back to the first seen
func primaryType(types []model.ConflictType) model.ConflictType {
	if len(types) == 0 {
		return ""
	}
	best := types[0]
	for _, t := range types[1:] {
		if t.Severity() > best.Severity() {
			best = t
		}
	}
	return best
}

func containsType(types []model.ConflictType, t model.ConflictType) bool {
	for _, existing := range types {
		if existing == t {
			return true
		}
	}
	return false
}

// KnownCountries returns every country that appears in any conflict of the full dataset
func KnownCountries(all []model.Conflict) map[string]bool {
	known := make(map[string]bool)
	for _, c := range all {
		for _, code := range c.Countries {
			known[code] = true
		}
	}
	return known
}

// SortedCodes returns the keys of a country set in lexical order
func SortedCodes(set map[string]bool) []string {
	codes := make([]string, 0, len(set))
	for code := range set {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// ConflictsIn returns the active conflicts touching a country, in input order
func ConflictsIn(active []model.Conflict, code string) []model.Conflict {
	var matches []model.Conflict
	for _, c := range active {
		if c.HasCountry(code) {
			matches = append(matches, c)
		}
	}
	return matches
}

// Highlight is the map treatment of a country
type Highlight string

const (
	HighlightActive    Highlight = "active"    // at least one active conflict
	HighlightDimmed    Highlight = "dimmed"    // known to the dataset, inactive in range
	HighlightUntouched Highlight = "untouched" // never involved
)

// Classify decides how a country is highlighted
func Classify(code string, stats map[string]CountryStat, known map[string]bool) Highlight {
	if _, ok := stats[code]; ok {
		return HighlightActive
	}
	if known[code] {
		return HighlightDimmed
	}
	return HighlightUntouched
}
