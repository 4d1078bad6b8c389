// Package timeline implements the inclusive date-range overlap filter that
// decides which conflicts and presidential terms are visible for a selected period.
package timeline

import (
	"time"

	"github.com/ppiankov/conflictmap/internal/model"
)

// Range is an inclusive period at day resolution
type Range struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// YearRange spans Jan 1 of startYear through Dec 31 of endYear
func YearRange(startYear, endYear int) Range {
	return Range{
		Start: time.Date(startYear, time.January, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(endYear, time.December, 31, 0, 0, 0, 0, time.UTC),
	}
}

// DateRange builds a range from two dataset dates.
// The second return value is false if either date is malformed.
func DateRange(start, end model.Date) (Range, bool) {
	s, ok1 := start.Time()
	e, ok2 := end.Time()
	if !ok1 || !ok2 {
		return Range{}, false
	}
	return Range{Start: s, End: e}, true
}

// StartYear returns the calendar year of the range start
func (r Range) StartYear() int { return r.Start.Year() }

// EndYear returns the calendar year of the range end
func (r Range) EndYear() int { return r.End.Year() }

// Overlaps reports whether [start, end] intersects r, inclusive at both ends.
// Inverted intervals are not rejected; they simply rarely match.
func Overlaps(start, end time.Time, r Range) bool {
	return !start.After(r.End) && !end.Before(r.Start)
}

// IsActive reports whether an entity dated [start, end] overlaps r.
// Malformed dates never match.
func IsActive(start, end model.Date, r Range) bool {
	s, ok := start.Time()
	if !ok {
		return false
	}
	e, ok := end.Time()
	if !ok {
		return false
	}
	return Overlaps(s, e, r)
}

// ActiveConflicts returns the conflicts overlapping r, preserving input order
func ActiveConflicts(all []model.Conflict, r Range) []model.Conflict {
	active := make([]model.Conflict, 0)
	for _, c := range all {
		if IsActive(c.StartDate, c.EndDate, r) {
			active = append(active, c)
		}
	}
	return active
}

// ActivePresidents returns the presidential terms overlapping r, preserving input order
func ActivePresidents(all []model.President, r Range) []model.President {
	active := make([]model.President, 0)
	for _, p := range all {
		if IsActive(p.Start, p.End, r) {
			active = append(active, p)
		}
	}
	return active
}
