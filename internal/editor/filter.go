package editor

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ppiankov/conflictmap/internal/model"
)

// Filter narrows the working set. Empty fields impose no constraint.
type Filter struct {
	Search  string             `json:"search,omitempty"`  // case-insensitive substring of name, description or id
	Country string             `json:"country,omitempty"` // ISO code
	Type    model.ConflictType `json:"type,omitempty"`
}

// IsZero reports whether the filter matches everything
func (f Filter) IsZero() bool {
	return strings.TrimSpace(f.Search) == "" && f.Country == "" && f.Type == ""
}

// Match reports whether a conflict passes every constraint
func (f Filter) Match(c model.Conflict) bool {
	if term := strings.ToLower(strings.TrimSpace(f.Search)); term != "" {
		if !strings.Contains(strings.ToLower(c.Name), term) &&
			!strings.Contains(strings.ToLower(c.Description), term) &&
			!strings.Contains(strings.ToLower(c.ID), term) {
			return false
		}
	}
	if f.Country != "" && !c.HasCountry(f.Country) {
		return false
	}
	if f.Type != "" && c.Type != f.Type {
		return false
	}
	return true
}

// Apply returns the matching conflicts in input order
func (f Filter) Apply(conflicts []model.Conflict) []model.Conflict {
	out := make([]model.Conflict, 0, len(conflicts))
	for _, c := range conflicts {
		if f.Match(c) {
			out = append(out, c)
		}
	}
	return out
}

// Column is a sortable table column
type Column string

const (
	ColumnName      Column = "name"
	ColumnType      Column = "type"
	ColumnStartDate Column = "startDate"
	ColumnEndDate   Column = "endDate"
)

// ParseColumn validates a column name
func ParseColumn(s string) (Column, error) {
	switch c := Column(s); c {
	case ColumnName, ColumnType, ColumnStartDate, ColumnEndDate:
		return c, nil
	default:
		return "", fmt.Errorf("unknown sort column: %q", s)
	}
}

// Direction is the sort order
type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// SortState is the current table ordering
type SortState struct {
	Column    Column    `json:"column"`
	Direction Direction `json:"direction"`
}

// DefaultSort orders by start date, newest first
func DefaultSort() SortState {
	return SortState{Column: ColumnStartDate, Direction: Descending}
}

// Toggle reverses the direction for the same column, or switches to a new column ascending
func (s SortState) Toggle(col Column) SortState {
	if s.Column == col {
		if s.Direction == Ascending {
			return SortState{Column: col, Direction: Descending}
		}
		return SortState{Column: col, Direction: Ascending}
	}
	return SortState{Column: col, Direction: Ascending}
}

// key extracts the comparable value of a column
func (s SortState) key(c model.Conflict) string {
	switch s.Column {
	case ColumnName:
		return c.Name
	case ColumnType:
		return c.Type.DisplayName()
	case ColumnEndDate:
		return string(c.EndDate)
	default:
		return string(c.StartDate)
	}
}

// Sort returns a stably sorted copy
func (s SortState) Sort(conflicts []model.Conflict) []model.Conflict {
	sorted := make([]model.Conflict, len(conflicts))
	copy(sorted, conflicts)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := s.key(sorted[i]), s.key(sorted[j])
		if s.Direction == Descending {
			return a > b
		}
		return a < b
	})
	return sorted
}
