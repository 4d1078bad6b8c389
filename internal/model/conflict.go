package model

import (
	"strings"
	"time"
)

// DateLayout is the on-disk format of every date in the dataset
const DateLayout = "2006-01-02"

// Date is an ISO calendar date (YYYY-MM-DD) kept exactly as written in the dataset
type Date string

// Time parses the date at day resolution (UTC midnight).
// The second return value is false when the date cannot be parsed.
func (d Date) Time() (time.Time, bool) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(string(d)))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Year returns the calendar year, or 0 if the date is malformed
func (d Date) Year() int {
	t, ok := d.Time()
	if !ok {
		return 0
	}
	return t.Year()
}

// Valid reports whether the date parses
func (d Date) Valid() bool {
	_, ok := d.Time()
	return ok
}

// DateOf formats a time as a dataset date
func DateOf(t time.Time) Date {
	return Date(t.Format(DateLayout))
}

// Casualties holds reported death tolls
type Casualties struct {
	US    int64 `json:"us" validate:"gte=0"`
	Total int64 `json:"total" validate:"gte=0"`
}

// Conflict is one U.S. military engagement in the dataset
type Conflict struct {
	ID          string       `json:"id"`
	Name        string       `json:"name" validate:"required"`
	Type        ConflictType `json:"type" validate:"required,oneof=type1 type2 type3 type4"`
	Countries   []string     `json:"countries" validate:"required,min=1,dive,len=2,uppercase"`
	StartDate   Date         `json:"startDate" validate:"required,isodate"`
	EndDate     Date         `json:"endDate" validate:"required,isodate"`
	Description string       `json:"description"`
	Casualties  Casualties   `json:"casualties"`
	Outcome     string       `json:"outcome"`
	WikiLink    string       `json:"wikiLink" validate:"omitempty,url"`
}

// Inverted reports whether the conflict ends before it starts.
// Such records are kept as-is; callers may warn about them.
func (c Conflict) Inverted() bool {
	start, ok1 := c.StartDate.Time()
	end, ok2 := c.EndDate.Time()
	return ok1 && ok2 && end.Before(start)
}

// HasCountry reports whether the conflict touches the given ISO code
func (c Conflict) HasCountry(code string) bool {
	for _, cc := range c.Countries {
		if cc == code {
			return true
		}
	}
	return false
}

// ConflictType is the closed classification of an engagement
type ConflictType string

const (
	TypeDirectWar          ConflictType = "type1" // Direct war & occupation
	TypeDirectIntervention ConflictType = "type2" // Airstrikes, raids, limited force
	TypeProxyWar           ConflictType = "type3" // Arming and funding local forces
	TypeDestabilization    ConflictType = "type4" // Coups, election interference
)

// TypeDefinition is the display metadata of a conflict type
type TypeDefinition struct {
	ID          ConflictType `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Color       string       `json:"color"`
}

// ConflictTypes lists every type in severity order, most severe first
var ConflictTypes = []TypeDefinition{
	{
		ID:          TypeDirectWar,
		Name:        "Direct War & Occupation",
		Description: "Large-scale combat operations, invasions, declared/undeclared wars, long-term occupations",
		Color:       "#e53e3e",
	},
	{
		ID:          TypeDirectIntervention,
		Name:        "Direct Military Intervention",
		Description: "Short-term or limited military force: airstrikes, missile strikes, raids",
		Color:       "#ed8936",
	},
	{
		ID:          TypeProxyWar,
		Name:        "Proxy War & Armed Support",
		Description: "Funding, arming, training local/regional forces, CIA covert operations",
		Color:       "#9f7aea",
	},
	{
		ID:          TypeDestabilization,
		Name:        "Political Destabilization",
		Description: "Coups, election interference, economic warfare, regime change support",
		Color:       "#4299e1",
	},
}

// Definition returns the display metadata for the type
func (t ConflictType) Definition() (TypeDefinition, bool) {
	for _, def := range ConflictTypes {
		if def.ID == t {
			return def, true
		}
	}
	return TypeDefinition{}, false
}

// DisplayName returns the human-readable type name, or the raw id when unknown
func (t ConflictType) DisplayName() string {
	if def, ok := t.Definition(); ok {
		return def.Name
	}
	return string(t)
}

// Color returns the map color of the type (grey when unknown)
func (t ConflictType) Color() string {
	if def, ok := t.Definition(); ok {
		return def.Color
	}
	return "#718096"
}

// Severity ranks the type; higher is more severe, 0 for unknown types
func (t ConflictType) Severity() int {
	for i, def := range ConflictTypes {
		if def.ID == t {
			return len(ConflictTypes) - i
		}
	}
	return 0
}

// Valid reports whether the type is one of the four known classes
func (t ConflictType) Valid() bool {
	return t.Severity() > 0
}
