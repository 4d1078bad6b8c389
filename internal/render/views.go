package render

import (
	"fmt"

	"github.com/ppiankov/conflictmap/internal/aggregate"
	"github.com/ppiankov/conflictmap/internal/model"
	"github.com/ppiankov/conflictmap/internal/viewer"
)

// MapStyle is the vector style of one country polygon
type MapStyle struct {
	Class       aggregate.Highlight `json:"class"`
	FillColor   string              `json:"fillColor"`
	Color       string              `json:"color"`
	Weight      int                 `json:"weight"`
	Opacity     float64             `json:"opacity"`
	FillOpacity float64             `json:"fillOpacity"`
	Count       int                 `json:"count,omitempty"`
}

const (
	borderColor   = "#4a5568"
	multipleColor = "#fc8181"
	dimmedFill    = "#718096"
)

// StyleFor styles a country from its highlight class. Active countries take
// the colour of their primary type; several active conflicts get a bright border.
func StyleFor(h aggregate.Highlight, stat aggregate.CountryStat) MapStyle {
	switch h {
	case aggregate.HighlightActive:
		style := MapStyle{
			Class:       h,
			FillColor:   stat.PrimaryType.Color(),
			Color:       stat.PrimaryType.Color(),
			Weight:      2,
			Opacity:     1,
			FillOpacity: 0.6,
			Count:       stat.Count,
		}
		if stat.Multiple {
			style.Color = multipleColor
			style.Weight = 3
			style.FillOpacity = 0.75
		}
		return style
	case aggregate.HighlightDimmed:
		return MapStyle{
			Class:       h,
			FillColor:   dimmedFill,
			Color:       borderColor,
			Weight:      1,
			Opacity:     0.5,
			FillOpacity: 0.15,
		}
	default:
		return MapStyle{
			Class:       aggregate.HighlightUntouched,
			FillColor:   "transparent",
			Color:       borderColor,
			Weight:      1,
			Opacity:     0.3,
			FillOpacity: 0,
		}
	}
}

// MapStyles styles every code for a snapshot
func MapStyles(snap viewer.Snapshot, codes []string) map[string]MapStyle {
	styles := make(map[string]MapStyle, len(codes))
	for _, code := range codes {
		styles[code] = StyleFor(snap.Highlight(code), snap.Countries[code])
	}
	return styles
}

// PopupItem is one conflict line of a country popup
type PopupItem struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Years string `json:"years"`
}

// Popup is the click popup of an active country
type Popup struct {
	Code    string      `json:"code"`
	Name    string      `json:"name"`
	Count   int         `json:"count"`
	Summary string      `json:"summary"`
	Items   []PopupItem `json:"items"`
	FirstID string      `json:"firstId"` // target of "View Details"
}

// CountryPopup builds the popup for a country. ok is false when no active
// conflict touches it; such countries get no popup.
func CountryPopup(code, name string, active []model.Conflict) (Popup, bool) {
	matches := aggregate.ConflictsIn(active, code)
	if len(matches) == 0 {
		return Popup{}, false
	}
	if name == "" {
		name = model.CountryName(code)
	}

	popup := Popup{
		Code:    code,
		Name:    name,
		Count:   len(matches),
		Summary: ConflictCountSummary(len(matches)),
		FirstID: matches[0].ID,
	}
	for _, c := range matches {
		popup.Items = append(popup.Items, PopupItem{ID: c.ID, Name: c.Name, Years: YearSpan(c.StartDate, c.EndDate)})
	}
	return popup, true
}

// ConflictCountSummary renders "1 conflict in selected period" / "3 conflicts in selected period"
func ConflictCountSummary(n int) string {
	noun := "conflict"
	if n != 1 {
		noun = "conflicts"
	}
	return fmt.Sprintf("%d %s in selected period", n, noun)
}

// Detail is the formatted detail view of a conflict
type Detail struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	TypeName    string   `json:"typeName"`
	TypeColor   string   `json:"typeColor"`
	DateRange   string   `json:"dateRange"`
	Description string   `json:"description"`
	Countries   []string `json:"countries"`
	USDeaths    string   `json:"usDeaths"`
	TotalDeaths string   `json:"totalDeaths"`
	Outcome     string   `json:"outcome"`
	WikiLink    string   `json:"wikiLink,omitempty"`
}

// ConflictDetail formats a conflict for the detail modal
func ConflictDetail(c model.Conflict) Detail {
	return Detail{
		ID:          c.ID,
		Name:        c.Name,
		TypeName:    c.Type.DisplayName(),
		TypeColor:   c.Type.Color(),
		DateRange:   FormatDate(c.StartDate) + " - " + FormatDate(c.EndDate),
		Description: c.Description,
		Countries:   CountryNames(c.Countries),
		USDeaths:    FormatNumber(c.Casualties.US),
		TotalDeaths: FormatNumber(c.Casualties.Total),
		Outcome:     c.Outcome,
		WikiLink:    c.WikiLink,
	}
}

// ConflictItem is a sidebar list entry
type ConflictItem struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Years     string `json:"years"`
	TypeColor string `json:"typeColor"`
}

// PresidentCard is a sidebar president entry
type PresidentCard struct {
	Term     string `json:"term"`
	Name     string `json:"name"`
	Dates    string `json:"dates"`
	Avatar   string `json:"avatar"`
	Selected bool   `json:"selected"`
}

// Sidebar is the list panel of the viewer
type Sidebar struct {
	Conflicts  []ConflictItem  `json:"conflicts"`
	Presidents []PresidentCard `json:"presidents"`
	RangeLabel string          `json:"rangeLabel"`
}

// SidebarFor lists the snapshot's conflicts (already start-sorted) and presidents
func SidebarFor(snap viewer.Snapshot) Sidebar {
	sb := Sidebar{
		Conflicts:  make([]ConflictItem, 0, len(snap.Conflicts)),
		Presidents: make([]PresidentCard, 0, len(snap.Presidents)),
		RangeLabel: fmt.Sprintf("%d - %d", snap.State.StartYear, snap.State.EndYear),
	}
	for _, c := range snap.Conflicts {
		sb.Conflicts = append(sb.Conflicts, ConflictItem{
			ID:        c.ID,
			Name:      c.Name,
			Years:     YearSpan(c.StartDate, c.EndDate),
			TypeColor: c.Type.Color(),
		})
	}
	for _, p := range snap.Presidents {
		sb.Presidents = append(sb.Presidents, PresidentCard{
			Term:     p.TermID(),
			Name:     p.Name,
			Dates:    PresidentDates(p),
			Avatar:   AvatarDataURI(p),
			Selected: p.TermID() == snap.State.Selected,
		})
	}
	return sb
}

// PresidentOption is one entry of the president selector
type PresidentOption struct {
	Term  string
	Label string
}

// PresidentOptions lists every term. Names that served more than one term
// carry their years so the entries stay distinguishable.
func PresidentOptions(presidents []model.President) []PresidentOption {
	served := make(map[string]int, len(presidents))
	for _, p := range presidents {
		served[p.Name]++
	}

	opts := make([]PresidentOption, 0, len(presidents))
	for _, p := range presidents {
		label := p.Name
		if served[p.Name] > 1 {
			start, end := p.Years()
			label = fmt.Sprintf("%s (%d-%d)", p.Name, start, end)
		}
		opts = append(opts, PresidentOption{Term: p.TermID(), Label: label})
	}
	return opts
}
