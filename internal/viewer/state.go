// Package viewer holds the viewer's application state and the pure reducer that
// keeps the selected president and the year range in sync.
package viewer

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ppiankov/conflictmap/internal/model"
	"github.com/ppiankov/conflictmap/internal/timeline"
)

// Span is the full supported year range of the slider
type Span struct {
	MinYear int `json:"minYear"`
	MaxYear int `json:"maxYear"`
}

// State is the complete viewer state
type State struct {
	Span      Span           `json:"span"`
	StartYear int            `json:"startYear"`
	EndYear   int            `json:"endYear"`
	Range     timeline.Range `json:"range"`
	Selected  string         `json:"selected,omitempty"` // president TermID, empty when none
}

// NewState starts with no selection and the full span
func NewState(span Span) State {
	return State{
		Span:      span,
		StartYear: span.MinYear,
		EndYear:   span.MaxYear,
		Range:     timeline.YearRange(span.MinYear, span.MaxYear),
	}
}

// HasSelection reports whether a president is selected
func (s State) HasSelection() bool {
	return s.Selected != ""
}

// SelectedName is the name part of the selected TermID
func (s State) SelectedName() string {
	name, _, _ := strings.Cut(s.Selected, "@")
	return name
}

// Origin tells who moved the range slider
type Origin string

const (
	OriginUser         Origin = "user"
	OriginProgrammatic Origin = "programmatic"
)

// Action is a viewer state transition
type Action interface {
	isAction()
}

// SelectPresident toggles selection of a presidential term. Term is a
// TermID, or a name served by a single term.
type SelectPresident struct {
	Term string `json:"term"`
}

// RangeChanged is emitted whenever the slider moves
type RangeChanged struct {
	StartYear int    `json:"startYear"`
	EndYear   int    `json:"endYear"`
	Origin    Origin `json:"origin"`
}

func (SelectPresident) isAction() {}
func (RangeChanged) isAction() {}

// Reduce applies an action and returns the next state. It never mutates its input.
// Unknown presidents and unknown actions leave the state unchanged.
func Reduce(s State, a Action, presidents []model.President) State {
	switch act := a.(type) {
	case SelectPresident:
		return selectPresident(s, act.Term, presidents)
	case RangeChanged:
		return changeRange(s, act, presidents)
	default:
		return s
	}
}

func selectPresident(s State, key string, presidents []model.President) State {
	p, ok := model.FindTerm(presidents, key)
	if !ok {
		return s
	}

	if s.Selected == p.TermID() {
		return NewState(s.Span)
	}

	term, ok := timeline.DateRange(p.Start, p.End)
	if !ok {
		return s
	}

	next := s
	next.Selected = p.TermID()
	next.StartYear, next.EndYear = p.Years()
	next.Range = term
	return next
}

func changeRange(s State, act RangeChanged, presidents []model.President) State {
	start, end := s.Span.clamp(act.StartYear, act.EndYear)

	next := s
	next.StartYear = start
	next.EndYear = end
	next.Range = timeline.YearRange(start, end)

	if act.Origin != OriginProgrammatic {
		next.Selected = ""
		return next
	}

	// A programmatic echo of the selected term keeps the exact term dates
	if p, ok := model.FindTerm(presidents, s.Selected); ok {
		termStart, termEnd := p.Years()
		if termStart == start && termEnd == end {
			if term, ok := timeline.DateRange(p.Start, p.End); ok {
				next.Range = term
			}
		}
	}
	return next
}

func (sp Span) clamp(start, end int) (int, int) {
	if start > end {
		start, end = end, start
	}
	if start < sp.MinYear {
		start = sp.MinYear
	}
	if end > sp.MaxYear {
		end = sp.MaxYear
	}
	if start > sp.MaxYear {
		start = sp.MaxYear
	}
	if end < sp.MinYear {
		end = sp.MinYear
	}
	return start, end
}

// ActionEnvelope is the wire form of an action
type ActionEnvelope struct {
	Kind      string `json:"kind"` // "select_president" or "range_changed"
	Term      string `json:"term,omitempty"`
	Name      string `json:"name,omitempty"` // accepted in place of term
	StartYear int    `json:"startYear,omitempty"`
	EndYear   int    `json:"endYear,omitempty"`
	Origin    Origin `json:"origin,omitempty"`
}

// DecodeAction parses an action envelope
func DecodeAction(data []byte) (Action, error) {
	var env ActionEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode action: %w", err)
	}
	return env.Action()
}

// Action converts the envelope into a typed action
func (env ActionEnvelope) Action() (Action, error) {
	switch env.Kind {
	case "select_president":
		term := env.Term
		if term == "" {
			term = env.Name
		}
		return SelectPresident{Term: term}, nil
	case "range_changed":
		origin := env.Origin
		if origin == "" {
			origin = OriginUser
		}
		if origin != OriginUser && origin != OriginProgrammatic {
			return nil, fmt.Errorf("unknown range origin: %s", origin)
		}
		return RangeChanged{StartYear: env.StartYear, EndYear: env.EndYear, Origin: origin}, nil
	default:
		return nil, fmt.Errorf("unknown action kind: %q", env.Kind)
	}
}
