// Package render formats conflicts for display and renders the viewer and
// editor pages.
package render

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"strings"

	"github.com/ppiankov/conflictmap/internal/editor"
	"github.com/ppiankov/conflictmap/internal/model"
	"github.com/ppiankov/conflictmap/internal/viewer"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

var funcMap = template.FuncMap{
	"formatDate":   FormatDate,
	"formatNumber": FormatNumber,
	"yearSpan":     YearSpan,
	"countryName":  model.CountryName,
	"countryList": func(codes []string) string {
		return strings.Join(codes, ", ")
	},
	"typeName": func(t model.ConflictType) string { return t.DisplayName() },
	"typeColor": func(t model.ConflictType) string {
		return t.Color()
	},
	// data: URIs are rejected in src attributes unless marked safe
	"safeURL": func(s string) template.URL { return template.URL(s) },
	"sortArgs": func(page EditorPage, column, label string) sortButton {
		return sortButton{Page: page, Column: column, Label: label}
	},
	"sortMark": func(s editor.SortState, col string) string {
		if string(s.Column) != col {
			return ""
		}
		if s.Direction == editor.Ascending {
			return "▲"
		}
		return "▼"
	},
}

type sortButton struct {
	Page   EditorPage
	Column string
	Label  string
}

// ViewerPage is the data of the map page
type ViewerPage struct {
	Title      string
	Span       viewer.Span
	State      viewer.State
	Sidebar    Sidebar
	Types      []model.TypeDefinition
	Presidents []PresidentOption // every term, for the selector
}

// EditorRow is one table row of the editor
type EditorRow struct {
	ID        string
	Name      string
	Type      model.ConflictType
	Countries []string
	StartDate model.Date
	EndDate   model.Date
}

// EditorForm is the create/edit form. EditingID is empty when creating.
type EditorForm struct {
	EditingID string
	Conflict  model.Conflict
	Errors    map[string]string
}

// CountriesText renders the country codes for the text input
func (f *EditorForm) CountriesText() string {
	return strings.Join(f.Conflict.Countries, ", ")
}

// EditorPage is the data of the editor page
type EditorPage struct {
	Title     string
	Rows      []EditorRow
	Filter    editor.Filter
	Sort      editor.SortState
	Status    editor.Status
	Types     []model.TypeDefinition
	Countries []string // codes present in the working set, for the filter
	Form      *EditorForm
	Flash     string
	Error     string
	Assist    bool
}

// Rows converts conflicts to table rows
func Rows(conflicts []model.Conflict) []EditorRow {
	rows := make([]EditorRow, len(conflicts))
	for i, c := range conflicts {
		rows[i] = EditorRow{
			ID:        c.ID,
			Name:      c.Name,
			Type:      c.Type,
			Countries: c.Countries,
			StartDate: c.StartDate,
			EndDate:   c.EndDate,
		}
	}
	return rows
}

// Renderer executes the page templates
type Renderer struct {
	viewer *template.Template
	editor *template.Template
}

// New parses the embedded templates
func New() (*Renderer, error) {
	viewerTmpl, err := template.New("viewer").Funcs(funcMap).ParseFS(templateFS, "templates/base.html", "templates/viewer.html")
	if err != nil {
		return nil, fmt.Errorf("parse viewer template: %w", err)
	}
	editorTmpl, err := template.New("editor").Funcs(funcMap).ParseFS(templateFS, "templates/base.html", "templates/editor.html")
	if err != nil {
		return nil, fmt.Errorf("parse editor template: %w", err)
	}
	return &Renderer{viewer: viewerTmpl, editor: editorTmpl}, nil
}

// Viewer renders the map page
func (r *Renderer) Viewer(w io.Writer, page ViewerPage) error {
	if page.Title == "" {
		page.Title = "U.S. Military Conflicts"
	}
	if err := r.viewer.ExecuteTemplate(w, "base", page); err != nil {
		return fmt.Errorf("render viewer: %w", err)
	}
	return nil
}

// Editor renders the editor page
func (r *Renderer) Editor(w io.Writer, page EditorPage) error {
	if page.Title == "" {
		page.Title = "Conflict Editor"
	}
	if err := r.editor.ExecuteTemplate(w, "base", page); err != nil {
		return fmt.Errorf("render editor: %w", err)
	}
	return nil
}

// Static serves the client script and styles
func Static() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.FileServer(http.FS(sub))
}
