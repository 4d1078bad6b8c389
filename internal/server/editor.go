package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/conflictmap/internal/editor"
	"github.com/ppiankov/conflictmap/internal/llm"
	"github.com/ppiankov/conflictmap/internal/model"
	"github.com/ppiankov/conflictmap/internal/render"
)

const maxImportSize = 32 << 20

var indexSuffix = regexp.MustCompile(`\[\d+\]`)

type editorListResponse struct {
	Conflicts []model.Conflict `json:"conflicts"`
	Status    editor.Status    `json:"status"`
	Sort      editor.SortState `json:"sort"`
}

type sortRequest struct {
	Column    string           `json:"column"`
	Direction editor.Direction `json:"direction,omitempty"`
}

type generateRequest struct {
	Prompt string `json:"prompt"`
}

type enhanceResponse struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Source      string `json:"source,omitempty"`
}

func filterFrom(values url.Values) editor.Filter {
	return editor.Filter{
		Search:  strings.TrimSpace(values.Get("q")),
		Country: strings.ToUpper(strings.TrimSpace(values.Get("country"))),
		Type:    model.ConflictType(values.Get("type")),
	}
}

func filterQuery(f editor.Filter) url.Values {
	q := url.Values{}
	if f.Search != "" {
		q.Set("q", f.Search)
	}
	if f.Country != "" {
		q.Set("country", f.Country)
	}
	if f.Type != "" {
		q.Set("type", string(f.Type))
	}
	return q
}

func redirectEditor(w http.ResponseWriter, r *http.Request, q url.Values) {
	target := "/editor"
	if len(q) > 0 {
		target += "?" + q.Encode()
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func flashQuery(msg string) url.Values {
	return url.Values{"flash": {msg}}
}

// --- editor page ---

func (s *Server) handleEditorPage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := render.EditorPage{Flash: q.Get("flash")}

	switch {
	case q.Get("new") != "":
		page.Form = &render.EditorForm{Conflict: model.Conflict{Type: model.TypeDirectWar}}
	case q.Get("edit") != "":
		id := q.Get("edit")
		if c, ok := s.editor.Get(id); ok {
			page.Form = &render.EditorForm{EditingID: id, Conflict: c}
		} else {
			page.Error = "Conflict not found: " + id
		}
	}

	s.renderEditor(w, r, filterFrom(q), page, http.StatusOK)
}

func (s *Server) renderEditor(w http.ResponseWriter, r *http.Request, f editor.Filter, page render.EditorPage, status int) {
	st, err := s.editor.Status(r.Context(), f)
	if err != nil {
		s.logger.Error("editor status", zap.Error(err))
		http.Error(w, "storage unavailable", http.StatusInternalServerError)
		return
	}

	page.Rows = render.Rows(s.editor.View(f))
	page.Filter = f
	page.Sort = s.editor.Sort()
	page.Status = st
	page.Types = model.ConflictTypes
	page.Countries = workingSetCountries(s.editor.Conflicts())
	page.Assist = s.assistant.Enabled()

	var buf bytes.Buffer
	if err := s.renderer.Editor(&buf, page); err != nil {
		s.logger.Error("render editor", zap.Error(err))
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleEditorSave(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	editingID := r.PostFormValue("editing_id")
	c, formErrs := conflictFromForm(r.PostForm)
	form := &render.EditorForm{EditingID: editingID, Conflict: c, Errors: formErrs}
	if len(formErrs) > 0 {
		s.renderEditor(w, r, editor.Filter{}, render.EditorPage{Form: form}, http.StatusBadRequest)
		return
	}

	var (
		saved model.Conflict
		found = true
		err   error
	)
	if editingID == "" {
		saved, err = s.editor.Create(r.Context(), c)
	} else {
		saved, found, err = s.editor.Update(r.Context(), editingID, c)
	}

	switch {
	case err != nil:
		page := render.EditorPage{Form: form}
		var verr *editor.ValidationError
		if errors.As(err, &verr) {
			form.Errors = fieldErrors(verr)
		} else {
			page.Error = err.Error()
		}
		s.renderEditor(w, r, editor.Filter{}, page, statusFor(err))
	case !found:
		redirectEditor(w, r, flashQuery("Conflict no longer exists: "+editingID))
	default:
		s.logger.Info("conflict saved", zap.String("id", saved.ID), zap.Bool("new", editingID == ""))
		redirectEditor(w, r, flashQuery("Saved "+saved.Name))
	}
}

func (s *Server) handleEditorDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PostFormValue("id")
	found, err := s.editor.Delete(r.Context(), id)
	if err != nil {
		s.renderEditor(w, r, editor.Filter{}, render.EditorPage{Error: err.Error()}, http.StatusInternalServerError)
		return
	}
	if !found {
		redirectEditor(w, r, nil)
		return
	}
	s.logger.Info("conflict deleted", zap.String("id", id))
	redirectEditor(w, r, flashQuery("Deleted "+id))
}

func (s *Server) handleEditorSort(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	col, err := editor.ParseColumn(r.PostFormValue("column"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.editor.ToggleSort(col)
	redirectEditor(w, r, filterQuery(filterFrom(r.PostForm)))
}

func (s *Server) handleEditorReset(w http.ResponseWriter, r *http.Request) {
	if err := s.editor.Reset(r.Context()); err != nil {
		s.renderEditor(w, r, editor.Filter{}, render.EditorPage{Error: err.Error()}, http.StatusInternalServerError)
		return
	}
	redirectEditor(w, r, flashQuery("Reset to the original data"))
}

func (s *Server) handleEditorImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportSize)
	file, _, err := r.FormFile("file")
	if err != nil {
		s.renderEditor(w, r, editor.Filter{}, render.EditorPage{Error: "No file uploaded"}, http.StatusBadRequest)
		return
	}
	defer func() { _ = file.Close() }()

	n, err := s.editor.Import(r.Context(), file)
	if err != nil {
		s.renderEditor(w, r, editor.Filter{}, render.EditorPage{Error: "Import failed: " + err.Error()}, statusFor(err))
		return
	}
	redirectEditor(w, r, flashQuery(fmt.Sprintf("Imported %d conflicts", n)))
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.editor.Export(r.Context(), &buf); err != nil {
		s.logger.Error("export", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="conflicts.json"`)
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleEditorAssistGenerate(w http.ResponseWriter, r *http.Request) {
	draft, err := s.assistant.GenerateConflict(r.Context(), r.PostFormValue("prompt"))
	if err != nil {
		s.logger.Warn("draft conflict", zap.Error(err))
		s.renderEditor(w, r, editor.Filter{}, render.EditorPage{Error: "Draft failed: " + err.Error()}, statusFor(err))
		return
	}
	draft.ID = s.editor.GenerateID(draft.Name, "")
	page := render.EditorPage{
		Form:  &render.EditorForm{Conflict: draft},
		Flash: "Draft ready: review before saving",
	}
	s.renderEditor(w, r, editor.Filter{}, page, http.StatusOK)
}

func (s *Server) handleEditorAssistEnhance(w http.ResponseWriter, r *http.Request) {
	id := r.PostFormValue("id")
	c, ok := s.editor.Get(id)
	if !ok {
		redirectEditor(w, r, flashQuery("Conflict no longer exists: "+id))
		return
	}

	desc, _, err := s.enhance(r.Context(), c)
	if err != nil {
		s.logger.Warn("enhance description", zap.String("id", id), zap.Error(err))
		page := render.EditorPage{
			Form:  &render.EditorForm{EditingID: id, Conflict: c},
			Error: "Enhance failed: " + err.Error(),
		}
		s.renderEditor(w, r, editor.Filter{}, page, statusFor(err))
		return
	}

	c.Description = desc
	page := render.EditorPage{
		Form:  &render.EditorForm{EditingID: id, Conflict: c},
		Flash: "Description rewritten: review before saving",
	}
	s.renderEditor(w, r, editor.Filter{}, page, http.StatusOK)
}

// enhance rewrites a description, feeding the reference page lead when one can be read
func (s *Server) enhance(ctx context.Context, c model.Conflict) (string, string, error) {
	var source string
	if s.reader != nil && c.WikiLink != "" && s.assistant.Enabled() {
		page, err := s.reader.Page(ctx, c.WikiLink)
		if err != nil {
			s.logger.Debug("reference page unavailable", zap.String("url", c.WikiLink), zap.Error(err))
		} else {
			source = page.Lead
		}
	}
	desc, err := s.assistant.EnhanceDescription(ctx, c, source)
	return desc, source, err
}

// --- editor JSON API ---

func (s *Server) handleEditorList(w http.ResponseWriter, r *http.Request) {
	f := filterFrom(r.URL.Query())
	st, err := s.editor.Status(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, editorListResponse{
		Conflicts: s.editor.View(f),
		Status:    st,
		Sort:      s.editor.Sort(),
	})
}

func (s *Server) handleEditorCreate(w http.ResponseWriter, r *http.Request) {
	var c model.Conflict
	if err := decodeJSON(w, r, &c); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	saved, err := s.editor.Create(r.Context(), c)
	if err != nil {
		writeEditorError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (s *Server) handleEditorGet(w http.ResponseWriter, r *http.Request) {
	c, ok := s.editor.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "conflict not found")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleEditorUpdate(w http.ResponseWriter, r *http.Request) {
	var c model.Conflict
	if err := decodeJSON(w, r, &c); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	saved, found, err := s.editor.Update(r.Context(), r.PathValue("id"), c)
	if !found {
		writeError(w, http.StatusNotFound, "conflict not found")
		return
	}
	if err != nil {
		writeEditorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleEditorDeleteAPI(w http.ResponseWriter, r *http.Request) {
	found, err := s.editor.Delete(r.Context(), r.PathValue("id"))
	if err != nil {
		writeEditorError(w, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "conflict not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEditorStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.editor.Status(r.Context(), filterFrom(r.URL.Query()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  st,
		"summary": st.Summary(),
		"source":  s.editor.Source(),
	})
}

func (s *Server) handleEditorSortAPI(w http.ResponseWriter, r *http.Request) {
	var req sortRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	col, err := editor.ParseColumn(req.Column)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var next editor.SortState
	switch req.Direction {
	case "":
		next = s.editor.ToggleSort(col)
	case editor.Ascending, editor.Descending:
		next = editor.SortState{Column: col, Direction: req.Direction}
		s.editor.SetSort(next)
	default:
		writeError(w, http.StatusBadRequest, "unknown sort direction: "+string(req.Direction))
		return
	}
	writeJSON(w, http.StatusOK, next)
}

func (s *Server) handleEditorResetAPI(w http.ResponseWriter, r *http.Request) {
	if err := s.editor.Reset(r.Context()); err != nil {
		writeEditorError(w, err)
		return
	}
	s.handleEditorStatus(w, r)
}

func (s *Server) handleEditorImportAPI(w http.ResponseWriter, r *http.Request) {
	n, err := s.editor.Import(r.Context(), http.MaxBytesReader(w, r.Body, maxImportSize))
	if err != nil {
		writeEditorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"imported": n})
}

func (s *Server) handleAssistGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	draft, err := s.assistant.GenerateConflict(r.Context(), req.Prompt)
	if err != nil {
		writeEditorError(w, err)
		return
	}
	draft.ID = s.editor.GenerateID(draft.Name, "")
	writeJSON(w, http.StatusOK, draft)
}

func (s *Server) handleAssistEnhance(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	c, ok := s.editor.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "conflict not found")
		return
	}
	desc, source, err := s.enhance(r.Context(), c)
	if err != nil {
		writeEditorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, enhanceResponse{ID: id, Description: desc, Source: source})
}

// --- helpers ---

func statusFor(err error) int {
	var verr *editor.ValidationError
	var apiErr *llm.APIError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, editor.ErrDuplicateID):
		return http.StatusConflict
	case errors.Is(err, editor.ErrImportNotArray):
		return http.StatusBadRequest
	case errors.Is(err, llm.ErrNotConfigured):
		return http.StatusServiceUnavailable
	case errors.As(err, &apiErr), errors.Is(err, llm.ErrBadAnswer):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}

	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return http.StatusRequestEntityTooLarge
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeEditorError(w http.ResponseWriter, err error) {
	var verr *editor.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, verr)
		return
	}
	writeError(w, statusFor(err), err.Error())
}

// fieldErrors keys validation messages by form field; list indexes collapse onto the list
func fieldErrors(verr *editor.ValidationError) map[string]string {
	out := make(map[string]string, len(verr.Errors))
	for _, fe := range verr.Errors {
		key := indexSuffix.ReplaceAllString(fe.Field, "")
		if _, exists := out[key]; !exists {
			out[key] = fe.Message
		}
	}
	return out
}

// conflictFromForm reads the editor form. Malformed numbers are reported per field.
func conflictFromForm(form url.Values) (model.Conflict, map[string]string) {
	errs := map[string]string{}
	c := model.Conflict{
		ID:          strings.TrimSpace(form.Get("id")),
		Name:        strings.TrimSpace(form.Get("name")),
		Type:        model.ConflictType(form.Get("type")),
		Countries:   editor.ParseCountries(form.Get("countries")),
		StartDate:   model.Date(strings.TrimSpace(form.Get("startDate"))),
		EndDate:     model.Date(strings.TrimSpace(form.Get("endDate"))),
		Description: strings.TrimSpace(form.Get("description")),
		Outcome:     strings.TrimSpace(form.Get("outcome")),
		WikiLink:    strings.TrimSpace(form.Get("wikiLink")),
	}

	var ok bool
	if c.Casualties.US, ok = editor.ParseCount(form.Get("casualties_us")); !ok {
		errs["casualties.us"] = "must be a whole number"
	}
	if c.Casualties.Total, ok = editor.ParseCount(form.Get("casualties_total")); !ok {
		errs["casualties.total"] = "must be a whole number"
	}
	if len(errs) == 0 {
		errs = nil
	}
	return c, errs
}

func workingSetCountries(conflicts []model.Conflict) []string {
	seen := map[string]bool{}
	for _, c := range conflicts {
		for _, code := range c.Countries {
			seen[code] = true
		}
	}
	codes := make([]string, 0, len(seen))
	for code := range seen {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
