package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/conflictmap/internal/model"
	"github.com/ppiankov/conflictmap/internal/render"
	"github.com/ppiankov/conflictmap/internal/viewer"
)

const maxRequestBody = 1 << 20

type viewResponse struct {
	State    viewer.State    `json:"state"`
	Sidebar  render.Sidebar  `json:"sidebar"`
	Snapshot viewer.Snapshot `json:"snapshot"`
}

type reduceRequest struct {
	State  viewer.State          `json:"state"`
	Action viewer.ActionEnvelope `json:"action"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"uptime":     time.Since(s.startTime).Round(time.Second).String(),
		"conflicts":  len(s.Dataset().Conflicts),
		"boundaries": s.boundaries.Ready(),
	})
}

func (s *Server) handleViewerPage(w http.ResponseWriter, r *http.Request) {
	ds := s.Dataset()
	st, err := s.stateFromQuery(r, ds.Presidents)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	snap := ds.Snapshot(st)

	var buf bytes.Buffer
	err = s.renderer.Viewer(&buf, render.ViewerPage{
		Span:       s.span,
		State:      st,
		Sidebar:    render.SidebarFor(snap),
		Types:      model.ConflictTypes,
		Presidents: render.PresidentOptions(ds.Presidents),
	})
	if err != nil {
		s.logger.Error("render viewer", zap.Error(err))
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleConflicts(w http.ResponseWriter, r *http.Request) {
	conflicts := s.Dataset().Conflicts
	if conflicts == nil {
		conflicts = []model.Conflict{}
	}
	writeJSON(w, http.StatusOK, conflicts)
}

func (s *Server) handleConflict(w http.ResponseWriter, r *http.Request) {
	c, ok := s.Dataset().FindConflict(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "conflict not found")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleConflictDetail(w http.ResponseWriter, r *http.Request) {
	c, ok := s.Dataset().FindConflict(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "conflict not found")
		return
	}
	writeJSON(w, http.StatusOK, render.ConflictDetail(c))
}

func (s *Server) handlePresidents(w http.ResponseWriter, r *http.Request) {
	presidents := s.Dataset().Presidents
	if presidents == nil {
		presidents = []model.President{}
	}
	writeJSON(w, http.StatusOK, presidents)
}

func (s *Server) handleTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.ConflictTypes)
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	ds := s.Dataset()
	st, err := s.stateFromQuery(r, ds.Presidents)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.view(ds, st))
}

func (s *Server) handleReduce(w http.ResponseWriter, r *http.Request) {
	var req reduceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	action, err := req.Action.Action()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ds := s.Dataset()
	st := s.normalize(req.State, ds.Presidents)
	next := viewer.Reduce(st, action, ds.Presidents)

	s.logger.Debug("view reduced",
		zap.String("kind", req.Action.Kind),
		zap.Int("start", next.StartYear),
		zap.Int("end", next.EndYear),
		zap.String("selected", next.Selected))
	writeJSON(w, http.StatusOK, s.view(ds, next))
}

func (s *Server) handleCountry(w http.ResponseWriter, r *http.Request) {
	ds := s.Dataset()
	st, err := s.stateFromQuery(r, ds.Presidents)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	code := strings.ToUpper(r.PathValue("code"))
	snap := ds.Snapshot(st)

	var name string
	if s.boundaries.Ready() {
		if b, err := s.boundaries.Wait(r.Context()); err == nil && b != nil {
			name = b.Name(code)
		}
	}

	popup, ok := render.CountryPopup(code, name, snap.Conflicts)
	if !ok {
		writeError(w, http.StatusNotFound, "no active conflicts in "+code)
		return
	}
	writeJSON(w, http.StatusOK, popup)
}

func (s *Server) handleMapStyles(w http.ResponseWriter, r *http.Request) {
	ds := s.Dataset()
	st, err := s.stateFromQuery(r, ds.Presidents)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	snap := ds.Snapshot(st)

	b, err := s.boundaries.Wait(r.Context())
	if err != nil && r.Context().Err() != nil {
		return
	}

	codes := append([]string(nil), snap.Known...)
	if b != nil {
		seen := make(map[string]bool, len(codes))
		for _, c := range codes {
			seen[c] = true
		}
		for _, bc := range b.Countries {
			if !seen[bc.Code] {
				seen[bc.Code] = true
				codes = append(codes, bc.Code)
			}
		}
	}
	writeJSON(w, http.StatusOK, render.MapStyles(snap, codes))
}

func (s *Server) handleBoundaries(w http.ResponseWriter, r *http.Request) {
	b, err := s.boundaries.Wait(r.Context())
	if err != nil {
		if r.Context().Err() != nil {
			return
		}
		s.logger.Warn("boundaries unavailable", zap.Error(err))
		writeError(w, http.StatusBadGateway, "country boundaries unavailable")
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = w.Write(b.Raw)
}

func (s *Server) view(ds *viewer.Dataset, st viewer.State) viewResponse {
	snap := ds.Snapshot(st)
	return viewResponse{
		State:    st,
		Sidebar:  render.SidebarFor(snap),
		Snapshot: snap,
	}
}

// normalize rebuilds a client-supplied state on the server's span. The
// selection is replayed first so the range keeps exact term dates.
func (s *Server) normalize(st viewer.State, presidents []model.President) viewer.State {
	next := viewer.NewState(s.span)
	if st.Selected != "" {
		next = viewer.Reduce(next, viewer.SelectPresident{Term: st.Selected}, presidents)
	}
	if st.StartYear == 0 && st.EndYear == 0 {
		return next
	}
	if st.StartYear == next.StartYear && st.EndYear == next.EndYear {
		return next
	}

	origin := viewer.OriginUser
	if next.HasSelection() {
		origin = viewer.OriginProgrammatic
	}
	return viewer.Reduce(next, viewer.RangeChanged{
		StartYear: st.StartYear,
		EndYear:   st.EndYear,
		Origin:    origin,
	}, presidents)
}

// stateFromQuery reads from, to and president (a TermID, or a single-term name) query parameters
func (s *Server) stateFromQuery(r *http.Request, presidents []model.President) (viewer.State, error) {
	q := r.URL.Query()
	st := viewer.State{Selected: q.Get("president")}

	var err error
	if v := q.Get("from"); v != "" {
		if st.StartYear, err = strconv.Atoi(v); err != nil {
			return viewer.State{}, fmt.Errorf("invalid from year: %q", v)
		}
	}
	if v := q.Get("to"); v != "" {
		if st.EndYear, err = strconv.Atoi(v); err != nil {
			return viewer.State{}, fmt.Errorf("invalid to year: %q", v)
		}
	}
	if st.StartYear == 0 && st.EndYear != 0 {
		st.StartYear = s.span.MinYear
	}
	if st.EndYear == 0 && st.StartYear != 0 {
		st.EndYear = s.span.MaxYear
	}
	return s.normalize(st, presidents), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty request body")
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
