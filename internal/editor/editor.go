// Package editor manages the mutable conflict working set: filtering, sorting,
// form-based CRUD, and persistence to local storage with export/import/reset.
package editor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ppiankov/conflictmap/internal/model"
	"github.com/ppiankov/conflictmap/internal/storage"
)

var (
	// ErrImportNotArray is returned when an imported document is valid JSON but not an array
	ErrImportNotArray = errors.New("invalid format: expected an array of conflicts")

	// ErrDuplicateID is returned when a submitted id belongs to another record
	ErrDuplicateID = errors.New("id already in use")
)

// Original supplies the pristine dataset the editor falls back to
type Original interface {
	LoadConflicts(ctx context.Context) ([]model.Conflict, error)
}

// Source tells where the working set came from
type Source string

const (
	SourceStorage  Source = "storage"
	SourceOriginal Source = "original"
	SourceEmpty    Source = "empty"
)

// Editor owns the working set. It is safe for concurrent use.
type Editor struct {
	mu        sync.Mutex
	store     storage.Store
	original  Original
	logger    *zap.Logger
	validate  *validator.Validate
	conflicts []model.Conflict
	sort      SortState
	source    Source
}

// New loads the working set from storage when present and parseable, else from the original asset
func New(ctx context.Context, store storage.Store, original Original, logger *zap.Logger) (*Editor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Editor{
		store:    store,
		original: original,
		logger:   logger,
		validate: newValidator(),
		sort:     DefaultSort(),
	}

	if err := e.load(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Editor) load(ctx context.Context) error {
	stored, ok, err := e.store.Get(ctx, storage.KeyEditorData)
	if err != nil {
		return fmt.Errorf("read stored conflicts: %w", err)
	}

	if ok {
		var conflicts []model.Conflict
		err := json.Unmarshal([]byte(stored), &conflicts)
		if err == nil {
			e.conflicts = nonNil(conflicts)
			e.source = SourceStorage
			e.logger.Info("loaded conflicts from local storage", zap.Int("count", len(conflicts)))
			return nil
		}
		e.logger.Error("error parsing stored data", zap.Error(err))
	}

	e.loadOriginal(ctx)
	return nil
}

// loadOriginal replaces the working set with the original asset, or empties it on failure
func (e *Editor) loadOriginal(ctx context.Context) {
	conflicts, err := e.original.LoadConflicts(ctx)
	if err != nil {
		e.logger.Error("error loading conflicts", zap.Error(err))
		e.conflicts = []model.Conflict{}
		e.source = SourceEmpty
		return
	}
	e.conflicts = cloneAll(conflicts)
	e.source = SourceOriginal
	e.logger.Info("loaded conflicts from original dataset", zap.Int("count", len(conflicts)))
}

// persist writes next as the working set and raises the modified flag.
// e.conflicts only changes once storage has accepted the write.
func (e *Editor) persist(ctx context.Context, next []model.Conflict) error {
	data, err := json.Marshal(nonNil(next))
	if err != nil {
		return fmt.Errorf("marshal conflicts: %w", err)
	}
	if err := e.store.Set(ctx, storage.KeyEditorData, string(data)); err != nil {
		return fmt.Errorf("save conflicts: %w", err)
	}
	if err := e.store.Set(ctx, storage.KeyEditorModified, "true"); err != nil {
		return fmt.Errorf("save modified flag: %w", err)
	}
	e.conflicts = nonNil(next)
	e.source = SourceStorage
	return nil
}

// Source reports where the current working set was loaded from
func (e *Editor) Source() Source {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.source
}

// Conflicts returns a copy of the working set in storage order
func (e *Editor) Conflicts() []model.Conflict {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneAll(e.conflicts)
}

// Get looks up a conflict by id
func (e *Editor) Get(id string) (model.Conflict, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if idx := e.indexOf(id); idx >= 0 {
		return clone(e.conflicts[idx]), true
	}
	return model.Conflict{}, false
}

func (e *Editor) indexOf(id string) int {
	for i, c := range e.conflicts {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// GenerateID derives a unique id for a name against the current working set
func (e *Editor) GenerateID(name, editingID string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return GenerateID(name, e.conflicts, editingID)
}

// prepare validates a submission and fills in a derived id when none was given
func (e *Editor) prepare(c model.Conflict, editingID string) (model.Conflict, error) {
	if c.ID == "" {
		c.ID = GenerateID(c.Name, e.conflicts, editingID)
	}
	if err := validateConflict(e.validate, c); err != nil {
		return c, err
	}
	for _, existing := range e.conflicts {
		if existing.ID == c.ID && existing.ID != editingID {
			return c, fmt.Errorf("%w: %s", ErrDuplicateID, c.ID)
		}
	}
	if c.Inverted() {
		e.logger.Warn("conflict ends before it starts",
			zap.String("id", c.ID),
			zap.String("start", string(c.StartDate)),
			zap.String("end", string(c.EndDate)))
	}
	return clone(c), nil
}

// Create appends a new conflict and persists the working set
func (e *Editor) Create(ctx context.Context, c model.Conflict) (model.Conflict, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, err := e.prepare(c, "")
	if err != nil {
		return model.Conflict{}, err
	}

	next := append(cloneAll(e.conflicts), c)
	if err := e.persist(ctx, next); err != nil {
		return model.Conflict{}, err
	}
	return clone(c), nil
}

// Update replaces the conflict with editingID. A missing id is a silent no-op (false, nil).
func (e *Editor) Update(ctx context.Context, editingID string, c model.Conflict) (model.Conflict, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := e.indexOf(editingID)
	if idx < 0 {
		return model.Conflict{}, false, nil
	}

	c, err := e.prepare(c, editingID)
	if err != nil {
		return model.Conflict{}, true, err
	}

	next := cloneAll(e.conflicts)
	next[idx] = c
	if err := e.persist(ctx, next); err != nil {
		return model.Conflict{}, true, err
	}
	return clone(c), true, nil
}

// Delete removes a conflict. A missing id is a silent no-op (false, nil).
func (e *Editor) Delete(ctx context.Context, id string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := e.indexOf(id)
	if idx < 0 {
		return false, nil
	}

	next := append(cloneAll(e.conflicts[:idx]), e.conflicts[idx+1:]...)
	if err := e.persist(ctx, next); err != nil {
		return true, err
	}
	return true, nil
}

// Sort returns the current table ordering
func (e *Editor) Sort() SortState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sort
}

// ToggleSort applies a column header click
func (e *Editor) ToggleSort(col Column) SortState {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sort = e.sort.Toggle(col)
	return e.sort
}

// SetSort replaces the table ordering
func (e *Editor) SetSort(s SortState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sort = s
}

// View returns the filtered working set in the current sort order
func (e *Editor) View(f Filter) []model.Conflict {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sort.Sort(f.Apply(e.conflicts))
}

// Status is the editor status bar
type Status struct {
	Total    int  `json:"total"`
	Showing  int  `json:"showing"`
	Modified bool `json:"modified"`
}

// Summary renders the status bar count line
func (s Status) Summary() string {
	if s.Showing == s.Total {
		return fmt.Sprintf("Showing all %d conflicts", s.Total)
	}
	return fmt.Sprintf("Showing %d of %d conflicts", s.Showing, s.Total)
}

// Status reports counts for the filter and the modified flag
func (e *Editor) Status(ctx context.Context, f Filter) (Status, error) {
	modified, err := e.Modified(ctx)
	if err != nil {
		return Status{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return Status{
		Total:    len(e.conflicts),
		Showing:  len(f.Apply(e.conflicts)),
		Modified: modified,
	}, nil
}

// Modified reports whether local edits have not been exported yet
func (e *Editor) Modified(ctx context.Context) (bool, error) {
	v, ok, err := e.store.Get(ctx, storage.KeyEditorModified)
	if err != nil {
		return false, fmt.Errorf("read modified flag: %w", err)
	}
	return ok && v == "true", nil
}

// Export writes the working set as JSON indented with four spaces and clears the modified flag
func (e *Editor) Export(ctx context.Context, w io.Writer) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	data, err := MarshalDataset(e.conflicts)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	if err := e.store.Remove(ctx, storage.KeyEditorModified); err != nil {
		return fmt.Errorf("clear modified flag: %w", err)
	}
	return nil
}

// Import replaces the working set with a JSON array. Records are not validated
// and fields of the wrong type are read leniently; a document that is not an
// array leaves the working set untouched.
func (e *Editor) Import(ctx context.Context, r io.Reader) (int, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("read import: %w", err)
	}

	conflicts, err := ParseDataset(data)
	if err != nil {
		return 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.persist(ctx, conflicts); err != nil {
		return 0, err
	}
	e.logger.Info("imported conflicts", zap.Int("count", len(conflicts)))
	return len(conflicts), nil
}

// Reset discards local edits and reloads the original dataset
func (e *Editor) Reset(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.store.Remove(ctx, storage.KeyEditorData, storage.KeyEditorModified); err != nil {
		return fmt.Errorf("clear local storage: %w", err)
	}
	e.loadOriginal(ctx)
	return nil
}

func nonNil(conflicts []model.Conflict) []model.Conflict {
	if conflicts == nil {
		return []model.Conflict{}
	}
	return conflicts
}

func clone(c model.Conflict) model.Conflict {
	if c.Countries != nil {
		c.Countries = append([]string(nil), c.Countries...)
	}
	return c
}

func cloneAll(conflicts []model.Conflict) []model.Conflict {
	out := make([]model.Conflict, len(conflicts))
	for i, c := range conflicts {
		out[i] = clone(c)
	}
	return out
}
