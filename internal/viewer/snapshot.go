package viewer

import (
	"sort"

	"github.com/ppiankov/conflictmap/internal/aggregate"
	"github.com/ppiankov/conflictmap/internal/model"
	"github.com/ppiankov/conflictmap/internal/timeline"
)

// Dataset is the immutable viewer data
type Dataset struct {
	Conflicts  []model.Conflict
	Presidents []model.President
	Known      map[string]bool // every country in any conflict, computed once
}

// NewDataset precomputes the known-countries set
func NewDataset(conflicts []model.Conflict, presidents []model.President) *Dataset {
	return &Dataset{
		Conflicts:  conflicts,
		Presidents: presidents,
		Known:      aggregate.KnownCountries(conflicts),
	}
}

// FindConflict looks up a conflict by id
func (d *Dataset) FindConflict(id string) (model.Conflict, bool) {
	for _, c := range d.Conflicts {
		if c.ID == id {
			return c, true
		}
	}
	return model.Conflict{}, false
}

// Snapshot is everything the viewer renders for one state
type Snapshot struct {
	State      State                            `json:"state"`
	Conflicts  []model.Conflict                 `json:"conflicts"` // sorted by start date
	Presidents []model.President                `json:"presidents"`
	Countries  map[string]aggregate.CountryStat `json:"countries"`
	Known      []string                         `json:"known"`
}

// Snapshot filters and aggregates the dataset for the given state
func (d *Dataset) Snapshot(s State) Snapshot {
	active := timeline.ActiveConflicts(d.Conflicts, s.Range)

	return Snapshot{
		State:      s,
		Conflicts:  SortByStart(active),
		Presidents: timeline.ActivePresidents(d.Presidents, s.Range),
		Countries:  aggregate.Aggregate(active),
		Known:      aggregate.SortedCodes(d.Known),
	}
}

// Highlight classifies a country for the snapshot
func (snap Snapshot) Highlight(code string) aggregate.Highlight {
	known := make(map[string]bool, len(snap.Known))
	for _, k := range snap.Known {
		known[k] = true
	}
	return aggregate.Classify(code, snap.Countries, known)
}

// SortByStart returns a copy ordered by start date; malformed dates sort last
func SortByStart(conflicts []model.Conflict) []model.Conflict {
	sorted := make([]model.Conflict, len(conflicts))
	copy(sorted, conflicts)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, okA := sorted[i].StartDate.Time()
		b, okB := sorted[j].StartDate.Time()
		if okA != okB {
			return okA
		}
		return a.Before(b)
	})
	return sorted
}
