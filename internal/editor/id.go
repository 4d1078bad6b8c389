package editor

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ppiankov/conflictmap/internal/model"
)

const maxIDLength = 50

var (
	idStripPattern = regexp.MustCompile(`[^a-z0-9\s-]`)
	idSpacePattern = regexp.MustCompile(`\s+`)
)

// Slugify derives the base id of a conflict name: lowercase, strip everything but
// letters, digits, whitespace and hyphens, collapse whitespace into hyphens, truncate.
func Slugify(name string) string {
	id := strings.ToLower(name)
	id = idStripPattern.ReplaceAllString(id, "")
	id = idSpacePattern.ReplaceAllString(id, "-")
	if len(id) > maxIDLength {
		id = id[:maxIDLength]
	}
	return id
}

// GenerateID returns a unique id for name among existing, appending -1, -2, ...
// on collision. The record being edited (editingID) does not count as a collision.
func GenerateID(name string, existing []model.Conflict, editingID string) string {
	return uniqueID(Slugify(name), existing, editingID)
}

func uniqueID(base string, existing []model.Conflict, editingID string) string {
	taken := func(id string) bool {
		for _, c := range existing {
			if c.ID == id && c.ID != editingID {
				return true
			}
		}
		return false
	}

	id := base
	for counter := 1; taken(id); counter++ {
		id = fmt.Sprintf("%s-%d", base, counter)
	}
	return id
}
