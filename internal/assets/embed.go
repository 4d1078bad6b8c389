// Package assets loads the conflict and president datasets and the country boundaries.
package assets

import "embed"

//go:embed data/conflicts.json data/presidents.json
var files embed.FS

const (
	embeddedConflicts  = "data/conflicts.json"
	embeddedPresidents = "data/presidents.json"

	// SourceEmbedded selects the dataset compiled into the binary
	SourceEmbedded = "embedded"
)

// EmbeddedConflicts returns the raw conflicts.json shipped with the binary
func EmbeddedConflicts() []byte {
	data, _ := files.ReadFile(embeddedConflicts)
	return data
}
