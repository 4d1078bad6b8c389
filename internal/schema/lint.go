// Package schema lints a conflicts dataset: JSON Schema conformance first,
// then checks the schema cannot express (unique ids, real calendar dates,
// interval order, known country codes).
package schema

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/ppiankov/conflictmap/internal/model"
)

//go:embed conflicts.schema.json
var conflictsSchema string

// Result lists every problem found in a dataset
type Result struct {
	Records int
	Issues  []model.Issue
}

// Errors counts the issues that are not warnings
func (r *Result) Errors() int {
	n := 0
	for _, issue := range r.Issues {
		if !issue.Warning {
			n++
		}
	}
	return n
}

// Warnings counts the warning issues
func (r *Result) Warnings() int {
	return len(r.Issues) - r.Errors()
}

// Valid reports whether the dataset has no errors. Warnings are allowed.
func (r *Result) Valid() bool {
	return r.Errors() == 0
}

// LintFile lints the dataset at path
func LintFile(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	return Lint(data)
}

// Lint checks a dataset document. The error is non-nil only when the
// document is not JSON at all.
func Lint(data []byte) (*Result, error) {
	var records []map[string]any
	if err := json.Unmarshal(data, &records); err != nil {
		// still report a wrong top-level type through the schema
		var probe any
		if jsonErr := json.Unmarshal(data, &probe); jsonErr != nil {
			return nil, fmt.Errorf("parse dataset: %w", jsonErr)
		}
	}

	result := &Result{Records: len(records)}

	schemaResult, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(conflictsSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return nil, fmt.Errorf("validate dataset: %w", err)
	}
	for _, desc := range schemaResult.Errors() {
		index, field := splitField(desc.Field())
		result.Issues = append(result.Issues, model.Issue{
			ConflictID: recordID(records, index),
			Field:      field,
			Message:    desc.Description(),
		})
	}

	var conflicts []model.Conflict
	if err := json.Unmarshal(data, &conflicts); err != nil {
		// a type mismatch is already reported by the schema
		return result, nil
	}
	result.Issues = append(result.Issues, checkConflicts(conflicts)...)
	return result, nil
}

func checkConflicts(conflicts []model.Conflict) []model.Issue {
	var issues []model.Issue
	seen := make(map[string]int)

	for i, c := range conflicts {
		id := c.ID
		if id == "" {
			id = fmt.Sprintf("#%d", i)
		}

		if c.ID != "" {
			if first, ok := seen[c.ID]; ok {
				issues = append(issues, model.Issue{
					ConflictID: id,
					Field:      "id",
					Message:    fmt.Sprintf("duplicate id (first used by record %d)", first),
				})
			} else {
				seen[c.ID] = i
			}
		}

		for _, field := range []struct {
			name string
			date model.Date
		}{{"startDate", c.StartDate}, {"endDate", c.EndDate}} {
			if field.date != "" && !field.date.Valid() {
				issues = append(issues, model.Issue{
					ConflictID: id,
					Field:      field.name,
					Message:    fmt.Sprintf("%q is not a calendar date", field.date),
				})
			}
		}

		if c.Inverted() {
			issues = append(issues, model.Issue{
				ConflictID: id,
				Field:      "endDate",
				Message:    fmt.Sprintf("ends (%s) before it starts (%s)", c.EndDate, c.StartDate),
				Warning:    true,
			})
		}

		for _, code := range c.Countries {
			if !model.KnownCountryCode(code) {
				issues = append(issues, model.Issue{
					ConflictID: id,
					Field:      "countries",
					Message:    fmt.Sprintf("country code %s has no display name", code),
					Warning:    true,
				})
			}
		}
	}
	return issues
}

// splitField turns "(root).3.casualties.us" into (3, "casualties.us")
func splitField(field string) (int, string) {
	field = strings.TrimPrefix(field, "(root)")
	field = strings.TrimPrefix(field, ".")

	head, rest, _ := strings.Cut(field, ".")
	index, err := strconv.Atoi(head)
	if err != nil {
		if field == "" {
			field = "(root)"
		}
		return -1, field
	}
	if rest == "" {
		rest = "(record)"
	}
	return index, rest
}

func recordID(records []map[string]any, index int) string {
	if index < 0 || index >= len(records) {
		return ""
	}
	if id, ok := records[index]["id"].(string); ok && id != "" {
		return id
	}
	return fmt.Sprintf("#%d", index)
}
