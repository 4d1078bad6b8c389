package editor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ppiankov/conflictmap/internal/model"
)

// MarshalDataset encodes conflicts the way the dataset file is written: four-space indent, no HTML escaping
func MarshalDataset(conflicts []model.Conflict) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(nonNil(conflicts)); err != nil {
		return nil, fmt.Errorf("marshal conflicts: %w", err)
	}
	return buf.Bytes(), nil
}

// ParseDataset decodes a dataset document. Only malformed JSON and a
// top-level value other than an array are errors: every element of the
// array becomes a record, reading mistyped fields as best it can.
func ParseDataset(data []byte) ([]model.Conflict, error) {
	if !json.Valid(data) {
		var v any
		err := json.Unmarshal(data, &v)
		return nil, fmt.Errorf("error parsing JSON: %w", err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, ErrImportNotArray
	}

	var records []json.RawMessage
	if err := json.Unmarshal(trimmed, &records); err != nil {
		return nil, fmt.Errorf("error parsing JSON: %w", err)
	}

	conflicts := make([]model.Conflict, 0, len(records))
	for _, raw := range records {
		conflicts = append(conflicts, decodeRecord(raw))
	}
	return conflicts, nil
}

// decodeRecord reads one array element. A well-typed object decodes
// directly; otherwise each field is read on its own and a field that cannot
// be read stays zero. Elements that are not objects become empty records.
func decodeRecord(raw json.RawMessage) model.Conflict {
	var c model.Conflict
	if err := json.Unmarshal(raw, &c); err == nil {
		return c
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return model.Conflict{}
	}

	c = model.Conflict{
		ID:          looseString(fields["id"]),
		Name:        looseString(fields["name"]),
		Type:        model.ConflictType(looseString(fields["type"])),
		Countries:   looseCountries(fields["countries"]),
		StartDate:   model.Date(looseString(fields["startDate"])),
		EndDate:     model.Date(looseString(fields["endDate"])),
		Description: looseString(fields["description"]),
		Outcome:     looseString(fields["outcome"]),
		WikiLink:    looseString(fields["wikiLink"]),
	}

	var casualties map[string]json.RawMessage
	if json.Unmarshal(fields["casualties"], &casualties) == nil {
		c.Casualties.US = looseCount(casualties["us"])
		c.Casualties.Total = looseCount(casualties["total"])
	}
	return c
}

// looseString keeps strings and the literal text of numbers and booleans
func looseString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	switch text := string(bytes.TrimSpace(raw)); {
	case text == "null", strings.HasPrefix(text, "{"), strings.HasPrefix(text, "["):
		return ""
	default:
		return text
	}
}

// looseCountries accepts a list of codes or a single free-text string
func looseCountries(raw json.RawMessage) []string {
	var items []json.RawMessage
	if json.Unmarshal(raw, &items) != nil {
		if s := looseString(raw); s != "" {
			return ParseCountries(s)
		}
		return nil
	}
	codes := make([]string, 0, len(items))
	for _, item := range items {
		if s := looseString(item); s != "" {
			codes = append(codes, s)
		}
	}
	return codes
}

// looseCount reads whole numbers, truncates fractions and parses numeric
// strings ("1,200"). Anything else counts as zero.
func looseCount(raw json.RawMessage) int64 {
	if len(raw) == 0 {
		return 0
	}
	var f float64
	if json.Unmarshal(raw, &f) == nil {
		if math.IsNaN(f) || math.Abs(f) > math.MaxInt64 {
			return 0
		}
		return int64(f)
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		if n, ok := ParseCount(s); ok {
			return n
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil && math.Abs(f) <= math.MaxInt64 {
			return int64(f)
		}
	}
	return 0
}
