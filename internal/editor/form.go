package editor

import (
	"strconv"
	"strings"
)

// ParseCountries reads a free-text country list ("iq, sy;LB") into upper-case codes
func ParseCountries(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t' || r == '\n'
	})
	codes := make([]string, 0, len(fields))
	for _, f := range fields {
		codes = append(codes, strings.ToUpper(f))
	}
	return codes
}

// ParseCount reads a casualty figure. Empty input is zero; thousands separators are allowed.
func ParseCount(s string) (int64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, true
	}
	n, err := strconv.ParseInt(s, 10, 64)
	return n, err == nil
}
