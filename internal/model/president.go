package model

import "strings"

// Party is a president's political party
type Party string

const (
	PartyDemocratic Party = "Democratic"
	PartyRepublican Party = "Republican"
)

// President is one presidential term
type President struct {
	Name     string `json:"name"`
	Start    Date   `json:"start"`
	End      Date   `json:"end"`
	Party    Party  `json:"party"`
	Portrait string `json:"portrait,omitempty"`
}

// Initials returns first and last name initials, skipping middle initials
// ("Franklin D. Roosevelt" -> "FR"). Single-word names use their first two letters.
func (p President) Initials() string {
	var parts []string
	for _, part := range strings.Fields(p.Name) {
		if len(part) == 2 && strings.HasSuffix(part, ".") {
			continue
		}
		parts = append(parts, part)
	}
	if len(parts) >= 2 {
		first := []rune(parts[0])[0]
		last := []rune(parts[len(parts)-1])[0]
		return strings.ToUpper(string([]rune{first, last}))
	}
	r := []rune(p.Name)
	if len(r) > 2 {
		r = r[:2]
	}
	return strings.ToUpper(string(r))
}

// PartyColor is the avatar background for the president's party
func (p President) PartyColor() string {
	if p.Party == PartyDemocratic {
		return "#1a365d"
	}
	return "#9b2c2c"
}

// Years returns the start and end year of the term
func (p President) Years() (int, int) {
	return p.Start.Year(), p.End.Year()
}

// TermID identifies one term: the same person can serve non-consecutive terms
// ("Donald Trump@2017-01-20", "Donald Trump@2025-01-20").
func (p President) TermID() string {
	return p.Name + "@" + string(p.Start)
}

// FindTerm looks up a term by TermID. A bare name also matches when exactly
// one term carries it.
func FindTerm(all []President, key string) (President, bool) {
	for _, p := range all {
		if p.TermID() == key {
			return p, true
		}
	}
	terms := TermsOf(all, key)
	if len(terms) == 1 {
		return terms[0], true
	}
	return President{}, false
}

// TermsOf returns every term served by the named president, in input order
func TermsOf(all []President, name string) []President {
	var terms []President
	for _, p := range all {
		if p.Name == name {
			terms = append(terms, p)
		}
	}
	return terms
}
