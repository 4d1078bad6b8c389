package model

import "time"

// AuthorityTier represents the classification of a reference source
type AuthorityTier int

const (
	TierUnknown   AuthorityTier = 0 // Not yet classified
	TierPrimary   AuthorityTier = 1 // Government archives, official histories, academic sources
	TierSecondary AuthorityTier = 2 // Encyclopedias, major publishers, reputable media
	TierTertiary  AuthorityTier = 3 // Blogs, personal websites
)

func (t AuthorityTier) String() string {
	switch t {
	case TierPrimary:
		return "primary"
	case TierSecondary:
		return "secondary"
	case TierTertiary:
		return "tertiary"
	default:
		return "unknown"
	}
}

// LinkCheck is the result of auditing one conflict's reference link
type LinkCheck struct {
	ConflictID   string        `json:"conflict_id"`
	URL          string        `json:"url"`
	IsAccessible bool          `json:"is_accessible"`
	StatusCode   int           `json:"status_code,omitempty"`
	LastModified *time.Time    `json:"last_modified,omitempty"`
	IsDead       bool          `json:"is_dead"`                // 404, 410, or unreachable
	Disallowed   bool          `json:"disallowed,omitempty"`   // blocked by robots.txt
	RedirectURL  string        `json:"redirect_url,omitempty"` // If redirected
	Authority    AuthorityTier `json:"authority"`
	Error        string        `json:"error,omitempty"`
}

// Issue is a dataset problem found while linting
type Issue struct {
	ConflictID string `json:"conflict_id,omitempty"`
	Field      string `json:"field,omitempty"`
	Message    string `json:"message"`
	Warning    bool   `json:"warning,omitempty"` // non-fatal, e.g. inverted intervals
}
