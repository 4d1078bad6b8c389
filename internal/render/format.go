package render

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/ppiankov/conflictmap/internal/model"
)

const longDateLayout = "January 2, 2006"

// FormatDate renders a dataset date in long form ("June 25, 1950").
// Malformed dates are shown as written.
func FormatDate(d model.Date) string {
	t, ok := d.Time()
	if !ok {
		return string(d)
	}
	return t.Format(longDateLayout)
}

// FormatNumber adds thousands separators
func FormatNumber(n int64) string {
	return humanize.Comma(n)
}

// YearSpan renders "1950 - 1953"
func YearSpan(start, end model.Date) string {
	return fmt.Sprintf("%s - %s", yearOf(start), yearOf(end))
}

func yearOf(d model.Date) string {
	if y := d.Year(); y != 0 {
		return fmt.Sprint(y)
	}
	return "?"
}

// PresidentDates renders "1953 - 1961 (Republican)"
func PresidentDates(p model.President) string {
	return fmt.Sprintf("%s (%s)", YearSpan(p.Start, p.End), p.Party)
}

// CountryNames maps ISO codes to display names
func CountryNames(codes []string) []string {
	names := make([]string, len(codes))
	for i, code := range codes {
		names[i] = model.CountryName(code)
	}
	return names
}

const avatarSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 50 50">` +
	`<rect fill="%s" width="50" height="50" rx="25"/>` +
	`<text x="25" y="32" text-anchor="middle" fill="white" font-family="Arial" font-weight="bold" font-size="18">%s</text></svg>`

// AvatarDataURI draws the president's initials on a party-coloured disc
func AvatarDataURI(p model.President) string {
	initials := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(p.Initials())
	svg := fmt.Sprintf(avatarSVG, p.PartyColor(), initials)
	return "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString([]byte(svg))
}
