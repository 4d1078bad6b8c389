package model

import "sort"

// countryNames maps ISO 3166-1 alpha-2 codes to display names
var countryNames = map[string]string{
	"AF": "Afghanistan",
	"AL": "Albania",
	"DZ": "Algeria",
	"AT": "Austria",
	"BA": "Bosnia and Herzegovina",
	"BE": "Belgium",
	"CL": "Chile",
	"CU": "Cuba",
	"DE": "Germany",
	"DO": "Dominican Republic",
	"EG": "Egypt",
	"FR": "France",
	"GB": "United Kingdom",
	"GD": "Grenada",
	"GR": "Greece",
	"GT": "Guatemala",
	"HR": "Croatia",
	"HN": "Honduras",
	"HT": "Haiti",
	"ID": "Indonesia",
	"IL": "Israel",
	"IQ": "Iraq",
	"IR": "Iran",
	"IT": "Italy",
	"JP": "Japan",
	"KH": "Cambodia",
	"KP": "North Korea",
	"KR": "South Korea",
	"KW": "Kuwait",
	"LA": "Laos",
	"LB": "Lebanon",
	"LY": "Libya",
	"MA": "Morocco",
	"NI": "Nicaragua",
	"NL": "Netherlands",
	"PA": "Panama",
	"PH": "Philippines",
	"PK": "Pakistan",
	"PL": "Poland",
	"PS": "Palestine",
	"RS": "Serbia",
	"RU": "Russia",
	"SD": "Sudan",
	"SO": "Somalia",
	"SV": "El Salvador",
	"SY": "Syria",
	"TL": "East Timor",
	"TN": "Tunisia",
	"UA": "Ukraine",
	"VE": "Venezuela",
	"VN": "Vietnam",
	"XK": "Kosovo",
	"YE": "Yemen",
}

// CountryName returns the display name for an ISO code, or the code itself when unknown
func CountryName(code string) string {
	if name, ok := countryNames[code]; ok {
		return name
	}
	return code
}

// KnownCountryCode reports whether the code is in the name table
func KnownCountryCode(code string) bool {
	_, ok := countryNames[code]
	return ok
}

// CountryCodes returns every code in the name table, sorted
func CountryCodes() []string {
	codes := make([]string, 0, len(countryNames))
	for code := range countryNames {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
