package locale

import (
	"slices"
	"strings"
)

const DefaultTimezone = "UTC"

type Country struct {
	Code            string   // ISO 3166-1 alpha-2
	Name            string
	PhonePrefixes   []string // E.164 calling codes, with the leading '+'
	DefaultTimezone string   // IANA zone used when an owner has none set
}

var Countries = map[string]Country{
	"IL": {Code: "IL", Name: "Israel", PhonePrefixes: []string{"+972"}, DefaultTimezone: "Asia/Jerusalem"},
	"US": {Code: "US", Name: "United States", PhonePrefixes: []string{"+1"}, DefaultTimezone: "America/New_York"},
	"GB": {Code: "GB", Name: "United Kingdom", PhonePrefixes: []string{"+44"}, DefaultTimezone: "Europe/London"},
	"DE": {Code: "DE", Name: "Germany", PhonePrefixes: []string{"+49"}, DefaultTimezone: "Europe/Berlin"},
	"FR": {Code: "FR", Name: "France", PhonePrefixes: []string{"+33"}, DefaultTimezone: "Europe/Paris"},
	"BR": {Code: "BR", Name: "Brazil", PhonePrefixes: []string{"+55"}, DefaultTimezone: "America/Sao_Paulo"},
	"IN": {Code: "IN", Name: "India", PhonePrefixes: []string{"+91"}, DefaultTimezone: "Asia/Kolkata"},
	"AU": {Code: "AU", Name: "Australia", PhonePrefixes: []string{"+61"}, DefaultTimezone: "Australia/Sydney"},
}

// Regions lists the country codes in Countries, sorted.
func Regions() []string {
	regions := make([]string, 0, len(Countries))
	for code := range Countries {
		regions = append(regions, code)
	}
	slices.Sort(regions)
	return regions
}

// TimezoneForRegion returns the default zone of a country code, or
// DefaultTimezone when the code is unknown.
func TimezoneForRegion(code string) string {
	if c, ok := Countries[strings.ToUpper(code)]; ok {
		return c.DefaultTimezone
	}
	return DefaultTimezone
}
