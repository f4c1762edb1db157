package locale

import "strings"

// InferCountryFromPhone matches an E.164 number against the known calling
// codes. The longest matching prefix wins.
func InferCountryFromPhone(phone string) *Country {
	normalized := strings.TrimSpace(phone)
	if !strings.HasPrefix(normalized, "+") {
		return nil
	}

	var (
		best    *Country
		bestLen int
	)
	for _, country := range Countries {
		for _, prefix := range country.PhonePrefixes {
			if len(prefix) > bestLen && strings.HasPrefix(normalized, prefix) {
				c := country
				best, bestLen = &c, len(prefix)
			}
		}
	}
	return best
}

func InferTimezoneFromPhone(phone string) string {
	if country := InferCountryFromPhone(phone); country != nil {
		return country.DefaultTimezone
	}
	return DefaultTimezone
}
