package http

import (
	"net/http"
	"strings"

	apperrors "lessonbook/pkg/errors"
)

// RequireQuery returns the trimmed values of the named query parameters, or
// an INVALID_INPUT error naming the first one missing.
func RequireQuery(r *http.Request, names ...string) (map[string]string, error) {
	query := r.URL.Query()
	values := make(map[string]string, len(names))

	for _, name := range names {
		v := strings.TrimSpace(query.Get(name))
		if v == "" {
			return nil, apperrors.InvalidInput("missing required query parameter: " + name)
		}
		values[name] = v
	}

	return values, nil
}
