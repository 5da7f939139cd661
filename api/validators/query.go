package validators

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// ParseQueryInt reads key from the query string. A missing or blank value
// yields fallback; anything else must be an integer within [lo, hi].
func ParseQueryInt(r *http.Request, key string, fallback, lo, hi int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}

	value, err := strconv.Atoi(raw)
	switch {
	case err != nil:
		return 0, queryError(key, "must be a whole number")
	case value < lo:
		return 0, queryError(key, "must be at least "+strconv.Itoa(lo))
	case value > hi:
		return 0, queryError(key, "must be at most "+strconv.Itoa(hi))
	}
	return value, nil
}

func queryError(key, reason string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "invalid query parameter").
		WithDetails(map[string]string{key: reason})
}
