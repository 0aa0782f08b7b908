package validators

import (
	"net/http"
	"slices"
	"strconv"
	"strings"

	pkgerrors "github.com/angelmondragon/fashionstore-backend/pkg/errors"
)

func ParseQueryInt(r *http.Request, key string, defaultVal, min, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return defaultVal, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, key+" must be a whole number").WithDetails(map[string]any{"field": key})
	}
	if value < min || value > max {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, key+" is out of range").WithDetails(map[string]any{"field": key, "min": min, "max": max})
	}
	return value, nil
}

// ParseQueryEnum reads an optional, case-insensitive query value that must be
// one of allowed. An absent value returns "".
func ParseQueryEnum(r *http.Request, key string, allowed ...string) (string, error) {
	raw := strings.ToLower(strings.TrimSpace(r.URL.Query().Get(key)))
	if raw == "" || slices.Contains(allowed, raw) {
		return raw, nil
	}
	return "", pkgerrors.New(pkgerrors.CodeValidation, key+" must be one of "+strings.Join(allowed, ", ")).
		WithDetails(map[string]any{"field": key, "allowed": allowed})
}
