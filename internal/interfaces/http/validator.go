package http

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"liveassist/internal/entities"
)

// Input validation constants
const (
	MaxConfigKeyLength = 64
	MaxConfigValLength = 4000
)

var configKeyPattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// ValidConfigKey checks if a setting key is safe
func ValidConfigKey(s string) bool {
	if s == "" || len(s) > MaxConfigKeyLength {
		return false
	}
	return configKeyPattern.MatchString(s)
}

// SanitizeString removes null bytes and invalid UTF-8
func SanitizeString(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")

	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for _, r := range s {
			if r != utf8.RuneError {
				v = append(v, r)
			}
		}
		s = string(v)
	}
	return s
}

// queryInt parses an optional non-negative integer query parameter.
func queryInt(raw, field string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0, entities.NewValidationError(field, field+" must be a non-negative integer")
	}
	return n, nil
}
