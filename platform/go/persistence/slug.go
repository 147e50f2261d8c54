package persistence

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Slugify converts arbitrary user input into a URL-safe slug: lowercase,
// runs of characters outside [a-z0-9] collapse into a single hyphen, and
// leading/trailing hyphens are trimmed. An input with no usable characters
// yields the empty string; callers decide whether that is an error.
func Slugify(input string) string {
	var b strings.Builder
	b.Grow(len(input))

	lastWasDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(input)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastWasDash = false
		default:
			if !lastWasDash {
				b.WriteRune('-')
				lastWasDash = true
			}
		}
	}

	return strings.Trim(b.String(), "-")
}

// NormalizeSlug trims whitespace, lowercases the value, and ensures it matches
// the canonical URL-safe slug pattern required for machine-supplied identifiers.
func NormalizeSlug(input string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", errors.New("slug is required")
	}

	normalized := strings.ToLower(trimmed)
	if !slugPattern.MatchString(normalized) {
		return "", fmt.Errorf("invalid slug %q: must match ^[a-z0-9]+(?:-[a-z0-9]+)*$", input)
	}

	return normalized, nil
}
