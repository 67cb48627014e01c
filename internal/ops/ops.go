// Package ops implements the user's module library: cipher modules and
// dictionary words kept in sqlite alongside the built-in catalog.
package ops

import (
	"crypto/rand"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Pagination limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

var whitespaceRegex = regexp.MustCompile(`\s+`)

// NormalizeName trims, lowercases and collapses internal whitespace so that
// "Morse  Code" and "morse code" address the same stored module.
func NormalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return whitespaceRegex.ReplaceAllString(s, " ")
}

// generateULID generates a new ULID.
func generateULID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// clampPage applies limit defaults and bounds.
func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return limit, max(offset, 0)
}
