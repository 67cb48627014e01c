package ops

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/hpungsan/cipherbox/internal/db"
	"github.com/hpungsan/cipherbox/internal/errors"
)

// MaxWordsPerCall bounds a single add or delete request.
const MaxWordsPerCall = 1000

// WordsOutput contains the result of a dictionary word operation.
type WordsOutput struct {
	Changed int `json:"changed"`
	Total   int `json:"total"`
}

// AddWords stores extra dictionary words. Words are upper-cased and
// deduplicated; blank entries are ignored.
func AddWords(database *sql.DB, words []string) (*WordsOutput, error) {
	norm, err := normalizeWords(words)
	if err != nil {
		return nil, err
	}
	changed, err := db.InsertWords(database, norm)
	if err != nil {
		return nil, err
	}
	return wordsOutput(database, changed)
}

// DeleteWords removes stored dictionary words. Built-in dictionary words are
// not stored and are unaffected.
func DeleteWords(database *sql.DB, words []string) (*WordsOutput, error) {
	norm, err := normalizeWords(words)
	if err != nil {
		return nil, err
	}
	changed, err := db.DeleteWords(database, norm)
	if err != nil {
		return nil, err
	}
	return wordsOutput(database, changed)
}

// CountWords returns the number of stored dictionary words.
func CountWords(database *sql.DB) (*WordsOutput, error) {
	return wordsOutput(database, 0)
}

// ListWords returns every stored dictionary word.
func ListWords(database *sql.DB) ([]string, error) {
	return db.ListWords(database)
}

func wordsOutput(database *sql.DB, changed int) (*WordsOutput, error) {
	total, err := db.CountWords(database)
	if err != nil {
		return nil, err
	}
	return &WordsOutput{Changed: changed, Total: total}, nil
}

// normalizeWords upper-cases and deduplicates words. A dictionary word is
// matched against one space-delimited word of a candidate, so a word
// containing whitespace could never match and is rejected.
func normalizeWords(words []string) ([]string, error) {
	seen := make(map[string]bool, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.ToUpper(strings.TrimSpace(w))
		if w == "" || seen[w] {
			continue
		}
		if strings.ContainsAny(w, " \t\r\n") {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("word must not contain whitespace: %q", w))
		}
		seen[w] = true
		out = append(out, w)
	}
	if len(out) == 0 {
		return nil, errors.NewInvalidRequest("at least one word is required")
	}
	if len(out) > MaxWordsPerCall {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("too many words: %d (max %d)", len(out), MaxWordsPerCall))
	}
	return out, nil
}
