package cipher

import (
	"bufio"
	"io"
	"strings"
)

// Dictionary is an immutable set of known words, stored upper-cased.
// A nil *Dictionary is valid and knows no words.
type Dictionary struct {
	words map[string]struct{}
}

// NewDictionary builds a dictionary from words. Surrounding whitespace is
// trimmed and blank entries are ignored.
func NewDictionary(words []string) *Dictionary {
	d := &Dictionary{words: make(map[string]struct{}, len(words))}
	d.insert(words)
	return d
}

// ReadDictionary reads a newline-delimited word list.
func ReadDictionary(r io.Reader) (*Dictionary, error) {
	var words []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		words = append(words, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return NewDictionary(words), nil
}

func (d *Dictionary) insert(words []string) {
	for _, w := range words {
		w = strings.ToUpper(strings.TrimSpace(w))
		if w != "" {
			d.words[w] = struct{}{}
		}
	}
}

// With returns a new dictionary holding the receiver's words plus words.
func (d *Dictionary) With(words []string) *Dictionary {
	out := &Dictionary{words: make(map[string]struct{}, d.Len()+len(words))}
	if d != nil {
		for w := range d.words {
			out.words[w] = struct{}{}
		}
	}
	out.insert(words)
	return out
}

// Len returns the number of distinct words.
func (d *Dictionary) Len() int {
	if d == nil {
		return 0
	}
	return len(d.words)
}

// Contains reports whether word is known, ignoring case.
func (d *Dictionary) Contains(word string) bool {
	if d == nil || word == "" {
		return false
	}
	_, ok := d.words[strings.ToUpper(word)]
	return ok
}

// Score counts the space-delimited words of candidate that are known.
func (d *Dictionary) Score(candidate string) int {
	score := 0
	for _, w := range strings.Split(candidate, " ") {
		if d.Contains(w) {
			score++
		}
	}
	return score
}

// Rank keeps only the candidates with the highest score, in their original
// order. Ties are all kept. This is a plausibility heuristic; the best
// scoring candidate is not necessarily the intended plaintext.
func (d *Dictionary) Rank(candidates []string) []string {
	if d == nil || len(candidates) <= 1 {
		return candidates
	}
	scores := make([]int, len(candidates))
	best := 0
	for i, c := range candidates {
		scores[i] = d.Score(c)
		if scores[i] > best {
			best = scores[i]
		}
	}
	out := make([]string, 0, len(candidates))
	for i, c := range candidates {
		if scores[i] == best {
			out = append(out, c)
		}
	}
	return out
}

// AllKnown reports whether every non-empty word of candidate is known.
func (d *Dictionary) AllKnown(candidate string) bool {
	for _, w := range strings.Split(candidate, " ") {
		if w != "" && !d.Contains(w) {
			return false
		}
	}
	return true
}
