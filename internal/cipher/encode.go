package cipher

import (
	"fmt"
	"strings"
)

// ruleLine frames each block of a multi-variant encoding.
const ruleLine = "-----------------------------------------------------------"

// Variant is one distinct encoding of a plaintext.
type Variant struct {
	Encoded            string `json:"encoded"`
	CharacterSeparator string `json:"character_separator"`
	WordSeparator      string `json:"word_separator"`
}

// EncodeVariants encodes text under every character x word separator
// combination of the module and returns the distinct results in order.
//
// Each character maps to the first value of its encode entry; characters
// without an entry pass through unchanged.
func EncodeVariants(m *Module, text string, ignoreCase bool) []Variant {
	if m == nil || text == "" {
		return nil
	}

	encodeMap := m.EncodeMap()
	plain := text
	if ignoreCase {
		plain = foldCase(encodeMap.Keys(), text)
	}
	words := strings.Split(plain, " ")

	var variants []Variant
	seen := make(map[string]bool)
	for _, cs := range m.Settings.CharacterSeparators {
		for _, ws := range m.Settings.WordSeparators {
			encodedWords := make([]string, len(words))
			for i, w := range words {
				encodedWords[i] = encodeWord(encodeMap, w, cs)
			}
			encoded := strings.Join(encodedWords, ws)

			if seen[encoded] {
				continue
			}
			seen[encoded] = true
			variants = append(variants, Variant{
				Encoded:            encoded,
				CharacterSeparator: cs,
				WordSeparator:      ws,
			})
		}
	}
	return variants
}

func encodeWord(encodeMap *Mapping, word, sep string) string {
	parts := make([]string, 0, len(word))
	for _, r := range word {
		c := string(r)
		if values, ok := encodeMap.Lookup(c); ok && len(values) > 0 {
			c = values[0]
		}
		parts = append(parts, c)
	}
	return strings.Join(parts, sep)
}

// Encode returns the encoding of text as a single string. When the module
// admits several distinct encodings, every one of them is rendered as a
// labelled block.
func Encode(m *Module, text string, ignoreCase bool) string {
	return FormatVariants(EncodeVariants(m, text, ignoreCase))
}

// FormatVariants renders variants: a single variant is returned bare,
// several are wrapped in numbered blocks naming their character separator.
func FormatVariants(variants []Variant) string {
	switch len(variants) {
	case 0:
		return ""
	case 1:
		return variants[0].Encoded
	}

	blocks := make([]string, 0, len(variants))
	for i, v := range variants {
		blocks = append(blocks, fmt.Sprintf("%s\nEncoding #%d (Using %s as character separator):\n%s",
			ruleLine, i+1, describeSeparator(v.CharacterSeparator), v.Encoded))
	}
	return strings.Join(blocks, "\n") + "\n" + ruleLine
}

func describeSeparator(sep string) string {
	if sep == "" {
		return "null"
	}
	return fmt.Sprintf("%q", sep)
}

// foldCase upper- or lower-cases text to match the case of the map keys,
// unless the keys are case sensitive.
func foldCase(keys []string, text string) string {
	if caseSensitive(keys) {
		return text
	}
	for _, k := range keys {
		if k != strings.ToLower(k) {
			return strings.ToUpper(text)
		}
	}
	for _, k := range keys {
		if k != strings.ToUpper(k) {
			return strings.ToLower(text)
		}
	}
	return text
}

// caseSensitive reports whether the keys distinguish case: two keys differ
// only by case, or a single key mixes cases.
func caseSensitive(keys []string) bool {
	byFold := make(map[string]string, len(keys))
	for _, k := range keys {
		upper := strings.ToUpper(k)
		if k != upper && k != strings.ToLower(k) {
			return true
		}
		if prev, ok := byFold[upper]; ok && prev != k {
			return true
		}
		byFold[upper] = k
	}
	return false
}
