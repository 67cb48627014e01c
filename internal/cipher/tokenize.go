package cipher

import (
	"strings"
	"unicode/utf8"
)

// Tokenization is one way of splitting a ciphertext into tokens under a
// single word separator and character separator (or chunking) choice.
type Tokenization struct {
	WordSeparator      string
	CharacterSeparator string

	// Words holds the tokens of every non-empty word.
	Words [][]string

	// BlankSeparator is set when no character separator applied. A word
	// with a single token is then expanded recursively by the decoder.
	BlankSeparator bool
}

// Tokenize enumerates every viable tokenization of ciphertext under the
// module's separator settings. A configuration in which some word yields no
// tokens is dropped, as is one with no words at all.
//
// Line breaks are read as spaces.
func Tokenize(m *Module, ciphertext string) []Tokenization {
	if m == nil {
		return nil
	}
	text := normalizeLineBreaks(ciphertext)
	st := m.Settings

	var configs []Tokenization
	for _, ws := range st.WordSeparators {
		for _, cs := range st.CharacterSeparators {
			// When both separators are the same string a word boundary cannot
			// be told apart from a character boundary; read one long word.
			words := []string{text}
			if ws != "" && ws != cs {
				words = strings.Split(text, ws)
			}

			cfg := Tokenization{
				WordSeparator:      ws,
				CharacterSeparator: cs,
				BlankSeparator:     cs == "",
			}
			ok := true
			for _, raw := range words {
				raw = strings.TrimSpace(raw)
				if raw == "" {
					continue
				}
				toks := splitWord(raw, cs, st.ChunkSize)
				if len(toks) == 0 {
					ok = false
					break
				}
				cfg.Words = append(cfg.Words, toks)
			}
			if ok && len(cfg.Words) > 0 {
				configs = append(configs, cfg)
			}
		}
	}
	return configs
}

func splitWord(word, sep string, chunk int) []string {
	switch {
	case sep != "":
		parts := strings.Split(word, sep)
		toks := parts[:0]
		for _, p := range parts {
			if p != "" {
				toks = append(toks, p)
			}
		}
		return toks
	case chunk > 0:
		return chunkRunes(word, chunk)
	default:
		return []string{word}
	}
}

// chunkRunes splits s into pieces of n runes; the last piece may be shorter.
func chunkRunes(s string, n int) []string {
	var out []string
	for len(s) > 0 {
		end, count := 0, 0
		for end < len(s) && count < n {
			_, size := utf8.DecodeRuneInString(s[end:])
			end += size
			count++
		}
		out = append(out, s[:end])
		s = s[end:]
	}
	return out
}

func normalizeLineBreaks(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	return strings.ReplaceAll(s, "\n", " ")
}
