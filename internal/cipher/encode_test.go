package cipher

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func mustModule(t *testing.T, name, def string) *Module {
	t.Helper()
	m, err := ParseModule(name, []byte(def))
	require.NoError(t, err)
	return m
}

const twoLetterMorse = `{"encoding": {".-": "A", "-...": "B"}, "settings": {"word_separator": " ", "character_separator": " "}}`

func TestEncode_Morse(t *testing.T) {
	m := mustModule(t, "morse", twoLetterMorse)
	require.Equal(t, ".- -...", Encode(m, "AB", false))
}

func TestEncode_EmptyInput(t *testing.T) {
	m := mustModule(t, "morse", twoLetterMorse)
	require.Equal(t, "", Encode(m, "", false))
	require.Equal(t, "", Encode(nil, "AB", false))
	require.Nil(t, EncodeVariants(m, "", true))
}

func TestEncode_UnmappedPassesThrough(t *testing.T) {
	m := mustModule(t, "morse", twoLetterMorse)
	require.Equal(t, ".- ? -...", Encode(m, "A?B", false))
}

func TestEncode_FirstValueWins(t *testing.T) {
	m := mustModule(t, "leet", `{"encoding": {"A": ["4", "@"], "E": "3"}, "settings": {"reverse_direction": true}}`)
	require.Equal(t, "434", Encode(m, "AEA", false))
}

func TestEncode_InvertedCollisionUsesFirstKey(t *testing.T) {
	// Both "1" and "one" decode to A; encoding A uses the first definition.
	m := mustModule(t, "dup", `{"encoding": {"1": "A", "one": "A"}}`)
	require.Equal(t, "11", Encode(m, "AA", false))
}

func TestEncode_IgnoreCase(t *testing.T) {
	leet := mustModule(t, "leet", `{"encoding": {"A": "4", "E": "3"}, "settings": {"reverse_direction": true}}`)
	require.Equal(t, "ae", Encode(leet, "ae", false))
	require.Equal(t, "43", Encode(leet, "ae", true))

	lower := mustModule(t, "lower", `{"encoding": {"1": "a", "2": "b"}}`)
	require.Equal(t, "12", Encode(lower, "AB", true))

	sensitive := mustModule(t, "sensitive", `{"encoding": {"1": "a", "2": "A"}}`)
	require.Equal(t, "12", Encode(sensitive, "aA", true))
	require.Equal(t, "22", Encode(sensitive, "AA", true))
}

func TestEncode_WordSeparator(t *testing.T) {
	m := mustModule(t, "morse", `{"encoding": {".-": "A", "-...": "B"}, "settings": {"word_separator": " / ", "character_separator": " "}}`)
	require.Equal(t, ".- -... / -... .-", Encode(m, "AB BA", false))
}

func TestEncode_MultipleVariants(t *testing.T) {
	m := mustModule(t, "morse", `{"encoding": {".-": "A", "-...": "B"}, "settings": {"word_separator": " / ", "character_separator": [" ", null]}}`)

	variants := EncodeVariants(m, "AB", false)
	require.Len(t, variants, 2)
	require.Equal(t, ".- -...", variants[0].Encoded)
	require.Equal(t, ".--...", variants[1].Encoded)

	want := strings.Join([]string{
		ruleLine,
		`Encoding #1 (Using " " as character separator):`,
		".- -...",
		ruleLine,
		`Encoding #2 (Using null as character separator):`,
		".--...",
		ruleLine,
	}, "\n")
	require.Equal(t, want, Encode(m, "AB", false))
}

func TestEncode_IdenticalVariantsCollapse(t *testing.T) {
	// Two word separators but a one-word message: both encodings are equal.
	m := mustModule(t, "morse", `{"encoding": {".-": "A", "-...": "B"}, "settings": {"word_separator": [" / ", "   "], "character_separator": " "}}`)
	require.Len(t, EncodeVariants(m, "AB", false), 1)
	require.Equal(t, ".- -...", Encode(m, "AB", false))

	require.Len(t, EncodeVariants(m, "A B", false), 2)
}

func TestEncode_Deterministic(t *testing.T) {
	m := mustModule(t, "morse", `{"encoding": {".-": "A", "-...": "B", "-.-.": "C"}, "settings": {"word_separator": [" / ", "  "], "character_separator": [" ", null]}}`)
	first := Encode(m, "ABC CAB", false)
	for i := 0; i < 20; i++ {
		require.Equal(t, first, Encode(m, "ABC CAB", false))
	}
}
