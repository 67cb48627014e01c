package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/cipherbox/internal/cipher"
	"github.com/hpungsan/cipherbox/internal/errors"
)

func mustModule(t *testing.T, name, def string) *cipher.Module {
	t.Helper()
	m, err := cipher.ParseModule(name, []byte(def))
	require.NoError(t, err)
	return m
}

const (
	morseDef = `{"encoding": {".-": "A", "-...": "B", "...": "S", "---": "O", "....": "H", "..": "I"}, "settings": {"word_separator": " / ", "character_separator": [" ", null]}}`
	leetDef  = `{"encoding": {"A": "4", "E": "3", "L": "1", "T": "7"}, "settings": {"reverse_direction": true}}`
	t9Def    = `{"encoding": {"4": ["G", "H", "I"], "3": ["D", "E", "F"]}, "settings": {"character_separator": "-", "word_separator": " "}}`
)

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	reg := NewRegistry(
		mustModule(t, "Morse Code", morseDef),
		mustModule(t, "1337", leetDef),
		mustModule(t, "T9 Cipher", t9Def),
	)
	dict := cipher.NewDictionary([]string{"hi", "he", "sos", "leet"})
	return New(reg, dict, opts...)
}

func TestRun_Encode(t *testing.T) {
	e := newTestEngine(t)

	res, err := e.Run(context.Background(), Request{Mode: ModeEncode, Module: "1337", Text: "LEET"})
	require.NoError(t, err)
	require.Equal(t, StatusOK, res.Status)
	require.Equal(t, "1337", res.Output)
	require.Len(t, res.Variants, 1)
}

func TestRun_EncodeMultipleVariants(t *testing.T) {
	e := newTestEngine(t)

	res, err := e.Run(context.Background(), Request{Mode: ModeEncode, Module: "Morse Code", Text: "SOS"})
	require.NoError(t, err)
	require.Len(t, res.Variants, 2)
	require.Contains(t, res.Output, "Encoding #1 (Using \" \" as character separator):\n... --- ...")
	require.Contains(t, res.Output, "Encoding #2 (Using null as character separator):\n...---...")
}

func TestRun_EncodeWithoutModule(t *testing.T) {
	e := newTestEngine(t)

	for _, name := range []string{"", AutoDetect} {
		res, err := e.Run(context.Background(), Request{Mode: ModeEncode, Module: name, Text: "hi"})
		require.NoError(t, err)
		require.Equal(t, StatusNoSelection, res.Status)
		require.Equal(t, MsgSelectModule, res.Output)
	}
}

func TestRun_EmptyInputShortCircuits(t *testing.T) {
	e := newTestEngine(t)

	for _, req := range []Request{
		{Mode: ModeEncode, Module: "1337", Text: ""},
		{Mode: ModeDecode, Module: "1337", Text: "   "},
		{Mode: ModeDecode, Text: "\n"},
		{Mode: ModeEncode, Text: ""},
	} {
		res, err := e.Run(context.Background(), req)
		require.NoError(t, err)
		require.Equal(t, StatusEmpty, res.Status)
		require.Equal(t, "", res.Output)
		require.Empty(t, res.Candidates)
		require.Empty(t, res.Sections)
	}
}

func TestRun_DecodeExplicitModule(t *testing.T) {
	e := newTestEngine(t)

	res, err := e.Run(context.Background(), Request{
		Mode: ModeDecode, Module: "Morse Code", Text: "... --- ...",
		Options: Options{RequirePerfect: true},
	})
	require.NoError(t, err)
	require.Equal(t, StatusOK, res.Status)
	require.Equal(t, []string{"SOS"}, res.Candidates)
	require.Equal(t, "SOS", res.Output)
}

func TestRun_DecodeUnableToDecode(t *testing.T) {
	e := newTestEngine(t)

	res, err := e.Run(context.Background(), Request{
		Mode: ModeDecode, Module: "Morse Code", Text: "xyz",
		Options: Options{RequirePerfect: true},
	})
	require.NoError(t, err)
	require.Equal(t, StatusUndecodable, res.Status)
	require.Equal(t, MsgUnableToDecode, res.Output)
}

func TestRun_DecodeRanksWithDictionary(t *testing.T) {
	e := newTestEngine(t)

	res, err := e.Run(context.Background(), Request{
		Mode: ModeDecode, Module: "T9 Cipher", Text: "4-4 4-3",
		Options: Options{RequirePerfect: true},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"HI HE"}, res.Candidates)
}

func TestRun_RequireDictionary(t *testing.T) {
	e := newTestEngine(t)

	// Lenient decoding of a digit-free word passes it through unchanged.
	res, err := e.Run(context.Background(), Request{
		Mode: ModeDecode, Module: "1337", Text: "xyz",
	})
	require.NoError(t, err)
	require.Equal(t, []string{"xyz"}, res.Candidates)

	res, err = e.Run(context.Background(), Request{
		Mode: ModeDecode, Module: "1337", Text: "xyz",
		Options: Options{RequireDictionary: true},
	})
	require.NoError(t, err)
	require.Equal(t, StatusUndecodable, res.Status)
	require.Empty(t, res.Candidates)

	res, err = e.Run(context.Background(), Request{
		Mode: ModeDecode, Module: "1337", Text: "1337",
		Options: Options{RequireDictionary: true},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"LEET"}, res.Candidates)
}

func TestRun_RequireDictionaryWithoutDictionary(t *testing.T) {
	e := New(NewRegistry(mustModule(t, "1337", leetDef)), nil)

	res, err := e.Run(context.Background(), Request{
		Mode: ModeDecode, Module: "1337", Text: "xyz",
		Options: Options{RequireDictionary: true},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"xyz"}, res.Candidates)
}

func TestRun_AutoDetectKeepsOnlyDecodingModules(t *testing.T) {
	e := newTestEngine(t)

	res, err := e.Run(context.Background(), Request{
		Mode: ModeDecode, Module: AutoDetect, Text: "...---...",
		Options: Options{RequirePerfect: true},
	})
	require.NoError(t, err)
	require.Equal(t, StatusOK, res.Status)
	require.Len(t, res.Sections, 1)
	require.Equal(t, "Morse Code", res.Sections[0].Module)
	require.Contains(t, res.Sections[0].Candidates, "SOS")
	require.True(t, strings.HasPrefix(res.Output, "# Morse Code\n  • "))
}

func TestRun_AutoDetectRendersSections(t *testing.T) {
	a := mustModule(t, "Alpha", `{"encoding": {"1": "A"}}`)
	b := mustModule(t, "Beta", `{"encoding": {"1": ["B", "C"]}}`)
	e := New(NewRegistry(a, b), nil)

	res, err := e.Run(context.Background(), Request{Text: "1", Options: Options{RequirePerfect: true}})
	require.NoError(t, err)
	require.Equal(t, "# Alpha\n  • A\n\n# Beta\n  • B\n  • C", res.Output)
	require.Equal(t, AutoDetect, res.Module)
}

func TestRun_AutoDetectNothingDecodes(t *testing.T) {
	e := newTestEngine(t)

	res, err := e.Run(context.Background(), Request{
		Mode: ModeDecode, Text: "qqq",
		Options: Options{RequirePerfect: true},
	})
	require.NoError(t, err)
	require.Equal(t, StatusNoModule, res.Status)
	require.Equal(t, MsgNoModule, res.Output)
	require.Empty(t, res.Sections)
}

func TestRun_Errors(t *testing.T) {
	e := newTestEngine(t, WithMaxInputChars(5))

	_, err := e.Run(context.Background(), Request{Mode: "rot13", Text: "hi"})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))

	_, err = e.Run(context.Background(), Request{Mode: ModeDecode, Module: "Nope", Text: "hi"})
	require.True(t, errors.Is(err, errors.ErrNotFound))

	_, err = e.Run(context.Background(), Request{Mode: ModeEncode, Module: "Nope", Text: "hi"})
	require.True(t, errors.Is(err, errors.ErrNotFound))

	_, err = e.Run(context.Background(), Request{Mode: ModeDecode, Text: "toolong"})
	require.True(t, errors.Is(err, errors.ErrInputTooLarge))
}

func TestRun_Cancelled(t *testing.T) {
	e := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Run(ctx, Request{Mode: ModeDecode, Text: "...---..."})
	require.ErrorIs(t, err, context.Canceled)
}

func TestRun_LimitsTruncate(t *testing.T) {
	amb := mustModule(t, "Ambiguous", `{"encoding": {"a": ["1", "2"], "aa": "3"}}`)
	e := New(NewRegistry(amb), nil, WithLimits(cipher.Limits{MaxCandidates: 100}))

	res, err := e.Run(context.Background(), Request{
		Mode: ModeDecode, Module: "Ambiguous", Text: strings.Repeat("a", 16),
		Options: Options{RequirePerfect: true, Limits: cipher.Limits{MaxCandidates: 4}},
	})
	require.NoError(t, err)
	require.True(t, res.Truncated)
	require.LessOrEqual(t, len(res.Candidates), 4)
}

func TestTighter(t *testing.T) {
	tests := []struct {
		a, b, want cipher.Limits
	}{
		{cipher.Limits{}, cipher.Limits{}, cipher.Limits{}},
		{cipher.Limits{MaxCandidates: 10}, cipher.Limits{}, cipher.Limits{MaxCandidates: 10}},
		{cipher.Limits{}, cipher.Limits{MaxSteps: 7}, cipher.Limits{MaxSteps: 7}},
		{cipher.Limits{MaxCandidates: 10, MaxSteps: 5}, cipher.Limits{MaxCandidates: 3, MaxSteps: 50}, cipher.Limits{MaxCandidates: 3, MaxSteps: 5}},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, tighter(tt.a, tt.b))
	}
}
