package ops

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/cipherbox/internal/db"
)

const morseDefinition = `{
  "description": "International **Morse** code.",
  "encoding": {".-": "A", "-...": "B", "...": "S", "---": "O"},
  "settings": {"word_separator": [" / "], "character_separator": [" ", null]}
}`

const leetDefinition = `{"mapping": {"4": "A", "3": "E", "1": ["I", "L"]}, "usage": {"reverse_direction": false}}`

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.Init(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Morse Code", "morse code"},
		{"  Morse \t  Code  ", "morse code"},
		{"1337", "1337"},
		{"   ", ""},
	}
	for _, tt := range tests {
		if got := NormalizeName(tt.in); got != tt.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestClampPage(t *testing.T) {
	limit, offset := clampPage(0, -5)
	require.Equal(t, DefaultListLimit, limit)
	require.Equal(t, 0, offset)

	limit, offset = clampPage(MaxListLimit+1, 3)
	require.Equal(t, MaxListLimit, limit)
	require.Equal(t, 3, offset)
}

func TestGenerateULID(t *testing.T) {
	a, err := generateULID()
	require.NoError(t, err)
	b, err := generateULID()
	require.NoError(t, err)
	require.Len(t, a, 26)
	require.NotEqual(t, a, b)
}
