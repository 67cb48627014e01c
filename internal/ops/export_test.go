package ops

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/cipherbox/internal/config"
	"github.com/hpungsan/cipherbox/internal/errors"
)

func exportConfig(dir string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.AllowedPaths = []string{dir}
	return cfg
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.NoError(t, scanner.Err())
	return lines
}

func TestExport_HappyPath(t *testing.T) {
	database := openDB(t)
	dir := t.TempDir()

	for _, name := range []string{"Morse Code", "1337"} {
		_, err := AddModule(database, AddModuleInput{Name: name, Definition: []byte(morseDefinition)})
		require.NoError(t, err)
	}

	exportPath := filepath.Join(dir, "modules.jsonl")
	out, err := Export(context.Background(), database, exportConfig(dir), ExportInput{Path: exportPath})
	require.NoError(t, err)
	require.Equal(t, exportPath, out.Path)
	require.Equal(t, 2, out.Count)
	require.NotZero(t, out.ExportedAt)

	lines := readLines(t, exportPath)
	require.Len(t, lines, 3)

	var header ExportHeader
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &header))
	require.True(t, header.CipherboxExport)
	require.Equal(t, ExportSchemaVersion, header.SchemaVersion)

	var rec ExportRecord
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &rec))
	require.NotEmpty(t, rec.ID)
	require.Contains(t, string(rec.Definition), `"encoding"`)

	// No temp files are left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestExport_SingleModule(t *testing.T) {
	database := openDB(t)
	dir := t.TempDir()

	_, err := AddModule(database, AddModuleInput{Name: "keep", Definition: []byte(leetDefinition)})
	require.NoError(t, err)
	_, err = AddModule(database, AddModuleInput{Name: "other", Definition: []byte(leetDefinition)})
	require.NoError(t, err)

	name := "KEEP"
	out, err := Export(context.Background(), database, exportConfig(dir), ExportInput{
		Path: filepath.Join(dir, "one.jsonl"),
		Name: &name,
	})
	require.NoError(t, err)
	require.Equal(t, 1, out.Count)

	missing := "nope"
	_, err = Export(context.Background(), database, exportConfig(dir), ExportInput{
		Path: filepath.Join(dir, "two.jsonl"),
		Name: &missing,
	})
	require.True(t, errors.Is(err, errors.ErrNotFound), "got %v", err)
}

func TestExport_RejectsPathOutsideAllowedDirs(t *testing.T) {
	database := openDB(t)

	_, err := Export(context.Background(), database, config.DefaultConfig(), ExportInput{
		Path: filepath.Join(t.TempDir(), "modules.jsonl"),
	})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest), "got %v", err)
}

func TestDefaultExportPath(t *testing.T) {
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	path, err := defaultExportPath("", now)
	require.NoError(t, err)
	require.Equal(t, "modules-2026-03-04T050607.jsonl", filepath.Base(path))
	require.True(t, strings.HasSuffix(filepath.Dir(path), filepath.Join(config.DirName, "exports")))

	path, err = defaultExportPath("../evil/name", now)
	require.NoError(t, err)
	require.Equal(t, "evil-name-2026-03-04T050607.jsonl", filepath.Base(path))
}
