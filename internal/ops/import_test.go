package ops

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/cipherbox/internal/errors"
)

func writeImportFile(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "import.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestExportImport_RoundTrip(t *testing.T) {
	src := openDB(t)
	dir := t.TempDir()
	cfg := exportConfig(dir)

	_, err := AddModule(src, AddModuleInput{Name: "Morse Code", Definition: []byte(morseDefinition)})
	require.NoError(t, err)
	_, err = AddModule(src, AddModuleInput{Name: "1337", Definition: []byte(leetDefinition)})
	require.NoError(t, err)

	exported, err := Export(context.Background(), src, cfg, ExportInput{Path: filepath.Join(dir, "all.jsonl")})
	require.NoError(t, err)

	dst := openDB(t)
	out, err := Import(dst, cfg, ImportInput{Path: exported.Path})
	require.NoError(t, err)
	require.Equal(t, 2, out.Imported)
	require.Empty(t, out.Errors)

	orig, err := FetchModule(src, "Morse Code")
	require.NoError(t, err)
	copied, err := FetchModule(dst, "Morse Code")
	require.NoError(t, err)
	require.Equal(t, orig.ID, copied.ID)
	require.JSONEq(t, string(orig.Definition), string(copied.Definition))
	require.Equal(t, orig.Description, copied.Description)
}

func TestImport_ErrorModeIsAtomic(t *testing.T) {
	database := openDB(t)
	dir := t.TempDir()
	cfg := exportConfig(dir)

	_, err := AddModule(database, AddModuleInput{Name: "taken", Definition: []byte(leetDefinition)})
	require.NoError(t, err)

	path := writeImportFile(t, dir, `{"_cipherbox_export":true,"schema_version":"1.0","exported_at":1}
{"name":"fresh","definition":{"encoding":{"x":"y"}}}
{"name":"Taken","definition":{"encoding":{"x":"y"}}}
`)
	out, err := Import(database, cfg, ImportInput{Path: path})
	require.NoError(t, err)
	require.Zero(t, out.Imported)
	require.Len(t, out.Errors, 1)
	require.Equal(t, "NAME_COLLISION", out.Errors[0].Code)
	require.Equal(t, 3, out.Errors[0].Line)

	_, err = FetchModule(database, "fresh")
	require.True(t, errors.Is(err, errors.ErrNotFound), "fresh must be rolled back, got %v", err)
}

func TestImport_ErrorModeRejectsBadLines(t *testing.T) {
	database := openDB(t)
	dir := t.TempDir()

	path := writeImportFile(t, dir, `{"name":"ok","definition":{"encoding":{"x":"y"}}}
not json
{"definition":{}}
{"name":"bad","definition":{"encoding":{"x":true}}}
`)
	out, err := Import(database, exportConfig(dir), ImportInput{Path: path})
	require.NoError(t, err)
	require.Zero(t, out.Imported)
	require.Len(t, out.Errors, 3)
	require.Equal(t, "PARSE_ERROR", out.Errors[0].Code)
	require.Equal(t, "INVALID_RECORD", out.Errors[1].Code)
	require.Equal(t, string(errors.ErrInvalidModule), out.Errors[2].Code)
}

func TestImport_ReplaceMode(t *testing.T) {
	database := openDB(t)
	dir := t.TempDir()

	added, err := AddModule(database, AddModuleInput{Name: "taken", Definition: []byte(leetDefinition)})
	require.NoError(t, err)

	path := writeImportFile(t, dir, `{"name":"taken","definition":{"encoding":{"q":"Q"}}}
garbage
{"name":"new","definition":{"encoding":{"x":"y"}}}
`)
	out, err := Import(database, exportConfig(dir), ImportInput{Path: path, Mode: StoreModeReplace})
	require.NoError(t, err)
	require.Equal(t, 2, out.Imported)
	require.Equal(t, 1, out.Skipped)

	fetched, err := FetchModule(database, "taken")
	require.NoError(t, err)
	require.Equal(t, added.ID, fetched.ID)
	require.Equal(t, []string{"q"}, fetched.Module.Mapping.Keys())
}

func TestImport_Validation(t *testing.T) {
	database := openDB(t)
	dir := t.TempDir()
	cfg := exportConfig(dir)

	_, err := Import(database, cfg, ImportInput{})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))

	_, err = Import(database, cfg, ImportInput{Path: filepath.Join(dir, "x.jsonl"), Mode: "merge"})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))

	_, err = Import(database, cfg, ImportInput{Path: filepath.Join(dir, "missing.jsonl")})
	require.True(t, errors.Is(err, errors.ErrFileNotFound), "got %v", err)
}
