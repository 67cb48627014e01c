package ops

import (
	"bufio"
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/hpungsan/cipherbox/internal/config"
	"github.com/hpungsan/cipherbox/internal/db"
	"github.com/hpungsan/cipherbox/internal/errors"
)

// ExportSchemaVersion is written into every export header.
const ExportSchemaVersion = "1.0"

// ExportHeader is the first line of a JSONL export file.
type ExportHeader struct {
	CipherboxExport bool   `json:"_cipherbox_export"`
	SchemaVersion   string `json:"schema_version"`
	ExportedAt      int64  `json:"exported_at"`
}

// ExportRecord is one stored module in an export file.
type ExportRecord struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Definition json.RawMessage `json:"definition"`
	CreatedAt  int64           `json:"created_at"`
	UpdatedAt  int64           `json:"updated_at"`
}

// ExportInput contains parameters for the Export operation.
type ExportInput struct {
	Path string  // optional, default: ~/.cipherbox/exports/<name|modules>-<timestamp>.jsonl
	Name *string // optional, export a single module
}

// ExportOutput contains the result of the Export operation.
type ExportOutput struct {
	Path       string `json:"path"`
	Count      int    `json:"count"`
	ExportedAt int64  `json:"exported_at"`
}

// Export writes stored modules to a JSONL file: a header line, then one
// record per module in creation order. The file is written to a temporary
// sibling and renamed into place so a failed export leaves any previous
// file untouched.
func Export(ctx context.Context, database *sql.DB, cfg *config.Config, input ExportInput) (*ExportOutput, error) {
	now := time.Now()

	var only string
	if input.Name != nil {
		only = NormalizeName(*input.Name)
		if only == "" {
			return nil, errors.NewInvalidRequest("name must not be empty")
		}
		if _, err := db.GetModuleByName(database, only); err != nil {
			if errors.Is(err, errors.ErrNotFound) {
				return nil, errors.NewNotFound(*input.Name)
			}
			return nil, err
		}
	}

	exportPath := input.Path
	if exportPath == "" {
		var err error
		exportPath, err = defaultExportPath(only, now)
		if err != nil {
			return nil, err
		}
	}
	if err := ValidatePath(exportPath, PathCheckWrite, cfg); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(exportPath), 0700); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export directory: %w", err))
	}

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := exportPath + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := openNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export file: %w", err))
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	w := bufio.NewWriter(file)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(ExportHeader{
		CipherboxExport: true,
		SchemaVersion:   ExportSchemaVersion,
		ExportedAt:      now.Unix(),
	}); err != nil {
		return nil, errors.NewInternal(err)
	}

	count := 0
	err = db.StreamModules(ctx, database, func(m *db.StoredModule) error {
		if only != "" && m.NameNorm != only {
			return nil
		}
		count++
		return enc.Encode(ExportRecord{
			ID:         m.ID,
			Name:       m.NameRaw,
			Definition: json.RawMessage(m.Definition),
			CreatedAt:  m.CreatedAt,
			UpdatedAt:  m.UpdatedAt,
		})
	})
	if err != nil {
		if _, ok := err.(*errors.CipherError); ok {
			return nil, err
		}
		return nil, errors.NewInternal(err)
	}

	if err := w.Flush(); err != nil {
		return nil, errors.NewInternal(err)
	}
	if err := file.Sync(); err != nil {
		return nil, errors.NewInternal(err)
	}
	if err := file.Close(); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to close export file: %w", err))
	}
	file = nil

	// os.Rename would follow a symlink planted after validation
	if isSymlink(exportPath) {
		return nil, errors.NewInternal(fmt.Errorf("export path is a symlink"))
	}
	if err := os.Rename(tempPath, exportPath); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(exportPath); statErr == nil {
				return nil, errors.NewInvalidRequest("export destination already exists; choose a new path or delete the existing file")
			}
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to finalize export: %w", err))
	}

	success = true
	return &ExportOutput{
		Path:       exportPath,
		Count:      count,
		ExportedAt: now.Unix(),
	}, nil
}

// defaultExportPath returns ~/.cipherbox/exports/<stem>-<timestamp>.jsonl.
func defaultExportPath(name string, now time.Time) (string, error) {
	dir, err := DefaultExportsDir()
	if err != nil {
		return "", err
	}
	stem := "modules"
	if name != "" {
		stem = SanitizeForFilename(name)
	}
	filename := fmt.Sprintf("%s-%s%s", stem, now.Format("2006-01-02T150405"), ExportExt)
	return filepath.Join(dir, filename), nil
}
