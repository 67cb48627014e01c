package ops

import (
	"bufio"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hpungsan/cipherbox/internal/config"
	"github.com/hpungsan/cipherbox/internal/db"
	"github.com/hpungsan/cipherbox/internal/errors"
)

// maxImportLine bounds a single JSONL record.
const maxImportLine = 4 << 20

// ImportInput contains parameters for the Import operation.
type ImportInput struct {
	Path string    // required
	Mode StoreMode // default: error
}

// ImportOutput contains the result of the Import operation.
type ImportOutput struct {
	Imported int           `json:"imported"`
	Skipped  int           `json:"skipped"`
	Errors   []ImportError `json:"errors"`
}

// ImportError describes a record that was not imported.
type ImportError struct {
	Line    int    `json:"line"`
	Name    string `json:"name,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type importRecord struct {
	line   int
	stored *db.StoredModule
}

// Import loads modules from a JSONL export file.
//
// In error mode the import is all-or-nothing: any unreadable record or name
// collision aborts it before anything is written. In replace mode bad records
// are skipped and colliding modules are overwritten.
func Import(database *sql.DB, cfg *config.Config, input ImportInput) (*ImportOutput, error) {
	if input.Path == "" {
		return nil, errors.NewInvalidRequest("path is required")
	}
	if input.Mode == "" {
		input.Mode = StoreModeError
	}
	if !input.Mode.valid() {
		return nil, errors.NewInvalidRequest("mode must be one of: error, replace")
	}
	if err := ValidatePath(input.Path, PathCheckRead, cfg); err != nil {
		return nil, err
	}

	file, err := openNoFollow(input.Path, os.O_RDONLY, 0)
	if err != nil {
		if _, ok := err.(*errors.CipherError); ok {
			return nil, err
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to open import file: %w", err))
	}
	defer file.Close()

	records, parseErrors := parseExportFile(file)

	if input.Mode == StoreModeError {
		if len(parseErrors) > 0 {
			return &ImportOutput{Errors: parseErrors}, nil
		}
		return importAtomic(database, records)
	}
	return importReplace(database, records, parseErrors)
}

// parseExportFile reads records and validates each definition.
func parseExportFile(r io.Reader) ([]importRecord, []ImportError) {
	var records []importRecord
	var parseErrors []ImportError

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxImportLine)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var probe struct {
			ExportRecord
			CipherboxExport bool `json:"_cipherbox_export"`
		}
		if err := json.Unmarshal(line, &probe); err != nil {
			parseErrors = append(parseErrors, ImportError{
				Line:    lineNum,
				Code:    "PARSE_ERROR",
				Message: fmt.Sprintf("invalid JSON: %v", err),
			})
			continue
		}
		if probe.CipherboxExport {
			continue
		}

		rec := probe.ExportRecord
		if NormalizeName(rec.Name) == "" {
			parseErrors = append(parseErrors, ImportError{
				Line:    lineNum,
				Code:    "INVALID_RECORD",
				Message: "missing name field",
			})
			continue
		}

		stored, err := newStoredModule(rec.Name, rec.Definition)
		if err != nil {
			parseErrors = append(parseErrors, ImportError{
				Line:    lineNum,
				Name:    rec.Name,
				Code:    string(errors.ErrInvalidModule),
				Message: err.Error(),
			})
			continue
		}
		if rec.ID != "" {
			stored.ID = rec.ID
		}
		if rec.CreatedAt > 0 {
			stored.CreatedAt = rec.CreatedAt
		}
		stored.UpdatedAt = time.Now().Unix()
		records = append(records, importRecord{line: lineNum, stored: stored})
	}

	if err := scanner.Err(); err != nil {
		parseErrors = append(parseErrors, ImportError{
			Line:    lineNum,
			Code:    "READ_ERROR",
			Message: fmt.Sprintf("failed to read file: %v", err),
		})
	}

	return records, parseErrors
}

// importAtomic inserts every record in one transaction, aborting on the first collision.
func importAtomic(database *sql.DB, records []importRecord) (*ImportOutput, error) {
	tx, err := database.Begin()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, rec := range records {
		var exists int
		err := tx.QueryRow(`SELECT 1 FROM modules WHERE name_norm = ? OR id = ?`, rec.stored.NameNorm, rec.stored.ID).Scan(&exists)
		if err != nil && err != sql.ErrNoRows {
			return nil, errors.NewInternal(err)
		}
		if err == nil {
			return &ImportOutput{Errors: []ImportError{{
				Line:    rec.line,
				Name:    rec.stored.NameRaw,
				Code:    "NAME_COLLISION",
				Message: fmt.Sprintf("module %q already exists", rec.stored.NameRaw),
			}}}, nil
		}

		m := rec.stored
		_, err = tx.Exec(`INSERT INTO modules (id, name_raw, name_norm, description, definition, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			m.ID, m.NameRaw, m.NameNorm, sql.NullString{String: m.Description, Valid: m.Description != ""},
			m.Definition, m.CreatedAt, m.UpdatedAt)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return &ImportOutput{Imported: len(records), Errors: []ImportError{}}, nil
}

// importReplace upserts every record by name, skipping unreadable lines.
func importReplace(database *sql.DB, records []importRecord, parseErrors []ImportError) (*ImportOutput, error) {
	out := &ImportOutput{Errors: append([]ImportError{}, parseErrors...), Skipped: len(parseErrors)}

	for _, rec := range records {
		if _, err := db.UpsertModule(database, rec.stored); err != nil {
			out.Errors = append(out.Errors, ImportError{
				Line:    rec.line,
				Name:    rec.stored.NameRaw,
				Code:    "INSERT_FAILED",
				Message: fmt.Sprintf("failed to store: %v", err),
			})
			out.Skipped++
			continue
		}
		out.Imported++
	}
	return out, nil
}
