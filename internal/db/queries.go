package db

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/hpungsan/cipherbox/internal/errors"
)

// ErrUniqueConstraint is returned when an insert violates a UNIQUE constraint.
var ErrUniqueConstraint = &errors.CipherError{
	Code:    "UNIQUE_CONSTRAINT",
	Status:  409,
	Message: "unique constraint violation",
}

// StoredModule is a module definition persisted by the user.
type StoredModule struct {
	ID          string
	NameRaw     string
	NameNorm    string
	Description string
	Definition  string // module JSON as accepted by cipher.ParseModule
	CreatedAt   int64
	UpdatedAt   int64
}

const moduleColumns = `id, name_raw, name_norm, description, definition, created_at, updated_at`

// InsertModule stores a new module. A name collision returns ErrUniqueConstraint.
func InsertModule(db *sql.DB, m *StoredModule) error {
	query := `INSERT INTO modules (` + moduleColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := db.Exec(query,
		m.ID, m.NameRaw, m.NameNorm, toNullString(m.Description), m.Definition, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}
	return nil
}

// UpsertModule inserts m, or replaces the definition of the module with the
// same normalized name. The existing row keeps its id and created_at.
// Returns the stored row.
func UpsertModule(db *sql.DB, m *StoredModule) (*StoredModule, error) {
	query := `
		INSERT INTO modules (` + moduleColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name_norm) DO UPDATE SET
			name_raw = excluded.name_raw,
			description = excluded.description,
			definition = excluded.definition,
			updated_at = excluded.updated_at
	`
	_, err := db.Exec(query,
		m.ID, m.NameRaw, m.NameNorm, toNullString(m.Description), m.Definition, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return GetModuleByName(db, m.NameNorm)
}

// isUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// GetModuleByName retrieves a module by normalized name.
func GetModuleByName(db *sql.DB, nameNorm string) (*StoredModule, error) {
	row := db.QueryRow(`SELECT `+moduleColumns+` FROM modules WHERE name_norm = ?`, nameNorm)
	m, err := scanModule(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(nameNorm)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return m, nil
}

// ListModules returns one page of modules ordered by name, plus the total count.
func ListModules(db *sql.DB, limit, offset int) ([]StoredModule, int, error) {
	var total int
	if err := db.QueryRow(`SELECT COUNT(*) FROM modules`).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	rows, err := db.Query(`SELECT `+moduleColumns+` FROM modules ORDER BY name_norm LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	out, err := scanModules(rows)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// StreamModules calls fn for every stored module in creation order.
// Stops early if fn returns an error or ctx is cancelled.
func StreamModules(ctx context.Context, db *sql.DB, fn func(*StoredModule) error) error {
	rows, err := db.QueryContext(ctx, `SELECT `+moduleColumns+` FROM modules ORDER BY created_at, id`)
	if err != nil {
		return errors.NewInternal(err)
	}
	defer rows.Close()

	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		m, err := scanModule(rows)
		if err != nil {
			return errors.NewInternal(err)
		}
		if err := fn(m); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// DeleteModule removes a module by normalized name.
func DeleteModule(db *sql.DB, nameNorm string) error {
	result, err := db.Exec(`DELETE FROM modules WHERE name_norm = ?`, nameNorm)
	if err != nil {
		return errors.NewInternal(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if n == 0 {
		return errors.NewNotFound(nameNorm)
	}
	return nil
}

// InsertWords adds dictionary words in one transaction. Words must already be
// normalized. Returns the number of words that were not present before.
func InsertWords(db *sql.DB, words []string) (int, error) {
	return execWords(db, `INSERT OR IGNORE INTO dictionary_words (word, created_at) VALUES (?, ?)`, words, true)
}

// DeleteWords removes dictionary words in one transaction. Returns the number removed.
func DeleteWords(db *sql.DB, words []string) (int, error) {
	return execWords(db, `DELETE FROM dictionary_words WHERE word = ?`, words, false)
}

func execWords(db *sql.DB, query string, words []string, withTime bool) (int, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(query)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	affected := 0
	for _, w := range words {
		var result sql.Result
		if withTime {
			result, err = stmt.Exec(w, now)
		} else {
			result, err = stmt.Exec(w)
		}
		if err != nil {
			return 0, errors.NewInternal(err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return 0, errors.NewInternal(err)
		}
		affected += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.NewInternal(err)
	}
	return affected, nil
}

// ListWords returns every stored dictionary word in alphabetical order.
func ListWords(db *sql.DB) ([]string, error) {
	rows, err := db.Query(`SELECT word FROM dictionary_words ORDER BY word`)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var words []string
	for rows.Next() {
		var w string
		if err := rows.Scan(&w); err != nil {
			return nil, errors.NewInternal(err)
		}
		words = append(words, w)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return words, nil
}

// CountWords returns the number of stored dictionary words.
func CountWords(db *sql.DB) (int, error) {
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM dictionary_words`).Scan(&n); err != nil {
		return 0, errors.NewInternal(err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanModule(row rowScanner) (*StoredModule, error) {
	var m StoredModule
	var description sql.NullString
	if err := row.Scan(&m.ID, &m.NameRaw, &m.NameNorm, &description, &m.Definition, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	m.Description = description.String
	return &m, nil
}

func scanModules(rows *sql.Rows) ([]StoredModule, error) {
	var out []StoredModule
	for rows.Next() {
		m, err := scanModule(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

func toNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
