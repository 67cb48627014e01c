package ops

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/hpungsan/cipherbox/internal/cipher"
	"github.com/hpungsan/cipherbox/internal/db"
	"github.com/hpungsan/cipherbox/internal/errors"
)

// StoreMode controls collision behavior.
type StoreMode string

const (
	StoreModeError   StoreMode = "error"   // default: fail on name collision
	StoreModeReplace StoreMode = "replace" // overwrite existing
)

func (m StoreMode) valid() bool {
	return m == StoreModeError || m == StoreModeReplace
}

// AddModuleInput contains parameters for the AddModule operation.
type AddModuleInput struct {
	Name       string    // required
	Definition []byte    // module JSON, required
	Mode       StoreMode // default: StoreModeError
}

// AddModuleOutput contains the result of the AddModule operation.
type AddModuleOutput struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Replaced bool   `json:"replaced"`
}

// AddModule validates a module definition and stores it under Name.
// The stored definition is the canonical re-encoding, so keys keep their order
// and scalar shorthand is expanded.
func AddModule(database *sql.DB, input AddModuleInput) (*AddModuleOutput, error) {
	name := strings.TrimSpace(input.Name)
	nameNorm := NormalizeName(name)
	if nameNorm == "" {
		return nil, errors.NewInvalidRequest("name is required")
	}
	if input.Mode == "" {
		input.Mode = StoreModeError
	}
	if !input.Mode.valid() {
		return nil, errors.NewInvalidRequest("mode must be one of: error, replace")
	}
	if len(strings.TrimSpace(string(input.Definition))) == 0 {
		return nil, errors.NewInvalidRequest("definition is required")
	}

	stored, err := newStoredModule(name, input.Definition)
	if err != nil {
		return nil, err
	}

	if input.Mode == StoreModeReplace {
		_, lookupErr := db.GetModuleByName(database, nameNorm)
		existed := lookupErr == nil
		if lookupErr != nil && !errors.Is(lookupErr, errors.ErrNotFound) {
			return nil, lookupErr
		}
		result, err := db.UpsertModule(database, stored)
		if err != nil {
			return nil, err
		}
		return &AddModuleOutput{ID: result.ID, Name: result.NameRaw, Replaced: existed}, nil
	}

	if err := db.InsertModule(database, stored); err != nil {
		if err == db.ErrUniqueConstraint {
			return nil, errors.NewNameAlreadyExists(name)
		}
		return nil, err
	}
	return &AddModuleOutput{ID: stored.ID, Name: name}, nil
}

// newStoredModule parses definition and builds the row that persists it.
func newStoredModule(name string, definition []byte) (*db.StoredModule, error) {
	mod, err := cipher.ParseModule(name, definition)
	if err != nil {
		return nil, errors.NewInvalidModule(name, err)
	}
	canonical, err := json.Marshal(mod)
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	id, err := generateULID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	now := time.Now().Unix()
	return &db.StoredModule{
		ID:          id,
		NameRaw:     name,
		NameNorm:    NormalizeName(name),
		Description: mod.Description,
		Definition:  string(canonical),
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// ModuleOutput is a stored module together with its parsed definition.
type ModuleOutput struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Definition  json.RawMessage `json:"definition"`
	CreatedAt   int64           `json:"created_at"`
	UpdatedAt   int64           `json:"updated_at"`

	Module *cipher.Module `json:"-"`
}

// FetchModule retrieves a stored module by name.
func FetchModule(database *sql.DB, name string) (*ModuleOutput, error) {
	nameNorm := NormalizeName(name)
	if nameNorm == "" {
		return nil, errors.NewInvalidRequest("name is required")
	}
	stored, err := db.GetModuleByName(database, nameNorm)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.NewNotFound(name)
		}
		return nil, err
	}
	return toModuleOutput(stored)
}

// LoadStoredModules parses every stored module in creation order.
// A row that no longer parses is reported through skip and left out.
func LoadStoredModules(ctx context.Context, database *sql.DB, skip func(name string, err error)) ([]*cipher.Module, error) {
	var mods []*cipher.Module
	err := db.StreamModules(ctx, database, func(stored *db.StoredModule) error {
		out, err := toModuleOutput(stored)
		if err != nil {
			if skip != nil {
				skip(stored.NameRaw, err)
			}
			return nil
		}
		mods = append(mods, out.Module)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return mods, nil
}

func toModuleOutput(stored *db.StoredModule) (*ModuleOutput, error) {
	mod, err := cipher.ParseModule(stored.NameRaw, []byte(stored.Definition))
	if err != nil {
		return nil, errors.NewInvalidModule(stored.NameRaw, err)
	}
	return &ModuleOutput{
		ID:          stored.ID,
		Name:        stored.NameRaw,
		Description: stored.Description,
		Definition:  json.RawMessage(stored.Definition),
		CreatedAt:   stored.CreatedAt,
		UpdatedAt:   stored.UpdatedAt,
		Module:      mod,
	}, nil
}

// ModuleSummary is the list view of a stored module.
type ModuleSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Keys      int    `json:"keys"`
	UpdatedAt int64  `json:"updated_at"`
}

// ListModulesInput contains parameters for the ListModules operation.
type ListModulesInput struct {
	Limit  int // default: 20, max: 100
	Offset int
}

// ListModulesOutput contains the result of the ListModules operation.
type ListModulesOutput struct {
	Items      []ModuleSummary `json:"items"`
	Pagination Pagination      `json:"pagination"`
	Sort       string          `json:"sort"`
}

// ListModules retrieves stored module summaries with pagination.
func ListModules(database *sql.DB, input ListModulesInput) (*ListModulesOutput, error) {
	limit, offset := clampPage(input.Limit, input.Offset)

	rows, total, err := db.ListModules(database, limit, offset)
	if err != nil {
		return nil, err
	}

	items := make([]ModuleSummary, 0, len(rows))
	for _, r := range rows {
		keys := 0
		if mod, err := cipher.ParseModule(r.NameRaw, []byte(r.Definition)); err == nil {
			keys = mod.Mapping.Len()
		}
		items = append(items, ModuleSummary{ID: r.ID, Name: r.NameRaw, Keys: keys, UpdatedAt: r.UpdatedAt})
	}

	return &ListModulesOutput{
		Items: items,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(items) < total,
			Total:   total,
		},
		Sort: "name_asc",
	}, nil
}

// DeleteModuleOutput contains the result of the DeleteModule operation.
type DeleteModuleOutput struct {
	Deleted bool   `json:"deleted"`
	Name    string `json:"name"`
}

// DeleteModule removes a stored module. Built-in and directory modules are
// not stored and cannot be deleted; use disabled_modules for those.
func DeleteModule(database *sql.DB, name string) (*DeleteModuleOutput, error) {
	nameNorm := NormalizeName(name)
	if nameNorm == "" {
		return nil, errors.NewInvalidRequest("name is required")
	}
	if err := db.DeleteModule(database, nameNorm); err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.NewNotFound(name)
		}
		return nil, err
	}
	return &DeleteModuleOutput{Deleted: true, Name: name}, nil
}
