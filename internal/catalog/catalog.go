// Package catalog assembles the module registry and dictionary an engine is
// built from: the embedded built-in modules, module directories named in the
// config, and the modules and words the user stored in sqlite.
package catalog

import (
	"bytes"
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hpungsan/cipherbox/internal/cipher"
	"github.com/hpungsan/cipherbox/internal/config"
	"github.com/hpungsan/cipherbox/internal/engine"
	"github.com/hpungsan/cipherbox/internal/logging"
	"github.com/hpungsan/cipherbox/internal/ops"
)

//go:embed modules/*.json
var builtinModules embed.FS

//go:embed data/dictionary.txt
var builtinDictionary []byte

// BuiltinNames lists the embedded modules in registry order.
var BuiltinNames = []string{
	"ABC Multitap",
	"Keyboard Symbol Cipher",
	"Morse Code",
	"Number-Dot Cipher",
	"T9 Cipher",
	"1337",
}

// ModuleExt is the extension of module definition files.
const ModuleExt = ".json"

// maxParallelReads bounds concurrent module file reads.
const maxParallelReads = 8

// Source records where a registry module came from.
type Source string

const (
	SourceBuiltin Source = "builtin"
	SourceDir     Source = "dir"
	SourceStored  Source = "stored"
)

// Catalog is the loaded registry and dictionary.
type Catalog struct {
	Registry   *engine.Registry
	Dictionary *cipher.Dictionary

	// Sources maps every registry module name to the source that won.
	Sources map[string]Source
}

// Builtin parses the embedded modules.
func Builtin() ([]*cipher.Module, error) {
	mods := make([]*cipher.Module, 0, len(BuiltinNames))
	for _, name := range BuiltinNames {
		data, err := builtinModules.ReadFile(path.Join("modules", name+ModuleExt))
		if err != nil {
			return nil, fmt.Errorf("read built-in module %q: %w", name, err)
		}
		m, err := cipher.ParseModule(name, data)
		if err != nil {
			return nil, err
		}
		mods = append(mods, m)
	}
	return mods, nil
}

// BuiltinDictionary parses the embedded English word list.
func BuiltinDictionary() (*cipher.Dictionary, error) {
	return cipher.ReadDictionary(bytes.NewReader(builtinDictionary))
}

// LoadDictionary reads the word list at path, or the built-in one when path is empty.
func LoadDictionary(path string) (*cipher.Dictionary, error) {
	if path == "" {
		return BuiltinDictionary()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dictionary: %w", err)
	}
	defer f.Close()
	return cipher.ReadDictionary(f)
}

// LoadDir reads every *.json file in dir as a module named after the file.
// Files are read in parallel and returned in file name order. A file that
// cannot be read or parsed is logged and skipped.
func LoadDir(ctx context.Context, dir string, logger *zap.Logger) ([]*cipher.Module, error) {
	logger = logging.OrNop(logger)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read module directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ModuleExt) {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	mods := make([]*cipher.Module, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelReads)
	for i, file := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			full := filepath.Join(dir, file)
			name := strings.TrimSuffix(file, filepath.Ext(file))

			data, err := os.ReadFile(full)
			if err != nil {
				logger.Warn("module skipped", zap.String("path", full), zap.Error(err))
				return nil
			}
			m, err := cipher.ParseModule(name, data)
			if err != nil {
				logger.Warn("module skipped", zap.String("path", full), zap.Error(err))
				return nil
			}
			mods[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := mods[:0]
	for _, m := range mods {
		if m != nil {
			out = append(out, m)
		}
	}
	return out, nil
}

// Load builds the catalog. Sources apply in order (built-in, each module
// directory, stored modules); a later module replaces an earlier one of the
// same name in place. database may be nil, which skips stored modules and words.
func Load(ctx context.Context, cfg *config.Config, database *sql.DB, logger *zap.Logger) (*Catalog, error) {
	logger = logging.OrNop(logger)
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	sources := make(map[string]Source)
	var all []*cipher.Module
	add := func(src Source, mods []*cipher.Module) {
		for _, m := range mods {
			sources[m.Name] = src
		}
		all = append(all, mods...)
	}

	builtin, err := Builtin()
	if err != nil {
		return nil, err
	}
	add(SourceBuiltin, builtin)

	for _, dir := range cfg.ModuleDirs {
		mods, err := LoadDir(ctx, dir, logger)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("module directory skipped", zap.String("dir", dir), zap.Error(err))
			continue
		}
		add(SourceDir, mods)
	}

	dict, err := LoadDictionary(cfg.DictionaryPath)
	if err != nil {
		return nil, err
	}

	if database != nil {
		stored, err := ops.LoadStoredModules(ctx, database, func(name string, err error) {
			logger.Warn("stored module skipped", zap.String("module", name), zap.Error(err))
		})
		if err != nil {
			return nil, err
		}
		add(SourceStored, stored)

		words, err := ops.ListWords(database)
		if err != nil {
			return nil, err
		}
		if len(words) > 0 {
			dict = dict.With(words)
		}
	}

	registry := engine.NewRegistry(all...)
	if len(cfg.DisabledModules) > 0 {
		for _, name := range cfg.DisabledModules {
			if _, ok := registry.Get(name); !ok {
				logger.Warn("unknown module in disabled_modules", zap.String("module", name))
			}
			delete(sources, name)
		}
		registry = registry.Without(cfg.DisabledModules)
	}

	logger.Debug("catalog loaded",
		zap.Int("modules", registry.Len()),
		zap.Int("dictionary_words", dict.Len()),
	)

	return &Catalog{Registry: registry, Dictionary: dict, Sources: sources}, nil
}

// Engine builds an engine over the catalog with the limits from cfg.
func (c *Catalog) Engine(cfg *config.Config) *engine.Engine {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return engine.New(c.Registry, c.Dictionary,
		engine.WithLimits(cipher.Limits{MaxCandidates: cfg.MaxCandidates, MaxSteps: cfg.MaxSteps}),
		engine.WithMaxInputChars(cfg.InputMaxChars),
	)
}
