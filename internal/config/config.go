package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DirName is the name of the global (~/.cipherbox) and repo (.cipherbox) directories.
const DirName = ".cipherbox"

// Config holds application configuration.
type Config struct {
	// InputMaxChars is the maximum rune count of a text to encode or decode.
	InputMaxChars int `json:"input_max_chars"`

	// MaxCandidates caps the candidates a single module may produce per decode.
	// Exceeding it truncates the result instead of failing.
	MaxCandidates int `json:"max_candidates"`

	// MaxSteps caps the recursion and cross-product work of a single module decode.
	MaxSteps int `json:"max_steps"`

	// ModuleDirs lists directories of *.json module definitions loaded after the
	// built-in modules. Relative paths resolve against the config file's directory.
	ModuleDirs []string `json:"module_dirs,omitempty"`

	// DisabledModules is a list of module names excluded from the registry.
	DisabledModules []string `json:"disabled_modules,omitempty"`

	// DictionaryPath replaces the built-in dictionary with a newline-delimited word list.
	DictionaryPath string `json:"dictionary_path,omitempty"`

	// AllowedPaths is an allowlist of directories for module import/export.
	// Paths outside ~/.cipherbox/exports require either being in this list or AllowUnsafePaths=true.
	// Paths should be absolute (relative paths are ignored).
	AllowedPaths []string `json:"allowed_paths,omitempty"`

	// AllowUnsafePaths disables directory restrictions for import/export.
	// When true, any directory is allowed (but symlink and extension checks still apply).
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	// 0 means use sql.DB default. Typically set equal to DBMaxOpenConns.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// DisabledTypes is a list of type names to disable entirely.
	// Known types: "cipher", "module". Unknown type names are logged as warnings.
	DisabledTypes []string `json:"disabled_types,omitempty"`

	// LogLevel is the zap level name: debug, info, warn or error.
	LogLevel string `json:"log_level,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		InputMaxChars: 10000,
		MaxCandidates: 5000,
		MaxSteps:      2000000,
		LogLevel:      "info",
	}
}

// FileName is the config file inside a config directory.
const FileName = "config.json"

// Load reads baseDir/config.json over the defaults. A missing file yields
// the defaults.
func Load(baseDir string) (*Config, error) {
	cfg, err := readFile(filepath.Join(baseDir, FileName))
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// LoadWithRepo layers the defaults, the global config in globalDir and the
// nearest repo config above startDir. Either file may be missing.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	cfg := DefaultConfig()
	for _, path := range []string{filepath.Join(globalDir, FileName), FindRepoConfig(startDir)} {
		layer, err := readFile(path)
		if err != nil {
			return nil, err
		}
		cfg = Merge(cfg, layer)
	}
	return cfg, nil
}

// FindRepoConfig returns the nearest .cipherbox/config.json at or above
// startDir, or "" when there is none.
func FindRepoConfig(startDir string) string {
	if startDir == "" {
		return ""
	}
	for dir := startDir; ; {
		path := filepath.Join(dir, DirName, FileName)
		if _, err := os.Stat(path); err == nil {
			return path
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// readFile parses one config file without applying defaults. An empty path
// or a missing file yields a zero Config.
func readFile(path string) (*Config, error) {
	cfg := &Config{}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.resolvePaths(filepath.Dir(path))
	return cfg, nil
}

// resolvePaths anchors relative module and dictionary paths at dir.
func (c *Config) resolvePaths(dir string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	for i, p := range c.ModuleDirs {
		c.ModuleDirs[i] = abs(p)
	}
	c.DictionaryPath = abs(c.DictionaryPath)
}

// Merge layers overlay on base. Non-zero overlay scalars win, AllowUnsafePaths
// is sticky once set, and lists are concatenated without duplicates.
func Merge(base, overlay *Config) *Config {
	return &Config{
		InputMaxChars:    pick(overlay.InputMaxChars, base.InputMaxChars),
		MaxCandidates:    pick(overlay.MaxCandidates, base.MaxCandidates),
		MaxSteps:         pick(overlay.MaxSteps, base.MaxSteps),
		ModuleDirs:       union(base.ModuleDirs, overlay.ModuleDirs),
		DisabledModules:  union(base.DisabledModules, overlay.DisabledModules),
		DictionaryPath:   pick(overlay.DictionaryPath, base.DictionaryPath),
		AllowedPaths:     union(base.AllowedPaths, overlay.AllowedPaths),
		AllowUnsafePaths: base.AllowUnsafePaths || overlay.AllowUnsafePaths,
		DBMaxOpenConns:   pick(overlay.DBMaxOpenConns, base.DBMaxOpenConns),
		DBMaxIdleConns:   pick(overlay.DBMaxIdleConns, base.DBMaxIdleConns),
		DisabledTools:    union(base.DisabledTools, overlay.DisabledTools),
		DisabledTypes:    union(base.DisabledTypes, overlay.DisabledTypes),
		LogLevel:         pick(overlay.LogLevel, base.LogLevel),
	}
}

func pick[T comparable](overlay, base T) T {
	var zero T
	if overlay != zero {
		return overlay
	}
	return base
}

// union concatenates lists, trimming entries and dropping blanks and repeats.
// It returns nil when nothing is left.
func union(lists ...[]string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, list := range lists {
		for _, s := range list {
			s = strings.TrimSpace(s)
			if s != "" && !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out
}
