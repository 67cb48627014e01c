package ops

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hpungsan/cipherbox/internal/config"
	"github.com/hpungsan/cipherbox/internal/errors"
)

// ExportExt is the only extension accepted for module export and import files.
const ExportExt = ".jsonl"

// PathCheckMode indicates whether the path check is for reading or writing.
type PathCheckMode int

const (
	PathCheckRead  PathCheckMode = iota // import
	PathCheckWrite                      // export
)

// ValidatePath checks an import or export path:
//   - no ".." components
//   - the .jsonl extension
//   - the file sits directly in ~/.cipherbox/exports or an allowed_paths entry
//   - neither the file nor its directory is a symlink
//
// Nested directories are refused so that no intermediate component can be
// swapped for a symlink between validation and open. AllowUnsafePaths lifts
// the directory rule only.
func ValidatePath(path string, mode PathCheckMode, cfg *config.Config) error {
	if path == "" {
		return errors.NewInvalidRequest("path is required")
	}
	if containsTraversal(path) {
		return errors.NewInvalidRequest("path must not contain directory traversal (..)")
	}

	cleaned := filepath.Clean(path)
	if filepath.Ext(cleaned) != ExportExt {
		return errors.NewInvalidRequest("path must have " + ExportExt + " extension")
	}
	absPath, err := filepath.Abs(cleaned)
	if err != nil {
		return errors.NewInvalidRequest(fmt.Sprintf("invalid path: %v", err))
	}

	if cfg == nil || !cfg.AllowUnsafePaths {
		allowedDirs, err := allowedDirs(cfg)
		if err != nil {
			return err
		}
		parentDir := filepath.Dir(absPath)
		if !isDirectlyInAllowedDir(parentDir, allowedDirs) {
			return errors.NewInvalidRequest(
				fmt.Sprintf("file must be directly in an allowed directory (no subdirectories); allowed: %v", allowedDirs))
		}
		if isSymlink(parentDir) {
			return errors.NewInvalidRequest("parent directory must not be a symlink")
		}
	}

	if mode == PathCheckRead {
		if _, err := os.Stat(absPath); os.IsNotExist(err) {
			return errors.NewFileNotFound(path)
		}
	}
	if isSymlink(absPath) {
		return errors.NewInvalidRequest("path must not be a symlink")
	}
	return nil
}

func isSymlink(path string) bool {
	info, err := os.Lstat(path)
	return err == nil && info.Mode()&os.ModeSymlink != 0
}

// allowedDirs returns the default exports directory plus every absolute
// allowed_paths entry. Symlinked entries resolve to their target.
func allowedDirs(cfg *config.Config) ([]string, error) {
	defaultDir, err := DefaultExportsDir()
	if err != nil {
		return nil, err
	}
	dirs := []string{defaultDir}
	if cfg != nil {
		for _, p := range cfg.AllowedPaths {
			if filepath.IsAbs(p) {
				dirs = append(dirs, filepath.Clean(p))
			}
		}
	}

	result := make([]string, 0, len(dirs))
	for _, d := range dirs {
		abs, err := filepath.Abs(d)
		if err != nil {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid allowed path: %v", err))
		}
		if isSymlink(abs) {
			resolved, err := filepath.EvalSymlinks(abs)
			if err != nil {
				return nil, errors.NewInvalidRequest(fmt.Sprintf("cannot resolve symlink in allowed path: %v", err))
			}
			abs = resolved
		}
		result = append(result, abs)
	}
	return result, nil
}

// isDirectlyInAllowedDir reports whether parentDir is exactly one of the allowed directories.
func isDirectlyInAllowedDir(parentDir string, allowed []string) bool {
	parentDir = filepath.Clean(parentDir)
	for _, dir := range allowed {
		if parentDir == filepath.Clean(dir) {
			return true
		}
	}
	return false
}

// DefaultExportsDir returns ~/.cipherbox/exports.
func DefaultExportsDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", errors.NewInternal(fmt.Errorf("failed to get home directory: %w", err))
	}
	return filepath.Join(homeDir, config.DirName, "exports"), nil
}

// containsTraversal reports whether any component of path is "..".
// Forward slashes count as separators on every platform.
func containsTraversal(path string) bool {
	parts := strings.FieldsFunc(path, func(r rune) bool {
		return r == '/' || r == filepath.Separator
	})
	for _, part := range parts {
		if part == ".." {
			return true
		}
	}
	return false
}

// SanitizeForFilename turns a module name into a safe file name stem.
func SanitizeForFilename(s string) string {
	s = strings.NewReplacer("/", "-", "\\", "-", "..", "-").Replace(s)

	var b strings.Builder
	for _, r := range s {
		if r >= 32 && r != 127 {
			b.WriteRune(r)
		}
	}
	s = b.String()

	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	s = strings.Trim(s, "-")
	if s == "" {
		s = "unnamed"
	}
	return s
}
