package ops

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/cipherbox/internal/config"
	"github.com/hpungsan/cipherbox/internal/errors"
)

// pathFixture lays out an allowed directory with one export file, a nested
// directory, a directory outside the allowlist and a symlink pointing there.
type pathFixture struct {
	allowed  string
	outside  string
	file     string
	nested   string
	symlink  string
	linkable bool
}

func newPathFixture(t *testing.T) pathFixture {
	t.Helper()
	f := pathFixture{allowed: t.TempDir(), outside: t.TempDir()}

	f.file = filepath.Join(f.allowed, "modules.jsonl")
	require.NoError(t, os.WriteFile(f.file, []byte("{}\n"), 0600))

	f.nested = filepath.Join(f.allowed, "sub")
	require.NoError(t, os.MkdirAll(f.nested, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(f.nested, "modules.jsonl"), []byte("{}\n"), 0600))

	target := filepath.Join(f.outside, "secret.jsonl")
	require.NoError(t, os.WriteFile(target, []byte("{}\n"), 0600))
	f.symlink = filepath.Join(f.allowed, "link.jsonl")
	f.linkable = os.Symlink(target, f.symlink) == nil
	return f
}

func TestValidatePath(t *testing.T) {
	fx := newPathFixture(t)

	allowlist := config.DefaultConfig()
	allowlist.AllowedPaths = []string{fx.allowed, "relative/ignored"}

	unsafe := config.DefaultConfig()
	unsafe.AllowUnsafePaths = true

	tests := []struct {
		name    string
		path    string
		mode    PathCheckMode
		cfg     *config.Config
		symlink bool
		code    errors.ErrorCode // empty means valid
	}{
		{"empty path", "", PathCheckWrite, allowlist, false, errors.ErrInvalidRequest},
		{"parent traversal", "../modules.jsonl", PathCheckWrite, unsafe, false, errors.ErrInvalidRequest},
		{"mid-path traversal", "/tmp/../etc/modules.jsonl", PathCheckWrite, unsafe, false, errors.ErrInvalidRequest},
		{"no extension", filepath.Join(fx.allowed, "modules"), PathCheckWrite, unsafe, false, errors.ErrInvalidRequest},
		{"json extension", filepath.Join(fx.allowed, "modules.json"), PathCheckWrite, unsafe, false, errors.ErrInvalidRequest},
		{"default config refuses other dirs", filepath.Join(fx.outside, "out.jsonl"), PathCheckWrite, config.DefaultConfig(), false, errors.ErrInvalidRequest},
		{"allowlisted read", fx.file, PathCheckRead, allowlist, false, ""},
		{"allowlisted write", filepath.Join(fx.allowed, "new.jsonl"), PathCheckWrite, allowlist, false, ""},
		{"outside allowlist", filepath.Join(fx.outside, "secret.jsonl"), PathCheckRead, allowlist, false, errors.ErrInvalidRequest},
		{"nested read", filepath.Join(fx.nested, "modules.jsonl"), PathCheckRead, allowlist, false, errors.ErrInvalidRequest},
		{"nested write", filepath.Join(fx.nested, "out.jsonl"), PathCheckWrite, allowlist, false, errors.ErrInvalidRequest},
		{"unsafe allows any dir", filepath.Join(fx.outside, "out.jsonl"), PathCheckWrite, unsafe, false, ""},
		{"missing file on read", filepath.Join(fx.allowed, "missing.jsonl"), PathCheckRead, allowlist, false, errors.ErrFileNotFound},
		{"symlink read", fx.symlink, PathCheckRead, allowlist, true, errors.ErrInvalidRequest},
		{"symlink write", fx.symlink, PathCheckWrite, allowlist, true, errors.ErrInvalidRequest},
		{"symlink refused even when unsafe", fx.symlink, PathCheckRead, unsafe, true, errors.ErrInvalidRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.symlink && !fx.linkable {
				t.Skip("cannot create symlink")
			}
			err := ValidatePath(tc.path, tc.mode, tc.cfg)
			if tc.code == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.True(t, errors.Is(err, tc.code), "expected %s, got %v", tc.code, err)
		})
	}
}

func TestOpenNoFollow(t *testing.T) {
	fx := newPathFixture(t)

	f, err := openNoFollow(fx.file, os.O_RDONLY, 0)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = openNoFollow(filepath.Join(fx.allowed, "missing.jsonl"), os.O_RDONLY, 0)
	require.True(t, errors.Is(err, errors.ErrFileNotFound), "got %v", err)

	f, err = openNoFollow(filepath.Join(fx.allowed, "created.jsonl"), os.O_CREATE|os.O_WRONLY, 0600)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	if fx.linkable {
		_, err = openNoFollow(fx.symlink, os.O_RDONLY, 0)
		require.Error(t, err)
	}
}

func TestContainsTraversal(t *testing.T) {
	tests := map[string]bool{
		"/home/user/modules.jsonl":   false,
		"./modules.jsonl":            false,
		"/home/user/.hidden/x.jsonl": false,
		"file..name.jsonl":           false,
		"..":                         true,
		"../modules.jsonl":           true,
		"a/../b.jsonl":               true,
		"/tmp/a/b/../c.jsonl":        true,
	}
	for path, want := range tests {
		require.Equal(t, want, containsTraversal(path), path)
	}
}

func TestSanitizeForFilename(t *testing.T) {
	tests := []struct {
		input, want string
	}{
		{"Morse Code", "Morse Code"},
		{"Keyboard Symbol Cipher", "Keyboard Symbol Cipher"},
		{"path/to/module", "path-to-module"},
		{"path\\to\\module", "path-to-module"},
		{"foo..bar", "foo-bar"},
		{"../../../etc/passwd", "etc-passwd"},
		{"/tmp/evil", "tmp-evil"},
		{"tab\tand\x00nul", "tabandnul"},
		{"a---b", "a-b"},
		{"---1337---", "1337"},
		{"../../..", "unnamed"},
		{"///", "unnamed"},
		{"morse-中文", "morse-中文"},
	}
	for _, tc := range tests {
		require.Equal(t, tc.want, SanitizeForFilename(tc.input), tc.input)
	}
}
