package filex

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureDir_CreatesNestedAndIsIdempotent(t *testing.T) {
	tmp := t.TempDir()
	want := filepath.Join(tmp, "a", "b")

	got, err := EnsureDir(want)
	require.NoError(t, err)
	require.Equal(t, want, got)

	_, err = EnsureDir(want)
	require.NoError(t, err)

	fi, err := os.Stat(want)
	require.NoError(t, err)
	require.True(t, fi.IsDir())

	if runtime.GOOS != "windows" {
		require.Equal(t, os.FileMode(0o700), fi.Mode().Perm()&0o700)
	}
}

func TestEnsureDir_FailsIfFileWithSameNameExists(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "sessions")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	_, err := EnsureDir(path)
	require.Error(t, err)
}

func TestWriteFileAtomic_ReplacesContentAndLeavesNoTemp(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "nested", "accounts.json")

	require.NoError(t, WriteFileAtomic(path, []byte(`[1]`), 0o600))
	require.NoError(t, WriteFileAtomic(path, []byte(`[1,2]`), 0o600))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `[1,2]`, string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must be renamed or removed")
}

func TestCopyAside(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "accounts.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o600))

	dst, err := CopyAside(path, ".bak")
	require.NoError(t, err)
	assert.Equal(t, path+".bak", dst)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "{broken", string(data))

	_, err = CopyAside(filepath.Join(tmp, "missing.json"), ".bak")
	assert.Error(t, err)
}

func TestSafeName(t *testing.T) {
	tests := map[string]string{
		"user@example.com":   "user_example_com",
		"pending_1a2b":       "pending_1a2b",
		"../../etc/passwd":   "______etc_passwd",
		"Mixed.Case+tag@x.y": "Mixed_Case_tag_x_y",
	}
	for in, want := range tests {
		assert.Equal(t, want, SafeName(in), in)
	}
}
