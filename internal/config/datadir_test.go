package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveDataDir_Priority(t *testing.T) {
	base := t.TempDir()
	home := filepath.Join(base, "home")
	require.NoError(t, os.MkdirAll(home, 0o700))

	flagDir := filepath.Join(base, "flag")
	envDir := filepath.Join(base, "env")
	custom := filepath.Join(base, "custom")

	got, err := ResolveDataDir(flagDir, envDir, custom, home)
	require.NoError(t, err)
	assert.Equal(t, flagDir, got)

	got, err = ResolveDataDir("", envDir, custom, home)
	require.NoError(t, err)
	assert.Equal(t, envDir, got)
	assert.DirExists(t, envDir)

	got, err = ResolveDataDir("", "", custom, home)
	require.NoError(t, err)
	assert.Equal(t, custom, got)

	got, err = ResolveDataDir("", "", "", home)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "Documents", DefaultDataDirName), got)
}

func TestResolveDataDir_CustomPathNeedsExistingParent(t *testing.T) {
	base := t.TempDir()
	home := filepath.Join(base, "home")
	require.NoError(t, os.MkdirAll(home, 0o700))

	got, err := ResolveDataDir("", "", filepath.Join(base, "missing", "deep"), home)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "Documents", DefaultDataDirName), got)
}
