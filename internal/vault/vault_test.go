package vault

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/promoclaim/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVault(t *testing.T) (*Vault, *time.Time) {
	t.Helper()
	v, err := New(t.TempDir(), 0, logging.Nop())
	require.NoError(t, err)

	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	v.now = func() time.Time { return clock }
	return v, &clock
}

var sample = []Cookie{
	{Name: "session", Value: "abc", Domain: ".store.example", Path: "/", Secure: true},
	{Name: "locale", Value: "en", Domain: ".store.example"},
}

func TestVault_SaveLoadExists(t *testing.T) {
	ctx := context.Background()
	v, _ := newTestVault(t)

	assert.False(t, v.Exists("me@example.com"))
	assert.Nil(t, v.Load(ctx, "me@example.com"))

	require.NoError(t, v.Save(ctx, "me@example.com", sample))
	assert.True(t, v.Exists("me@example.com"))
	assert.Equal(t, sample, v.Load(ctx, "me@example.com"))

	_, err := os.Stat(filepath.Join(v.dir, "me_example_com_session.json"))
	require.NoError(t, err)
}

func TestVault_SaveDedupesLastWins(t *testing.T) {
	ctx := context.Background()
	v, _ := newTestVault(t)

	in := []Cookie{
		{Name: "a", Value: "1", Domain: "x"},
		{Name: "b", Value: "1", Domain: "x"},
		{Name: "a", Value: "2", Domain: "x"},
		{Name: "a", Value: "3", Domain: "y"},
	}
	require.NoError(t, v.Save(ctx, "dup@example.com", in))

	got := v.Load(ctx, "dup@example.com")
	assert.Equal(t, []Cookie{
		{Name: "a", Value: "2", Domain: "x"},
		{Name: "b", Value: "1", Domain: "x"},
		{Name: "a", Value: "3", Domain: "y"},
	}, got)
}

func TestVault_ExpiredBundleIsPurged(t *testing.T) {
	ctx := context.Background()
	v, clock := newTestVault(t)

	require.NoError(t, v.Save(ctx, "old@example.com", sample))
	assert.Equal(t, 30, v.ExpiryDays("old@example.com"))
	*clock = clock.Add(36 * time.Hour)
	assert.Equal(t, 28, v.ExpiryDays("old@example.com"))

	*clock = clock.Add(DefaultTTL + time.Minute)

	assert.False(t, v.Exists("old@example.com"))
	assert.Equal(t, -1, v.ExpiryDays("old@example.com"))
	assert.Nil(t, v.Load(ctx, "old@example.com"))

	_, err := os.Stat(v.path("old@example.com"))
	assert.True(t, os.IsNotExist(err), "expired bundle removed on load")
}

func TestVault_IdentityMismatch(t *testing.T) {
	ctx := context.Background()
	v, _ := newTestVault(t)

	// "a.b@example.com" and "a_b@example.com" map to the same file name.
	require.NoError(t, v.Save(ctx, "a.b@example.com", sample))
	assert.False(t, v.Exists("a_b@example.com"))
	assert.Nil(t, v.Load(ctx, "a_b@example.com"))
	assert.True(t, v.Exists("A.B@example.com"), "comparison is case-insensitive")
}

func TestVault_PlaceholderAndRemap(t *testing.T) {
	ctx := context.Background()
	v, _ := newTestVault(t)

	key := NewPlaceholderKey()
	require.True(t, IsPlaceholder(key))
	require.True(t, strings.HasPrefix(key, PlaceholderPrefix))

	require.NoError(t, v.Save(ctx, key, sample))
	assert.True(t, v.Exists(key))

	require.NoError(t, v.Save(ctx, "real@example.com", []Cookie{{Name: "stale", Domain: "x"}}))

	ok, err := v.Remap(ctx, key, "real@example.com")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.False(t, v.Exists(key))
	assert.Equal(t, sample, v.Load(ctx, "real@example.com"), "destination overwritten")

	ok, err = v.Remap(ctx, key, "real@example.com")
	require.NoError(t, err)
	assert.False(t, ok, "nothing left to move")
}

func TestVault_DeleteIdempotent(t *testing.T) {
	ctx := context.Background()
	v, _ := newTestVault(t)

	require.NoError(t, v.Save(ctx, "gone@example.com", sample))
	require.NoError(t, v.Delete("gone@example.com"))
	require.NoError(t, v.Delete("gone@example.com"))
	assert.False(t, v.Exists("gone@example.com"))
}

func TestVault_CorruptBundle(t *testing.T) {
	ctx := context.Background()
	v, _ := newTestVault(t)

	require.NoError(t, os.WriteFile(v.path("bad@example.com"), []byte("{"), 0o600))
	assert.False(t, v.Exists("bad@example.com"))
	assert.Nil(t, v.Load(ctx, "bad@example.com"))
	assert.Equal(t, -1, v.ExpiryDays("bad@example.com"))
}
