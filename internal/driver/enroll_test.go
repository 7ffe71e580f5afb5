package driver

import (
	"context"
	"os"
	"testing"

	"github.com/dmitrijs2005/promoclaim/internal/common"
	"github.com/dmitrijs2005/promoclaim/internal/logging"
	"github.com/dmitrijs2005/promoclaim/internal/vault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnroll_RemapsPlaceholderToIdentity(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	v, err := vault.New(dir, 0, logging.Nop())
	require.NoError(t, err)

	site := &fakeSite{manualAfter: 2, peek: "New.Player@example.com", cookies: sessionCookies}
	d := New(site, v, "", "", fastPolicy, logging.Nop())
	require.NoError(t, d.Start(ctx))
	defer d.Close()

	id, err := d.Enroll(ctx)
	require.NoError(t, err)
	assert.Equal(t, "new.player@example.com", id)
	assert.Equal(t, id, d.ResolvedIdentity())
	assert.True(t, v.Exists(id))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "placeholder bundle moved, not copied")
}

func TestEnroll_WithoutIdentityFails(t *testing.T) {
	ctx := context.Background()
	site := &fakeSite{manualAfter: 1, cookies: sessionCookies}
	d := New(site, newTestVault(t), "", "", fastPolicy, logging.Nop())
	require.NoError(t, d.Start(ctx))
	defer d.Close()

	_, err := d.Enroll(ctx)
	require.ErrorIs(t, err, common.ErrLoginFailed)
	assert.Equal(t, StateLoginFailed, d.State())
}

func TestEnroll_Timeout(t *testing.T) {
	ctx := context.Background()
	d := New(&fakeSite{}, newTestVault(t), "", "", fastPolicy, logging.Nop())
	require.NoError(t, d.Start(ctx))
	defer d.Close()

	_, err := d.Enroll(ctx)
	require.ErrorIs(t, err, common.ErrLoginFailed)
}
