package secrets

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/idbridge/internal/config"
)

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	r, err := NewResolver(nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, r.Close())
	})
	return r
}

func TestResolver_EmptyRef(t *testing.T) {
	r := newTestResolver(t)

	value, err := r.Resolve(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, value)
}

func TestResolver_Literal(t *testing.T) {
	r := newTestResolver(t)

	value, err := r.Resolve(context.Background(), "plain-secret")
	require.NoError(t, err)
	assert.Equal(t, "plain-secret", value)
}

func TestResolver_EnvRef(t *testing.T) {
	t.Setenv("IDBRIDGE_CLIENT_SECRET", "from-env")
	r := newTestResolver(t)

	value, err := r.Resolve(context.Background(), "env:IDBRIDGE_CLIENT_SECRET")
	require.NoError(t, err)
	assert.Equal(t, "from-env", value)
}

func TestResolver_EnvRefMissing(t *testing.T) {
	r := newTestResolver(t)

	_, err := r.Resolve(context.Background(), "env:IDBRIDGE_UNSET_VAR")
	assert.ErrorIs(t, err, ErrSecretNotFound)
}

func TestResolver_EnvRefEmptyName(t *testing.T) {
	r := newTestResolver(t)

	_, err := r.Resolve(context.Background(), "env:")
	assert.ErrorIs(t, err, ErrInvalidRef)
}

func TestResolver_VaultRefWithoutVault(t *testing.T) {
	r := newTestResolver(t)

	_, err := r.Resolve(context.Background(), "vault:secret/idbridge#clientSecret")
	assert.ErrorIs(t, err, ErrProviderNotConfigured)
}

func TestSplitVaultPath(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		wantMount  string
		wantSecret string
		wantErr    bool
	}{
		{name: "simple", path: "secret/idbridge", wantMount: "secret", wantSecret: "idbridge"},
		{name: "nested", path: "kv/team/idbridge/prod", wantMount: "kv", wantSecret: "team/idbridge/prod"},
		{name: "no slash", path: "secret", wantErr: true},
		{name: "empty mount", path: "/idbridge", wantErr: true},
		{name: "empty path", path: "secret/", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mount, secretPath, err := splitVaultPath(tt.path)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPath)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantMount, mount)
			assert.Equal(t, tt.wantSecret, secretPath)
		})
	}
}

func TestNewVaultProvider_Validation(t *testing.T) {
	t.Setenv("VAULT_TOKEN", "")

	_, err := NewVaultProvider(nil, nil)
	assert.ErrorIs(t, err, ErrProviderNotConfigured)

	_, err = NewVaultProvider(&config.VaultConfig{}, nil)
	assert.ErrorIs(t, err, ErrProviderNotConfigured)

	_, err = NewVaultProvider(&config.VaultConfig{Address: "http://127.0.0.1:8200"}, nil)
	assert.ErrorIs(t, err, ErrProviderNotConfigured, "missing token should be rejected")
}
