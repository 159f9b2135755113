package secrets

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvProvider_GetSecret(t *testing.T) {
	t.Setenv("IDBRIDGE_TEST_SECRET", "s3cr3t")

	p, err := NewEnvProvider(nil)
	require.NoError(t, err)
	defer p.Close()

	secret, err := p.GetSecret(context.Background(), "IDBRIDGE_TEST_SECRET")
	require.NoError(t, err)

	value, ok := secret.GetString("value")
	require.True(t, ok)
	assert.Equal(t, "s3cr3t", value)
}

func TestEnvProvider_GetSecretJSON(t *testing.T) {
	t.Setenv("IDBRIDGE_TEST_JSON", `{"username":"svc","password":"pw"}`)

	p, err := NewEnvProvider(nil)
	require.NoError(t, err)

	secret, err := p.GetSecret(context.Background(), "IDBRIDGE_TEST_JSON")
	require.NoError(t, err)

	username, ok := secret.GetString("username")
	require.True(t, ok)
	assert.Equal(t, "svc", username)

	password, ok := secret.GetString("password")
	require.True(t, ok)
	assert.Equal(t, "pw", password)
}

func TestEnvProvider_NotFound(t *testing.T) {
	p, err := NewEnvProvider(nil)
	require.NoError(t, err)

	_, err = p.GetSecret(context.Background(), "IDBRIDGE_DEFINITELY_UNSET")
	assert.ErrorIs(t, err, ErrSecretNotFound)
}

func TestEnvProvider_EmptyPath(t *testing.T) {
	p, err := NewEnvProvider(nil)
	require.NoError(t, err)

	_, err = p.GetSecret(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestEnvProvider_Prefix(t *testing.T) {
	t.Setenv("APP_DB_PASSWORD", "hunter2")

	p, err := NewEnvProvider(&EnvProviderConfig{Prefix: "APP_"})
	require.NoError(t, err)

	secret, err := p.GetSecret(context.Background(), "db-password")
	require.NoError(t, err)

	value, ok := secret.GetString("value")
	require.True(t, ok)
	assert.Equal(t, "hunter2", value)
}

func TestEnvProvider_HealthCheck(t *testing.T) {
	p, err := NewEnvProvider(nil)
	require.NoError(t, err)
	assert.NoError(t, p.HealthCheck(context.Background()))
}

func TestSecret_GetStringNil(t *testing.T) {
	var s *Secret
	_, ok := s.GetString("anything")
	assert.False(t, ok)
}

func TestValidateProviderType(t *testing.T) {
	tests := []struct {
		input   string
		want    ProviderType
		wantErr bool
	}{
		{input: "vault", want: ProviderTypeVault},
		{input: "env", want: ProviderTypeEnv},
		{input: "kubernetes", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ValidateProviderType(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
