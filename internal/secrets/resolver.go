package secrets

import (
	"context"
	"fmt"
	"strings"

	"github.com/vyrodovalexey/idbridge/internal/config"
	"github.com/vyrodovalexey/idbridge/internal/observability"
)

// Resolver turns secret references into secret values. Supported
// reference formats:
//
//	env:VAR_NAME           value of the environment variable
//	vault:mount/path#key   key within a Vault KV v2 secret
//	anything else          returned verbatim as a literal
//
// The "vault:" scheme requires a configured Vault connection.
type Resolver struct {
	env    Provider
	vault  Provider
	logger observability.Logger
}

// NewResolver creates a resolver. The Vault provider is only
// constructed when vaultCfg is non-nil, so configurations that never
// use "vault:" references need no Vault connection.
func NewResolver(vaultCfg *config.VaultConfig, logger observability.Logger) (*Resolver, error) {
	if logger == nil {
		logger = observability.NopLogger()
	}

	env, err := NewEnvProvider(&EnvProviderConfig{Logger: logger})
	if err != nil {
		return nil, err
	}

	r := &Resolver{
		env:    env,
		logger: logger,
	}

	if vaultCfg != nil {
		vp, err := NewVaultProvider(vaultCfg, logger)
		if err != nil {
			return nil, err
		}
		r.vault = vp
	}

	return r, nil
}

// Resolve returns the secret value for ref. An empty ref resolves to
// an empty value.
func (r *Resolver) Resolve(ctx context.Context, ref string) (string, error) {
	switch {
	case ref == "":
		return "", nil

	case strings.HasPrefix(ref, "env:"):
		return r.resolveEnv(ctx, strings.TrimPrefix(ref, "env:"))

	case strings.HasPrefix(ref, "vault:"):
		return r.resolveVault(ctx, strings.TrimPrefix(ref, "vault:"))

	default:
		return ref, nil
	}
}

func (r *Resolver) resolveEnv(ctx context.Context, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: empty variable name in env reference", ErrInvalidRef)
	}

	secret, err := r.env.GetSecret(ctx, name)
	if err != nil {
		return "", err
	}

	value, ok := secret.GetString("value")
	if !ok {
		return "", fmt.Errorf("%w: environment variable %s has no value", ErrSecretNotFound, name)
	}
	return value, nil
}

func (r *Resolver) resolveVault(ctx context.Context, pathAndKey string) (string, error) {
	if r.vault == nil {
		return "", fmt.Errorf("%w: vault reference used but vault is not configured", ErrProviderNotConfigured)
	}

	path := pathAndKey
	key := "value"
	if idx := strings.LastIndex(pathAndKey, "#"); idx >= 0 {
		path = pathAndKey[:idx]
		key = pathAndKey[idx+1:]
	}
	if path == "" || key == "" {
		return "", fmt.Errorf("%w: vault reference %q, expected mount/path#key", ErrInvalidRef, pathAndKey)
	}

	secret, err := r.vault.GetSecret(ctx, path)
	if err != nil {
		return "", err
	}

	value, ok := secret.GetString(key)
	if !ok {
		return "", fmt.Errorf("%w: vault secret %s has no key %q", ErrSecretNotFound, path, key)
	}
	return value, nil
}

// Close releases provider resources.
func (r *Resolver) Close() error {
	if err := r.env.Close(); err != nil {
		return err
	}
	if r.vault != nil {
		return r.vault.Close()
	}
	return nil
}
