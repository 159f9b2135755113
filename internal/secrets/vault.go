package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	vaultapi "github.com/hashicorp/vault/api"

	"github.com/vyrodovalexey/idbridge/internal/config"
	"github.com/vyrodovalexey/idbridge/internal/observability"
)

// defaultVaultTimeout bounds Vault requests when no timeout is configured.
const defaultVaultTimeout = 30 * time.Second

// VaultProvider implements the Provider interface over the Vault KV v2
// secrets engine using token authentication.
type VaultProvider struct {
	client *vaultapi.Client
	logger observability.Logger
}

// NewVaultProvider creates a new Vault secrets provider from the
// configuration. The token falls back to the VAULT_TOKEN environment
// variable when not configured.
func NewVaultProvider(cfg *config.VaultConfig, logger observability.Logger) (*VaultProvider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: vault config is required", ErrProviderNotConfigured)
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("%w: vault address is required", ErrProviderNotConfigured)
	}

	if logger == nil {
		logger = observability.NopLogger()
	}

	apiCfg := vaultapi.DefaultConfig()
	apiCfg.Address = cfg.Address
	apiCfg.Timeout = defaultVaultTimeout
	if cfg.Timeout > 0 {
		apiCfg.Timeout = cfg.Timeout.Duration()
	}
	// Upstream failures surface immediately rather than being retried.
	apiCfg.MaxRetries = 0

	if cfg.InsecureSkipVerify {
		if err := apiCfg.ConfigureTLS(&vaultapi.TLSConfig{Insecure: true}); err != nil {
			return nil, fmt.Errorf("failed to configure vault TLS: %w", err)
		}
	}

	client, err := vaultapi.NewClient(apiCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}

	token := cfg.Token
	if token == "" {
		token = os.Getenv("VAULT_TOKEN")
	}
	if token == "" {
		return nil, fmt.Errorf("%w: vault token is required", ErrProviderNotConfigured)
	}
	client.SetToken(token)

	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}

	logger.Info("vault secrets provider initialized",
		observability.String("address", cfg.Address),
		observability.String("namespace", cfg.Namespace))

	return &VaultProvider{
		client: client,
		logger: logger,
	}, nil
}

// Type returns the provider type.
func (p *VaultProvider) Type() ProviderType {
	return ProviderTypeVault
}

// GetSecret retrieves a secret from the Vault KV v2 engine. The path
// format is "mount/path/to/secret".
func (p *VaultProvider) GetSecret(ctx context.Context, path string) (*Secret, error) {
	start := time.Now()

	mount, secretPath, err := splitVaultPath(path)
	if err != nil {
		RecordOperation(p.Type(), "get", time.Since(start), err)
		return nil, err
	}

	kvSecret, err := p.client.KVv2(mount).Get(ctx, secretPath)
	if err != nil {
		RecordOperation(p.Type(), "get", time.Since(start), err)
		if errors.Is(err, vaultapi.ErrSecretNotFound) {
			return nil, fmt.Errorf("%w: vault secret %s", ErrSecretNotFound, path)
		}
		p.logger.Error("vault read failed",
			observability.String("path", path),
			observability.Error(err))
		return nil, fmt.Errorf("failed to read vault secret %s: %w", path, err)
	}

	if kvSecret == nil || len(kvSecret.Data) == 0 {
		RecordOperation(p.Type(), "get", time.Since(start), ErrSecretNotFound)
		return nil, fmt.Errorf("%w: vault secret %s has no data", ErrSecretNotFound, path)
	}

	data := make(map[string][]byte, len(kvSecret.Data))
	for k, v := range kvSecret.Data {
		switch val := v.(type) {
		case string:
			data[k] = []byte(val)
		default:
			raw, jsonErr := json.Marshal(val)
			if jsonErr != nil {
				p.logger.Warn("failed to marshal vault secret value",
					observability.String("key", k),
					observability.Error(jsonErr))
				continue
			}
			data[k] = raw
		}
	}

	RecordOperation(p.Type(), "get", time.Since(start), nil)

	p.logger.Debug("secret resolved from vault",
		observability.String("path", path),
		observability.Int("keys", len(data)))

	return &Secret{
		Name: path,
		Data: data,
		Metadata: map[string]string{
			"source": "vault",
			"mount":  mount,
		},
	}, nil
}

// HealthCheck verifies Vault connectivity via the sys/health endpoint.
func (p *VaultProvider) HealthCheck(ctx context.Context) error {
	start := time.Now()

	health, err := p.client.Sys().HealthWithContext(ctx)
	RecordOperation(p.Type(), "health_check", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("vault health check failed: %w", err)
	}
	if health.Sealed {
		return errors.New("vault is sealed")
	}
	return nil
}

// Close cleans up provider resources.
func (p *VaultProvider) Close() error {
	return nil
}

// splitVaultPath splits "mount/path/to/secret" into mount point and
// secret path.
func splitVaultPath(path string) (string, string, error) {
	parts := strings.SplitN(path, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: vault path %q, expected mount/path", ErrInvalidPath, path)
	}
	return parts[0], parts[1], nil
}
