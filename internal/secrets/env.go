package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/vyrodovalexey/idbridge/internal/observability"
)

// DefaultEnvPrefix is the default prefix for environment variable secrets.
const DefaultEnvPrefix = ""

// EnvProviderConfig holds configuration for the environment variable
// secrets provider.
type EnvProviderConfig struct {
	// Prefix is prepended to every looked-up variable name.
	Prefix string
	// Logger is the logger instance.
	Logger observability.Logger
}

// EnvProvider implements the Provider interface using environment
// variables. Path format: "SECRET_NAME" maps to env var
// "{PREFIX}SECRET_NAME". For secrets with multiple keys the value may
// be JSON-encoded.
type EnvProvider struct {
	prefix string
	logger observability.Logger
}

// NewEnvProvider creates a new environment variable secrets provider.
func NewEnvProvider(cfg *EnvProviderConfig) (*EnvProvider, error) {
	if cfg == nil {
		cfg = &EnvProviderConfig{}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = observability.NopLogger()
	}

	return &EnvProvider{
		prefix: cfg.Prefix,
		logger: logger,
	}, nil
}

// Type returns the provider type.
func (p *EnvProvider) Type() ProviderType {
	return ProviderTypeEnv
}

// normalizeEnvName converts a secret path to an environment variable name.
func (p *EnvProvider) normalizeEnvName(path string) string {
	name := strings.ToUpper(path)
	name = strings.ReplaceAll(name, "-", "_")
	name = strings.ReplaceAll(name, ".", "_")
	name = strings.ReplaceAll(name, "/", "_")

	return p.prefix + name
}

// GetSecret retrieves a secret from environment variables. If the value
// is valid JSON it is parsed as a map of key-value pairs, otherwise the
// entire value is stored under the key "value".
func (p *EnvProvider) GetSecret(ctx context.Context, path string) (*Secret, error) {
	start := time.Now()

	if path == "" {
		RecordOperation(p.Type(), "get", time.Since(start), ErrInvalidPath)
		return nil, ErrInvalidPath
	}

	envName := p.normalizeEnvName(path)

	value, exists := os.LookupEnv(envName)
	if !exists {
		p.logger.Debug("environment variable not found",
			observability.String("envVar", envName))
		RecordOperation(p.Type(), "get", time.Since(start), ErrSecretNotFound)
		return nil, fmt.Errorf("%w: environment variable %s not set", ErrSecretNotFound, envName)
	}

	data := make(map[string][]byte)

	var jsonData map[string]interface{}
	if err := json.Unmarshal([]byte(value), &jsonData); err == nil && len(jsonData) > 0 {
		for k, v := range jsonData {
			switch val := v.(type) {
			case string:
				data[k] = []byte(val)
			default:
				jsonBytes, err := json.Marshal(val)
				if err != nil {
					p.logger.Warn("failed to marshal secret value",
						observability.String("key", k),
						observability.Error(err))
					continue
				}
				data[k] = jsonBytes
			}
		}
	} else {
		data["value"] = []byte(value)
	}

	p.logger.Debug("secret resolved from environment",
		observability.String("path", path),
		observability.String("envVar", envName),
		observability.Int("keys", len(data)))

	RecordOperation(p.Type(), "get", time.Since(start), nil)

	return &Secret{
		Name: path,
		Data: data,
		Metadata: map[string]string{
			"source":  "environment",
			"env_var": envName,
		},
	}, nil
}

// HealthCheck always returns nil as environment variables are always
// available.
func (p *EnvProvider) HealthCheck(ctx context.Context) error {
	return nil
}

// Close cleans up provider resources.
func (p *EnvProvider) Close() error {
	return nil
}
