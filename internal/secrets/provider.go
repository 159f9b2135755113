// Package secrets resolves secret material from environment variables
// and HashiCorp Vault.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ProviderType represents the type of secrets provider.
type ProviderType string

const (
	// ProviderTypeVault uses HashiCorp Vault as the backend.
	ProviderTypeVault ProviderType = "vault"
	// ProviderTypeEnv uses environment variables as the backend.
	ProviderTypeEnv ProviderType = "env"
)

// Common errors for secrets providers.
var (
	// ErrSecretNotFound is returned when a secret is not found.
	ErrSecretNotFound = errors.New("secret not found")
	// ErrProviderNotConfigured is returned when the provider is not properly configured.
	ErrProviderNotConfigured = errors.New("provider not configured")
	// ErrInvalidPath is returned when the secret path is invalid.
	ErrInvalidPath = errors.New("invalid secret path")
	// ErrInvalidRef is returned when a secret reference cannot be parsed.
	ErrInvalidRef = errors.New("invalid secret reference")
)

// Secret represents a secret with key-value data.
type Secret struct {
	// Name is the name of the secret.
	Name string
	// Data contains the secret key-value pairs.
	Data map[string][]byte
	// Metadata contains additional metadata about the secret.
	Metadata map[string]string
}

// GetString returns a string value from the secret data.
func (s *Secret) GetString(key string) (string, bool) {
	if s == nil || s.Data == nil {
		return "", false
	}
	v, ok := s.Data[key]
	if !ok {
		return "", false
	}
	return string(v), true
}

// Provider is the interface for secrets providers. All providers are
// read-only.
type Provider interface {
	// Type returns the provider type.
	Type() ProviderType

	// GetSecret retrieves a secret by path.
	// Path format depends on the provider:
	// - vault: "mount/path/to/secret"
	// - env: "SECRET_NAME" (maps to env var with configured prefix)
	GetSecret(ctx context.Context, path string) (*Secret, error)

	// HealthCheck checks provider connectivity.
	HealthCheck(ctx context.Context) error

	// Close cleans up provider resources.
	Close() error
}

// Prometheus metrics for secrets provider operations.
var (
	secretsOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "idbridge",
			Subsystem: "secrets",
			Name:      "operation_duration_seconds",
			Help:      "Duration of secrets provider operations in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider", "operation", "result"},
	)

	secretsOperationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "idbridge",
			Subsystem: "secrets",
			Name:      "operation_total",
			Help:      "Total number of secrets provider operations",
		},
		[]string{"provider", "operation", "result"},
	)
)

// MustRegister registers the secrets metric collectors with the given
// Prometheus registry.
func MustRegister(registry *prometheus.Registry) {
	registry.MustRegister(
		secretsOperationDuration,
		secretsOperationTotal,
	)
}

// RecordOperation records metrics for a secrets provider operation.
func RecordOperation(provider ProviderType, operation string, duration time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	providerStr := string(provider)
	secretsOperationDuration.WithLabelValues(providerStr, operation, result).Observe(duration.Seconds())
	secretsOperationTotal.WithLabelValues(providerStr, operation, result).Inc()
}

// ValidateProviderType validates that the given string is a valid provider type.
func ValidateProviderType(providerType string) (ProviderType, error) {
	switch ProviderType(providerType) {
	case ProviderTypeVault, ProviderTypeEnv:
		return ProviderType(providerType), nil
	default:
		return "", fmt.Errorf("%w: invalid provider type %s, must be one of: vault, env", ErrInvalidRef, providerType)
	}
}
