package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
)

// SecretSource names the backing store of a Provider
type SecretSource string

const (
	SourceEnvironment SecretSource = "environment"
	SourceVault       SecretSource = "vault"
	// SourceAuto picks vault outside local environments
	SourceAuto SecretSource = "auto"
)

// ErrSecretNotFound is returned when the source has no value for a name
var ErrSecretNotFound = errors.New("secret not found")

// Getter fetches a named secret from a backing store
type Getter interface {
	GetSecret(ctx context.Context, secretName string) (string, error)
}

type ProviderConfig struct {
	Source       SecretSource
	VaultName    string
	Environment  string
	CacheEnabled bool
	CacheTTL     time.Duration
}

// Provider resolves secrets from one source, with environment variables
// available as explicit overrides.
type Provider struct {
	source SecretSource
	store  Getter
	logger *zap.Logger
}

// ResolveSource turns SourceAuto into a concrete source
func ResolveSource(source SecretSource, environment string) SecretSource {
	if source != SourceAuto {
		return source
	}
	switch environment {
	case "", "development", "local", "test":
		return SourceEnvironment
	}
	return SourceVault
}

func NewProvider(cfg *ProviderConfig, logger *zap.Logger) (*Provider, error) {
	source := ResolveSource(cfg.Source, cfg.Environment)

	var store Getter
	switch source {
	case SourceEnvironment:
		store = envGetter{}
	case SourceVault:
		if cfg.VaultName == "" {
			return nil, errors.New("vault secret source needs a vault name")
		}
		vault, err := NewVaultClient(&VaultConfig{
			VaultName:    cfg.VaultName,
			CacheEnabled: cfg.CacheEnabled,
			CacheTTL:     cfg.CacheTTL,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("init vault client: %w", err)
		}
		store = vault
	default:
		return nil, fmt.Errorf("unknown secret source %q", source)
	}

	logger.Info("secrets provider ready",
		zap.String("source", string(source)),
		zap.String("environment", cfg.Environment),
	)
	return &Provider{source: source, store: store, logger: logger}, nil
}

// NewEnvironmentProvider reads secrets from environment variables only
func NewEnvironmentProvider(logger *zap.Logger) *Provider {
	return &Provider{source: SourceEnvironment, store: envGetter{}, logger: logger}
}

// GetSecret looks name up in the configured source. For the environment
// source name is a variable name.
func (p *Provider) GetSecret(ctx context.Context, name string) (string, error) {
	return p.store.GetSecret(ctx, name)
}

// GetSecretOrEnv returns envName when it is set and otherwise asks the
// source, by envName for the environment source and secretName for vault.
func (p *Provider) GetSecretOrEnv(ctx context.Context, secretName, envName string) (string, error) {
	if v := os.Getenv(envName); v != "" {
		p.logger.Debug("secret taken from environment", zap.String("env_name", envName))
		return v, nil
	}
	if p.source == SourceEnvironment {
		return p.GetSecret(ctx, envName)
	}
	return p.GetSecret(ctx, secretName)
}

func (p *Provider) Source() SecretSource { return p.source }

func (p *Provider) IsVaultEnabled() bool { return p.source == SourceVault }

type envGetter struct{}

func (envGetter) GetSecret(_ context.Context, name string) (string, error) {
	if v := os.Getenv(name); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("%w: environment variable %s is not set", ErrSecretNotFound, name)
}
