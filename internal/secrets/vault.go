package secrets

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
	"go.uber.org/zap"
)

const defaultVaultCacheTTL = 5 * time.Minute

type VaultConfig struct {
	VaultName    string
	CacheEnabled bool
	CacheTTL     time.Duration
}

// VaultClient reads secrets from Azure Key Vault. With caching enabled a
// value is reused until its TTL passes.
type VaultClient struct {
	fetch  func(ctx context.Context, name string) (string, error)
	logger *zap.Logger
	ttl    time.Duration // zero disables caching
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]vaultEntry
}

type vaultEntry struct {
	value   string
	expires time.Time
}

// NewVaultClient authenticates with DefaultAzureCredential, which covers
// environment credentials, managed identity and the Azure CLI.
func NewVaultClient(cfg *VaultConfig, logger *zap.Logger) (*VaultClient, error) {
	if cfg.VaultName == "" {
		return nil, fmt.Errorf("vault name is required")
	}
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("azure credential: %w", err)
	}
	url := "https://" + cfg.VaultName + ".vault.azure.net/"
	client, err := azsecrets.NewClient(url, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("key vault client: %w", err)
	}

	ttl := time.Duration(0)
	if cfg.CacheEnabled {
		ttl = cfg.CacheTTL
		if ttl <= 0 {
			ttl = defaultVaultCacheTTL
		}
	}
	logger.Info("key vault client ready", zap.String("vault_url", url), zap.Duration("cache_ttl", ttl))

	return newVaultClient(func(ctx context.Context, name string) (string, error) {
		resp, err := client.GetSecret(ctx, name, "", nil)
		if err != nil {
			return "", err
		}
		if resp.Value == nil {
			return "", fmt.Errorf("%w: %s has no value", ErrSecretNotFound, name)
		}
		return *resp.Value, nil
	}, ttl, logger), nil
}

func newVaultClient(fetch func(context.Context, string) (string, error), ttl time.Duration, logger *zap.Logger) *VaultClient {
	return &VaultClient{
		fetch:   fetch,
		logger:  logger,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]vaultEntry),
	}
}

// GetSecret returns the latest version of the named secret
func (v *VaultClient) GetSecret(ctx context.Context, name string) (string, error) {
	if value, ok := v.cached(name); ok {
		return value, nil
	}

	value, err := v.fetch(ctx, name)
	if err != nil {
		v.logger.Error("key vault lookup failed", zap.String("secret_name", name), zap.Error(err))
		return "", fmt.Errorf("get secret %s: %w", name, err)
	}

	if v.ttl > 0 {
		v.mu.Lock()
		v.entries[name] = vaultEntry{value: value, expires: v.now().Add(v.ttl)}
		v.mu.Unlock()
	}
	return value, nil
}

func (v *VaultClient) cached(name string) (string, bool) {
	if v.ttl <= 0 {
		return "", false
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	e, ok := v.entries[name]
	if !ok {
		return "", false
	}
	if !v.now().Before(e.expires) {
		delete(v.entries, name)
		return "", false
	}
	return e.value, true
}
