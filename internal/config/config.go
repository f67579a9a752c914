package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/straye-as/pipeline-api/internal/secrets"
	"go.uber.org/zap"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Cache     CacheConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Secrets   SecretsConfig
	Logging   LoggingConfig
	Server    ServerConfig
	CORS      CORSConfig
	Security  SecurityConfig
	RateLimit RateLimitConfig
	Jobs      JobsConfig
	Workflow  WorkflowConfig
}

type AppConfig struct {
	Name        string
	Environment string
	Port        int
}

type DatabaseConfig struct {
	// Driver is "postgres" or "sqlite"
	Driver   string
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
	// Path is the sqlite database file (or ":memory:")
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
	AutoMigrate     bool
}

// CacheConfig selects the aggregate cache backend and its per-key freshness bounds
type CacheConfig struct {
	// Backend is "memory" or "redis"
	Backend string
	// KeyPrefix namespaces keys in a shared Redis
	KeyPrefix string
	TTL       CacheTTLConfig
}

// CacheTTLConfig holds per-aggregate TTLs in seconds
type CacheTTLConfig struct {
	AdminStatusCounts int
	AdminLeads        int
	AdminEarnings     int
	AdminDevelopers   int
	FetcherEarnings   int
	ExecutionProjects int
	ProjectUpdates    int
	ProjectLogs       int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AuthConfig configures bearer token validation
type AuthConfig struct {
	JWTSecret string
	Issuer    string
	Audience  string
	// TokenTTL is the lifetime of issued tokens in seconds
	TokenTTL int
}

type SecretsConfig struct {
	// Source determines where secrets are loaded from: "environment", "vault", or "auto"
	// "auto" uses environment in development, vault in staging/production
	Source       string
	KeyVaultName string
	CacheEnabled bool
	CacheTTL     int // seconds
}

type LoggingConfig struct {
	Level  string
	Format string
}

type ServerConfig struct {
	ReadTimeout    int
	WriteTimeout   int
	RequestTimeout int
	EnableSwagger  bool
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	// MaxAge is the max age (in seconds) for preflight cache
	MaxAge int
}

// SecurityConfig holds security header configuration
type SecurityConfig struct {
	EnableHSTS            bool
	HSTSMaxAge            int
	HSTSIncludeSubdomains bool
	ContentSecurityPolicy string
	FrameOptions          string
	ContentTypeNosniff    bool
	ReferrerPolicy        string
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled               bool
	RequestsPerMinute     int
	RequestsPerMinuteAuth int
	WhitelistIPs          []string
	WhitelistPaths        []string
}

// JobsConfig holds background job schedules
type JobsConfig struct {
	Enabled bool
	// CacheSweepCron purges expired in-memory cache entries
	CacheSweepCron string
}

// WorkflowConfig tunes the optimistic concurrency retry around project writes
type WorkflowConfig struct {
	MaxRetries      int
	RetryBaseMillis int
	// ActivityTimeout bounds a single activity write in milliseconds
	ActivityTimeoutMillis int
}

// ConnectionString builds PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

// ConnMaxLifetimeDuration returns connection max lifetime as duration
func (d *DatabaseConfig) ConnMaxLifetimeDuration() time.Duration {
	return time.Duration(d.ConnMaxLifetime) * time.Second
}

// ReadTimeoutDuration returns read timeout as duration
func (s *ServerConfig) ReadTimeoutDuration() time.Duration {
	return time.Duration(s.ReadTimeout) * time.Second
}

// WriteTimeoutDuration returns write timeout as duration
func (s *ServerConfig) WriteTimeoutDuration() time.Duration {
	return time.Duration(s.WriteTimeout) * time.Second
}

// RequestTimeoutDuration returns request timeout as duration
func (s *ServerConfig) RequestTimeoutDuration() time.Duration {
	return time.Duration(s.RequestTimeout) * time.Second
}

// TokenTTLDuration returns the issued token lifetime
func (a *AuthConfig) TokenTTLDuration() time.Duration {
	return time.Duration(a.TokenTTL) * time.Second
}

// RetryBase returns the first backoff interval, at least one millisecond
func (w *WorkflowConfig) RetryBase() time.Duration {
	if w.RetryBaseMillis < 1 {
		return time.Millisecond
	}
	return time.Duration(w.RetryBaseMillis) * time.Millisecond
}

// ActivityTimeout returns the bound on a single activity write
func (w *WorkflowConfig) ActivityTimeout() time.Duration {
	return time.Duration(w.ActivityTimeoutMillis) * time.Millisecond
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func (t *CacheTTLConfig) AdminStatusCountsTTL() time.Duration { return seconds(t.AdminStatusCounts) }
func (t *CacheTTLConfig) AdminLeadsTTL() time.Duration        { return seconds(t.AdminLeads) }
func (t *CacheTTLConfig) AdminEarningsTTL() time.Duration     { return seconds(t.AdminEarnings) }
func (t *CacheTTLConfig) AdminDevelopersTTL() time.Duration   { return seconds(t.AdminDevelopers) }
func (t *CacheTTLConfig) FetcherEarningsTTL() time.Duration   { return seconds(t.FetcherEarnings) }
func (t *CacheTTLConfig) ExecutionProjectsTTL() time.Duration { return seconds(t.ExecutionProjects) }
func (t *CacheTTLConfig) ProjectUpdatesTTL() time.Duration    { return seconds(t.ProjectUpdates) }
func (t *CacheTTLConfig) ProjectLogsTTL() time.Duration       { return seconds(t.ProjectLogs) }

// Load loads configuration from file and environment variables
// This is a basic load that doesn't fetch secrets from vault
// Use LoadWithSecrets for full secret resolution
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Environment variables override config file
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Auth.JWTSecret == "" {
		cfg.Auth.JWTSecret = v.GetString("JWT_SECRET")
	}
	if cfg.Secrets.KeyVaultName == "" {
		cfg.Secrets.KeyVaultName = v.GetString("AZURE_KEY_VAULT_NAME")
	}

	return &cfg, nil
}

// LoadWithSecrets loads configuration and resolves secrets from the configured source
// Key Vault is used when USE_AZURE_KEY_VAULT=true and the environment is staging or production
func LoadWithSecrets(ctx context.Context, logger *zap.Logger) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	useKeyVault := strings.ToLower(os.Getenv("USE_AZURE_KEY_VAULT")) == "true"
	isValidEnv := cfg.App.Environment == "staging" || cfg.App.Environment == "production"

	if !useKeyVault || !isValidEnv {
		logger.Info("Using environment variables for secrets",
			zap.String("environment", cfg.App.Environment),
			zap.Bool("use_key_vault", useKeyVault),
		)
		return cfg, nil
	}

	if cfg.Secrets.KeyVaultName == "" {
		return nil, fmt.Errorf("AZURE_KEY_VAULT_NAME is required when USE_AZURE_KEY_VAULT=true")
	}

	provider, err := secrets.NewProvider(&secrets.ProviderConfig{
		Source:       secrets.SourceVault,
		VaultName:    cfg.Secrets.KeyVaultName,
		Environment:  cfg.App.Environment,
		CacheEnabled: cfg.Secrets.CacheEnabled,
		CacheTTL:     time.Duration(cfg.Secrets.CacheTTL) * time.Second,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize secrets provider: %w", err)
	}

	if err := applySecrets(ctx, cfg, provider); err != nil {
		return nil, err
	}

	logger.Info("Secrets loaded from vault successfully",
		zap.String("key_vault_name", cfg.Secrets.KeyVaultName),
	)
	return cfg, nil
}

// SecretSource is the subset of the secrets provider used to fill config
type SecretSource interface {
	GetSecretOrEnv(ctx context.Context, secretName, envName string) (string, error)
}

func applySecrets(ctx context.Context, cfg *Config, src SecretSource) error {
	if host, err := src.GetSecretOrEnv(ctx, "POSTGRES-PIPELINE-HOST", "DATABASE_HOST"); err == nil && host != "" {
		cfg.Database.Host = host
	}
	if user, err := src.GetSecretOrEnv(ctx, "POSTGRES-PIPELINE-USER", "DATABASE_USER"); err == nil && user != "" {
		cfg.Database.User = user
	}
	if password, err := src.GetSecretOrEnv(ctx, "POSTGRES-PIPELINE-PASSWORD", "DATABASE_PASSWORD"); err == nil && password != "" {
		cfg.Database.Password = password
	}
	if sslMode := os.Getenv("DATABASE_SSLMODE"); sslMode != "" {
		cfg.Database.SSLMode = sslMode
	}

	jwtSecret, err := src.GetSecretOrEnv(ctx, "pipeline-jwt-secret", "JWT_SECRET")
	if err != nil || jwtSecret == "" {
		return fmt.Errorf("jwt signing secret is required: %v", err)
	}
	cfg.Auth.JWTSecret = jwtSecret

	if cfg.Cache.Backend == "redis" {
		if password, err := src.GetSecretOrEnv(ctx, "redis-password", "REDIS_PASSWORD"); err == nil && password != "" {
			cfg.Redis.Password = password
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "Straye Pipeline API")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.port", 8080)

	// Database defaults
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "pipeline")
	v.SetDefault("database.user", "pipeline_user")
	v.SetDefault("database.password", "pipeline_password")
	v.SetDefault("database.sslMode", "disable")
	v.SetDefault("database.path", "pipeline.db")
	v.SetDefault("database.maxOpenConns", 25)
	v.SetDefault("database.maxIdleConns", 5)
	v.SetDefault("database.connMaxLifetime", 300)
	v.SetDefault("database.autoMigrate", false)

	// Cache defaults
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.keyPrefix", "pipeline:")
	v.SetDefault("cache.ttl.adminStatusCounts", 300)
	v.SetDefault("cache.ttl.adminLeads", 300)
	v.SetDefault("cache.ttl.adminEarnings", 600)
	v.SetDefault("cache.ttl.adminDevelopers", 1800)
	v.SetDefault("cache.ttl.fetcherEarnings", 300)
	v.SetDefault("cache.ttl.executionProjects", 180)
	v.SetDefault("cache.ttl.projectUpdates", 120)
	v.SetDefault("cache.ttl.projectLogs", 120)

	// Redis defaults
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	// Auth defaults
	v.SetDefault("auth.issuer", "straye-pipeline")
	v.SetDefault("auth.tokenTTL", 3600)

	// Secrets defaults
	v.SetDefault("secrets.source", "auto")
	v.SetDefault("secrets.cacheEnabled", true)
	v.SetDefault("secrets.cacheTTL", 300)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	// Server defaults
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 30)
	v.SetDefault("server.requestTimeout", 60)
	v.SetDefault("server.enableSwagger", true)

	// CORS defaults - restrictive by default
	v.SetDefault("cors.allowedOrigins", []string{})
	v.SetDefault("cors.allowedMethods", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowedHeaders", []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"})
	v.SetDefault("cors.exposedHeaders", []string{"X-Request-ID"})
	v.SetDefault("cors.allowCredentials", true)
	v.SetDefault("cors.maxAge", 300)

	// Security header defaults
	v.SetDefault("security.enableHSTS", false)
	v.SetDefault("security.hstsMaxAge", 31536000)
	v.SetDefault("security.hstsIncludeSubdomains", true)
	v.SetDefault("security.contentSecurityPolicy", "default-src 'self'")
	v.SetDefault("security.frameOptions", "DENY")
	v.SetDefault("security.contentTypeNosniff", true)
	v.SetDefault("security.referrerPolicy", "strict-origin-when-cross-origin")

	// Rate limiting defaults
	v.SetDefault("rateLimit.enabled", true)
	v.SetDefault("rateLimit.requestsPerMinute", 60)
	v.SetDefault("rateLimit.requestsPerMinuteAuth", 120)
	v.SetDefault("rateLimit.whitelistIPs", []string{"127.0.0.1", "::1"})
	v.SetDefault("rateLimit.whitelistPaths", []string{"/health", "/health/db"})

	// Job defaults
	v.SetDefault("jobs.enabled", true)
	v.SetDefault("jobs.cacheSweepCron", "@every 1m")

	// Workflow defaults
	v.SetDefault("workflow.maxRetries", 5)
	v.SetDefault("workflow.retryBaseMillis", 10)
	v.SetDefault("workflow.activityTimeoutMillis", 2000)
}
