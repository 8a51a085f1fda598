package config

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-upload/pkg/simpleupload"
	"github.com/tendant/simple-upload/pkg/simpleupload/account"
	accountmemory "github.com/tendant/simple-upload/pkg/simpleupload/account/memory"
	accountpg "github.com/tendant/simple-upload/pkg/simpleupload/account/postgres"
	"github.com/tendant/simple-upload/pkg/simpleupload/signer"
	fsstorage "github.com/tendant/simple-upload/pkg/simpleupload/storage/fs"
	memorystorage "github.com/tendant/simple-upload/pkg/simpleupload/storage/memory"
	miniostorage "github.com/tendant/simple-upload/pkg/simpleupload/storage/minio"
	s3storage "github.com/tendant/simple-upload/pkg/simpleupload/storage/s3"
	memorytokens "github.com/tendant/simple-upload/pkg/simpleupload/tokenstore/memory"
	redistokens "github.com/tendant/simple-upload/pkg/simpleupload/tokenstore/redis"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:        "8080",
		Environment: "development",
		Provider: ProviderConfig{
			Name:       "imagekit",
			Expiration: signer.DefaultExpiration,
		},
		EnableCORS:    true,
		DatabaseType:  "memory",
		DBSchema:      "library",
		Storage:       StorageConfig{Type: "memory", Config: map[string]interface{}{}},
		TokenStoreURL: "memory://",
	}
}

// ServerConfig represents configuration for the issuer server and the
// self-hosted storage provider. It is built once and passed explicitly to
// every component that needs it.
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing

	// Signature issuer
	Provider      ProviderConfig
	EnableCORS    bool
	SessionSecret string // when set, authorization requests require a bearer JWT

	// Admin API key (sha256 hex) guarding account administration
	AdminAPIKeySHA256 string

	// Self-hosted storage provider
	EnableLocalProvider bool
	PublicBaseURL       string // prefix for URLs returned in upload results
	Storage             StorageConfig
	TokenStoreURL       string // "memory://" or "redis://..."

	// Accounts
	DatabaseURL  string
	DatabaseType string // "memory", "postgres"
	DBSchema     string
}

// ProviderConfig holds the key pair for one storage provider.
// PrivateKey never leaves the server.
type ProviderConfig struct {
	Name       string
	PublicKey  string
	PrivateKey string
	Expiration time.Duration
}

// StorageConfig represents configuration for the blob store behind the
// self-hosted provider.
type StorageConfig struct {
	Type   string // "memory", "fs", "s3", "minio"
	Config map[string]interface{}
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	if c.Provider.Name == "" {
		return errors.New("provider name is required")
	}

	if c.Provider.Expiration <= 0 || c.Provider.Expiration > signer.MaxExpiration {
		return fmt.Errorf("provider expiration must be within (0, %s]", signer.MaxExpiration)
	}

	if c.DatabaseType != "memory" && c.DatabaseType != "postgres" {
		return errors.New("database_type must be 'memory' or 'postgres'")
	}

	if c.DatabaseType == "postgres" && c.DatabaseURL == "" {
		return errors.New("database_url is required when using postgres")
	}

	switch c.Storage.Type {
	case "memory", "fs", "s3", "minio":
	default:
		return fmt.Errorf("unsupported storage type: %s", c.Storage.Type)
	}

	return nil
}

// BuildSigner creates the Signer for the configured provider. Missing keys are
// not rejected here: the issuer fails each request with a server error instead,
// so a misconfigured deployment is visible rather than silently half-working.
func (c *ServerConfig) BuildSigner() *signer.Signer {
	return signer.New(
		signer.WithKeys(c.Provider.PublicKey, c.Provider.PrivateKey),
		signer.WithExpiration(c.Provider.Expiration),
	)
}

// BuildBlobStore creates the BlobStore for the self-hosted provider
func (c *ServerConfig) BuildBlobStore() (simpleupload.BlobStore, error) {
	cfg := c.Storage.Config
	switch c.Storage.Type {
	case "memory":
		return memorystorage.New(), nil

	case "fs":
		return fsstorage.New(fsstorage.Config{
			BaseDir: getString(cfg, "base_dir", "./data/uploads"),
		})

	case "s3":
		return s3storage.New(s3storage.Config{
			Region:                 getString(cfg, "region", "us-east-1"),
			Bucket:                 getString(cfg, "bucket", ""),
			AccessKeyID:            getString(cfg, "access_key_id", ""),
			SecretAccessKey:        getString(cfg, "secret_access_key", ""),
			Endpoint:               getString(cfg, "endpoint", ""),
			UsePathStyle:           getBool(cfg, "use_path_style", false),
			CreateBucketIfNotExist: getBool(cfg, "create_bucket_if_not_exist", false),
		})

	case "minio":
		return miniostorage.New(miniostorage.Config{
			Endpoint:               getString(cfg, "endpoint", "localhost:9000"),
			Bucket:                 getString(cfg, "bucket", ""),
			AccessKeyID:            getString(cfg, "access_key_id", ""),
			SecretAccessKey:        getString(cfg, "secret_access_key", ""),
			Region:                 getString(cfg, "region", ""),
			UseSSL:                 getBool(cfg, "use_ssl", false),
			CreateBucketIfNotExist: getBool(cfg, "create_bucket_if_not_exist", false),
		})

	default:
		return nil, fmt.Errorf("unsupported storage type: %s", c.Storage.Type)
	}
}

// BuildTokenStore creates the single-use token store
func (c *ServerConfig) BuildTokenStore() (simpleupload.TokenStore, error) {
	switch {
	case c.TokenStoreURL == "" || c.TokenStoreURL == "memory" || c.TokenStoreURL == "memory://":
		store := memorytokens.New()
		if err := store.Start(); err != nil {
			return nil, fmt.Errorf("failed to start token purge: %w", err)
		}
		return store, nil
	case strings.HasPrefix(c.TokenStoreURL, "redis://") || strings.HasPrefix(c.TokenStoreURL, "rediss://"):
		return redistokens.NewFromURL(c.TokenStoreURL)
	default:
		return nil, fmt.Errorf("unsupported token store URL: %s", c.TokenStoreURL)
	}
}

// BuildAccountRepository creates the account repository
func (c *ServerConfig) BuildAccountRepository(ctx context.Context) (account.Repository, error) {
	switch c.DatabaseType {
	case "memory":
		return accountmemory.New(), nil
	case "postgres":
		cfg, err := pgxpool.ParseConfig(c.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		schema := c.DBSchema
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			if schema == "" {
				return nil
			}
			_, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s", pgx.Identifier{schema}.Sanitize()))
			return err
		}
		pool, err := pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create pgx pool: %w", err)
		}
		return accountpg.NewWithPool(pool), nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

func getString(config map[string]interface{}, key string, defaultValue string) string {
	if value, exists := config[key]; exists {
		if str, ok := value.(string); ok && str != "" {
			return str
		}
	}
	return defaultValue
}

func getBool(config map[string]interface{}, key string, defaultValue bool) bool {
	if value, exists := config[key]; exists {
		if b, ok := value.(bool); ok {
			return b
		}
		if str, ok := value.(string); ok {
			if b, err := strconv.ParseBool(str); err == nil {
				return b
			}
		}
	}
	return defaultValue
}
