package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// WithEnv applies environment variable overrides using the provided prefix.
//
// Server:
//   PORT - Server port (default: "8080")
//   ENVIRONMENT - Runtime environment (default: "development")
//   CORS_ENABLED - Emit cross-origin headers on the auth endpoint (default: true)
//   SESSION_SECRET - Require a bearer JWT signed with this secret for authorizations
//   ADMIN_API_KEY_SHA256 - sha256 of the admin API key for account administration
//
// Provider:
//   PROVIDER_NAME - Path segment of /api/auth/<provider> (default: "imagekit")
//   IMAGEKIT_PUBLIC_KEY, IMAGEKIT_PRIVATE_KEY, IMAGEKIT_URL_ENDPOINT
//   AUTH_EXPIRATION - Validity window, Go duration (default: "30m", max "1h")
//
// Self-hosted provider:
//   LOCAL_PROVIDER - Serve the upload endpoint from this process (default: false)
//   PUBLIC_BASE_URL - Prefix for URLs returned in upload results
//   STORAGE_URL - "memory://", "file:///path", "s3://bucket?region=..", "minio://host:port/bucket"
//   TOKEN_STORE_URL - "memory://" or "redis://host:port/db"
//
// Accounts:
//   DATABASE_URL - "memory" or "postgresql://..."
//   DATABASE_SCHEMA - Postgres schema (default: "library")
func WithEnv(prefix string) Option {
	return func(c *ServerConfig) error {
		if v, ok := lookupEnv(prefix, "PORT"); ok && v != "" {
			c.Port = v
		}
		if v, ok := lookupEnv(prefix, "ENVIRONMENT"); ok && v != "" {
			c.Environment = v
		}
		if b, ok, err := parseBoolEnv(prefix, "CORS_ENABLED"); err != nil {
			return err
		} else if ok {
			c.EnableCORS = b
		}
		if v, ok := lookupEnv(prefix, "SESSION_SECRET"); ok {
			c.SessionSecret = v
		}
		if v, ok := lookupEnv(prefix, "ADMIN_API_KEY_SHA256"); ok {
			c.AdminAPIKeySHA256 = v
		}

		if err := applyProviderEnv(prefix, c); err != nil {
			return err
		}

		if b, ok, err := parseBoolEnv(prefix, "LOCAL_PROVIDER"); err != nil {
			return err
		} else if ok {
			c.EnableLocalProvider = b
		}
		if v, ok := lookupEnv(prefix, "PUBLIC_BASE_URL"); ok {
			c.PublicBaseURL = v
		}
		if v, ok := lookupEnv(prefix, "TOKEN_STORE_URL"); ok && v != "" {
			c.TokenStoreURL = v
		}

		if err := applyDatabaseEnv(prefix, c); err != nil {
			return err
		}

		return applyStorageEnv(prefix, c)
	}
}

func applyProviderEnv(prefix string, c *ServerConfig) error {
	if v, ok := lookupEnv(prefix, "PROVIDER_NAME"); ok && v != "" {
		c.Provider.Name = v
	}
	if v, ok := lookupEnv(prefix, "IMAGEKIT_PUBLIC_KEY"); ok {
		c.Provider.PublicKey = v
	}
	if v, ok := lookupEnv(prefix, "IMAGEKIT_PRIVATE_KEY"); ok {
		c.Provider.PrivateKey = v
	}
	if v, ok := lookupEnv(prefix, "AUTH_EXPIRATION"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration for %sAUTH_EXPIRATION: %w", prefix, err)
		}
		c.Provider.Expiration = d
	}
	return nil
}

// applyDatabaseEnv applies database configuration from environment
func applyDatabaseEnv(prefix string, c *ServerConfig) error {
	if v, ok := lookupEnv(prefix, "DATABASE_SCHEMA"); ok && v != "" {
		c.DBSchema = v
	}

	dbURL, hasURL := lookupEnv(prefix, "DATABASE_URL")
	if !hasURL || dbURL == "" || dbURL == "memory" {
		c.DatabaseType = "memory"
		c.DatabaseURL = ""
		return nil
	}

	if strings.HasPrefix(dbURL, "postgresql://") || strings.HasPrefix(dbURL, "postgres://") {
		c.DatabaseType = "postgres"
		c.DatabaseURL = dbURL
		return nil
	}

	return fmt.Errorf("unsupported DATABASE_URL format: %s (use 'memory' or 'postgresql://...')", dbURL)
}

// applyStorageEnv applies storage configuration from environment
func applyStorageEnv(prefix string, c *ServerConfig) error {
	storageURL, hasURL := lookupEnv(prefix, "STORAGE_URL")
	if !hasURL || storageURL == "" || storageURL == "memory" || storageURL == "memory://" {
		c.Storage = StorageConfig{Type: "memory", Config: map[string]interface{}{}}
		return nil
	}

	u, err := url.Parse(storageURL)
	if err != nil {
		return fmt.Errorf("invalid STORAGE_URL: %w", err)
	}

	switch u.Scheme {
	case "file":
		if u.Path == "" {
			return fmt.Errorf("filesystem path cannot be empty in STORAGE_URL")
		}
		c.Storage = StorageConfig{Type: "fs", Config: map[string]interface{}{"base_dir": u.Path}}

	case "s3":
		if u.Host == "" {
			return fmt.Errorf("bucket name cannot be empty in STORAGE_URL")
		}
		cfg := map[string]interface{}{
			"bucket": u.Host,
			"region": "us-east-1",
		}
		q := u.Query()
		if v := q.Get("region"); v != "" {
			cfg["region"] = v
		}
		if v := q.Get("endpoint"); v != "" {
			cfg["endpoint"] = v
			cfg["use_path_style"] = true
		}
		copyEnv(cfg, "access_key_id", "AWS_ACCESS_KEY_ID")
		copyEnv(cfg, "secret_access_key", "AWS_SECRET_ACCESS_KEY")
		if v := os.Getenv("AWS_REGION"); v != "" && q.Get("region") == "" {
			cfg["region"] = v
		}
		c.Storage = StorageConfig{Type: "s3", Config: cfg}

	case "minio":
		bucket := trimSlashes(u.Path)
		if u.Host == "" || bucket == "" {
			return fmt.Errorf("STORAGE_URL must look like minio://host:port/bucket")
		}
		cfg := map[string]interface{}{
			"endpoint": u.Host,
			"bucket":   bucket,
			"use_ssl":  u.Query().Get("ssl") == "true",
		}
		if u.User != nil {
			cfg["access_key_id"] = u.User.Username()
			if pw, ok := u.User.Password(); ok {
				cfg["secret_access_key"] = pw
			}
		}
		c.Storage = StorageConfig{Type: "minio", Config: cfg}

	default:
		return fmt.Errorf("unsupported STORAGE_URL format: %s (use 'memory://', 'file://...', 's3://...' or 'minio://...')", storageURL)
	}

	return nil
}

func copyEnv(cfg map[string]interface{}, key, env string) {
	if v, ok := os.LookupEnv(env); ok && v != "" {
		cfg[key] = v
	}
}

func trimSlashes(s string) string {
	for len(s) > 0 && s[0] == '/' {
		s = s[1:]
	}
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}

func lookupEnv(prefix, key string) (string, bool) {
	return os.LookupEnv(prefix + key)
}

func parseBoolEnv(prefix, key string) (bool, bool, error) {
	raw, ok := lookupEnv(prefix, key)
	if !ok || raw == "" {
		return false, false, nil
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false, fmt.Errorf("invalid boolean for %s%s: %w", prefix, key, err)
	}
	return parsed, true, nil
}
