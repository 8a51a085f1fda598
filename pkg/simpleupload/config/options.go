package config

import (
	"fmt"
	"time"
)

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the environment (development, production, testing)
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		if env == "" {
			return fmt.Errorf("environment cannot be empty")
		}
		c.Environment = env
		return nil
	}
}

// WithProviderKeys sets the provider name and key pair
func WithProviderKeys(name, publicKey, privateKey string) Option {
	return func(c *ServerConfig) error {
		if name == "" {
			return fmt.Errorf("provider name cannot be empty")
		}
		c.Provider.Name = name
		c.Provider.PublicKey = publicKey
		c.Provider.PrivateKey = privateKey
		return nil
	}
}

// WithExpiration sets the authorization validity window
func WithExpiration(d time.Duration) Option {
	return func(c *ServerConfig) error {
		c.Provider.Expiration = d
		return nil
	}
}

// WithCORS toggles cross-origin headers on the auth endpoint
func WithCORS(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.EnableCORS = enabled
		return nil
	}
}

// WithSessionSecret requires a bearer JWT signed with secret on authorization requests
func WithSessionSecret(secret string) Option {
	return func(c *ServerConfig) error {
		c.SessionSecret = secret
		return nil
	}
}

// WithLocalProvider enables the self-hosted upload endpoint
func WithLocalProvider(publicBaseURL string) Option {
	return func(c *ServerConfig) error {
		c.EnableLocalProvider = true
		c.PublicBaseURL = publicBaseURL
		return nil
	}
}

// WithDatabase configures the account database backend
func WithDatabase(dbType, url string) Option {
	return func(c *ServerConfig) error {
		if dbType != "memory" && dbType != "postgres" {
			return fmt.Errorf("database type must be 'memory' or 'postgres', got: %s", dbType)
		}
		if dbType == "postgres" && url == "" {
			return fmt.Errorf("database URL is required for postgres")
		}
		c.DatabaseType = dbType
		c.DatabaseURL = url
		return nil
	}
}

// WithFilesystemStorage stores uploads under baseDir
func WithFilesystemStorage(baseDir string) Option {
	return func(c *ServerConfig) error {
		if baseDir == "" {
			return fmt.Errorf("filesystem base directory cannot be empty")
		}
		c.Storage = StorageConfig{Type: "fs", Config: map[string]interface{}{"base_dir": baseDir}}
		return nil
	}
}

// WithS3Storage stores uploads in an S3 bucket
func WithS3Storage(bucket, region string) Option {
	return func(c *ServerConfig) error {
		if bucket == "" {
			return fmt.Errorf("s3 bucket cannot be empty")
		}
		c.Storage = StorageConfig{Type: "s3", Config: map[string]interface{}{
			"bucket": bucket,
			"region": region,
		}}
		return nil
	}
}

// WithTokenStore sets the single-use token store URL
func WithTokenStore(url string) Option {
	return func(c *ServerConfig) error {
		c.TokenStoreURL = url
		return nil
	}
}
