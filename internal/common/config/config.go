package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Debug bool `env:"DEBUG" envDefault:"false"`

	Server struct {
		Port   int    `env:"PORT" envDefault:"8080"`
		Origin string `env:"ORIGIN" envDefault:"http://localhost:3000"`
	}

	Postgres struct {
		Host            string        `env:"POSTGRES_HOST" envDefault:"localhost"`
		Port            int           `env:"POSTGRES_PORT" envDefault:"5432"`
		User            string        `env:"POSTGRES_USER" envDefault:"postgres"`
		Password        string        `env:"POSTGRES_PASSWORD" envDefault:"postgres"`
		Database        string        `env:"POSTGRES_DB" envDefault:"flashsquad"`
		SSLMode         string        `env:"POSTGRES_SSLMODE" envDefault:"disable"`
		MaxOpenConns    int           `env:"POSTGRES_MAX_OPEN_CONNS" envDefault:"25"`
		MaxIdleConns    int           `env:"POSTGRES_MAX_IDLE_CONNS" envDefault:"5"`
		ConnMaxLifetime time.Duration `env:"POSTGRES_CONN_MAX_LIFETIME" envDefault:"30m"`
		AutoMigrate     bool          `env:"DB_AUTO_MIGRATE" envDefault:"false"`
	}

	Redis struct {
		Host     string `env:"REDIS_HOST" envDefault:"localhost"`
		Port     int    `env:"REDIS_PORT" envDefault:"6379"`
		Password string `env:"REDIS_PASSWORD" envDefault:""`
		DB       int    `env:"REDIS_DB" envDefault:"0"`
	}

	Auth struct {
		// URL the SIWE message must be issued for; its host is the expected domain.
		AppURL        string        `env:"APP_URL" envDefault:"http://localhost:3000"`
		JWTSecret     string        `env:"SESSION_JWT_SECRET,notEmpty"`
		SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"720h"`
		NonceTTL      time.Duration `env:"SIWE_NONCE_TTL" envDefault:"5m"`
		FlowTimeout   time.Duration `env:"AUTH_FLOW_TIMEOUT" envDefault:"20s"`
		SessionCookie string        `env:"SESSION_COOKIE" envDefault:"flashsquad_session"`
		NonceCookie   string        `env:"NONCE_COOKIE" envDefault:"flashsquad_nonce"`
		SecureCookies bool          `env:"SECURE_COOKIES" envDefault:"true"`
		DefaultRole   string        `env:"SESSION_DEFAULT_ROLE" envDefault:"user"`
	}

	Indexer struct {
		URL        string        `env:"INDEXER_GRAPHQL_URL" envDefault:"https://graphql.icy.tools/graphql"`
		APIKey     string        `env:"INDEXER_API_KEY" envDefault:""`
		Chains     []string      `env:"INDEXER_CHAINS" envSeparator:"," envDefault:"ethereum,polygon"`
		PerChain   int           `env:"INDEXER_PER_CHAIN_LIMIT" envDefault:"50"`
		Timeout    time.Duration `env:"INDEXER_TIMEOUT" envDefault:"8s"`
		MaxRetries uint64        `env:"INDEXER_MAX_RETRIES" envDefault:"3"`
		BaseDelay  time.Duration `env:"INDEXER_RETRY_BASE_DELAY" envDefault:"200ms"`
		MaxBytes   int64         `env:"INDEXER_MAX_RESPONSE_BYTES" envDefault:"4194304"`
	}

	ENS struct {
		AvatarBaseURL string        `env:"ENS_AVATAR_BASE_URL" envDefault:"https://metadata.ens.domains/mainnet/avatar"`
		CacheTTL      time.Duration `env:"ENS_CACHE_TTL" envDefault:"10m"`
	}

	IPFSGateway string `env:"IPFS_GATEWAY" envDefault:"https://ipfs.io/ipfs/"`

	S3 struct {
		Endpoint      string        `env:"S3_ENDPOINT" envDefault:""`
		Region        string        `env:"S3_REGION" envDefault:"us-east-1"`
		Bucket        string        `env:"S3_BUCKET" envDefault:"flashsquad-media"`
		AccessKey     string        `env:"S3_ACCESS_KEY" envDefault:""`
		SecretKey     string        `env:"S3_SECRET_KEY" envDefault:""`
		PublicBaseURL string        `env:"S3_PUBLIC_BASE_URL" envDefault:""`
		PresignTTL    time.Duration `env:"S3_PRESIGN_TTL" envDefault:"15m"`
	}

	Transcoder struct {
		AuthSecret  string        `env:"TRANSCODER_AUTH_SECRET" envDefault:""`
		AssemblyTTL time.Duration `env:"TRANSCODER_ASSEMBLY_TTL" envDefault:"1h"`
	}

	Feed struct {
		CacheTTL time.Duration `env:"FEED_CACHE_TTL" envDefault:"30s"`
	}

	Worker struct {
		Enabled  bool          `env:"REFRESH_WORKER_ENABLED" envDefault:"true"`
		Consumer string        `env:"REFRESH_WORKER_CONSUMER" envDefault:""`
		Block    time.Duration `env:"REFRESH_WORKER_BLOCK" envDefault:"5s"`
		Timeout  time.Duration `env:"REFRESH_WORKER_TIMEOUT" envDefault:"30s"`
	}
}

// GetDSN builds the lib/pq connection string.
func (c *Config) GetDSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Postgres.User, c.Postgres.Password),
		Host:     fmt.Sprintf("%s:%d", c.Postgres.Host, c.Postgres.Port),
		Path:     c.Postgres.Database,
		RawQuery: "sslmode=" + url.QueryEscape(c.Postgres.SSLMode),
	}
	return u.String()
}

// Domain returns the host SIWE messages must be bound to.
func (c *Config) Domain() (string, error) {
	u, err := url.Parse(c.Auth.AppURL)
	if err != nil {
		return "", fmt.Errorf("invalid APP_URL: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid APP_URL: missing host")
	}
	return u.Host, nil
}

func Load() (*Config, error) {
	// .env is optional, production sets variables directly
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
