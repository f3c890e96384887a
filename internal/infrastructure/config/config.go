package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"

	"github.com/issuetracker/issues-api/internal/core/auth"
)

type Config struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	ServiceName string `env:"SERVICE_NAME, default=issues-api"`

	Auth   AuthConfig
	Mongo  MongoConfig
	Redis  RedisConfig
	Upload UploadConfig
	Jobs   JobsConfig
}

type AuthConfig struct {
	JWTSecret      string        `env:"JWT_SECRET, required"`
	JWTAlgorithm   string        `env:"JWT_ALGORITHM,    default=HS256"`
	TokenTTL       time.Duration `env:"TOKEN_TTL,        default=30m"`
	PasswordScheme string        `env:"PASSWORD_SCHEME,  default=bcrypt"`
	BcryptCost     int           `env:"BCRYPT_COST,      default=10"`
	LoginRateLimit float64       `env:"LOGIN_RATE_LIMIT, default=5"`
	LoginRateBurst int           `env:"LOGIN_RATE_BURST, default=10"`
}

type MongoConfig struct {
	URI      string        `env:"MONGO_URI,     default=mongodb://localhost:27017"`
	Database string        `env:"MONGO_DB,      default=issues_tracker"`
	Timeout  time.Duration `env:"MONGO_TIMEOUT, default=10s"`
}

type RedisConfig struct {
	Addr     string        `env:"REDIS_ADDR,      default=localhost:6379"`
	Password string        `env:"REDIS_PASSWORD"`
	DB       int           `env:"REDIS_DB,        default=0"`
	PoolSize int           `env:"REDIS_POOL_SIZE, default=10"`
	Timeout  time.Duration `env:"REDIS_TIMEOUT,   default=5s"`
}

type UploadConfig struct {
	Dir      string `env:"UPLOAD_DIR,       default=uploads"`
	MaxBytes int64  `env:"UPLOAD_MAX_BYTES, default=10485760"`
}

type JobsConfig struct {
	StatsInterval time.Duration `env:"STATS_INTERVAL, default=30m"`
	Workers       int           `env:"JOB_WORKERS,    default=2"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: lookuper}); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the auth stack cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET must not be empty"))
	}
	if !auth.SupportedAlgorithm(c.Auth.JWTAlgorithm) {
		errs = append(errs, fmt.Errorf("JWT_ALGORITHM %q is not supported", c.Auth.JWTAlgorithm))
	}
	if c.Auth.TokenTTL < auth.MinTokenTTL {
		errs = append(errs, fmt.Errorf("TOKEN_TTL must be at least %s", auth.MinTokenTTL))
	}
	switch c.Auth.PasswordScheme {
	case auth.SchemeBcrypt, auth.SchemeArgon2id:
	default:
		errs = append(errs, fmt.Errorf("PASSWORD_SCHEME %q is not supported", c.Auth.PasswordScheme))
	}
	if c.Auth.LoginRateLimit <= 0 {
		errs = append(errs, errors.New("LOGIN_RATE_LIMIT must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
