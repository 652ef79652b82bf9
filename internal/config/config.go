package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// DefaultJwtSecret is the development placeholder rejected in production.
const DefaultJwtSecret = "change-me"

// minSecretBytes is the HMAC key size below which a production secret is refused.
const minSecretBytes = 32

type Config struct {
	Env        string `env:"APP_ENV,ENV,NODE_ENV" env-default:"development"`
	Port       string `env:"PORT" env-default:"8080"`
	Version    string `env:"APP_VERSION" env-default:"1.0.0"`
	DBAdapter  string `env:"DB_ADAPTER" env-default:"postgres"`
	SQLiteFile string `env:"SQLITE_FILE" env-default:"./data/jwtauth.db"`
	LogLevel   string `env:"LOG_LEVEL" env-default:"info"`
	LogFormat  string `env:"LOG_FORMAT" env-default:"text"`

	JwtSecret string        `env:"JWT_SECRET" env-default:"change-me"`
	JwtTTL    time.Duration `env:"JWT_TTL" env-default:"24h"`
	JwtIssuer string        `env:"JWT_ISSUER" env-default:""`

	BcryptCost         int      `env:"BCRYPT_COST" env-default:"10"`
	AllowedOrigins     []string `env:"CORS_ALLOWED_ORIGINS" env-separator:"," env-default:"*"`
	RateLimitPerMinute int      `env:"RATE_LIMIT_PER_MINUTE" env-default:"60"`
	MigrationsDir      string   `env:"MIGRATIONS_DIR" env-default:"./migrations"`

	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" env-default:"5s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" env-default:"10s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"10s"`

	// PostgreSQL connection settings
	PostgresDSN      string `env:"POSTGRES_DSN" env-default:""`
	PostgresHost     string `env:"POSTGRES_HOST,DB_HOST" env-default:"localhost"`
	PostgresPort     string `env:"POSTGRES_PORT,DB_PORT" env-default:"5432"`
	PostgresUser     string `env:"POSTGRES_USER,DB_USER" env-default:"jwtauth"`
	PostgresPassword string `env:"POSTGRES_PASSWORD,DB_PASSWORD" env-default:""`
	PostgresDB       string `env:"POSTGRES_DB,DB_NAME" env-default:"jwtauth"`
	PostgresSSLMode  string `env:"POSTGRES_SSLMODE,DB_SSLMODE" env-default:"disable"`
}

// IsProduction reports whether the service runs with production safeguards.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Env)
	return env == "production" || env == "prod"
}

// BuildPostgresDSN constructs a PostgreSQL DSN from individual components or returns the provided DSN
func (c *Config) BuildPostgresDSN() (string, error) {
	if c.PostgresDSN != "" {
		return c.PostgresDSN, nil
	}

	if c.PostgresHost == "" {
		return "", errors.New("POSTGRES_HOST or POSTGRES_DSN must be set")
	}
	if c.PostgresUser == "" {
		return "", errors.New("POSTGRES_USER must be set")
	}
	if c.PostgresDB == "" {
		return "", errors.New("POSTGRES_DB must be set")
	}

	port := c.PostgresPort
	if port == "" {
		port = "5432"
	}

	sslMode := c.PostgresSSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	dsn := fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=%s",
		c.PostgresHost, port, c.PostgresUser, c.PostgresDB, sslMode)

	if c.PostgresPassword != "" {
		dsn += " password=" + c.PostgresPassword
	}

	return dsn, nil
}

// Secrets lists the values that must never appear in a response or log line.
// Longer values come first so a DSN is scrubbed before the password inside it.
func (c *Config) Secrets() []string {
	var out []string
	add := func(v string) {
		if v == "" || slices.Contains(out, v) {
			return
		}
		out = append(out, v)
	}
	add(c.PostgresDSN)
	add(c.JwtSecret)
	add(dsnPassword(c.PostgresDSN))
	add(c.PostgresPassword)
	return out
}

// dsnPassword extracts the password from a URL or key=value PostgreSQL DSN.
func dsnPassword(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		u, err := url.Parse(dsn)
		if err != nil || u.User == nil {
			return ""
		}
		pw, _ := u.User.Password()
		return pw
	}

	for _, field := range strings.Fields(dsn) {
		if v, ok := strings.CutPrefix(field, "password="); ok {
			return strings.Trim(v, "'")
		}
	}
	return ""
}

// Validate checks the loaded values for consistency.
func (c *Config) Validate() error {
	switch c.DBAdapter {
	case "postgres":
		dsn, err := c.BuildPostgresDSN()
		if err != nil {
			return fmt.Errorf("postgres configuration error: %w", err)
		}
		c.PostgresDSN = dsn
	case "sqlite":
		if c.SQLiteFile == "" {
			return errors.New("SQLITE_FILE must be set when DB_ADAPTER=sqlite")
		}
	case "memory":
	default:
		return fmt.Errorf("unsupported DB_ADAPTER: %s (supported: postgres, sqlite, memory)", c.DBAdapter)
	}

	if c.JwtSecret == "" {
		return errors.New("JWT_SECRET must not be empty")
	}
	if c.IsProduction() {
		if c.JwtSecret == DefaultJwtSecret {
			return errors.New("JWT_SECRET must be set in production")
		}
		if len(c.JwtSecret) < minSecretBytes {
			return fmt.Errorf("JWT_SECRET must be at least %d bytes in production", minSecretBytes)
		}
	}
	if c.JwtTTL <= 0 {
		return fmt.Errorf("invalid JWT_TTL: %s", c.JwtTTL)
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("invalid BCRYPT_COST: %d", c.BcryptCost)
	}
	if c.RateLimitPerMinute < 0 {
		return fmt.Errorf("invalid RATE_LIMIT_PER_MINUTE: %d", c.RateLimitPerMinute)
	}

	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("invalid PORT: %s", c.Port)
	}

	return nil
}

func New() (*Config, error) {
	c := &Config{}
	if err := cleanenv.ReadEnv(c); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}
