package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	t.Setenv("DB_ADAPTER", "memory")

	c, err := New()
	require.NoError(t, err)

	assert.Equal(t, "8080", c.Port)
	assert.Equal(t, "1.0.0", c.Version)
	assert.Equal(t, 24*time.Hour, c.JwtTTL)
	assert.Equal(t, []string{"*"}, c.AllowedOrigins)
	assert.Equal(t, 60, c.RateLimitPerMinute)
	assert.False(t, c.IsProduction())
}

func TestNew_PostgresDSNFromComponents(t *testing.T) {
	t.Setenv("DB_ADAPTER", "postgres")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("POSTGRES_USER", "svc")
	t.Setenv("POSTGRES_PASSWORD", "pw")
	t.Setenv("POSTGRES_DB", "auth")

	c, err := New()
	require.NoError(t, err)
	assert.Equal(t, "host=db.internal port=5432 user=svc dbname=auth sslmode=disable password=pw", c.PostgresDSN)
}

func TestNew_ExplicitDSNWins(t *testing.T) {
	t.Setenv("DB_ADAPTER", "postgres")
	t.Setenv("POSTGRES_DSN", "postgres://u:p@h:1/d")

	c, err := New()
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@h:1/d", c.PostgresDSN)
}

func TestNew_Rejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown adapter", map[string]string{"DB_ADAPTER": "mongo"}},
		{"bad port", map[string]string{"DB_ADAPTER": "memory", "PORT": "http"}},
		{"zero ttl", map[string]string{"DB_ADAPTER": "memory", "JWT_TTL": "0s"}},
		{"bcrypt cost", map[string]string{"DB_ADAPTER": "memory", "BCRYPT_COST": "2"}},
		{"default secret in prod", map[string]string{"DB_ADAPTER": "memory", "APP_ENV": "production"}},
		{"short secret in prod", map[string]string{"DB_ADAPTER": "memory", "APP_ENV": "prod", "JWT_SECRET": "short"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := New()
			assert.Error(t, err)
		})
	}
}

func TestNew_ProductionWithStrongSecret(t *testing.T) {
	t.Setenv("DB_ADAPTER", "sqlite")
	t.Setenv("NODE_ENV", "production")
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef-prod")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	c, err := New()
	require.NoError(t, err)
	assert.True(t, c.IsProduction())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, c.AllowedOrigins)
}

func TestSecrets_IncludeDSNPassword(t *testing.T) {
	tests := []struct {
		name string
		dsn  string
		want string
	}{
		{"url", "postgres://svc:url-pass@db:5432/auth?sslmode=disable", "url-pass"},
		{"postgresql url", "postgresql://svc:other-pass@db/auth", "other-pass"},
		{"key value", "host=db user=svc password=kv-pass dbname=auth", "kv-pass"},
		{"quoted key value", "host=db password='quoted-pass' dbname=auth", "quoted-pass"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Config{JwtSecret: "jwt-secret", PostgresDSN: tt.dsn}
			secrets := c.Secrets()
			assert.Equal(t, tt.dsn, secrets[0])
			assert.Contains(t, secrets, tt.want)
			assert.Contains(t, secrets, "jwt-secret")
		})
	}
}

func TestSecrets_SkipsEmpty(t *testing.T) {
	c := &Config{JwtSecret: "jwt-secret", PostgresDSN: "postgres://svc@db/auth"}
	assert.Equal(t, []string{"postgres://svc@db/auth", "jwt-secret"}, c.Secrets())
}
