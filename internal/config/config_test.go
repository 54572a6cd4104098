package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.Equal(t, 10*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 10*time.Minute, cfg.ActionTTL)
	assert.Equal(t, 10, cfg.BcryptCost)
	assert.True(t, cfg.StrictPurpose)
	assert.Equal(t, StorePostgres, cfg.StoreDriver)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "/api/auth", cfg.BasePath)
	assert.Equal(t, 465, cfg.SMTP.Port)
	assert.Equal(t, int64(8), cfg.Dispatcher.MaxInFlight)
	assert.Equal(t, "mongodb://localhost:27017", cfg.Mongo.URI)
}

func TestParse_RequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := Parse()
	assert.Error(t, err)
}

func TestParse_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("JWT_STRICT_PURPOSE", "false")
	t.Setenv("SESSION_TTL", "36000s")
	t.Setenv("BCRYPT_COST", "12")
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", ":memory:")
	t.Setenv("MAIL_HOST", "smtp.gmail.com")
	t.Setenv("MAIL_MAX_IN_FLIGHT", "2")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Parse()
	require.NoError(t, err)
	assert.False(t, cfg.StrictPurpose)
	assert.Equal(t, 10*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 12, cfg.BcryptCost)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, ":memory:", cfg.Database.DSN)
	assert.Equal(t, "smtp.gmail.com", cfg.SMTP.Host)
	assert.Equal(t, int64(2), cfg.Dispatcher.MaxInFlight)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestParse_Invalid(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	t.Setenv("STORE_DRIVER", "cassandra")
	_, err := Parse()
	assert.ErrorContains(t, err, "STORE_DRIVER")

	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("BCRYPT_COST", "99")
	_, err = Parse()
	assert.ErrorContains(t, err, "BCRYPT_COST")
}

func TestLoad_DotenvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.env")
	require.NoError(t, os.WriteFile(path, []byte("JWT_SECRET=from-file\nCLIENT_URL=https://app.example.com\n"), 0o600))

	// values already in the environment win over the file
	t.Setenv("CLIENT_URL", "https://env.example.com")
	t.Setenv("JWT_SECRET", "")
	require.NoError(t, os.Unsetenv("JWT_SECRET"))

	cfg, err := Load(path, filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.JWTSecret)
	assert.Equal(t, "https://env.example.com", cfg.ClientURL)
}
