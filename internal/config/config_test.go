package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
service:
  name: codedript-server
  http_port: 9090
  env: prod

postgres:
  host: db.internal
  database: codedript
  user: app
  password: secret

blockchain:
  networks:
    sepolia: https://rpc.sepolia.org
  min_confirmations: 3

auth:
  jwt_secret: super-secret
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "codedript-server", cfg.Service.Name)
	assert.Equal(t, 9090, cfg.Service.HTTPPort)
	assert.Equal(t, "prod", cfg.Service.Env)
	assert.Equal(t, "https://rpc.sepolia.org", cfg.Blockchain.Networks["sepolia"])
	assert.Equal(t, int64(3), cfg.Blockchain.MinConfirmations)
	assert.Equal(t, "super-secret", cfg.Auth.JWTSecret)
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
postgres:
  host: localhost
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "codedript-server", cfg.Service.Name)
	assert.Equal(t, 8080, cfg.Service.HTTPPort)
	assert.Equal(t, "dev", cfg.Service.Env)
	assert.Equal(t, 5432, cfg.Postgres.Port)
	assert.Equal(t, 50, cfg.Postgres.MaxConnections)
	assert.Equal(t, int64(1), cfg.Blockchain.MinConfirmations)
	assert.Equal(t, 15, cfg.Blockchain.FetchTimeout)
	assert.Equal(t, 24, cfg.Auth.TokenTTLHours)
	assert.Equal(t, "data/uploads", cfg.Storage.LocalDir)
	assert.Equal(t, 600, cfg.RateLimit.PerMin)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_DB_HOST", "pg.prod.internal")

	path := writeConfig(t, `
postgres:
  host: ${TEST_DB_HOST:localhost}
  password: ${TEST_DB_PASSWORD:fallback}
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "pg.prod.internal", cfg.Postgres.Host)
	assert.Equal(t, "fallback", cfg.Postgres.Password)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestPostgresDSN(t *testing.T) {
	cfg := PostgresConfig{
		Host:     "localhost",
		Port:     5432,
		Database: "codedript",
		User:     "app",
		Password: "pw",
	}

	dsn := cfg.DSN()
	assert.Contains(t, dsn, "host=localhost")
	assert.Contains(t, dsn, "port=5432")
	assert.Contains(t, dsn, "dbname=codedript")
	assert.Contains(t, dsn, "sslmode=disable")
}
