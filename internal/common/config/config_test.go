package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SESSION_JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"ethereum", "polygon"}, cfg.Indexer.Chains)
	assert.Equal(t, 5*time.Minute, cfg.Auth.NonceTTL)
	assert.Equal(t, uint64(3), cfg.Indexer.MaxRetries)
	assert.Equal(t, int64(4<<20), cfg.Indexer.MaxBytes)
	assert.Equal(t, "user", cfg.Auth.DefaultRole)
	assert.Equal(t, 30*time.Second, cfg.Feed.CacheTTL)
	assert.True(t, cfg.Worker.Enabled)
	assert.Equal(t, 5*time.Second, cfg.Worker.Block)
}

func TestLoad_MissingSecret(t *testing.T) {
	t.Setenv("SESSION_JWT_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SESSION_JWT_SECRET", "secret")
	t.Setenv("INDEXER_CHAINS", "ethereum")
	t.Setenv("AUTH_FLOW_TIMEOUT", "3s")
	t.Setenv("PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"ethereum"}, cfg.Indexer.Chains)
	assert.Equal(t, 3*time.Second, cfg.Auth.FlowTimeout)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestDomain(t *testing.T) {
	cfg := &Config{}
	cfg.Auth.AppURL = "https://app.example:8443/path"

	d, err := cfg.Domain()
	require.NoError(t, err)
	assert.Equal(t, "app.example:8443", d)

	cfg.Auth.AppURL = "not a url"
	_, err = cfg.Domain()
	assert.Error(t, err)
}

func TestGetDSN(t *testing.T) {
	cfg := &Config{}
	cfg.Postgres.Host = "db"
	cfg.Postgres.Port = 5432
	cfg.Postgres.User = "u"
	cfg.Postgres.Password = "p@ss"
	cfg.Postgres.Database = "flashsquad"
	cfg.Postgres.SSLMode = "disable"

	assert.Equal(t, "postgres://u:p%40ss@db:5432/flashsquad?sslmode=disable", cfg.GetDSN())
}
