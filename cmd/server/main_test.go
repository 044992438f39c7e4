package main

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wiki-graphql/internal/config"
)

func validConfig() *config.Config {
	return &config.Config{
		Database: config.DatabaseConfig{
			Host:     "enwiki.analytics.db.svc.wikimedia.cloud",
			Port:     3306,
			Database: "enwiki_p",
			TLS:      config.DatabaseTLSConfig{Mode: "off"},
			Pool:     config.PoolConfig{MaxOpen: 10, IdleTimeout: 5 * time.Second, RetryDelay: time.Second},
		},
		Server: config.ServerConfig{
			Port:                3000,
			GraphQLMaxDepth:     12,
			GraphQLMaxFields:    500,
			GraphQLDefaultLimit: 50,
			GraphQLMaxLimit:     500,
		},
		Observability: config.ObservabilityConfig{
			Logging: config.LoggingConfig{Level: "info", Format: "text"},
		},
	}
}

func TestCheckConfig_Valid(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	require.NoError(t, checkConfig(validConfig(), logger))
	assert.NotContains(t, buf.String(), "configuration error")
}

func TestCheckConfig_ReportsEveryError(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0
	cfg.Server.GraphQLDefaultLimit = 600

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	err := checkConfig(cfg, logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration: ")
	assert.Contains(t, err.Error(), "server.port")
	assert.Contains(t, err.Error(), "server.graphql_default_limit")
	assert.Equal(t, 2, bytes.Count(buf.Bytes(), []byte("configuration error")))
}

func TestVersionString(t *testing.T) {
	assert.Equal(t, "wiki-graphql dev (none)", versionString())
}
