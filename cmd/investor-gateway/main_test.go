// ABOUTME: Tests for config generation and the terminal log handler
// ABOUTME: Round-trips generated YAML through the config loader

package main

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nostria/investor-gateway/internal/config"
)

func TestWriteConfigFile_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conf", "gateway.yaml")

	seed := configSeed{
		Command:         "init",
		HTTPAddr:        "localhost:9191",
		DBPath:          filepath.Join(dir, "data", "gateway.db"),
		SessionDuration: "12h",
		Passphrase:      "Test Net ; 2026",
		HomeDomain:      "localhost:9191",
		Pool:            250000,
		SharePct:        37.5,
		LogLevel:        "debug",
		LogFormat:       "json",
	}
	require.NoError(t, seed.fillSecrets())
	require.NoError(t, writeConfigFile(path, seed))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "localhost:9191", cfg.Server.HTTPAddr)
	assert.Equal(t, seed.DBPath, cfg.Database.Path)
	assert.Equal(t, seed.JWTSecret, cfg.Auth.JWTSecret)
	assert.Equal(t, 12*time.Hour, cfg.Auth.SessionDuration)
	assert.Equal(t, seed.ServerSeed, cfg.Challenge.ServerSeed)
	assert.Equal(t, "Test Net ; 2026", cfg.Challenge.NetworkPassphrase)
	assert.Equal(t, 250000.0, cfg.Settlement.InvestmentPool)
	assert.Equal(t, 37.5, cfg.Settlement.SharePercentage)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestFillSecrets_PreservesProvided(t *testing.T) {
	seed := configSeed{JWTSecret: "keep-me", ServerSeed: "aa"}
	require.NoError(t, seed.fillSecrets())
	assert.Equal(t, "keep-me", seed.JWTSecret)
	assert.Equal(t, "aa", seed.ServerSeed)

	var fresh configSeed
	require.NoError(t, fresh.fillSecrets())
	assert.NotEmpty(t, fresh.JWTSecret)
	assert.Len(t, fresh.ServerSeed, 64) // 32-byte seed, hex encoded
}

func TestColorHandler_GroupsAndAttrs(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = prev }()

	var buf bytes.Buffer
	logger := slog.New(newColorHandler(&buf, slog.LevelInfo))

	logger.WithGroup("http").With("route", "/health").Info("request", "status", 200)

	out := buf.String()
	assert.Contains(t, out, "INF request")
	assert.Contains(t, out, "http.route=/health")
	assert.Contains(t, out, "http.status=200")
}

func TestColorHandler_LevelFilter(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = prev }()

	var buf bytes.Buffer
	logger := slog.New(newColorHandler(&buf, slog.LevelWarn))

	logger.Info("dropped")
	logger.Warn("kept")

	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "kept")
}
