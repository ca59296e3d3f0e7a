package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8000", cfg.Server.Addr())
	assert.Equal(t, 10*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.True(t, cfg.Game.AutoCreate)
	assert.Equal(t, 8000, cfg.Game.StartingLife)
	assert.Zero(t, cfg.Game.IdleTimeout)
	assert.Equal(t, "content/cards.yaml", cfg.Catalog.Path)
}

func TestLoad_Overrides(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9001
game:
  auto_create: false
  starting_life: 4000
  idle_timeout: 30m
  sweep_interval: 5m
database:
  host: db.internal
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9001, cfg.Server.Port)
	assert.False(t, cfg.Game.AutoCreate)
	assert.Equal(t, 4000, cfg.Game.StartingLife)
	assert.Equal(t, 30*time.Minute, cfg.Game.IdleTimeout)
	assert.Equal(t, "db.internal", cfg.Database.Host)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate_BadPort(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 70000
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
}

func TestValidate_BadLogLevel(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: verbose
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging.level")
}

func TestValidate_SweepIntervalRequired(t *testing.T) {
	path := writeConfig(t, `
game:
  idle_timeout: 1h
  sweep_interval: 0s
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "game.sweep_interval")
}

func TestValidate_NegativeStartingLife(t *testing.T) {
	cfg := validConfig()
	cfg.Game.StartingLife = -1
	assert.Error(t, cfg.Validate())
}

func TestValidate_DatabaseConnBounds(t *testing.T) {
	cfg := validConfig()
	cfg.Database.MinConns = 20
	cfg.Database.MaxConns = 10
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "min_conns")
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{
		Host: "localhost", Port: 5432,
		User: "u", Password: "p", Name: "duels", SSLMode: "disable",
	}
	assert.Equal(t, "postgres://u:p@localhost:5432/duels?sslmode=disable", d.DSN())
}

func validConfig() Config {
	return Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8000},
		Database: DatabaseConfig{
			Host: "localhost", Port: 5432, User: "u", Name: "n",
			SSLMode: "disable", MaxConns: 10, MinConns: 2,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Game:    GameConfig{StartingLife: 8000},
	}
}

// Property: any port in range validates, any port out of range fails.
func TestPropertyServerPort(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cfg := validConfig()
		cfg.Server.Port = rapid.IntRange(1, 65535).Draw(t, "port")
		if err := cfg.Validate(); err != nil {
			t.Fatalf("valid port rejected: %v", err)
		}
	})

	rapid.Check(t, func(t *rapid.T) {
		cfg := validConfig()
		cfg.Server.Port = rapid.OneOf(
			rapid.IntRange(-1000, 0),
			rapid.IntRange(65536, 100000),
		).Draw(t, "port")
		if err := cfg.Validate(); err == nil {
			t.Fatalf("invalid port %d accepted", cfg.Server.Port)
		}
	})
}
