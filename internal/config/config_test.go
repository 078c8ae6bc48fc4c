package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadServer_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadServer(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultServer(), cfg)
}

func TestLoadServer_Overrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arena.yaml")
	data := `
port: 4000
log_level: debug
room:
  max_players: 6
  round_restart_delay: 3s
ledger:
  workers: 2
auth:
  ticket_secret: s3cret
economy:
  mystery_box_cost: 500
  perk_prices:
    juggernog: 100
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := LoadServer(path)
	require.NoError(t, err)

	assert.Equal(t, 4000, cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 6, cfg.Room.MaxPlayers)
	assert.Equal(t, 2, cfg.Room.MinPlayersToStart, "unset keys keep defaults")
	assert.Equal(t, 3*time.Second, cfg.Room.RoundRestartDelay)
	assert.Equal(t, 2, cfg.Ledger.Workers)
	assert.Equal(t, 1024, cfg.Ledger.QueueSize)
	assert.Equal(t, "s3cret", cfg.Auth.TicketSecret)
	assert.Equal(t, 500, cfg.Economy.MysteryBoxCost)
	assert.Equal(t, 100, cfg.Economy.PerkPrices["juggernog"])
	assert.Equal(t, 3000, cfg.Economy.PerkPrices["speed_cola"], "maps merge into defaults")
}

func TestLoadServer_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"bad yaml", "port: [1"},
		{"port", "port: 70000"},
		{"min above max", "room:\n  max_players: 2\n  min_players_to_start: 3\n"},
		{"pool", "room:\n  pool_size: 0\n"},
		{"negative price", "economy:\n  perk_prices:\n    juggernog: -1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "arena.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.data), 0o600))

			_, err := LoadServer(path)
			assert.Error(t, err)
		})
	}
}

func TestResolvePath(t *testing.T) {
	t.Setenv(EnvPath, "")
	assert.Equal(t, DefaultPath, ResolvePath(""))

	t.Setenv(EnvPath, "/etc/zarena.yaml")
	assert.Equal(t, "/etc/zarena.yaml", ResolvePath(""))
	assert.Equal(t, "local.yaml", ResolvePath("local.yaml"))
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{
		Host:     "db",
		Port:     5433,
		User:     "u",
		Password: "p",
		DBName:   "arena",
		SSLMode:  "require",
	}
	assert.Equal(t, "postgres://u:p@db:5433/arena?sslmode=require", d.DSN())
}
