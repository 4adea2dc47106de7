package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, ":4566", cfg.Addr)
	assert.Equal(t, 2, cfg.PublicLobbies)
	assert.Equal(t, 10, cfg.LobbyCapacity)
	assert.Equal(t, 300, cfg.RoundSeconds)
	assert.Equal(t, 10, cfg.VoteSeconds)
	assert.Equal(t, "assets/maps.jsonc", cfg.MapsPath)
	assert.Empty(t, cfg.Operators)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SERVER_ADDR", ":9000")
	t.Setenv("PUBLIC_LOBBIES", "4")
	t.Setenv("ROUND_SECONDS", "60")
	t.Setenv("OPERATOR_NAMES", "root, admin ,")

	cfg := Load()

	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, 4, cfg.PublicLobbies)
	assert.Equal(t, 60, cfg.RoundSeconds)
	assert.Equal(t, []string{"root", "admin"}, cfg.Operators)
}
