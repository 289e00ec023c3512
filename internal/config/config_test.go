package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unsetEnv clears keys for the duration of the test; t.Setenv restores them afterwards.
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestLoad_Defaults(t *testing.T) {
	unsetEnv(t, "PORT", "DATABASE_URL", "ROUND_DURATION", "DATA_PATH", "WORDS_FILE",
		"STATIC_DIR", "DEBUG", "CHAT_RATE", "CHAT_BURST", "STATS_CACHE_SIZE", "ROOM_TTL")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "", cfg.DatabaseURL)
	assert.Equal(t, 60, cfg.RoundDuration)
	assert.Equal(t, "sketchparty.db", cfg.DataPath)
	assert.Equal(t, "static", cfg.StaticDir)
	assert.False(t, cfg.Debug)
	assert.Equal(t, 5.0, cfg.ChatRate)
	assert.Equal(t, 10, cfg.ChatBurst)
	assert.Equal(t, 256, cfg.StatsCacheSize)
	assert.Equal(t, time.Hour, cfg.RoomTTL)
}

func TestLoad_CustomValues(t *testing.T) {
	t.Setenv("PORT", "3000")
	t.Setenv("DATABASE_URL", "postgres://localhost/sketchparty")
	t.Setenv("ROUND_DURATION", "30")
	t.Setenv("DATA_PATH", "/tmp/scores.db")
	t.Setenv("DEBUG", "true")
	t.Setenv("ROOM_TTL", "15m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, "postgres://localhost/sketchparty", cfg.DatabaseURL)
	assert.Equal(t, 30, cfg.RoundDuration)
	assert.Equal(t, "/tmp/scores.db", cfg.DataPath)
	assert.True(t, cfg.Debug)
	assert.Equal(t, 15*time.Minute, cfg.RoomTTL)
}

func TestLoad_InvalidRoundDuration(t *testing.T) {
	t.Setenv("ROUND_DURATION", "abc")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_NonPositiveRoundDuration(t *testing.T) {
	t.Setenv("ROUND_DURATION", "0")

	_, err := Load()
	assert.Error(t, err)
}
