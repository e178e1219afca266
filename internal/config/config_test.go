package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "LOG_LEVEL", "DATABASE_URL", "REDIS_ADDR", "CLUE_TIMER_SEC", "MALUS_PROBABILITY", "MIGRATE_ON_START"} {
		t.Setenv(k, "")
	}
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, logrus.DebugLevel, cfg.LogLevel)
	assert.Empty(t, cfg.DatabaseURL)
	assert.False(t, cfg.MigrateOnStart)
	assert.Equal(t, 0.15, cfg.MalusProbability)

	s := cfg.SessionSettings()
	assert.Equal(t, 30, s.ChoiceSeconds)
	assert.Equal(t, 60, s.ClueSeconds)
	assert.Equal(t, 60, s.GuessSeconds)
	assert.Equal(t, 30*time.Second, s.DisconnectGrace)
	assert.Equal(t, time.Minute, s.IdleTimeout)
	assert.Equal(t, 10, s.MaxTotalRounds)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("CLUE_TIMER_SEC", "45")
	t.Setenv("MIGRATE_ON_START", "true")
	t.Setenv("REDIS_DB", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Addr())
	assert.Equal(t, logrus.WarnLevel, cfg.LogLevel)
	assert.Equal(t, 45, cfg.ClueTimerSec)
	assert.True(t, cfg.MigrateOnStart)
	assert.Equal(t, 0, cfg.RedisDB, "unparsable ints fall back to the default")
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("MALUS_PROBABILITY", "2")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("MALUS_PROBABILITY", "")
	t.Setenv("GUESS_TIMER_SEC", "-1")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("GUESS_TIMER_SEC", "")
	t.Setenv("LOG_LEVEL", "chatty")
	_, err = Load()
	assert.Error(t, err)
}
