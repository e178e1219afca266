// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jason-s-yu/wordclue/internal/session"
	"github.com/sirupsen/logrus"
)

// Config is everything the server reads from its environment.
type Config struct {
	Port     string
	LogLevel logrus.Level

	// DatabaseURL selects the Postgres store; empty keeps everything in memory.
	DatabaseURL    string
	MigrateOnStart bool

	// RedisAddr enables the round mirror when set.
	RedisAddr string
	RedisDB   int

	ChoiceTimerSec     int
	ClueTimerSec       int
	GuessTimerSec      int
	DisconnectGraceSec int
	RoomIdleSec        int
	MalusProbability   float64
	MaxTotalRounds     int
}

// Load reads the configuration from the environment, applying defaults.
func Load() (*Config, error) {
	level, err := logrus.ParseLevel(getEnv("LOG_LEVEL", "debug"))
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	malus, err := strconv.ParseFloat(getEnv("MALUS_PROBABILITY", "0.15"), 64)
	if err != nil || malus < 0 || malus > 1 {
		return nil, fmt.Errorf("MALUS_PROBABILITY must be a number between 0 and 1")
	}

	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		LogLevel:           level,
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		MigrateOnStart:     getEnvBool("MIGRATE_ON_START", false),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisDB:            getEnvInt("REDIS_DB", 0),
		ChoiceTimerSec:     getEnvInt("CHOICE_TIMER_SEC", 30),
		ClueTimerSec:       getEnvInt("CLUE_TIMER_SEC", 60),
		GuessTimerSec:      getEnvInt("GUESS_TIMER_SEC", 60),
		DisconnectGraceSec: getEnvInt("DISCONNECT_GRACE_SEC", 30),
		RoomIdleSec:        getEnvInt("ROOM_IDLE_SEC", 60),
		MalusProbability:   malus,
		MaxTotalRounds:     getEnvInt("MAX_TOTAL_ROUNDS", 10),
	}
	for name, v := range map[string]int{
		"CHOICE_TIMER_SEC": cfg.ChoiceTimerSec,
		"CLUE_TIMER_SEC":   cfg.ClueTimerSec,
		"GUESS_TIMER_SEC":  cfg.GuessTimerSec,
		"MAX_TOTAL_ROUNDS": cfg.MaxTotalRounds,
	} {
		if v <= 0 {
			return nil, fmt.Errorf("%s must be positive, got %d", name, v)
		}
	}
	return cfg, nil
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return ":" + c.Port
}

// SessionSettings converts the timing knobs into coordinator settings.
func (c *Config) SessionSettings() session.Settings {
	s := session.DefaultSettings()
	s.ChoiceSeconds = c.ChoiceTimerSec
	s.ClueSeconds = c.ClueTimerSec
	s.GuessSeconds = c.GuessTimerSec
	s.DisconnectGrace = time.Duration(c.DisconnectGraceSec) * time.Second
	s.IdleTimeout = time.Duration(c.RoomIdleSec) * time.Second
	s.MaxTotalRounds = c.MaxTotalRounds
	return s
}

// getEnv is a helper to read an environment variable or return a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvInt is a helper to parse an environment variable as integer, else a default value.
func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func getEnvBool(key string, def bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return def
}
