package session

import "time"

// Settings tunes the per-room timings.
type Settings struct {
	ChoiceSeconds int
	ClueSeconds   int
	GuessSeconds  int

	DisconnectGrace time.Duration
	IdleTimeout     time.Duration

	// Tick is the length of one countdown second. Tests shorten it.
	Tick time.Duration

	MaxTotalRounds int
	InboxSize      int
	StoreTimeout   time.Duration
}

// DefaultSettings returns the production timings.
func DefaultSettings() Settings {
	return Settings{
		ChoiceSeconds:   30,
		ClueSeconds:     60,
		GuessSeconds:    60,
		DisconnectGrace: 30 * time.Second,
		IdleTimeout:     60 * time.Second,
		Tick:            time.Second,
		MaxTotalRounds:  10,
		InboxSize:       64,
		StoreTimeout:    5 * time.Second,
	}
}
