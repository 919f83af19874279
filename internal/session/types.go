package session

import (
	"time"

	"github.com/kapu/chesslink-companion/internal/protocol"
)

// Settings are the pending game parameters sent with the next start command.
// They survive across games until changed.
type Settings struct {
	Elo     int `json:"elo"`
	Minutes int `json:"minutes"`
}

// DefaultSettings mirrors the board's own power-on defaults (ELO 800, 10 min).
func DefaultSettings() Settings {
	return Settings{Elo: 800, Minutes: 10}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampElo bounds a difficulty value to what the firmware accepts.
func ClampElo(v int) int { return clampInt(v, protocol.EloMin, protocol.EloMax) }

// ClampMinutes bounds a clock value to what the firmware accepts.
func ClampMinutes(v int) int { return clampInt(v, protocol.MinutesMin, protocol.MinutesMax) }

// ArchivedGame is an immutable snapshot of a finished game. Moves are copied
// by value at save time; later changes to the live log never reach it.
type ArchivedGame struct {
	ID      string    `json:"id"`
	SavedAt time.Time `json:"saved_at"`
	Elo     int       `json:"elo"`
	Minutes int       `json:"minutes"`
	Moves   []string  `json:"moves"`
}

// Snapshot is the read model handed to observers. All slices are copies.
type Snapshot struct {
	Connecting bool           `json:"connecting"`
	Settings   Settings       `json:"settings"`
	Moves      []string       `json:"moves"`
	Archive    []ArchivedGame `json:"archive"`
}
