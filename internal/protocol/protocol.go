// Package protocol holds the fixed wire contract spoken with the board.
// The firmware exposes a single GATT characteristic and exchanges plain
// UTF-8 text lines over it; there is no framing beyond one payload per
// notification.
package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// ServiceUUID is the GATT service advertised by the board.
	ServiceUUID = "4fafc201-1fb5-459e-8fcc-c5c9c331914b"
	// CharacteristicUUID is the single write/notify endpoint inside ServiceUUID.
	CharacteristicUUID = "beb5483e-36e1-4688-b7f5-ea07361b26a8"

	// DeviceName is the local name the board advertises while pairable.
	DeviceName = "Chess_RPi"

	// Ping is written right after subscribing; the board answers Pong.
	Ping = "PING"
	Pong = "PONG"

	startGamePrefix = "START_GAME:ELO:"
)

// Difficulty and clock bounds accepted by the firmware.
const (
	EloMin     = 400
	EloMax     = 2000
	MinutesMin = 1
	MinutesMax = 60
)

// BuildStartGame renders the start command exactly as the firmware parses it:
// START_GAME:ELO:<elo>:TIME:<minutes>.
func BuildStartGame(elo, minutes int) string {
	return fmt.Sprintf("START_GAME:ELO:%d:TIME:%d", elo, minutes)
}

// ParseStartGame decodes a start command. It accepts what BuildStartGame
// produces and mirrors the firmware's split-on-colon parsing.
func ParseStartGame(s string) (elo, minutes int, err error) {
	if !strings.HasPrefix(s, startGamePrefix) {
		return 0, 0, fmt.Errorf("not a start command: %q", s)
	}
	parts := strings.Split(s, ":")
	if len(parts) != 5 || parts[3] != "TIME" {
		return 0, 0, fmt.Errorf("malformed start command: %q", s)
	}
	elo, err = strconv.Atoi(parts[2])
	if err != nil {
		return 0, 0, fmt.Errorf("bad elo in %q: %w", s, err)
	}
	minutes, err = strconv.Atoi(parts[4])
	if err != nil {
		return 0, 0, fmt.Errorf("bad time in %q: %w", s, err)
	}
	return elo, minutes, nil
}

// IsPong reports whether an inbound payload is the liveness reply. Pong is
// swallowed by the session layer and never recorded as a move.
func IsPong(s string) bool {
	return s == Pong
}
