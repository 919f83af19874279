// Package webui exposes the two state containers to thin views: a JSON API
// over fasthttp and a WebSocket stream that pushes a fresh snapshot on every
// state change. Handlers only read snapshots and invoke operations; all
// semantics live in ble and session.
package webui

import (
	"github.com/kapu/chesslink-companion/internal/ble"
	"github.com/kapu/chesslink-companion/internal/board"
	"github.com/kapu/chesslink-companion/internal/session"
)

// ConnectionView is the scan screen's read model.
type ConnectionView struct {
	State       ble.State        `json:"state"`
	Scanning    bool             `json:"scanning"`
	Peripherals []ble.Peripheral `json:"peripherals"`
	Connected   *ble.Peripheral  `json:"connected,omitempty"`
}

// StateResponse is the combined snapshot served to every view.
type StateResponse struct {
	Connection ConnectionView   `json:"connection"`
	Session    session.Snapshot `json:"session"`
	Board      board.View       `json:"board"`
}

// StateSource builds combined snapshots for the API and the stream.
type StateSource struct {
	central  *ble.Central
	sessions *session.Manager
	tracker  *board.Tracker
}

func NewStateSource(central *ble.Central, sessions *session.Manager, tracker *board.Tracker) *StateSource {
	// The tracker follows the session log through the observer registry, so
	// snapshot reads stay side-effect free.
	sessions.OnChange(func(snap session.Snapshot) { tracker.Update(snap.Moves) })
	return &StateSource{central: central, sessions: sessions, tracker: tracker}
}

func (s *StateSource) State() StateResponse {
	snap := s.sessions.Snapshot()

	conn := ConnectionView{
		State:       s.central.State(),
		Scanning:    s.central.Scanning(),
		Peripherals: s.central.Peripherals(),
	}
	if p, ok := s.central.Connected(); ok {
		conn.Connected = &p
	}
	return StateResponse{
		Connection: conn,
		Session:    snap,
		Board:      s.tracker.View(),
	}
}
