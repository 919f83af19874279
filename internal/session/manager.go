// Package session owns the game-session state: pending settings, the live
// move log, and the in-memory archive of saved games. All mutation goes
// through Manager, which notifies registered observers after each change.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kapu/chesslink-companion/internal/protocol"
)

// Sender writes one text payload to the connected board.
type Sender interface {
	SendText(s string) error
}

// Repository persists saved games outside the process. The in-memory archive
// stays authoritative; persistence is best effort.
type Repository interface {
	Save(ctx context.Context, g ArchivedGame) error
}

type changeCallbackEntry struct {
	id       int
	callback func(Snapshot)
}

// Manager is the session state container.
type Manager struct {
	mu         sync.RWMutex
	settings   Settings
	moves      []string
	connecting bool
	archive    []ArchivedGame // most recent first, unbounded

	cbM    sync.RWMutex
	cbs    []changeCallbackEntry
	nextCb int

	repo   Repository
	logger *zap.Logger

	now func() time.Time
}

func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		settings: DefaultSettings(),
		logger:   logger,
		now:      time.Now,
	}
}

// AttachRepository wires an optional durable store for saved games.
func (m *Manager) AttachRepository(r Repository) {
	if m != nil {
		m.repo = r
	}
}

// OnChange registers an observer; it receives a snapshot after every
// mutation. Returns an id for RemoveChangeCallback.
func (m *Manager) OnChange(cb func(Snapshot)) int {
	m.cbM.Lock()
	defer m.cbM.Unlock()
	m.nextCb++
	id := m.nextCb
	m.cbs = append(m.cbs, changeCallbackEntry{id: id, callback: cb})
	return id
}

func (m *Manager) RemoveChangeCallback(id int) {
	m.cbM.Lock()
	defer m.cbM.Unlock()
	for i, cb := range m.cbs {
		if cb.id == id {
			m.cbs = append(m.cbs[:i], m.cbs[i+1:]...)
			break
		}
	}
}

func (m *Manager) notify() {
	snap := m.Snapshot()
	m.cbM.RLock()
	callbacks := make([]changeCallbackEntry, len(m.cbs))
	copy(callbacks, m.cbs)
	m.cbM.RUnlock()
	for _, entry := range callbacks {
		if entry.callback != nil {
			entry.callback(snap)
		}
	}
}

// SetConnecting flags an in-progress connection attempt for the views.
func (m *Manager) SetConnecting(v bool) {
	m.mu.Lock()
	m.connecting = v
	m.mu.Unlock()
	m.notify()
}

func (m *Manager) Connecting() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connecting
}

// SetElo updates the pending difficulty, clamped to the firmware bounds.
func (m *Manager) SetElo(v int) {
	m.mu.Lock()
	m.settings.Elo = ClampElo(v)
	m.mu.Unlock()
	m.notify()
}

// SetMinutes updates the pending clock, clamped to the firmware bounds.
func (m *Manager) SetMinutes(v int) {
	m.mu.Lock()
	m.settings.Minutes = ClampMinutes(v)
	m.mu.Unlock()
	m.notify()
}

func (m *Manager) Settings() Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings
}

// Moves returns a copy of the live move log.
func (m *Manager) Moves() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.moves...)
}

// Archive returns a copy of the saved games, most recent first.
func (m *Manager) Archive() []ArchivedGame {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copyArchive(m.archive)
}

// Snapshot returns the full read model with copied slices.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{
		Connecting: m.connecting,
		Settings:   m.settings,
		Moves:      append([]string(nil), m.moves...),
		Archive:    copyArchive(m.archive),
	}
}

// RestoreArchive appends games reloaded from a durable store behind whatever
// this process has already archived. Input order is kept, so a
// most-recent-first listing stays most recent first.
func (m *Manager) RestoreArchive(games []ArchivedGame) {
	if len(games) == 0 {
		return
	}
	m.mu.Lock()
	m.archive = append(m.archive, copyArchive(games)...)
	total := len(m.archive)
	m.mu.Unlock()
	m.logger.Info("archive_restored", zap.Int("restored", len(games)), zap.Int("total", total))
	m.notify()
}

// HandleIncoming is the single ingestion point for board-sent text. The
// liveness reply is swallowed; everything else is appended verbatim as one
// move, one payload per notification.
func (m *Manager) HandleIncoming(text string) {
	if protocol.IsPong(text) {
		m.logger.Debug("liveness_pong")
		return
	}
	m.mu.Lock()
	m.moves = append(m.moves, text)
	n := len(m.moves)
	m.mu.Unlock()
	m.logger.Info("move_received", zap.String("move", text), zap.Int("ply", n))
	m.notify()
}

// StartNewGame clears the live move log, then sends exactly one start
// command with the settings as of the call. Unsaved moves are discarded
// silently; the board has no notion of resuming. Settings are not reset.
func (m *Manager) StartNewGame(sender Sender) error {
	m.mu.Lock()
	dropped := len(m.moves)
	m.moves = nil
	cmd := protocol.BuildStartGame(m.settings.Elo, m.settings.Minutes)
	m.mu.Unlock()

	if dropped > 0 {
		m.logger.Warn("unsaved_moves_discarded", zap.Int("count", dropped))
	}
	m.notify()

	if sender == nil {
		m.logger.Warn("start_game_without_link", zap.String("cmd", cmd))
		return nil
	}
	if err := sender.SendText(cmd); err != nil {
		m.logger.Error("start_game_send_failed", zap.Error(err))
		return err
	}
	m.logger.Info("start_game_sent", zap.String("cmd", cmd))
	return nil
}

// SaveGame snapshots the live log into the archive and clears it. On an
// empty log it does nothing and returns nil.
func (m *Manager) SaveGame() *ArchivedGame {
	m.mu.Lock()
	if len(m.moves) == 0 {
		m.mu.Unlock()
		return nil
	}
	g := ArchivedGame{
		ID:      uuid.NewString(),
		SavedAt: m.now(),
		Elo:     m.settings.Elo,
		Minutes: m.settings.Minutes,
		Moves:   append([]string(nil), m.moves...),
	}
	m.archive = append([]ArchivedGame{g}, m.archive...)
	m.moves = nil
	m.mu.Unlock()

	m.logger.Info("game_saved",
		zap.String("game_id", g.ID),
		zap.Int("elo", g.Elo),
		zap.Int("minutes", g.Minutes),
		zap.Int("moves", len(g.Moves)),
	)
	m.notify()

	if m.repo != nil {
		saved := g
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := m.repo.Save(ctx, saved); err != nil {
				m.logger.Warn("archive_persist_failed", zap.String("game_id", saved.ID), zap.Error(err))
			}
		}()
	}

	out := g
	out.Moves = append([]string(nil), g.Moves...)
	return &out
}

func copyArchive(in []ArchivedGame) []ArchivedGame {
	out := make([]ArchivedGame, len(in))
	for i, g := range in {
		g.Moves = append([]string(nil), g.Moves...)
		out[i] = g
	}
	return out
}
