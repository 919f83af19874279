package archive

import (
	"context"
	"sync"

	"github.com/kapu/chesslink-companion/internal/session"
)

// Memory is the default store when no backend is configured. Copy-in,
// copy-out; entries are prepended so Recent reads straight off the front.
type Memory struct {
	mu    sync.RWMutex
	games []session.ArchivedGame
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Save(ctx context.Context, g session.ArchivedGame) error {
	g.Moves = append([]string(nil), g.Moves...)
	m.mu.Lock()
	m.games = append([]session.ArchivedGame{g}, m.games...)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Recent(ctx context.Context, limit int) ([]session.ArchivedGame, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := len(m.games)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]session.ArchivedGame, n)
	for i := 0; i < n; i++ {
		g := m.games[i]
		g.Moves = append([]string(nil), g.Moves...)
		out[i] = g
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }
