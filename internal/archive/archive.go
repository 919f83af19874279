// Package archive provides optional durable storage for saved games. The
// session keeps its own in-memory archive for the views; these stores only
// add persistence across restarts.
package archive

import (
	"context"

	"github.com/kapu/chesslink-companion/internal/session"
)

// Store persists archived games and lists them most recent first.
type Store interface {
	Save(ctx context.Context, g session.ArchivedGame) error
	Recent(ctx context.Context, limit int) ([]session.ArchivedGame, error)
	Close() error
}
