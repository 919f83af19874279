// Package board keeps a replayable view of the live move log so views can
// show the current position, not just raw text. Moves arrive from the board
// as opaque SAN strings; anything the replay cannot parse flips the tracker
// out of sync instead of failing, since the session log stays authoritative.
package board

import (
	"sync"

	nchess "github.com/corentings/chess/v2"
)

// View is the renderable position state.
type View struct {
	FEN    string `json:"fen"`
	Turn   string `json:"turn"`
	Ply    int    `json:"ply"`
	Synced bool   `json:"synced"`
}

// Tracker replays SAN move lists into a position.
type Tracker struct {
	mu      sync.Mutex
	game    *nchess.Game
	applied []string
	synced  bool
}

func NewTracker() *Tracker {
	return &Tracker{game: nchess.NewGame(), synced: true}
}

// Update reconciles the tracker with the current live move log. A shrunk log
// means a new game started; the position is rebuilt from scratch. Returns
// whether the tracker is in sync with the log.
func (t *Tracker) Update(moves []string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(moves) < len(t.applied) || !hasPrefix(moves, t.applied) {
		t.reset()
	}
	if !t.synced {
		return false
	}
	for _, san := range moves[len(t.applied):] {
		if err := t.game.PushNotationMove(san, nchess.AlgebraicNotation{}, nil); err != nil {
			t.synced = false
			return false
		}
		t.applied = append(t.applied, san)
	}
	return true
}

// Reset discards the position, e.g. when a new game starts.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reset()
}

func (t *Tracker) reset() {
	t.game = nchess.NewGame()
	t.applied = nil
	t.synced = true
}

// View returns the current renderable state.
func (t *Tracker) View() View {
	t.mu.Lock()
	defer t.mu.Unlock()
	turn := "white"
	if t.game.Position().Turn() == nchess.Black {
		turn = "black"
	}
	return View{
		FEN:    t.game.FEN(),
		Turn:   turn,
		Ply:    len(t.applied),
		Synced: t.synced,
	}
}

func hasPrefix(list, prefix []string) bool {
	if len(prefix) > len(list) {
		return false
	}
	for i := range prefix {
		if list[i] != prefix[i] {
			return false
		}
	}
	return true
}
