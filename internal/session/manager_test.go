package session

import (
	"errors"
	"testing"

	"github.com/kapu/chesslink-companion/internal/protocol"
)

type fakeSender struct {
	sent []string
	err  error
}

func (f *fakeSender) SendText(s string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, s)
	return nil
}

func TestSetEloLastWriteWins(t *testing.T) {
	m := NewManager(nil)
	for _, v := range []int{400, 1200, 2000, 873} {
		m.SetElo(v)
		if got := m.Settings().Elo; got != v {
			t.Fatalf("Elo after SetElo(%d) = %d", v, got)
		}
	}
}

func TestSettersClampToFirmwareBounds(t *testing.T) {
	m := NewManager(nil)
	m.SetElo(protocol.EloMax + 500)
	if got := m.Settings().Elo; got != protocol.EloMax {
		t.Fatalf("Elo not clamped: %d", got)
	}
	m.SetMinutes(0)
	if got := m.Settings().Minutes; got != protocol.MinutesMin {
		t.Fatalf("Minutes not clamped: %d", got)
	}
}

func TestHandleIncomingPongSwallowed(t *testing.T) {
	m := NewManager(nil)
	m.HandleIncoming("PONG")
	if n := len(m.Moves()); n != 0 {
		t.Fatalf("PONG changed move log, len=%d", n)
	}
	m.HandleIncoming("e4")
	m.HandleIncoming("PONG")
	moves := m.Moves()
	if len(moves) != 1 || moves[0] != "e4" {
		t.Fatalf("unexpected move log: %v", moves)
	}
}

func TestHandleIncomingAppendsVerbatim(t *testing.T) {
	m := NewManager(nil)
	for i, text := range []string{"e4", "e5", "Nf3", "weird opaque payload"} {
		m.HandleIncoming(text)
		moves := m.Moves()
		if len(moves) != i+1 {
			t.Fatalf("log length after %q = %d, want %d", text, len(moves), i+1)
		}
		if moves[i] != text {
			t.Fatalf("appended %q, want %q", moves[i], text)
		}
	}
}

func TestSaveGameEmptyLogIsNoop(t *testing.T) {
	m := NewManager(nil)
	if g := m.SaveGame(); g != nil {
		t.Fatalf("SaveGame on empty log returned %+v", g)
	}
	if n := len(m.Archive()); n != 0 {
		t.Fatalf("archive changed on empty save: %d entries", n)
	}
}

func TestSaveGameSnapshotsByValue(t *testing.T) {
	m := NewManager(nil)
	m.SetElo(1200)
	m.SetMinutes(15)
	for _, mv := range []string{"e4", "e5", "Nf3"} {
		m.HandleIncoming(mv)
	}

	saved := m.SaveGame()
	if saved == nil {
		t.Fatal("SaveGame returned nil on non-empty log")
	}
	if saved.ID == "" || saved.SavedAt.IsZero() {
		t.Fatalf("missing snapshot metadata: %+v", saved)
	}

	arch := m.Archive()
	if len(arch) != 1 {
		t.Fatalf("archive len = %d, want 1", len(arch))
	}
	top := arch[0]
	if top.Elo != 1200 || top.Minutes != 15 {
		t.Fatalf("archived settings: elo=%d minutes=%d", top.Elo, top.Minutes)
	}
	if len(top.Moves) != 3 || top.Moves[0] != "e4" || top.Moves[1] != "e5" || top.Moves[2] != "Nf3" {
		t.Fatalf("archived moves: %v", top.Moves)
	}
	if n := len(m.Moves()); n != 0 {
		t.Fatalf("live log not cleared after save: %d", n)
	}

	// Later mutation of the live log must not leak into the archive.
	m.HandleIncoming("d4")
	if got := m.Archive()[0].Moves; len(got) != 3 {
		t.Fatalf("archived copy mutated: %v", got)
	}
}

func TestSaveGamePrependsMostRecentFirst(t *testing.T) {
	m := NewManager(nil)
	m.HandleIncoming("e4")
	first := m.SaveGame()
	m.HandleIncoming("d4")
	second := m.SaveGame()

	arch := m.Archive()
	if len(arch) != 2 {
		t.Fatalf("archive len = %d, want 2", len(arch))
	}
	if arch[0].ID != second.ID || arch[1].ID != first.ID {
		t.Fatalf("archive not most-recent-first: %v then %v", arch[0].ID, arch[1].ID)
	}
}

func TestRestoreArchiveBacksNewSaves(t *testing.T) {
	m := NewManager(nil)
	restored := []ArchivedGame{
		{ID: "newer", Moves: []string{"e4", "e5"}},
		{ID: "older", Moves: []string{"d4"}},
	}
	m.RestoreArchive(restored)

	arch := m.Archive()
	if len(arch) != 2 || arch[0].ID != "newer" || arch[1].ID != "older" {
		t.Fatalf("restored order lost: %v", arch)
	}

	// A save in this process lands ahead of the restored history.
	m.HandleIncoming("c4")
	saved := m.SaveGame()
	arch = m.Archive()
	if len(arch) != 3 || arch[0].ID != saved.ID || arch[2].ID != "older" {
		t.Fatalf("save not prepended ahead of restored games: %v", arch)
	}

	// Restored entries are copied in; mutating the caller's slice must not
	// reach the archive.
	restored[0].Moves[0] = "mutated"
	if got := m.Archive()[1].Moves[0]; got != "e4" {
		t.Fatalf("restored entry shares backing array: %q", got)
	}
}

func TestStartNewGameClearsLogThenSendsOneCommand(t *testing.T) {
	m := NewManager(nil)
	m.SetElo(1600)
	m.SetMinutes(5)
	m.HandleIncoming("e4")

	s := &fakeSender{}
	if err := m.StartNewGame(s); err != nil {
		t.Fatalf("StartNewGame: %v", err)
	}
	if n := len(m.Moves()); n != 0 {
		t.Fatalf("move log not cleared: %d", n)
	}
	if len(s.sent) != 1 {
		t.Fatalf("sent %d commands, want 1", len(s.sent))
	}
	if s.sent[0] != "START_GAME:ELO:1600:TIME:5" {
		t.Fatalf("sent %q", s.sent[0])
	}

	// Settings persist across games.
	if err := m.StartNewGame(s); err != nil {
		t.Fatalf("second StartNewGame: %v", err)
	}
	if s.sent[1] != "START_GAME:ELO:1600:TIME:5" {
		t.Fatalf("settings did not persist: %q", s.sent[1])
	}
}

func TestStartNewGameClearsLogEvenWhenSendFails(t *testing.T) {
	m := NewManager(nil)
	m.HandleIncoming("e4")
	s := &fakeSender{err: errors.New("link down")}
	if err := m.StartNewGame(s); err == nil {
		t.Fatal("expected send error")
	}
	if n := len(m.Moves()); n != 0 {
		t.Fatalf("move log retained after failed start: %d", n)
	}
}

func TestStartNewGameDiscardsUnsavedMovesSilently(t *testing.T) {
	m := NewManager(nil)
	m.HandleIncoming("e4")
	m.HandleIncoming("e5")
	_ = m.StartNewGame(&fakeSender{})
	if n := len(m.Archive()); n != 0 {
		t.Fatalf("discard must not archive: %d entries", n)
	}
}

// Dropping the connection leaves an unsaved move log in memory untouched.
// The link layer never reaches into the session; only an explicit new game
// or save clears the log.
func TestDisconnectRetainsUnsavedMoves(t *testing.T) {
	m := NewManager(nil)
	m.HandleIncoming("e4")
	m.SetConnecting(false)
	if n := len(m.Archive()); n != 0 {
		t.Fatalf("archive changed: %d", n)
	}
	moves := m.Moves()
	if len(moves) != 1 || moves[0] != "e4" {
		t.Fatalf("moves not retained: %v", moves)
	}
}

func TestOnChangeObserver(t *testing.T) {
	m := NewManager(nil)
	var got []Snapshot
	id := m.OnChange(func(s Snapshot) { got = append(got, s) })

	m.SetElo(1000)
	m.HandleIncoming("e4")
	if len(got) != 2 {
		t.Fatalf("observer called %d times, want 2", len(got))
	}
	last := got[len(got)-1]
	if last.Settings.Elo != 1000 || len(last.Moves) != 1 {
		t.Fatalf("stale snapshot: %+v", last)
	}

	m.RemoveChangeCallback(id)
	m.HandleIncoming("e5")
	if len(got) != 2 {
		t.Fatalf("observer called after removal")
	}
}
