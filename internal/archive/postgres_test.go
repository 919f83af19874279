package archive

import (
	"strings"
	"testing"
)

func TestBuildPGN(t *testing.T) {
	pgn := BuildPGN(archivedGame("g1", "e4", "e5", "Nf3"))
	for _, want := range []string{
		`[Event "ChessLink Casual Game"]`,
		`[Site "Chess_RPi"]`,
		`[Date "2026.08.20"]`,
		`[Black "Board Engine (ELO 1200)"]`,
		`[TimeControl "900"]`,
		"1. e4 e5 2. Nf3 *",
	} {
		if !strings.Contains(pgn, want) {
			t.Errorf("PGN missing %q:\n%s", want, pgn)
		}
	}
}

func TestBuildPGNSanitizesQuotes(t *testing.T) {
	pgn := BuildPGN(archivedGame("g1", `e4 "check"`))
	if strings.Contains(pgn, `e4 "check"`) {
		t.Fatalf("quotes not sanitized:\n%s", pgn)
	}
	if !strings.Contains(pgn, "e4 'check'") {
		t.Fatalf("sanitized move missing:\n%s", pgn)
	}
}
