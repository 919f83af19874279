package protocol

import "testing"

func TestBuildStartGame(t *testing.T) {
	got := BuildStartGame(1200, 15)
	want := "START_GAME:ELO:1200:TIME:15"
	if got != want {
		t.Fatalf("BuildStartGame: got %q want %q", got, want)
	}
}

func TestParseStartGameRoundTrip(t *testing.T) {
	elo, minutes, err := ParseStartGame(BuildStartGame(800, 10))
	if err != nil {
		t.Fatalf("ParseStartGame: %v", err)
	}
	if elo != 800 || minutes != 10 {
		t.Fatalf("round trip mismatch: elo=%d minutes=%d", elo, minutes)
	}
}

func TestParseStartGameRejectsGarbage(t *testing.T) {
	cases := []string{
		"",
		"PING",
		"START_GAME:ELO:",
		"START_GAME:ELO:abc:TIME:10",
		"START_GAME:ELO:800:TIME:xyz",
		"START_GAME:ELO:800:CLOCK:10",
		"START_GAME:ELO:800:TIME:10:EXTRA",
	}
	for _, c := range cases {
		if _, _, err := ParseStartGame(c); err == nil {
			t.Errorf("ParseStartGame(%q): expected error", c)
		}
	}
}

func TestIsPong(t *testing.T) {
	if !IsPong("PONG") {
		t.Fatalf("PONG not recognized")
	}
	for _, c := range []string{"pong", "PONG ", "e4", ""} {
		if IsPong(c) {
			t.Errorf("IsPong(%q) = true", c)
		}
	}
}
