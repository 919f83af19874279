package archive

import (
	"context"
	"testing"
)

func TestMemoryStoreCopySemantics(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	g := archivedGame("g1", "e4", "e5")
	if err := s.Save(ctx, g); err != nil {
		t.Fatalf("Save: %v", err)
	}
	g.Moves[0] = "mutated"

	got, err := s.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 1 || got[0].Moves[0] != "e4" {
		t.Fatalf("stored copy mutated: %v", got)
	}

	got[0].Moves[0] = "mutated again"
	got2, _ := s.Recent(ctx, 0)
	if got2[0].Moves[0] != "e4" {
		t.Fatalf("read copy aliased store: %v", got2)
	}
}

func TestMemoryStoreOrderAndLimit(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	for _, id := range []string{"g1", "g2", "g3"} {
		if err := s.Save(ctx, archivedGame(id, "e4")); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	got, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 || got[0].ID != "g3" || got[1].ID != "g2" {
		t.Fatalf("unexpected order: %v", got)
	}
}
