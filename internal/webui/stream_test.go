package webui

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/kapu/chesslink-companion/internal/ble"
	"github.com/kapu/chesslink-companion/internal/board"
	"github.com/kapu/chesslink-companion/internal/session"
)

func newTestStream(t *testing.T) (*Stream, *session.Manager, string) {
	t.Helper()
	adapter := &stubAdapter{link: &stubLink{}}
	central := ble.NewCentral(adapter, nil, ble.WithScanWindow(10*time.Millisecond))
	sessions := session.NewManager(nil)
	stream := NewStream(NewStateSource(central, sessions, board.NewTracker()), nil)

	ts := httptest.NewServer(stream.srv.Handler)
	t.Cleanup(ts.Close)
	return stream, sessions, "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func dialStream(t *testing.T, ctx context.Context, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func TestStreamSendsInitialSnapshot(t *testing.T) {
	_, _, url := newTestStream(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn := dialStream(t, ctx, url)

	var got StateResponse
	if err := wsjson.Read(ctx, conn, &got); err != nil {
		t.Fatalf("initial snapshot: %v", err)
	}
	if got.Session.Settings.Elo != 800 || got.Session.Settings.Minutes != 10 {
		t.Fatalf("initial settings = %+v", got.Session.Settings)
	}
	if got.Connection.State != ble.StateIdle {
		t.Fatalf("initial state = %s", got.Connection.State)
	}
}

func TestStreamPushesSnapshotOnSessionChange(t *testing.T) {
	_, sessions, url := newTestStream(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn := dialStream(t, ctx, url)

	var got StateResponse
	if err := wsjson.Read(ctx, conn, &got); err != nil {
		t.Fatalf("initial snapshot: %v", err)
	}

	sessions.SetElo(1500)
	sessions.HandleIncoming("e4")
	for got.Session.Settings.Elo != 1500 || len(got.Session.Moves) != 1 {
		if err := wsjson.Read(ctx, conn, &got); err != nil {
			t.Fatalf("pushed snapshot: %v", err)
		}
	}
	if got.Session.Moves[0] != "e4" {
		t.Fatalf("moves = %v", got.Session.Moves)
	}
	if got.Board.Ply != 1 || !got.Board.Synced {
		t.Fatalf("board view = %+v", got.Board)
	}
}

func TestBroadcastNeverBlocksOnSlowSubscriber(t *testing.T) {
	stream, sessions, _ := newTestStream(t)
	ch := stream.subscribe()
	defer stream.unsubscribe(ch)

	// Nobody drains ch; every mutation broadcasts. Completion of the loop
	// proves the fan-out drops instead of blocking.
	for i := 0; i < cap(ch)+4; i++ {
		sessions.HandleIncoming("e4")
	}
	if len(ch) != cap(ch) {
		t.Fatalf("buffered = %d, want full buffer %d", len(ch), cap(ch))
	}
}

func TestStreamUnsubscribesClosedConn(t *testing.T) {
	stream, sessions, url := newTestStream(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn := dialStream(t, ctx, url)

	var got StateResponse
	if err := wsjson.Read(ctx, conn, &got); err != nil {
		t.Fatalf("initial snapshot: %v", err)
	}
	_ = conn.Close(websocket.StatusNormalClosure, "")

	// The handler notices the dead conn on its next push attempt.
	deadline := time.Now().Add(3 * time.Second)
	for {
		sessions.SetElo(1000)
		stream.mu.Lock()
		n := len(stream.subs)
		stream.mu.Unlock()
		if n == 0 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("closed conn still subscribed: %d", n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
