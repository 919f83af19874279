package webui

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/kapu/chesslink-companion/internal/ble"
	"github.com/kapu/chesslink-companion/internal/session"
)

// Stream pushes a combined snapshot to every connected view whenever either
// state container changes. It runs on its own net/http listener because the
// websocket handshake needs connection hijacking, which the fasthttp API
// server cannot provide.
type Stream struct {
	src    *StateSource
	logger *zap.Logger

	mu   sync.Mutex
	subs map[chan StateResponse]struct{}

	srv *http.Server
}

func NewStream(src *StateSource, logger *zap.Logger) *Stream {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Stream{
		src:    src,
		logger: logger,
		subs:   make(map[chan StateResponse]struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	s.srv = &http.Server{Handler: mux}

	// Any change in either container triggers a push.
	src.sessions.OnChange(func(session.Snapshot) { s.broadcast() })
	src.central.OnStateChange(func(ble.State) { s.broadcast() })
	src.central.OnPeripherals(func([]ble.Peripheral) { s.broadcast() })
	return s
}

func (s *Stream) ListenAndServe(addr string) error {
	s.srv.Addr = addr
	s.logger.Info("stream_listen", zap.String("addr", addr))
	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Stream) Shutdown(ctx context.Context) error { return s.srv.Shutdown(ctx) }

func (s *Stream) broadcast() {
	state := s.src.State()
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- state:
		default:
			// Slow subscriber; it will catch up on the next push.
		}
	}
}

func (s *Stream) subscribe() chan StateResponse {
	ch := make(chan StateResponse, 8)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()
	return ch
}

func (s *Stream) unsubscribe(ch chan StateResponse) {
	s.mu.Lock()
	delete(s.subs, ch)
	s.mu.Unlock()
}

func (s *Stream) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Views are served from arbitrary local origins.
		InsecureSkipVerify: true,
	})
	if err != nil {
		s.logger.Warn("ws_accept_failed", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	ch := s.subscribe()
	defer s.unsubscribe(ch)

	ctx := r.Context()

	// Initial snapshot so a fresh view renders immediately.
	if err := s.write(ctx, conn, s.src.State()); err != nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case state := <-ch:
			if err := s.write(ctx, conn, state); err != nil {
				return
			}
		}
	}
}

func (s *Stream) write(ctx context.Context, conn *websocket.Conn, state StateResponse) error {
	wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return wsjson.Write(wctx, conn, state)
}
