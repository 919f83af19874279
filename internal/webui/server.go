package webui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/kapu/chesslink-companion/internal/ble"
	"github.com/kapu/chesslink-companion/internal/board"
	"github.com/kapu/chesslink-companion/internal/session"
)

// Server is the JSON API in front of the state containers.
type Server struct {
	src      *StateSource
	central  *ble.Central
	sessions *session.Manager
	tracker  *board.Tracker
	logger   *zap.Logger

	srv *fasthttp.Server
}

func NewServer(src *StateSource, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		src:      src,
		central:  src.central,
		sessions: src.sessions,
		tracker:  src.tracker,
		logger:   logger,
	}
	s.srv = &fasthttp.Server{
		Handler: s.Handle,
		Name:    "chesslink-companion",
	}
	return s
}

func (s *Server) ListenAndServe(addr string) error {
	s.logger.Info("http_listen", zap.String("addr", addr))
	return s.srv.ListenAndServe(addr)
}

func (s *Server) Shutdown() error { return s.srv.Shutdown() }

// Handle routes one request. Exported so tests can serve it over an
// in-memory listener.
func (s *Server) Handle(ctx *fasthttp.RequestCtx) {
	path := string(ctx.Path())
	method := string(ctx.Method())

	switch {
	case path == "/api/state" && method == fasthttp.MethodGet:
		s.handleState(ctx)
	case path == "/api/scan" && method == fasthttp.MethodPost:
		s.handleScan(ctx)
	case path == "/api/connect" && method == fasthttp.MethodPost:
		s.handleConnect(ctx)
	case path == "/api/disconnect" && method == fasthttp.MethodPost:
		s.handleDisconnect(ctx)
	case path == "/api/settings" && method == fasthttp.MethodPost:
		s.handleSettings(ctx)
	case path == "/api/game/start" && method == fasthttp.MethodPost:
		s.handleStartGame(ctx)
	case path == "/api/game/save" && method == fasthttp.MethodPost:
		s.handleSaveGame(ctx)
	case path == "/api/archive" && method == fasthttp.MethodGet:
		s.handleArchive(ctx)
	default:
		writeError(ctx, fasthttp.StatusNotFound, "not found")
	}
}

func (s *Server) handleState(ctx *fasthttp.RequestCtx) {
	writeJSON(ctx, fasthttp.StatusOK, s.src.State())
}

// handleScan blocks for the scan window and returns the final list. Interim
// updates go out over the stream.
func (s *Server) handleScan(ctx *fasthttp.RequestCtx) {
	err := s.central.Scan(context.Background())
	switch {
	case err == nil:
		writeJSON(ctx, fasthttp.StatusOK, map[string]any{"peripherals": s.central.Peripherals()})
	case errors.Is(err, ble.ErrScanInProgress),
		errors.Is(err, ble.ErrConnectInProgress),
		errors.Is(err, ble.ErrAlreadyConnected):
		writeError(ctx, fasthttp.StatusConflict, err.Error())
	default:
		writeError(ctx, fasthttp.StatusBadGateway, err.Error())
	}
}

type connectRequest struct {
	ID string `json:"id"`
}

func (s *Server) handleConnect(ctx *fasthttp.RequestCtx) {
	var req connectRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil || req.ID == "" {
		writeError(ctx, fasthttp.StatusBadRequest, "body must be {\"id\": \"<peripheral id>\"}")
		return
	}
	var target *ble.Peripheral
	for _, p := range s.central.Peripherals() {
		if p.ID == req.ID {
			cp := p
			target = &cp
			break
		}
	}
	if target == nil {
		writeError(ctx, fasthttp.StatusNotFound, fmt.Sprintf("peripheral %s not in scan results", req.ID))
		return
	}

	err := s.central.Connect(context.Background(), *target, s.sessions.HandleIncoming)
	if err == nil {
		writeJSON(ctx, fasthttp.StatusOK, map[string]any{"connected": target})
		return
	}
	var cerr *ble.ConnectError
	if errors.As(err, &cerr) {
		writeJSON(ctx, fasthttp.StatusBadGateway, map[string]any{
			"error": cerr.Error(),
			"kind":  cerr.Kind,
		})
		return
	}
	if errors.Is(err, ble.ErrScanInProgress) || errors.Is(err, ble.ErrConnectInProgress) || errors.Is(err, ble.ErrAlreadyConnected) {
		writeError(ctx, fasthttp.StatusConflict, err.Error())
		return
	}
	writeError(ctx, fasthttp.StatusBadGateway, err.Error())
}

func (s *Server) handleDisconnect(ctx *fasthttp.RequestCtx) {
	s.central.Disconnect()
	writeJSON(ctx, fasthttp.StatusOK, map[string]any{"state": s.central.State()})
}

type settingsRequest struct {
	Elo     *int `json:"elo"`
	Minutes *int `json:"minutes"`
}

func (s *Server) handleSettings(ctx *fasthttp.RequestCtx) {
	var req settingsRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, "malformed settings body")
		return
	}
	if req.Elo == nil && req.Minutes == nil {
		writeError(ctx, fasthttp.StatusBadRequest, "provide elo and/or minutes")
		return
	}
	if req.Elo != nil {
		s.sessions.SetElo(*req.Elo)
	}
	if req.Minutes != nil {
		s.sessions.SetMinutes(*req.Minutes)
	}
	writeJSON(ctx, fasthttp.StatusOK, map[string]any{"settings": s.sessions.Settings()})
}

func (s *Server) handleStartGame(ctx *fasthttp.RequestCtx) {
	// Send is a silent no-op when no board is linked; the command semantics
	// (clear log first) apply regardless, matching the board contract.
	if err := s.sessions.StartNewGame(s.central); err != nil {
		writeError(ctx, fasthttp.StatusBadGateway, err.Error())
		return
	}
	s.tracker.Reset()
	writeJSON(ctx, fasthttp.StatusOK, map[string]any{"settings": s.sessions.Settings()})
}

func (s *Server) handleSaveGame(ctx *fasthttp.RequestCtx) {
	g := s.sessions.SaveGame()
	s.tracker.Reset()
	if g == nil {
		writeJSON(ctx, fasthttp.StatusOK, map[string]any{"saved": false})
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, map[string]any{"saved": true, "game": g})
}

func (s *Server) handleArchive(ctx *fasthttp.RequestCtx) {
	writeJSON(ctx, fasthttp.StatusOK, map[string]any{"games": s.sessions.Archive()})
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBody(payload)
}

func writeError(ctx *fasthttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, map[string]string{"error": msg})
}
