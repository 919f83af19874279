package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kapu/chesslink-companion/internal/archive"
	"github.com/kapu/chesslink-companion/internal/ble"
	"github.com/kapu/chesslink-companion/internal/board"
	"github.com/kapu/chesslink-companion/internal/config"
	"github.com/kapu/chesslink-companion/internal/obslog"
	"github.com/kapu/chesslink-companion/internal/session"
	"github.com/kapu/chesslink-companion/internal/webui"
)

func main() {
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config_error", zap.Error(err))
	}

	sessions := session.NewManager(logger.Named("session"))

	store, err := selectStore(cfg)
	if err != nil {
		logger.Fatal("archive_store_init_failed", zap.Error(err))
	}
	defer func() { _ = store.Close() }()
	sessions.AttachRepository(store)
	restoreArchive(sessions, store, logger)

	adapter, err := ble.NewTinyGoAdapter(logger.Named("ble"))
	if err != nil {
		logger.Fatal("bluetooth_init_failed", zap.Error(err))
	}
	central := ble.NewCentral(adapter, logger.Named("ble"),
		ble.WithScanWindow(cfg.ScanWindow),
		ble.WithConnectTimeout(cfg.ConnectTimeout),
		ble.WithUUIDs(cfg.ServiceUUID, cfg.CharacteristicUUID),
		ble.WithPreferredName(cfg.DeviceName),
	)
	central.OnStateChange(func(st ble.State) {
		sessions.SetConnecting(st == ble.StateConnecting)
	})

	src := webui.NewStateSource(central, sessions, board.NewTracker())
	api := webui.NewServer(src, logger.Named("webui"))
	stream := webui.NewStream(src, logger.Named("stream"))

	go func() {
		if err := api.ListenAndServe(cfg.HTTPAddr); err != nil {
			logger.Fatal("http_server_failed", zap.Error(err))
		}
	}()
	go func() {
		if err := stream.ListenAndServe(cfg.StreamAddr); err != nil {
			logger.Fatal("stream_server_failed", zap.Error(err))
		}
	}()

	logger.Info("companion_up",
		zap.String("device", cfg.DeviceName),
		zap.String("http", cfg.HTTPAddr),
		zap.String("stream", cfg.StreamAddr),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	central.Disconnect()
	_ = api.Shutdown()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = stream.Shutdown(ctx)
	logger.Info("companion_down")
}

// restoreArchive reloads previously saved games so the archive browser
// survives restarts when a durable backend is configured. Failure is logged
// and the process comes up with an empty archive.
func restoreArchive(sessions *session.Manager, store archive.Store, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	games, err := store.Recent(ctx, 0)
	if err != nil {
		logger.Warn("archive_restore_failed", zap.Error(err))
		return
	}
	sessions.RestoreArchive(games)
}

// selectStore picks the durable archive backend: Postgres, then Redis, then
// the in-process fallback.
func selectStore(cfg *config.AppConfig) (archive.Store, error) {
	switch {
	case cfg.DatabaseURL != "":
		return archive.NewPGStore(cfg.DatabaseURL)
	case cfg.RedisURL != "":
		return archive.NewRedisStore(cfg.RedisURL)
	default:
		return archive.NewMemory(), nil
	}
}
