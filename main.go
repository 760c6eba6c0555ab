// Command stackchat runs the polling chat synchronizer. It:
//   - Loads configuration and initializes structured logging.
//   - Optionally connects to Postgres and migrates the message archive.
//   - Joins the configured rooms and starts the polling loop.
//   - Exposes a minimal HTTP server with /healthz, /readyz, /status, /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM: the current poll cycle finishes,
// then joined rooms are left quietly.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/onnwee/stackchat/archive"
	"github.com/onnwee/stackchat/chat"
	"github.com/onnwee/stackchat/chatapi"
	"github.com/onnwee/stackchat/config"
	"github.com/onnwee/stackchat/server"
	"github.com/onnwee/stackchat/telemetry"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load(".env")

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	telemetry.Init()
	shutdownTracing, err := telemetry.InitTracing("stackchat", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdownTracing()

	// Optional archive: only when DB_DSN is configured.
	var db *sql.DB
	if cfg.DBDsn != "" {
		db, err = archive.Connect(cfg.DBDsn)
		if err != nil {
			slog.Error("failed to open archive db", slog.Any("err", err))
			os.Exit(1)
		}
		defer func() {
			if err := db.Close(); err != nil {
				slog.Error("failed to close archive db", slog.Any("err", err))
			}
		}()
		if err := archive.Migrate(context.Background(), db); err != nil {
			slog.Error("failed to migrate archive db", slog.Any("err", err))
			os.Exit(1)
		}
		slog.Info("message archive enabled")
	}

	transport := chatapi.NewClient(cfg.ChatBaseURL)
	transport.Retry = chatapi.RetryPolicy{
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   cfg.RetryBaseDelay,
		MaxDelay:    cfg.RetryMaxDelay,
	}
	engine := chat.New(transport, chat.Options{
		Heartbeat:  cfg.Heartbeat,
		EditWindow: cfg.EditWindow,
	})

	handlers := []chat.Handler{&logHandler{}}
	if db != nil {
		handlers = append(handlers, archive.NewRecorder(db))
	}
	engine.Listen(fanout(handlers))

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for _, roomID := range cfg.Rooms {
		joinCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err := engine.JoinRoom(joinCtx, roomID)
		cancel()
		switch {
		case err == nil:
			slog.Info("joined room", slog.Int("room_id", roomID))
		case errors.Is(err, chatapi.ErrRoomNotFound), errors.Is(err, chatapi.ErrPermissionDenied):
			slog.Error("cannot join room", slog.Int("room_id", roomID), slog.Any("err", err))
			os.Exit(1)
		default:
			slog.Warn("join room failed, continuing without it", slog.Int("room_id", roomID), slog.Any("err", err))
		}
	}

	go engine.Run(ctx)

	go func() {
		if err := server.Start(ctx, engine, db, cfg.HTTPAddr); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	// Leave rooms quietly so the service doesn't keep the session listed.
	leaveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, roomID := range engine.Rooms() {
		if err := engine.LeaveRoom(leaveCtx, roomID); err != nil {
			slog.Warn("leave room failed", slog.Int("room_id", roomID), slog.Any("err", err))
		}
	}
}

// logHandler is the default consumer: it just logs what the engine sees.
type logHandler struct{}

func (logHandler) OnMessage(m chat.Message) {
	slog.Info("message", slog.Int("room_id", m.RoomID), slog.Int64("id", m.ID), slog.String("user", m.UserName))
}

func (logHandler) OnMessageEdited(m chat.Message) {
	slog.Info("message edited", slog.Int("room_id", m.RoomID), slog.Int64("id", m.ID), slog.String("user", m.UserName))
}

func (logHandler) OnError(roomID int, err error) {
	slog.Warn("room error", slog.Int("room_id", roomID), slog.Any("err", err))
}

// fanout delivers each engine event to every registered handler in order.
func fanout(handlers []chat.Handler) chat.Handler {
	if len(handlers) == 1 {
		return handlers[0]
	}
	return &fanoutHandler{handlers: handlers}
}

type fanoutHandler struct {
	handlers []chat.Handler
}

func (f *fanoutHandler) OnMessage(m chat.Message) {
	for _, h := range f.handlers {
		h.OnMessage(m)
	}
}

func (f *fanoutHandler) OnMessageEdited(m chat.Message) {
	for _, h := range f.handlers {
		h.OnMessageEdited(m)
	}
}

func (f *fanoutHandler) OnError(roomID int, err error) {
	for _, h := range f.handlers {
		h.OnError(roomID, err)
	}
}

var _ chat.Handler = (*logHandler)(nil)
