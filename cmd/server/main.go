package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tphummel/sitewatch/internal/auth"
	"github.com/tphummel/sitewatch/internal/config"
	"github.com/tphummel/sitewatch/internal/db"
	"github.com/tphummel/sitewatch/internal/handlers"
	"github.com/tphummel/sitewatch/internal/metrics"
	"github.com/tphummel/sitewatch/internal/middleware"
	"github.com/tphummel/sitewatch/internal/session"
)

// version and commit are injected at build time via -ldflags.
var (
	version = "dev"
	commit  = "none"
)

// sessionCleanupInterval is how often expired session rows are purged.
const sessionCleanupInterval = 10 * time.Minute

// newHandler wraps the route table with CORS and request logging.
func newHandler(cfg *config.Server, h *handlers.Handler, logger *slog.Logger) http.Handler {
	skip := func(r *http.Request) bool {
		return r.URL.Path == "/healthz" || r.URL.Path == "/metrics"
	}
	return middleware.RequestLogger(logger, skip, middleware.CORS(cfg.AllowedOrigins, h.Routes()))
}

// watchSessions logs and counts every session event until events is closed.
func watchSessions(events <-chan session.Event, logger *slog.Logger) {
	for ev := range events {
		metrics.ObserveSession(string(ev.Kind))
		logger.Info("session event", "event", string(ev.Kind), "user_id", ev.UserID)
	}
}

// cleanSessions purges expired sessions every interval until ctx is done.
func cleanSessions(ctx context.Context, database *db.DB, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := database.DeleteExpiredSessions(now.UTC())
			if err != nil {
				slog.Error("failed to delete expired sessions", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("deleted expired sessions", "count", n)
			}
		}
	}
}

func main() {
	cfg, err := config.LoadServer()
	if err != nil {
		log.Fatal(err)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	database, err := db.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}

	metrics.Register(database)

	broker := session.NewBroker()
	events, unsubscribe := broker.Subscribe("")
	defer unsubscribe()
	go watchSessions(events, slog.Default())

	svc := auth.NewService(database, auth.NewIssuer([]byte(cfg.JWTSecret), cfg.TokenTTL), broker)
	h := &handlers.Handler{
		DB:           database,
		Auth:         svc,
		Sessions:     broker,
		Version:      version,
		Commit:       commit,
		CookieSecure: cfg.CookieSecure,
	}

	bg, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()
	go cleanSessions(bg, database, sessionCleanupInterval)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           newHandler(cfg, h, slog.Default()),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("listening", "port", cfg.Port, "version", version)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	stopBackground()
	// Ends open event streams so Shutdown does not wait on them.
	broker.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("graceful shutdown failed: %v", err)
	}
	if err := database.Close(); err != nil {
		slog.Error("database close error", "error", err)
	}
	slog.Info("server stopped")
}
