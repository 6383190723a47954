package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/tphummel/sitewatch/internal/apiclient"
	"github.com/tphummel/sitewatch/internal/config"
	"github.com/tphummel/sitewatch/internal/sampler"
)

// version is injected at build time via -ldflags.
var version = "dev"

// newAgent builds the sampler from cfg. Reporting is wired only when the
// agent id and token are both configured.
func newAgent(cfg *config.Agent, logger *slog.Logger) *sampler.Agent {
	a := &sampler.Agent{
		SiteID:          cfg.SiteID,
		Host:            sampler.SystemHost{},
		Neighbors:       sampler.ARP{},
		Log:             &sampler.DailyLog{Dir: cfg.LogDir},
		ScanInterval:    cfg.ScanInterval,
		MetricsInterval: cfg.MetricsInterval,
		Logger:          logger,
	}
	if cfg.ReportingEnabled() {
		a.Reporter = apiclient.NewClient(cfg.APIURL, cfg.AgentToken)
		a.AgentID = cfg.AgentID
	}
	return a
}

func main() {
	cfg, err := config.LoadAgent()
	if err != nil {
		log.Fatal(err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil)).With("version", version)
	slog.SetDefault(logger)

	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		logger.Error("failed to create log directory", "dir", cfg.LogDir, "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newAgent(cfg, logger).Run(ctx); err != nil {
		log.Fatal(err)
	}
}
