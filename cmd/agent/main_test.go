package main

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/tphummel/sitewatch/internal/config"
)

func TestNewAgent_Reporting(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	base := config.Agent{
		SiteID:          "default",
		LogDir:          t.TempDir(),
		ScanInterval:    5 * time.Minute,
		MetricsInterval: time.Minute,
		APIURL:          "http://localhost:8080",
	}

	tests := []struct {
		name          string
		agentID       string
		token         string
		wantReporting bool
	}{
		{"no credentials", "", "", false},
		{"id only", "agent-1", "", false},
		{"token only", "", "tok", false},
		{"both", "agent-1", "tok", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			cfg.AgentID, cfg.AgentToken = tt.agentID, tt.token
			a := newAgent(&cfg, logger)
			if got := a.Reporter != nil; got != tt.wantReporting {
				t.Errorf("reporting: got %v, want %v", got, tt.wantReporting)
			}
			if a.Log.Dir != cfg.LogDir || a.ScanInterval != cfg.ScanInterval {
				t.Errorf("agent not built from config: %+v", a)
			}
		})
	}
}
