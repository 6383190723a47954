package models_test

import (
	"testing"
	"time"

	"github.com/tphummel/sitewatch/internal/models"
)

func TestValidSets_ContainExpectedValues(t *testing.T) {
	tests := []struct {
		name     string
		set      map[string]bool
		expected []string
	}{
		{"site statuses", models.ValidSiteStatuses, []string{"online", "offline", "warning", "pending"}},
		{"equipment types", models.ValidEquipmentTypes, []string{"camera", "video_recorder", "router", "switch", "server", "access_point", "other"}},
		{"equipment statuses", models.ValidEquipmentStatuses, []string{"online", "offline", "warning", "maintenance"}},
		{"alert types", models.ValidAlertTypes, []string{"error", "warning", "info"}},
		{"alert statuses", models.ValidAlertStatuses, []string{"new", "acknowledged", "resolved"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if len(tt.set) != len(tt.expected) {
				t.Errorf("got %d entries, want %d", len(tt.set), len(tt.expected))
			}
			for _, v := range tt.expected {
				if !tt.set[v] {
					t.Errorf("missing expected value %q", v)
				}
			}
		})
	}
}

func TestValidSets_RejectOtherRevisions(t *testing.T) {
	// Values used by older shapes of the schema must not be accepted.
	if models.ValidAlertStatuses["active"] {
		t.Error("ValidAlertStatuses should not contain 'active'")
	}
	if models.ValidEquipmentTypes["access-point"] {
		t.Error("ValidEquipmentTypes should not contain 'access-point'")
	}
	if models.ValidEquipmentTypes["Camera"] {
		t.Error("ValidEquipmentTypes should be case-sensitive")
	}
}

func TestAgent_EffectiveStatus(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	recent := now.Add(-time.Minute)
	stale := now.Add(-models.AgentStaleAfter - time.Second)

	tests := []struct {
		name      string
		heartbeat *time.Time
		want      string
	}{
		{"never reported", nil, models.AgentOffline},
		{"recent heartbeat", &recent, models.AgentOnline},
		{"stale heartbeat", &stale, models.AgentOffline},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &models.Agent{Status: models.AgentOnline, LastHeartbeat: tt.heartbeat}
			if got := a.EffectiveStatus(now); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
