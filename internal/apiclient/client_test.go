package apiclient_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphummel/sitewatch/internal/apiclient"
	"github.com/tphummel/sitewatch/internal/auth"
	"github.com/tphummel/sitewatch/internal/db"
	"github.com/tphummel/sitewatch/internal/handlers"
	"github.com/tphummel/sitewatch/internal/models"
	"github.com/tphummel/sitewatch/internal/session"
)

const testToken = "test-api-key"

// newTestServer starts an httptest.Server with a canned handler and a client
// pointed at it.
func newTestServer(t *testing.T, handler http.HandlerFunc) *apiclient.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return apiclient.NewClient(srv.URL, testToken)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestClient_CreateSite_Success(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/sites", r.URL.Path)
		assert.Equal(t, "Bearer "+testToken, r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "HQ", body["name"])
		assert.NotContains(t, body, "city")

		writeJSON(w, http.StatusCreated, models.Site{ID: "site-1", Name: "HQ", Address: "1 Main St", Status: models.SitePending})
	})

	got, err := client.CreateSite(context.Background(), apiclient.SiteInput{Name: "HQ", Address: "1 Main St"})
	require.NoError(t, err)
	assert.Equal(t, "site-1", got.ID)
	assert.Equal(t, models.SitePending, got.Status)
}

func TestClient_ErrorCarriesStatusAndMessage(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name and address are required"})
	})

	_, err := client.CreateSite(context.Background(), apiclient.SiteInput{})
	var apiErr *apiclient.Error
	require.True(t, errors.As(err, &apiErr), "want *apiclient.Error, got %v", err)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "name and address are required", apiErr.Message)
	assert.Contains(t, err.Error(), "400")
}

func TestClient_GetNotFoundReturnsNil(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "site not found"})
	})

	site, err := client.GetSite(context.Background(), "missing")
	assert.NoError(t, err)
	assert.Nil(t, site)

	eq, err := client.GetEquipment(context.Background(), "missing")
	assert.NoError(t, err)
	assert.Nil(t, eq)

	a, err := client.GetAlert(context.Background(), "missing")
	assert.NoError(t, err)
	assert.Nil(t, a)
}

func TestClient_DeleteTreatsNotFoundAsDone(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{"no content", http.StatusNoContent, false},
		{"already gone", http.StatusNotFound, false},
		{"server error", http.StatusInternalServerError, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodDelete, r.Method)
				w.WriteHeader(tt.status)
			})
			err := client.DeleteSite(context.Background(), "site-1")
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestClient_ListQueryParams(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/alerts", r.URL.Path)
		assert.Equal(t, "new", r.URL.Query().Get("status"))
		assert.Equal(t, "site-1", r.URL.Query().Get("site_id"))
		writeJSON(w, http.StatusOK, []models.Alert{{ID: "a1"}, {ID: "a2"}})
	})

	alerts, err := client.ListAlerts(context.Background(), map[string]string{"status": "new", "site_id": "site-1"})
	require.NoError(t, err)
	assert.Len(t, alerts, 2)
}

func TestClient_SubmitReportSendsEmptyDevices(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/agents/agent-1/data", r.URL.Path)
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"metrics":{"uptime":12345},"devices":[]}`, string(raw))
		w.WriteHeader(http.StatusNoContent)
	})

	err := client.SubmitReport(context.Background(), "agent-1", apiclient.Report{Metrics: map[string]int{"uptime": 12345}})
	assert.NoError(t, err)
}

func TestClient_ContextCancelled(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Health(ctx)
	assert.Error(t, err)
}

// newLiveServer runs the real route table over an in-memory database.
func newLiveServer(t *testing.T) string {
	t.Helper()
	d, err := db.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })

	broker := session.NewBroker()
	t.Cleanup(broker.Close)

	h := &handlers.Handler{
		DB:       d,
		Auth:     auth.NewService(d, auth.NewIssuer([]byte("test-signing-key"), time.Hour), broker),
		Sessions: broker,
		Version:  "test",
	}
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestClient_AgainstServer(t *testing.T) {
	ctx := context.Background()
	url := newLiveServer(t)
	user := apiclient.NewClient(url, "")

	sess, err := user.SignUp(ctx, "alice@example.com", "longenough")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", sess.User.Email)

	site, err := user.CreateSite(ctx, apiclient.SiteInput{Name: "HQ", Address: "1 Main St"})
	require.NoError(t, err)

	cam, err := user.CreateEquipment(ctx, apiclient.EquipmentInput{SiteID: site.ID, Name: "Lobby cam", Type: "camera", Status: models.EquipmentOnline})
	require.NoError(t, err)

	alert, err := user.CreateAlert(ctx, apiclient.AlertInput{EquipmentID: cam.ID, Type: "warning", Title: "Dropped frames", Message: "fps below 10"})
	require.NoError(t, err)
	assert.Equal(t, models.AlertNew, alert.Status)

	resolved, err := user.UpdateAlert(ctx, alert.ID, apiclient.AlertInput{EquipmentID: cam.ID, Type: "warning", Title: "Dropped frames", Message: "fps below 10", Status: models.AlertResolved})
	require.NoError(t, err)
	assert.NotNil(t, resolved.ResolvedAt)

	st, err := user.SiteStats(ctx, site.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Equipment[models.EquipmentOnline])
	assert.Equal(t, 1, st.Alerts["warning"][models.AlertResolved])

	reg, err := user.RegisterAgent(ctx, apiclient.AgentInput{SiteID: site.ID, Name: "probe"})
	require.NoError(t, err)

	agent := apiclient.NewClient(url, reg.Token)
	require.NoError(t, agent.SubmitReport(ctx, reg.Agent.ID, apiclient.Report{
		Metrics: map[string]any{"uptime": 12345},
		Devices: []string{"? (192.168.1.1) at aa:bb:cc:dd:ee:ff on en0"},
	}))

	reports, err := user.AgentReports(ctx, reg.Agent.ID, 5)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.JSONEq(t, `{"uptime":12345}`, string(reports[0].Metrics))

	agents, err := user.ListAgents(ctx, site.ID)
	require.NoError(t, err)
	require.Len(t, agents, 1)
	assert.Equal(t, models.AgentOnline, agents[0].Status)

	require.NoError(t, user.SignOut(ctx))
	_, err = user.ListSites(ctx, "", "")
	var apiErr *apiclient.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
}
