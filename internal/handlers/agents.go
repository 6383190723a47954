package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/tphummel/sitewatch/internal/middleware"
	"github.com/tphummel/sitewatch/internal/models"
)

const (
	defaultReportLimit = 20
	maxReportLimit     = 100
)

type agentRequest struct {
	SiteID  string `json:"site_id"`
	Name    string `json:"name"`
	Version string `json:"version"`
	OS      string `json:"os"`
}

// agentRegistration is returned once, when the agent is created. The token
// cannot be retrieved again.
type agentRegistration struct {
	Agent *models.Agent `json:"agent"`
	Token string        `json:"token"`
}

type reportRequest struct {
	Timestamp *time.Time      `json:"timestamp"`
	Metrics   json.RawMessage `json:"metrics"`
	Devices   json.RawMessage `json:"devices"`
}

type reportResponse struct {
	AgentID    string          `json:"agent_id"`
	ReportedAt time.Time       `json:"timestamp"`
	Metrics    json.RawMessage `json:"metrics"`
	Devices    json.RawMessage `json:"devices"`
}

// RegisterAgent handles POST /api/v1/agents. It responds with the agent and
// the bearer token the agent uses to submit data.
func (h *Handler) RegisterAgent(w http.ResponseWriter, r *http.Request) {
	var req agentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.SiteID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "site_id and name are required")
		return
	}
	if !h.ownsSite(w, r, ownerID(r), req.SiteID) {
		return
	}

	id := uuid.New().String()
	token, tokenID, err := h.Auth.IssueAgentToken(id)
	if err != nil {
		serverError(w, r, "failed to issue agent token", err)
		return
	}

	ts := now()
	a := &models.Agent{
		ID:        id,
		SiteID:    req.SiteID,
		Name:      req.Name,
		Version:   req.Version,
		OS:        req.OS,
		Status:    models.AgentOffline,
		TokenID:   tokenID,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	if err := h.DB.CreateAgent(a); err != nil {
		serverError(w, r, "failed to register agent", err)
		return
	}

	writeJSON(w, http.StatusCreated, agentRegistration{Agent: a, Token: token})
}

// ListAgents handles GET /api/v1/agents with an optional ?site_id= filter.
// Agents that have not reported recently are listed as offline.
func (h *Handler) ListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := h.DB.ListAgents(ownerID(r), r.URL.Query().Get("site_id"))
	if err != nil {
		serverError(w, r, "failed to list agents", err)
		return
	}

	at := time.Now()
	for _, a := range agents {
		a.Status = a.EffectiveStatus(at)
	}
	if agents == nil {
		agents = []*models.Agent{}
	}
	writeJSON(w, http.StatusOK, agents)
}

// AgentReports handles GET /api/v1/agents/{id}/reports?limit=.
func (h *Handler) AgentReports(w http.ResponseWriter, r *http.Request) {
	limit := defaultReportLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > maxReportLimit {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = n
	}

	id := r.PathValue("id")
	if _, err := h.DB.GetOwnedAgent(ownerID(r), id); errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "agent not found")
		return
	} else if err != nil {
		serverError(w, r, "failed to get agent", err)
		return
	}

	reports, err := h.DB.ListReports(id, limit)
	if err != nil {
		serverError(w, r, "failed to list reports", err)
		return
	}
	out := make([]reportResponse, 0, len(reports))
	for _, rep := range reports {
		out = append(out, reportResponse{
			AgentID:    rep.AgentID,
			ReportedAt: rep.ReportedAt,
			Metrics:    rep.Metrics,
			Devices:    rep.Devices,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// SubmitAgentData handles POST /api/v1/agents/{id}/data. The caller must hold
// the agent token issued for {id}.
func (h *Handler) SubmitAgentData(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if c := middleware.ClaimsFrom(r.Context()); c == nil || c.Subject != id {
		writeError(w, http.StatusForbidden, "token does not belong to this agent")
		return
	}

	var req reportRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Metrics) == 0 || string(req.Metrics) == "null" {
		writeError(w, http.StatusBadRequest, "metrics is required")
		return
	}
	if len(req.Devices) == 0 || string(req.Devices) == "null" {
		req.Devices = json.RawMessage("[]")
	}

	ts := now()
	reportedAt := ts
	if req.Timestamp != nil {
		reportedAt = req.Timestamp.UTC()
	}

	err := h.DB.RecordReport(&models.AgentReport{
		AgentID:    id,
		ReportedAt: reportedAt,
		Metrics:    req.Metrics,
		Devices:    req.Devices,
	}, ts)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "agent not found")
		return
	}
	if err != nil {
		serverError(w, r, "failed to record report", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
