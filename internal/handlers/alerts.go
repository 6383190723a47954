package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/tphummel/sitewatch/internal/db"
	"github.com/tphummel/sitewatch/internal/models"
)

type alertRequest struct {
	EquipmentID string  `json:"equipment_id"`
	Type        string  `json:"type"`
	Title       string  `json:"title"`
	Message     string  `json:"message"`
	Description *string `json:"description"`
	Status      string  `json:"status"`
}

func (req *alertRequest) validate() string {
	if req.EquipmentID == "" || req.Type == "" || req.Title == "" || req.Message == "" {
		return "equipment_id, type, title, and message are required"
	}
	if !models.ValidAlertTypes[req.Type] {
		return "invalid type"
	}
	if req.Status == "" {
		req.Status = models.AlertNew
	}
	if !models.ValidAlertStatuses[req.Status] {
		return "invalid status"
	}
	req.Description = emptyToNil(req.Description)
	return ""
}

// resolvedAt returns the resolution time for an alert moving from prev to
// status: kept while it stays resolved, set on entering resolved, cleared on
// leaving it.
func resolvedAt(prev *models.Alert, status string, at time.Time) *time.Time {
	if status != models.AlertResolved {
		return nil
	}
	if prev != nil && prev.Status == models.AlertResolved && prev.ResolvedAt != nil {
		return prev.ResolvedAt
	}
	return &at
}

// ownsEquipment reports whether equipmentID belongs to owner. It writes a 400
// when it does not and a 500 on store errors.
func (h *Handler) ownsEquipment(w http.ResponseWriter, r *http.Request, owner, equipmentID string) bool {
	_, err := h.DB.GetEquipment(owner, equipmentID)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusBadRequest, "unknown equipment_id")
		return false
	}
	if err != nil {
		serverError(w, r, "failed to get equipment", err)
		return false
	}
	return true
}

// CreateAlert handles POST /api/v1/alerts.
func (h *Handler) CreateAlert(w http.ResponseWriter, r *http.Request) {
	var req alertRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if !h.ownsEquipment(w, r, ownerID(r), req.EquipmentID) {
		return
	}

	ts := now()
	a := &models.Alert{
		ID:          uuid.New().String(),
		EquipmentID: req.EquipmentID,
		Type:        req.Type,
		Title:       req.Title,
		Message:     req.Message,
		Description: req.Description,
		Status:      req.Status,
		CreatedAt:   ts,
		UpdatedAt:   ts,
		ResolvedAt:  resolvedAt(nil, req.Status, ts),
	}
	if err := h.DB.CreateAlert(a); err != nil {
		serverError(w, r, "failed to create alert", err)
		return
	}

	writeJSON(w, http.StatusCreated, a)
}

// ListAlerts handles GET /api/v1/alerts with optional ?status=, ?type=,
// ?equipment_id= and ?site_id= filters. Newest first.
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := db.AlertFilter{
		EquipmentID: q.Get("equipment_id"),
		SiteID:      q.Get("site_id"),
		Status:      q.Get("status"),
		Type:        q.Get("type"),
	}
	if !validOptional(models.ValidAlertStatuses, f.Status) {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}
	if !validOptional(models.ValidAlertTypes, f.Type) {
		writeError(w, http.StatusBadRequest, "invalid type")
		return
	}

	alerts, err := h.DB.ListAlerts(ownerID(r), f)
	if err != nil {
		serverError(w, r, "failed to list alerts", err)
		return
	}
	if alerts == nil {
		alerts = []*models.Alert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

// GetAlert handles GET /api/v1/alerts/{id}.
func (h *Handler) GetAlert(w http.ResponseWriter, r *http.Request) {
	a, err := h.DB.GetAlert(ownerID(r), r.PathValue("id"))
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "alert not found")
		return
	}
	if err != nil {
		serverError(w, r, "failed to get alert", err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// UpdateAlert handles PUT /api/v1/alerts/{id}.
func (h *Handler) UpdateAlert(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	existing, err := h.DB.GetAlert(owner, r.PathValue("id"))
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "alert not found")
		return
	}
	if err != nil {
		serverError(w, r, "failed to get alert", err)
		return
	}

	var req alertRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if req.EquipmentID != existing.EquipmentID && !h.ownsEquipment(w, r, owner, req.EquipmentID) {
		return
	}

	ts := now()
	a := &models.Alert{
		ID:          existing.ID,
		EquipmentID: req.EquipmentID,
		Type:        req.Type,
		Title:       req.Title,
		Message:     req.Message,
		Description: req.Description,
		Status:      req.Status,
		CreatedAt:   existing.CreatedAt,
		UpdatedAt:   ts,
		ResolvedAt:  resolvedAt(existing, req.Status, ts),
	}
	if err := h.DB.UpdateAlert(owner, a); err != nil {
		serverError(w, r, "failed to update alert", err)
		return
	}

	writeJSON(w, http.StatusOK, a)
}

// DeleteAlert handles DELETE /api/v1/alerts/{id}.
func (h *Handler) DeleteAlert(w http.ResponseWriter, r *http.Request) {
	err := h.DB.DeleteAlert(ownerID(r), r.PathValue("id"))
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "alert not found")
		return
	}
	if err != nil {
		serverError(w, r, "failed to delete alert", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
