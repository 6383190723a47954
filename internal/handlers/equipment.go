package handlers

import (
	"database/sql"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/tphummel/sitewatch/internal/db"
	"github.com/tphummel/sitewatch/internal/models"
)

type equipmentRequest struct {
	SiteID          string     `json:"site_id"`
	Name            string     `json:"name"`
	Type            string     `json:"type"`
	Status          string     `json:"status"`
	IPAddress       *string    `json:"ip_address"`
	LastMaintenance *time.Time `json:"last_maintenance"`
}

func (req *equipmentRequest) validate() string {
	if req.SiteID == "" || req.Name == "" || req.Type == "" {
		return "site_id, name, and type are required"
	}
	if !models.ValidEquipmentTypes[req.Type] {
		return "invalid type"
	}
	if req.Status == "" {
		req.Status = models.EquipmentOffline
	}
	if !models.ValidEquipmentStatuses[req.Status] {
		return "invalid status"
	}
	req.IPAddress = emptyToNil(req.IPAddress)
	if req.IPAddress != nil && net.ParseIP(*req.IPAddress) == nil {
		return "invalid ip_address"
	}
	if req.LastMaintenance != nil {
		t := req.LastMaintenance.UTC().Truncate(time.Second)
		req.LastMaintenance = &t
	}
	return ""
}

// ownsSite reports whether siteID belongs to owner. It writes a 400 when it
// does not and a 500 on store errors.
func (h *Handler) ownsSite(w http.ResponseWriter, r *http.Request, owner, siteID string) bool {
	_, err := h.DB.GetSite(owner, siteID)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusBadRequest, "unknown site_id")
		return false
	}
	if err != nil {
		serverError(w, r, "failed to get site", err)
		return false
	}
	return true
}

// CreateEquipment handles POST /api/v1/equipment.
func (h *Handler) CreateEquipment(w http.ResponseWriter, r *http.Request) {
	var req equipmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if !h.ownsSite(w, r, ownerID(r), req.SiteID) {
		return
	}

	ts := now()
	e := &models.Equipment{
		ID:              uuid.New().String(),
		SiteID:          req.SiteID,
		Name:            req.Name,
		Type:            req.Type,
		Status:          req.Status,
		IPAddress:       req.IPAddress,
		LastMaintenance: req.LastMaintenance,
		CreatedAt:       ts,
		UpdatedAt:       ts,
	}
	if err := h.DB.CreateEquipment(e); err != nil {
		serverError(w, r, "failed to create equipment", err)
		return
	}

	writeJSON(w, http.StatusCreated, e)
}

// ListEquipment handles GET /api/v1/equipment with optional ?site_id=,
// ?status= and ?type= filters.
func (h *Handler) ListEquipment(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := db.EquipmentFilter{SiteID: q.Get("site_id"), Status: q.Get("status"), Type: q.Get("type")}
	if !validOptional(models.ValidEquipmentStatuses, f.Status) {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}
	if !validOptional(models.ValidEquipmentTypes, f.Type) {
		writeError(w, http.StatusBadRequest, "invalid type")
		return
	}

	items, err := h.DB.ListEquipment(ownerID(r), f)
	if err != nil {
		serverError(w, r, "failed to list equipment", err)
		return
	}
	if items == nil {
		items = []*models.Equipment{}
	}
	writeJSON(w, http.StatusOK, items)
}

// GetEquipment handles GET /api/v1/equipment/{id}.
func (h *Handler) GetEquipment(w http.ResponseWriter, r *http.Request) {
	e, err := h.DB.GetEquipment(ownerID(r), r.PathValue("id"))
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "equipment not found")
		return
	}
	if err != nil {
		serverError(w, r, "failed to get equipment", err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// UpdateEquipment handles PUT /api/v1/equipment/{id}. The equipment may be
// moved to another site of the same owner.
func (h *Handler) UpdateEquipment(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	existing, err := h.DB.GetEquipment(owner, r.PathValue("id"))
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "equipment not found")
		return
	}
	if err != nil {
		serverError(w, r, "failed to get equipment", err)
		return
	}

	var req equipmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if req.SiteID != existing.SiteID && !h.ownsSite(w, r, owner, req.SiteID) {
		return
	}

	e := &models.Equipment{
		ID:              existing.ID,
		SiteID:          req.SiteID,
		Name:            req.Name,
		Type:            req.Type,
		Status:          req.Status,
		IPAddress:       req.IPAddress,
		LastMaintenance: req.LastMaintenance,
		CreatedAt:       existing.CreatedAt,
		UpdatedAt:       now(),
	}
	if err := h.DB.UpdateEquipment(owner, e); err != nil {
		serverError(w, r, "failed to update equipment", err)
		return
	}

	writeJSON(w, http.StatusOK, e)
}

// DeleteEquipment handles DELETE /api/v1/equipment/{id}.
func (h *Handler) DeleteEquipment(w http.ResponseWriter, r *http.Request) {
	err := h.DB.DeleteEquipment(ownerID(r), r.PathValue("id"))
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "equipment not found")
		return
	}
	if err != nil {
		serverError(w, r, "failed to delete equipment", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// EquipmentAlerts handles GET /api/v1/equipment/{id}/alerts.
func (h *Handler) EquipmentAlerts(w http.ResponseWriter, r *http.Request) {
	owner, id := ownerID(r), r.PathValue("id")
	if _, err := h.DB.GetEquipment(owner, id); errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "equipment not found")
		return
	} else if err != nil {
		serverError(w, r, "failed to get equipment", err)
		return
	}

	alerts, err := h.DB.ListAlerts(owner, db.AlertFilter{EquipmentID: id})
	if err != nil {
		serverError(w, r, "failed to list alerts", err)
		return
	}
	if alerts == nil {
		alerts = []*models.Alert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}
