package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/tphummel/sitewatch/internal/db"
	"github.com/tphummel/sitewatch/internal/models"
)

type siteRequest struct {
	Name       string  `json:"name"`
	Address    string  `json:"address"`
	City       *string `json:"city"`
	PostalCode *string `json:"postal_code"`
	Status     string  `json:"status"`
}

// validate applies defaults and returns a message when the request is invalid.
func (req *siteRequest) validate() string {
	if req.Name == "" || req.Address == "" {
		return "name and address are required"
	}
	if req.Status == "" {
		req.Status = models.SitePending
	}
	if !models.ValidSiteStatuses[req.Status] {
		return "invalid status"
	}
	req.City = emptyToNil(req.City)
	req.PostalCode = emptyToNil(req.PostalCode)
	return ""
}

// CreateSite handles POST /api/v1/sites.
func (h *Handler) CreateSite(w http.ResponseWriter, r *http.Request) {
	var req siteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	ts := now()
	site := &models.Site{
		ID:         uuid.New().String(),
		OwnerID:    ownerID(r),
		Name:       req.Name,
		Address:    req.Address,
		City:       req.City,
		PostalCode: req.PostalCode,
		Status:     req.Status,
		CreatedAt:  ts,
		UpdatedAt:  ts,
	}
	if err := h.DB.CreateSite(site); err != nil {
		serverError(w, r, "failed to create site", err)
		return
	}

	writeJSON(w, http.StatusCreated, site)
}

// ListSites handles GET /api/v1/sites with optional ?status= and ?q= filters.
func (h *Handler) ListSites(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := db.SiteFilter{Status: q.Get("status"), Search: q.Get("q")}
	if !validOptional(models.ValidSiteStatuses, f.Status) {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	sites, err := h.DB.ListSites(ownerID(r), f)
	if err != nil {
		serverError(w, r, "failed to list sites", err)
		return
	}

	if sites == nil {
		sites = []*models.Site{}
	}
	writeJSON(w, http.StatusOK, sites)
}

// GetSite handles GET /api/v1/sites/{id}.
func (h *Handler) GetSite(w http.ResponseWriter, r *http.Request) {
	site, err := h.DB.GetSite(ownerID(r), r.PathValue("id"))
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "site not found")
		return
	}
	if err != nil {
		serverError(w, r, "failed to get site", err)
		return
	}
	writeJSON(w, http.StatusOK, site)
}

// UpdateSite handles PUT /api/v1/sites/{id}.
func (h *Handler) UpdateSite(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	existing, err := h.DB.GetSite(owner, r.PathValue("id"))
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "site not found")
		return
	}
	if err != nil {
		serverError(w, r, "failed to get site", err)
		return
	}

	var req siteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	site := &models.Site{
		ID:         existing.ID,
		OwnerID:    owner,
		Name:       req.Name,
		Address:    req.Address,
		City:       req.City,
		PostalCode: req.PostalCode,
		Status:     req.Status,
		CreatedAt:  existing.CreatedAt,
		UpdatedAt:  now(),
	}
	if err := h.DB.UpdateSite(site); err != nil {
		serverError(w, r, "failed to update site", err)
		return
	}

	writeJSON(w, http.StatusOK, site)
}

// DeleteSite handles DELETE /api/v1/sites/{id}. Equipment, alerts and agents
// of the site are removed with it.
func (h *Handler) DeleteSite(w http.ResponseWriter, r *http.Request) {
	err := h.DB.DeleteSite(ownerID(r), r.PathValue("id"))
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "site not found")
		return
	}
	if err != nil {
		serverError(w, r, "failed to delete site", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SiteStats handles GET /api/v1/sites/{id}/stats.
func (h *Handler) SiteStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.DB.SiteStats(ownerID(r), r.PathValue("id"))
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "site not found")
		return
	}
	if err != nil {
		serverError(w, r, "failed to compute site stats", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// SiteEquipment handles GET /api/v1/sites/{id}/equipment.
func (h *Handler) SiteEquipment(w http.ResponseWriter, r *http.Request) {
	owner, id := ownerID(r), r.PathValue("id")
	if _, err := h.DB.GetSite(owner, id); errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "site not found")
		return
	} else if err != nil {
		serverError(w, r, "failed to get site", err)
		return
	}

	items, err := h.DB.ListEquipment(owner, db.EquipmentFilter{SiteID: id})
	if err != nil {
		serverError(w, r, "failed to list equipment", err)
		return
	}
	if items == nil {
		items = []*models.Equipment{}
	}
	writeJSON(w, http.StatusOK, items)
}
