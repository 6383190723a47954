// Package apiclient is a typed HTTP client for the sitewatch REST API. The
// monitoring agent uses it to submit reports; it also covers the user routes
// so scripts and tests can drive a running server.
package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tphummel/sitewatch/internal/models"
	"github.com/tphummel/sitewatch/internal/stats"
)

// Error is returned when the server answers with a non-2xx status.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status %d", e.Status)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Status, e.Message)
}

// Client talks to one sitewatch server with one bearer token.
type Client struct {
	http *resty.Client
}

// NewClient returns a Client for the server at baseURL. token may be empty
// for the unauthenticated auth routes.
func NewClient(baseURL, token string) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30*time.Second).
		SetRetryCount(0).
		SetHeader("Accept", "application/json")
	if token != "" {
		c.SetAuthToken(token)
	}
	return &Client{http: c}
}

// SetToken replaces the bearer token, e.g. after SignIn or Refresh.
func (c *Client) SetToken(token string) {
	c.http.SetAuthToken(token)
}

// Session is the body returned by the sign-up, sign-in and refresh routes.
type Session struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

// SiteInput is the writable part of a site.
type SiteInput struct {
	Name       string  `json:"name"`
	Address    string  `json:"address"`
	City       *string `json:"city,omitempty"`
	PostalCode *string `json:"postal_code,omitempty"`
	Status     string  `json:"status,omitempty"`
}

// EquipmentInput is the writable part of a piece of equipment.
type EquipmentInput struct {
	SiteID          string     `json:"site_id"`
	Name            string     `json:"name"`
	Type            string     `json:"type"`
	Status          string     `json:"status,omitempty"`
	IPAddress       *string    `json:"ip_address,omitempty"`
	LastMaintenance *time.Time `json:"last_maintenance,omitempty"`
}

// AlertInput is the writable part of an alert.
type AlertInput struct {
	EquipmentID string  `json:"equipment_id"`
	Type        string  `json:"type"`
	Title       string  `json:"title"`
	Message     string  `json:"message"`
	Description *string `json:"description,omitempty"`
	Status      string  `json:"status,omitempty"`
}

// AgentInput registers a monitoring agent at a site.
type AgentInput struct {
	SiteID  string `json:"site_id"`
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
	OS      string `json:"os,omitempty"`
}

// Registration is returned once when an agent is registered.
type Registration struct {
	Agent *models.Agent `json:"agent"`
	Token string        `json:"token"`
}

// Report is one batch of agent data. Metrics is any JSON value; Devices are
// raw neighbour lines.
type Report struct {
	Timestamp *time.Time `json:"timestamp,omitempty"`
	Metrics   any        `json:"metrics"`
	Devices   []string   `json:"devices"`
}

// StoredReport is a report as returned by the reports listing.
type StoredReport struct {
	AgentID   string          `json:"agent_id"`
	Timestamp time.Time       `json:"timestamp"`
	Metrics   json.RawMessage `json:"metrics"`
	Devices   json.RawMessage `json:"devices"`
}

type errorBody struct {
	Error string `json:"error"`
}

// do sends one request and decodes a 2xx body into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, query map[string]string, body, out any) (*resty.Response, error) {
	var apiErr errorBody
	req := c.http.R().SetContext(ctx).SetError(&apiErr)
	if query != nil {
		req.SetQueryParams(query)
	}
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		return resp, &Error{Status: resp.StatusCode(), Message: apiErr.Error}
	}
	return resp, nil
}

// get fetches path into out. A 404 returns found == false and no error.
func (c *Client) get(ctx context.Context, path string, out any) (found bool, err error) {
	resp, err := c.do(ctx, http.MethodGet, path, nil, nil, out)
	if resp != nil && resp.StatusCode() == http.StatusNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// del deletes path. A 404 is treated as already deleted.
func (c *Client) del(ctx context.Context, path string) error {
	resp, err := c.do(ctx, http.MethodDelete, path, nil, nil, nil)
	if resp != nil && resp.StatusCode() == http.StatusNotFound {
		return nil
	}
	return err
}

// Health calls GET /healthz.
func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	if _, err := c.do(ctx, http.MethodGet, "/healthz", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SignUp creates an account and adopts the returned token.
func (c *Client) SignUp(ctx context.Context, email, password string) (*Session, error) {
	return c.session(ctx, "/api/v1/auth/signup", map[string]string{"email": email, "password": password})
}

// SignIn authenticates and adopts the returned token.
func (c *Client) SignIn(ctx context.Context, email, password string) (*Session, error) {
	return c.session(ctx, "/api/v1/auth/signin", map[string]string{"email": email, "password": password})
}

// Refresh rotates the current token.
func (c *Client) Refresh(ctx context.Context) (*Session, error) {
	return c.session(ctx, "/api/v1/auth/refresh", nil)
}

func (c *Client) session(ctx context.Context, path string, body any) (*Session, error) {
	var s Session
	if _, err := c.do(ctx, http.MethodPost, path, nil, body, &s); err != nil {
		return nil, err
	}
	c.SetToken(s.Token)
	return &s, nil
}

// SignOut revokes the current token.
func (c *Client) SignOut(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/api/v1/auth/signout", nil, nil, nil)
	return err
}

// CreateSite calls POST /api/v1/sites.
func (c *Client) CreateSite(ctx context.Context, in SiteInput) (*models.Site, error) {
	var s models.Site
	if _, err := c.do(ctx, http.MethodPost, "/api/v1/sites", nil, in, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// ListSites calls GET /api/v1/sites. status and search are optional.
func (c *Client) ListSites(ctx context.Context, status, search string) ([]models.Site, error) {
	q := map[string]string{}
	if status != "" {
		q["status"] = status
	}
	if search != "" {
		q["q"] = search
	}
	var out []models.Site
	if _, err := c.do(ctx, http.MethodGet, "/api/v1/sites", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetSite returns nil, nil when the site does not exist.
func (c *Client) GetSite(ctx context.Context, id string) (*models.Site, error) {
	var s models.Site
	found, err := c.get(ctx, "/api/v1/sites/"+id, &s)
	if !found {
		return nil, err
	}
	return &s, nil
}

// UpdateSite calls PUT /api/v1/sites/{id}.
func (c *Client) UpdateSite(ctx context.Context, id string, in SiteInput) (*models.Site, error) {
	var s models.Site
	if _, err := c.do(ctx, http.MethodPut, "/api/v1/sites/"+id, nil, in, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// DeleteSite calls DELETE /api/v1/sites/{id}. Deleting a missing site
// succeeds.
func (c *Client) DeleteSite(ctx context.Context, id string) error {
	return c.del(ctx, "/api/v1/sites/"+id)
}

// SiteStats calls GET /api/v1/sites/{id}/stats.
func (c *Client) SiteStats(ctx context.Context, id string) (*stats.SiteStats, error) {
	var s stats.SiteStats
	if _, err := c.do(ctx, http.MethodGet, "/api/v1/sites/"+id+"/stats", nil, nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateEquipment calls POST /api/v1/equipment.
func (c *Client) CreateEquipment(ctx context.Context, in EquipmentInput) (*models.Equipment, error) {
	var e models.Equipment
	if _, err := c.do(ctx, http.MethodPost, "/api/v1/equipment", nil, in, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// ListEquipment calls GET /api/v1/equipment with the given filters
// (site_id, status, type).
func (c *Client) ListEquipment(ctx context.Context, filter map[string]string) ([]models.Equipment, error) {
	var out []models.Equipment
	if _, err := c.do(ctx, http.MethodGet, "/api/v1/equipment", filter, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetEquipment returns nil, nil when the equipment does not exist.
func (c *Client) GetEquipment(ctx context.Context, id string) (*models.Equipment, error) {
	var e models.Equipment
	found, err := c.get(ctx, "/api/v1/equipment/"+id, &e)
	if !found {
		return nil, err
	}
	return &e, nil
}

// UpdateEquipment calls PUT /api/v1/equipment/{id}.
func (c *Client) UpdateEquipment(ctx context.Context, id string, in EquipmentInput) (*models.Equipment, error) {
	var e models.Equipment
	if _, err := c.do(ctx, http.MethodPut, "/api/v1/equipment/"+id, nil, in, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// DeleteEquipment calls DELETE /api/v1/equipment/{id}.
func (c *Client) DeleteEquipment(ctx context.Context, id string) error {
	return c.del(ctx, "/api/v1/equipment/"+id)
}

// CreateAlert calls POST /api/v1/alerts.
func (c *Client) CreateAlert(ctx context.Context, in AlertInput) (*models.Alert, error) {
	var a models.Alert
	if _, err := c.do(ctx, http.MethodPost, "/api/v1/alerts", nil, in, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAlerts calls GET /api/v1/alerts with the given filters
// (status, type, equipment_id, site_id).
func (c *Client) ListAlerts(ctx context.Context, filter map[string]string) ([]models.Alert, error) {
	var out []models.Alert
	if _, err := c.do(ctx, http.MethodGet, "/api/v1/alerts", filter, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetAlert returns nil, nil when the alert does not exist.
func (c *Client) GetAlert(ctx context.Context, id string) (*models.Alert, error) {
	var a models.Alert
	found, err := c.get(ctx, "/api/v1/alerts/"+id, &a)
	if !found {
		return nil, err
	}
	return &a, nil
}

// UpdateAlert calls PUT /api/v1/alerts/{id}.
func (c *Client) UpdateAlert(ctx context.Context, id string, in AlertInput) (*models.Alert, error) {
	var a models.Alert
	if _, err := c.do(ctx, http.MethodPut, "/api/v1/alerts/"+id, nil, in, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// DeleteAlert calls DELETE /api/v1/alerts/{id}.
func (c *Client) DeleteAlert(ctx context.Context, id string) error {
	return c.del(ctx, "/api/v1/alerts/"+id)
}

// RegisterAgent calls POST /api/v1/agents.
func (c *Client) RegisterAgent(ctx context.Context, in AgentInput) (*Registration, error) {
	var reg Registration
	if _, err := c.do(ctx, http.MethodPost, "/api/v1/agents", nil, in, &reg); err != nil {
		return nil, err
	}
	return &reg, nil
}

// ListAgents calls GET /api/v1/agents, optionally filtered by site.
func (c *Client) ListAgents(ctx context.Context, siteID string) ([]models.Agent, error) {
	var q map[string]string
	if siteID != "" {
		q = map[string]string{"site_id": siteID}
	}
	var out []models.Agent
	if _, err := c.do(ctx, http.MethodGet, "/api/v1/agents", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AgentReports calls GET /api/v1/agents/{id}/reports. limit <= 0 uses the
// server default.
func (c *Client) AgentReports(ctx context.Context, agentID string, limit int) ([]StoredReport, error) {
	var q map[string]string
	if limit > 0 {
		q = map[string]string{"limit": strconv.Itoa(limit)}
	}
	var out []StoredReport
	if _, err := c.do(ctx, http.MethodGet, "/api/v1/agents/"+agentID+"/reports", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SubmitReport calls POST /api/v1/agents/{id}/data with an agent token.
func (c *Client) SubmitReport(ctx context.Context, agentID string, r Report) error {
	if r.Devices == nil {
		r.Devices = []string{}
	}
	_, err := c.do(ctx, http.MethodPost, "/api/v1/agents/"+agentID+"/data", nil, r, nil)
	return err
}
