package handlers

import (
	"net/http"

	"github.com/tphummel/sitewatch/internal/auth"
	"github.com/tphummel/sitewatch/internal/guard"
	"github.com/tphummel/sitewatch/internal/metrics"
	"github.com/tphummel/sitewatch/internal/middleware"
)

// Routes returns the service's full route table. Every route except
// /metrics is instrumented with its pattern as the path label.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	handle := func(method, path string, handler http.Handler) {
		mux.Handle(method+" "+path, metrics.Middleware(path, handler))
	}
	user := func(fn http.HandlerFunc) http.Handler {
		return middleware.Auth(h.Auth, auth.KindUser, fn)
	}
	agent := func(fn http.HandlerFunc) http.Handler {
		return middleware.Auth(h.Auth, auth.KindAgent, fn)
	}

	// Health check, metrics and API docs: no auth
	handle("GET", "/healthz", http.HandlerFunc(h.Health))
	mux.Handle("GET /metrics", metrics.Handler())
	handle("GET", "/openapi.yaml", http.HandlerFunc(OpenAPISpec))
	handle("GET", "/docs", http.HandlerFunc(Docs))

	// Accounts and sessions
	handle("POST", "/api/v1/auth/signup", http.HandlerFunc(h.SignUp))
	handle("POST", "/api/v1/auth/signin", http.HandlerFunc(h.SignIn))
	handle("POST", "/api/v1/auth/refresh", user(h.Refresh))
	handle("POST", "/api/v1/auth/signout", user(h.SignOut))
	handle("GET", "/api/v1/auth/session", user(h.Session))
	// EventSource cannot set headers, so the stream also takes the session cookie.
	handle("GET", "/api/v1/session/events",
		middleware.AuthWithCookie(h.Auth, auth.KindUser, SessionCookie, http.HandlerFunc(h.SessionEvents)))

	// Sites
	handle("POST", "/api/v1/sites", user(h.CreateSite))
	handle("GET", "/api/v1/sites", user(h.ListSites))
	handle("GET", "/api/v1/sites/{id}", user(h.GetSite))
	handle("PUT", "/api/v1/sites/{id}", user(h.UpdateSite))
	handle("DELETE", "/api/v1/sites/{id}", user(h.DeleteSite))
	handle("GET", "/api/v1/sites/{id}/stats", user(h.SiteStats))
	handle("GET", "/api/v1/sites/{id}/equipment", user(h.SiteEquipment))

	// Equipment
	handle("POST", "/api/v1/equipment", user(h.CreateEquipment))
	handle("GET", "/api/v1/equipment", user(h.ListEquipment))
	handle("GET", "/api/v1/equipment/{id}", user(h.GetEquipment))
	handle("PUT", "/api/v1/equipment/{id}", user(h.UpdateEquipment))
	handle("DELETE", "/api/v1/equipment/{id}", user(h.DeleteEquipment))
	handle("GET", "/api/v1/equipment/{id}/alerts", user(h.EquipmentAlerts))

	// Alerts
	handle("POST", "/api/v1/alerts", user(h.CreateAlert))
	handle("GET", "/api/v1/alerts", user(h.ListAlerts))
	handle("GET", "/api/v1/alerts/{id}", user(h.GetAlert))
	handle("PUT", "/api/v1/alerts/{id}", user(h.UpdateAlert))
	handle("DELETE", "/api/v1/alerts/{id}", user(h.DeleteAlert))

	// Agents: registered by users, data submitted by agents
	handle("POST", "/api/v1/agents", user(h.RegisterAgent))
	handle("GET", "/api/v1/agents", user(h.ListAgents))
	handle("GET", "/api/v1/agents/{id}/reports", user(h.AgentReports))
	handle("POST", "/api/v1/agents/{id}/data", agent(h.SubmitAgentData))

	// UI pages behind the route guard
	page := guard.Middleware(h.cookieAuthenticated, http.HandlerFunc(h.Page))
	for _, p := range PagePaths {
		if p == "/" {
			handle("GET", "/{$}", page)
			continue
		}
		handle("GET", p, page)
	}

	return mux
}
