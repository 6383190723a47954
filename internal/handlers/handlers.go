package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/tphummel/sitewatch/internal/auth"
	"github.com/tphummel/sitewatch/internal/db"
	"github.com/tphummel/sitewatch/internal/middleware"
	"github.com/tphummel/sitewatch/internal/session"
)

const maxBodyBytes = 64 * 1024

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	DB       *db.DB
	Auth     *auth.Service
	Sessions *session.Broker
	Version  string
	Commit   string
	// CookieSecure marks the session cookie Secure.
	CookieSecure bool
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// serverError logs err and writes a 500 with msg.
func serverError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	slog.ErrorContext(r.Context(), msg, "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, msg)
}

// decodeJSON reads a size-limited JSON body into v. On failure it writes the
// error response and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	return true
}

// ownerID returns the authenticated user's ID. Routes using it are wrapped
// in middleware.Auth for user tokens.
func ownerID(r *http.Request) string {
	if c := middleware.ClaimsFrom(r.Context()); c != nil {
		return c.Subject
	}
	return ""
}

// Health handles GET /healthz. No auth required.
// Returns 503 if the database is unreachable.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.DB.Ping(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "unavailable",
			"error":  err.Error(),
		})
		return
	}
	version, err := h.DB.SchemaVersion()
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "unavailable",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"version":        h.Version,
		"commit":         h.Commit,
		"schema_version": version,
	})
}

// validOptional reports whether s is empty or a member of set.
func validOptional(set map[string]bool, s string) bool {
	return s == "" || set[s]
}

// emptyToNil treats a blank optional string as absent.
func emptyToNil(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}

// now returns the current time at the precision the store keeps.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}
