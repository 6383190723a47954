package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tphummel/sitewatch/internal/guard"
	"github.com/tphummel/sitewatch/internal/middleware"
	"github.com/tphummel/sitewatch/internal/session"
)

// KeepAlive is how often an idle session stream sends a comment line.
var KeepAlive = 15 * time.Second

type sessionEvent struct {
	Event         session.Kind `json:"event"`
	Authenticated bool         `json:"authenticated"`
	Redirect      string       `json:"redirect,omitempty"`
	At            time.Time    `json:"at"`
}

func writeEvent(w http.ResponseWriter, rc *http.ResponseController, ev sessionEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Event, data); err != nil {
		return err
	}
	return rc.Flush()
}

// SessionEvents handles GET /api/v1/session/events?path=. It streams the
// transitions of the caller's session as server-sent events, each annotated
// with the navigation the client at path should perform. A refresh moves the
// stream to the new session; other sessions of the user are ignored. The
// stream opens with an INITIAL_SESSION event and ends after SIGNED_OUT or
// when the client leaves.
func (h *Handler) SessionEvents(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		path = guard.DashboardPath
	}
	if !strings.HasPrefix(path, "/") {
		writeError(w, http.StatusBadRequest, "path must be absolute")
		return
	}

	claims := middleware.ClaimsFrom(r.Context())
	sessionID := claims.ID
	events, cancel := h.Sessions.Subscribe(claims.Subject)
	defer cancel()

	rc := http.NewResponseController(w)
	// Streams outlive the server's write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	tracker := guard.NewTracker(true, path)
	redirect, _ := tracker.Check()
	initial := sessionEvent{
		Event:         session.InitialSession,
		Authenticated: true,
		Redirect:      redirect,
		At:            time.Now().UTC(),
	}
	if err := writeEvent(w, rc, initial); err != nil {
		return
	}

	ping := time.NewTicker(KeepAlive)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ping.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		case ev, ok := <-events:
			if !ok {
				return
			}
			if !ev.Concerns(sessionID) {
				continue
			}
			if ev.Kind == session.TokenRefreshed && ev.NextSessionID != "" {
				sessionID = ev.NextSessionID
			}
			redirect, _ := tracker.Apply(ev)
			out := sessionEvent{
				Event:         ev.Kind,
				Authenticated: tracker.Authenticated(),
				Redirect:      redirect,
				At:            ev.At,
			}
			if err := writeEvent(w, rc, out); err != nil {
				slog.DebugContext(r.Context(), "session stream closed", "error", err)
				return
			}
			if ev.Kind == session.SignedOut {
				return
			}
		}
	}
}
