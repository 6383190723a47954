package handlers_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tphummel/sitewatch/internal/guard"
	"github.com/tphummel/sitewatch/internal/handlers"
	"github.com/tphummel/sitewatch/internal/session"
)

type streamEvent struct {
	Event         session.Kind `json:"event"`
	Authenticated bool         `json:"authenticated"`
	Redirect      string       `json:"redirect"`
}

// readEvent reads one server-sent event, skipping keep-alive comments.
func readEvent(t *testing.T, r *bufio.Reader) streamEvent {
	t.Helper()
	var name, data string
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read event: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			if data == "" {
				continue
			}
			var ev streamEvent
			if err := json.Unmarshal([]byte(data), &ev); err != nil {
				t.Fatalf("decode event %q: %v", data, err)
			}
			if string(ev.Event) != name {
				t.Errorf("event name %q does not match payload %q", name, ev.Event)
			}
			return ev
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func openStream(t *testing.T, srv *httptest.Server, token, path string) (*bufio.Reader, func()) {
	t.Helper()
	return openStreamWith(t, srv, path, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	})
}

// openStreamWith opens the event stream after auth has attached credentials.
func openStreamWith(t *testing.T, srv *httptest.Server, path string, auth func(*http.Request)) (*bufio.Reader, func()) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/session/events?path="+path, nil)
	if err != nil {
		cancel()
		t.Fatalf("new request: %v", err)
	}
	auth(req)
	resp, err := srv.Client().Do(req)
	if err != nil {
		cancel()
		t.Fatalf("open stream: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		cancel()
		t.Fatalf("stream status: got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type: got %q", ct)
	}
	return bufio.NewReader(resp.Body), func() {
		resp.Body.Close()
		cancel()
	}
}

func TestSessionEvents_Lifecycle(t *testing.T) {
	h := newTestHandler(t)
	mux := h.Routes()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	token := signUp(t, mux, "alice@example.com")
	stream, closeStream := openStream(t, srv, token, "/auth")
	defer closeStream()

	// Signed in on a public page: one redirect to the dashboard.
	ev := readEvent(t, stream)
	if ev.Event != session.InitialSession || !ev.Authenticated || ev.Redirect != guard.DashboardPath {
		t.Errorf("initial: got %+v", ev)
	}

	// Token refresh never navigates.
	w := serve(mux, authReq(http.MethodPost, "/api/v1/auth/refresh", token, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("refresh: got %d", w.Code)
	}
	var refreshed struct {
		Token string `json:"token"`
	}
	decodeBody(t, w, &refreshed)

	ev = readEvent(t, stream)
	if ev.Event != session.TokenRefreshed || !ev.Authenticated || ev.Redirect != "" {
		t.Errorf("refresh: got %+v", ev)
	}

	// Signing out on the dashboard sends the client to the landing page and
	// ends the stream.
	if w := serve(mux, authReq(http.MethodPost, "/api/v1/auth/signout", refreshed.Token, nil)); w.Code != http.StatusNoContent {
		t.Fatalf("signout: got %d", w.Code)
	}
	ev = readEvent(t, stream)
	if ev.Event != session.SignedOut || ev.Authenticated || ev.Redirect != guard.LandingPath {
		t.Errorf("signout: got %+v", ev)
	}
	if _, err := stream.ReadString('\n'); err == nil {
		t.Error("expected stream to end after SIGNED_OUT")
	}
}

func TestSessionEvents_ProtectedPathNoRedirect(t *testing.T) {
	h := newTestHandler(t)
	mux := h.Routes()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	token := signUp(t, mux, "alice@example.com")
	stream, closeStream := openStream(t, srv, token, "/sites")
	defer closeStream()

	ev := readEvent(t, stream)
	if ev.Event != session.InitialSession || ev.Redirect != "" {
		t.Errorf("initial on protected path: got %+v", ev)
	}
}

func TestSessionEvents_OtherUsersEventsFiltered(t *testing.T) {
	h := newTestHandler(t)
	mux := h.Routes()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	alice := signUp(t, mux, "alice@example.com")
	bob := signUp(t, mux, "bob@example.com")
	stream, closeStream := openStream(t, srv, alice, "/dashboard")
	defer closeStream()
	readEvent(t, stream)

	// Bob's sign-out must not reach Alice's stream; Alice's own sign-out does.
	if w := serve(mux, authReq(http.MethodPost, "/api/v1/auth/signout", bob, nil)); w.Code != http.StatusNoContent {
		t.Fatalf("bob signout: got %d", w.Code)
	}
	if w := serve(mux, authReq(http.MethodPost, "/api/v1/auth/signout", alice, nil)); w.Code != http.StatusNoContent {
		t.Fatalf("alice signout: got %d", w.Code)
	}
	ev := readEvent(t, stream)
	if ev.Event != session.SignedOut {
		t.Errorf("first event after bob's signout: got %+v, want alice's SIGNED_OUT", ev)
	}
}

func TestSessionEvents_RelativePath(t *testing.T) {
	mux, _ := newTestMux(t)
	token := signUp(t, mux, "alice@example.com")
	w := serve(mux, authReq(http.MethodGet, "/api/v1/session/events?path=dashboard", token, nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("relative path: got %d, want 400", w.Code)
	}
}

func TestSessionEvents_OtherSessionSignOutIgnored(t *testing.T) {
	h := newTestHandler(t)
	mux := h.Routes()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	first := signUp(t, mux, "alice@example.com")
	w := serve(mux, authReq(http.MethodPost, "/api/v1/auth/signin", "",
		mustJSON(t, map[string]string{"email": "alice@example.com", "password": "longenough"})))
	if w.Code != http.StatusOK {
		t.Fatalf("second sign in: got %d", w.Code)
	}
	var second struct {
		Token string `json:"token"`
	}
	decodeBody(t, w, &second)

	stream, closeStream := openStream(t, srv, second.Token, "/dashboard")
	defer closeStream()
	readEvent(t, stream)

	// Ending the first session leaves the second one signed in.
	if w := serve(mux, authReq(http.MethodPost, "/api/v1/auth/signout", first, nil)); w.Code != http.StatusNoContent {
		t.Fatalf("first signout: got %d", w.Code)
	}
	if w := serve(mux, authReq(http.MethodGet, "/api/v1/auth/session", second.Token, nil)); w.Code != http.StatusOK {
		t.Fatalf("second session after first signout: got %d", w.Code)
	}

	w = serve(mux, authReq(http.MethodPost, "/api/v1/auth/refresh", second.Token, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("refresh: got %d", w.Code)
	}
	var rotated struct {
		Token string `json:"token"`
	}
	decodeBody(t, w, &rotated)

	ev := readEvent(t, stream)
	if ev.Event != session.TokenRefreshed || !ev.Authenticated || ev.Redirect != "" {
		t.Fatalf("first event on second session: got %+v, want TOKEN_REFRESHED", ev)
	}

	// The stream follows the rotated session to its own sign-out.
	if w := serve(mux, authReq(http.MethodPost, "/api/v1/auth/signout", rotated.Token, nil)); w.Code != http.StatusNoContent {
		t.Fatalf("second signout: got %d", w.Code)
	}
	ev = readEvent(t, stream)
	if ev.Event != session.SignedOut || ev.Authenticated || ev.Redirect != guard.LandingPath {
		t.Errorf("own signout: got %+v", ev)
	}
}

func TestSessionEvents_SessionCookie(t *testing.T) {
	h := newTestHandler(t)
	mux := h.Routes()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	token := signUp(t, mux, "alice@example.com")
	stream, closeStream := openStreamWith(t, srv, "/auth", func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: handlers.SessionCookie, Value: token})
	})
	defer closeStream()

	ev := readEvent(t, stream)
	if ev.Event != session.InitialSession || ev.Redirect != guard.DashboardPath {
		t.Errorf("initial via cookie: got %+v", ev)
	}
}
