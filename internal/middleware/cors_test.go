package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tphummel/sitewatch/internal/middleware"
)

func TestCORS(t *testing.T) {
	tests := []struct {
		name        string
		origins     []string
		origin      string
		wantAllowed string
		wantCreds   string
	}{
		{"wildcard", []string{"*"}, "https://app.example", "*", ""},
		{"listed origin", []string{"https://app.example"}, "https://app.example", "https://app.example", "true"},
		{"unlisted origin", []string{"https://app.example"}, "https://evil.example", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := middleware.CORS(tt.origins, okHandler)
			req := httptest.NewRequest(http.MethodGet, "/api/v1/sites", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantAllowed {
				t.Errorf("Allow-Origin: got %q, want %q", got, tt.wantAllowed)
			}
			if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != tt.wantCreds {
				t.Errorf("Allow-Credentials: got %q, want %q", got, tt.wantCreds)
			}
		})
	}
}

func TestCORS_Preflight(t *testing.T) {
	reached := false
	handler := middleware.CORS([]string{"*"}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/sites", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "authorization,content-type")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if reached {
		t.Error("preflight should not reach the next handler")
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status: got %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Error("preflight response missing Allow-Methods")
	}
}
