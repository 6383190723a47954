package handlers

import (
	"html/template"
	"log/slog"
	"net/http"
)

// PagePaths are the UI routes served with the application shell. Access is
// decided by guard.Middleware.
var PagePaths = []string{"/", "/auth", "/agent-setup", "/dashboard", "/sites", "/equipment", "/alerts", "/account"}

var shell = template.Must(template.New("shell").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>sitewatch</title>
  <meta name="viewport" content="width=device-width, initial-scale=1">
</head>
<body>
  <div id="app" data-path="{{.Path}}" data-version="{{.Version}}"></div>
  <noscript>sitewatch needs JavaScript. The REST API is documented at <a href="/docs">/docs</a>.</noscript>
</body>
</html>`))

// Page serves the application shell for a UI route.
func (h *Handler) Page(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := shell.Execute(w, struct{ Path, Version string }{r.URL.Path, h.Version})
	if err != nil {
		slog.Error("failed to render page", "path", r.URL.Path, "error", err)
	}
}
