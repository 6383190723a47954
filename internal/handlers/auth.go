package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/tphummel/sitewatch/internal/auth"
	"github.com/tphummel/sitewatch/internal/middleware"
	"github.com/tphummel/sitewatch/internal/models"
)

// SessionCookie carries the user token for page requests.
const SessionCookie = "sitewatch_session"

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token     string       `json:"token,omitempty"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, res *auth.Result) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    res.Token,
		Path:     "/",
		Expires:  res.Claims.ExpiresAt.Time,
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// cookieAuthenticated reports whether the request carries a session cookie
// holding a live user token.
func (h *Handler) cookieAuthenticated(r *http.Request) bool {
	c, err := r.Cookie(SessionCookie)
	if err != nil || c.Value == "" {
		return false
	}
	claims, err := h.Auth.Verify(c.Value)
	return err == nil && claims.Kind == auth.KindUser
}

// SignUp handles POST /api/v1/auth/signup. The new user is signed in.
func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if !decodeJSON(w, r, &req) {
		return
	}

	_, err := h.Auth.SignUp(req.Email, req.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidEmail), errors.Is(err, auth.ErrWeakPassword):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, auth.ErrEmailTaken):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		serverError(w, r, "failed to sign up", err)
		return
	}

	res, err := h.Auth.SignIn(req.Email, req.Password)
	if err != nil {
		serverError(w, r, "failed to sign in", err)
		return
	}
	h.setSessionCookie(w, res)
	writeJSON(w, http.StatusCreated, sessionResponse{Token: res.Token, ExpiresAt: res.Claims.ExpiresAt.Time, User: res.User})
}

// SignIn handles POST /api/v1/auth/signin.
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.Auth.SignIn(req.Email, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if err != nil {
		serverError(w, r, "failed to sign in", err)
		return
	}
	h.setSessionCookie(w, res)
	writeJSON(w, http.StatusOK, sessionResponse{Token: res.Token, ExpiresAt: res.Claims.ExpiresAt.Time, User: res.User})
}

// Refresh handles POST /api/v1/auth/refresh. The presented token stops
// working and a new one is returned.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFrom(r.Context())
	res, err := h.Auth.Refresh(claims)
	if errors.Is(err, auth.ErrInvalidToken) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err != nil {
		serverError(w, r, "failed to refresh session", err)
		return
	}

	user, err := h.DB.GetUserByID(claims.Subject)
	if err != nil {
		serverError(w, r, "failed to get user", err)
		return
	}
	h.setSessionCookie(w, res)
	writeJSON(w, http.StatusOK, sessionResponse{Token: res.Token, ExpiresAt: res.Claims.ExpiresAt.Time, User: user})
}

// SignOut handles POST /api/v1/auth/signout.
func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	err := h.Auth.SignOut(middleware.ClaimsFrom(r.Context()))
	if errors.Is(err, auth.ErrInvalidToken) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err != nil {
		serverError(w, r, "failed to sign out", err)
		return
	}
	h.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// Session handles GET /api/v1/auth/session and returns the signed-in user.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFrom(r.Context())
	user, err := h.DB.GetUserByID(claims.Subject)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err != nil {
		serverError(w, r, "failed to get user", err)
		return
	}

	resp := sessionResponse{User: user}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.Time
	}
	writeJSON(w, http.StatusOK, resp)
}
