package handler

import (
	"log/slog"
	"net/http"

	"github.com/rs/xid"

	"github.com/farhanm/clubchain/internal/auth"
	"github.com/farhanm/clubchain/internal/service"
)

// AuthHandler manages the Google OAuth login flow and session lookups.
//
// HANDLER RESPONSIBILITIES:
//   - HandleGoogleLogin    → redirect the browser to Google's consent page
//   - HandleGoogleCallback → receive the code, exchange it, issue a JWT
//   - HandleMe             → return the logged-in user's profile
//
// The callback is where a new user's smart account comes into existence:
// AuthService provisions it on first login and stores the address on the
// user row. The handler itself only moves JSON.
type AuthHandler struct {
	google *auth.GoogleProvider
	svc    *service.AuthService
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler. All dependencies are injected;
// the handler has no knowledge of how they're constructed.
func NewAuthHandler(google *auth.GoogleProvider, svc *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{google: google, svc: svc, logger: logger}
}

// HandleGoogleLogin redirects the user to Google's consent page.
//
// HTTP: GET /auth/google/login
//
// CSRF PROTECTION VIA STATE:
// A random state value is stored in a short-lived cookie; the callback
// verifies the returned state matches. The cookie is HttpOnly, SameSite=Lax,
// and expires in 10 minutes.
func (h *AuthHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.google.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGoogleCallback completes the OAuth login flow.
//
// HTTP: GET /auth/google/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code for a verified Google profile
//  3. LoginWithGoogle: find or create the user, provisioning the smart
//     account on first login
//  4. Return the JWT and user profile as JSON
//
// The token is returned in the body rather than a cookie: the frontend is
// served from a different origin and sends it back as a Bearer header.
func (h *AuthHandler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie("oauth_state")
	if err != nil || stateCookie.Value == "" {
		h.logger.Warn("auth callback: missing state cookie")
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: "invalid_state", Message: "invalid OAuth state",
		})
		return
	}
	if r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("auth callback: state mismatch")
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: "invalid_state", Message: "invalid OAuth state",
		})
		return
	}

	// Single-use: clear the state cookie regardless of outcome.
	http.SetCookie(w, &http.Cookie{
		Name:   "oauth_state",
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization",
			slog.String("error", errParam))
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error: "access_denied", Message: "authorization was denied",
		})
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: "invalid_request", Message: "missing OAuth code",
		})
		return
	}

	gUser, err := h.google.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: Google exchange failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, ErrorResponse{
			Error: "auth_failed", Message: "authentication failed",
		})
		return
	}

	result, err := h.svc.LoginWithGoogle(r.Context(), gUser)
	if err != nil {
		h.logger.Error("auth callback: login failed",
			slog.String("sub", gUser.Sub),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	h.logger.Info("user authenticated",
		slog.Int64("userID", result.User.ID),
		slog.String("email", result.User.Email),
	)

	writeJSON(w, http.StatusOK, result)
}

// HandleMe returns the currently authenticated user's profile.
//
// HTTP: GET /api/me
// Auth: Required (RequireAuth middleware sets userID in context)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error: "unauthorized", Message: "authentication required",
		})
		return
	}

	user, err := h.svc.GetUserByID(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}
