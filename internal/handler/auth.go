package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/xid"

	"github.com/miicoin/miicoin-server/internal/apperror"
	"github.com/miicoin/miicoin-server/internal/auth"
	"github.com/miicoin/miicoin-server/internal/service"
)

const (
	oauthStateCookie = "oauth_state"
	oauthStateMaxAge = 10 * time.Minute
)

// AuthHandler serves registration, login (password and Google OAuth),
// logout, and the profile endpoints.
type AuthHandler struct {
	auth   *service.AuthService
	google *auth.GoogleProvider // nil when Google OAuth is not configured
	logger *slog.Logger
}

func NewAuthHandler(authSvc *service.AuthService, google *auth.GoogleProvider, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: authSvc, google: google, logger: logger}
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type updateProfileRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

// HandleRegister handles POST /auth/register.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.auth.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}

	setTokenCookie(w, result.Token)
	writeJSON(w, http.StatusCreated, map[string]any{
		"status":       "success",
		"message":      "registration successful",
		"user_id":      result.User.ID,
		"access_token": result.Token,
	})
}

// HandleLogin handles POST /auth/login.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	setTokenCookie(w, result.Token)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "success",
		"access_token": result.Token,
		"user": map[string]string{
			"id":    result.User.ID,
			"email": result.User.Email,
			"name":  result.User.Name,
		},
	})
}

// HandleLoginPage handles GET /auth/login. The API has no HTML login form;
// this is where OAuth failures redirect, so it reports the error from the
// query string as JSON.
func (h *AuthHandler) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	if reason := r.URL.Query().Get("error"); reason != "" {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "error",
			"error":  reason,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "POST credentials to this endpoint to log in",
	})
}

// HandleLogout handles GET /auth/logout. It clears the token cookie and
// succeeds whether or not the caller was logged in.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	clearTokenCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "logged out",
	})
}

// HandleProfile handles GET /auth/profile.
func (h *AuthHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Authentication("valid authentication required"))
		return
	}

	user, err := h.auth.GetUserByID(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"user":   user,
	})
}

// HandleUpdateProfile handles PUT /auth/profile/update.
func (h *AuthHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Authentication("valid authentication required"))
		return
	}

	var req updateProfileRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.auth.UpdateProfile(r.Context(), userID, req.Name, req.Password); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "profile updated",
	})
}

// HandleGoogleLogin handles GET /auth/login/google. It sets a random state cookie
// and redirects the browser to Google's consent screen.
func (h *AuthHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   int(oauthStateMaxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.google.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGoogleCallback handles GET /auth/login/google/callback.
//
// State must match the cookie set at /auth/login/google; a mismatch means the
// request did not start at our login flow. User-caused failures (denied
// consent, unverified email) redirect back to the login page with an error
// code rather than surfacing as API errors, since the caller here is a
// browser mid-redirect.
func (h *AuthHandler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Warn("google oauth denied", slog.String("error", errParam))
		http.Redirect(w, r, "/auth/login?error=access_denied", http.StatusTemporaryRedirect)
		return
	}

	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != r.URL.Query().Get("state") {
		writeError(w, apperror.Authentication("invalid OAuth state"))
		return
	}
	// One shot per state value.
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})

	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, apperror.ValidationFailed("code", "authorization code is required"))
		return
	}

	gUser, err := h.google.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("google token exchange failed", slog.String("error", err.Error()))
		writeError(w, apperror.Authentication("could not verify Google account"))
		return
	}

	result, _, err := h.auth.LoginGoogle(r.Context(), gUser)
	if err != nil {
		if errors.Is(err, apperror.ErrAuthentication) {
			http.Redirect(w, r, "/auth/login?error=unverified_email", http.StatusTemporaryRedirect)
			return
		}
		writeError(w, err)
		return
	}

	setTokenCookie(w, result.Token)
	http.Redirect(w, r, "/dashboard", http.StatusTemporaryRedirect)
}

func setTokenCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.TokenCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(time.Hour.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearTokenCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.TokenCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
