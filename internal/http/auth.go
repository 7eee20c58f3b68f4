package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/winchzone/dashboard/internal/http/envelope"
	httpmiddleware "github.com/winchzone/dashboard/internal/http/middleware"
	"github.com/winchzone/dashboard/internal/identity"
	"github.com/winchzone/dashboard/internal/recovery"
	"github.com/winchzone/dashboard/internal/session"
)

const (
	MsgSignupCreated = "Signup created. Check your email for verification code/link, then login."
	MsgResetSent     = "Password reset email sent. Please check your inbox."
)

const refreshCookieName = "wz_refresh"

// Login signs in with an email or a username.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Identifier string `json:"identifier"`
		Password   string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		envelope.Error(w, envelope.CodeValidation, "invalid JSON", nil)
		return
	}
	if strings.TrimSpace(payload.Identifier) == "" || payload.Password == "" {
		envelope.Error(w, envelope.CodeValidation, "Email or username and password are required.", nil)
		return
	}

	sess, err := identity.Login(r.Context(), h.auth, h.auth, payload.Identifier, payload.Password)
	if err != nil {
		h.writeServiceError(w, r, err, "login failed")
		return
	}
	h.writeSession(w, sess)
}

// Signup registers an identity and mails the verification link.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Username string `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		envelope.Error(w, envelope.CodeValidation, "invalid JSON", nil)
		return
	}

	_, err := h.auth.SignUp(r.Context(), identity.SignUpInput{
		Email:      payload.Email,
		Password:   payload.Password,
		RedirectTo: h.cfg.AppURL + "#/",
		Data:       map[string]string{"username": strings.TrimSpace(payload.Username)},
	})
	if err != nil {
		h.writeServiceError(w, r, err, "signup failed")
		return
	}
	envelope.JSON(w, http.StatusCreated, map[string]any{
		"message":  MsgSignupCreated,
		"redirect": session.LandingPath,
	})
}

// Verify confirms an email address and sends the browser back to the app.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	target, err := h.auth.VerifyEmail(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		h.writeServiceError(w, r, err, "verification failed")
		return
	}
	if target == "" {
		target = h.cfg.AppURL + "#/"
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// Forgot mails a recovery link that lands on the reset view.
func (h *Handler) Forgot(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		envelope.Error(w, envelope.CodeValidation, "invalid JSON", nil)
		return
	}
	if strings.TrimSpace(payload.Email) == "" {
		envelope.Error(w, envelope.CodeValidation, "Email is required.", nil)
		return
	}

	if err := h.auth.ResetPasswordForEmail(r.Context(), strings.TrimSpace(payload.Email), h.cfg.AppURL+"#/reset"); err != nil {
		h.writeServiceError(w, r, err, "password reset failed")
		return
	}
	envelope.JSON(w, http.StatusOK, map[string]string{"message": MsgResetSent})
}

// Recovery turns the browser location of a recovery link into a session
// ready for a password update.
func (h *Handler) Recovery(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Location string `json:"location"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		envelope.Error(w, envelope.CodeValidation, "invalid JSON", nil)
		return
	}

	location := recovery.NormalizeLocation(payload.Location)
	params := recovery.ParseLocation(location)
	sess, err := recovery.Establish(r.Context(), h.auth, params, httpmiddleware.BearerToken(r))
	if err != nil {
		h.writeServiceError(w, r, err, recovery.MsgInitFailed)
		return
	}

	if sess.RefreshToken != "" {
		h.setRefreshCookie(w, sess.RefreshToken, time.Now().Add(h.cfg.JWTRefreshTTL))
	}
	envelope.JSON(w, http.StatusOK, map[string]any{
		"session_ready": true,
		"location":      location,
		"access_token":  sess.AccessToken,
		"user":          sess.User,
	})
}

// Refresh rotates the refresh cookie and issues a new access token.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	token, err := getRefreshFromRequest(r)
	if err != nil {
		envelope.Error(w, envelope.CodeAuth, identity.ErrSessionMissing.Message, nil)
		return
	}

	sess, err := h.auth.RefreshSession(r.Context(), token)
	if err != nil {
		var perr *identity.Error
		if errors.As(err, &perr) {
			h.clearRefreshCookie(w)
		}
		h.writeServiceError(w, r, err, "session refresh failed")
		return
	}
	h.writeSession(w, sess)
}

// Logout ends the caller's session.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if sess := httpmiddleware.GetSession(r.Context()); sess != nil {
		if err := h.auth.SignOut(r.Context(), sess.ID); err != nil {
			h.logger.Warn().Err(err).Msg("sign out failed")
		}
	}
	h.clearRefreshCookie(w)
	envelope.JSON(w, http.StatusOK, map[string]any{
		"status":   "logged_out",
		"redirect": session.LandingPath,
	})
}

// UpdatePassword sets a new password on the caller's session, then signs it
// out so the next step is a fresh login.
func (h *Handler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		envelope.Error(w, envelope.CodeValidation, "invalid JSON", nil)
		return
	}

	sess := httpmiddleware.GetSession(r.Context())
	if err := recovery.UpdatePassword(r.Context(), h.auth, sess, payload.Password); err != nil {
		h.writeServiceError(w, r, err, "password update failed")
		return
	}
	if err := h.auth.SignOut(r.Context(), sess.ID); err != nil {
		h.logger.Warn().Err(err).Msg("sign out after password update failed")
	}
	h.clearRefreshCookie(w)
	envelope.JSON(w, http.StatusOK, map[string]any{
		"message":  recovery.MsgUpdated,
		"redirect": session.LandingPath,
	})
}

func (h *Handler) writeSession(w http.ResponseWriter, sess *identity.Session) {
	h.setRefreshCookie(w, sess.RefreshToken, time.Now().Add(h.cfg.JWTRefreshTTL))
	envelope.JSON(w, http.StatusOK, map[string]any{
		"access_token": sess.AccessToken,
		"expires_at":   sess.ExpiresAt,
		"user":         sess.User,
	})
}

func getRefreshFromRequest(r *http.Request) (string, error) {
	if c, err := r.Cookie(refreshCookieName); err == nil && c.Value != "" {
		return c.Value, nil
	}
	return "", errors.New("refresh token missing")
}

func (h *Handler) setRefreshCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, h.refreshCookie(token, expires, 0))
}

func (h *Handler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, h.refreshCookie("", time.Time{}, -1))
}

func (h *Handler) refreshCookie(value string, expires time.Time, maxAge int) *http.Cookie {
	sameSite := http.SameSiteNoneMode
	if h.devCookies {
		sameSite = http.SameSiteLaxMode
	}
	return &http.Cookie{
		Name:     refreshCookieName,
		Value:    value,
		Path:     "/auth",
		Expires:  expires,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   !h.devCookies,
		SameSite: sameSite,
	}
}
