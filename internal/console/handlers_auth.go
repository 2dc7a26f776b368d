package console

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/org/opsconsole/internal/client"
	"github.com/org/opsconsole/internal/guard"
	"github.com/org/opsconsole/internal/session"
	"github.com/org/opsconsole/pkg/models"
)

// landing is where a signed-in user goes after login.
func landing(u *models.User) string {
	if u != nil && !u.PasswordChanged {
		return guard.ChangePasswordPath
	}
	return guard.HomePath
}

// HealthHandler handles GET /healthz
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// LoginPageHandler handles GET /login. Signed-in users are sent on.
func (s *Server) LoginPageHandler(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromCtx(r.Context())
	if sess.Authenticated() {
		writeDecision(w, r, guard.Decision{Kind: guard.Redirect, Location: landing(sess.User), Reason: "already signed in"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"page": "login"})
}

// LoginHandler handles POST /login
func (s *Server) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "id and password are required")
		return
	}

	sess, err := session.Login(r.Context(), s.api, req.UserID, req.Password)
	switch {
	case errors.Is(err, session.ErrBadCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	case errors.Is(err, session.ErrInactive):
		writeError(w, http.StatusForbidden, err.Error())
		return
	case err != nil:
		writeBackendError(w, err, "login failed")
		return
	}

	if err := s.setSessionCookie(w, sess.Token); err != nil {
		log.Error().Err(err).Msg("sealing session cookie")
		writeError(w, http.StatusInternalServerError, "could not start session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":     sess.User,
		"redirect": landing(sess.User),
	})
}

// LogoutHandler handles POST /logout
func (s *Server) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	s.clearSessionCookie(w)
	if sess := sessionFromCtx(r.Context()); sess.User != nil {
		log.Info().Str("user", sess.User.UserID).Msg("signed out")
	}
	writeJSON(w, http.StatusOK, map[string]any{"redirect": guard.LoginPath})
}

// ChangePasswordPageHandler handles GET /change-password
func (s *Server) ChangePasswordPageHandler(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromCtx(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"page":      "change-password",
		"user":      sess.User,
		"required":  !sess.User.PasswordChanged,
		"minLength": session.MinPasswordLength,
	})
}

// ChangePasswordHandler handles POST /change-password
func (s *Server) ChangePasswordHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
		ConfirmPassword string `json:"confirmPassword"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess := sessionFromCtx(r.Context())
	updated, err := session.ChangePassword(r.Context(), s.api, sess, req.CurrentPassword, req.NewPassword, req.ConfirmPassword)
	switch {
	case errors.Is(err, session.ErrPasswordMismatch), errors.Is(err, session.ErrPasswordTooShort):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		if client.IsUnauthorized(err) {
			s.clearSessionCookie(w)
		}
		writeBackendError(w, err, "password change failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":     updated.User,
		"redirect": landing(updated.User),
	})
}

// SidebarHandler handles POST /preferences/sidebar. The body may set
// "collapsed"; an empty body toggles.
func (s *Server) SidebarHandler(w http.ResponseWriter, r *http.Request) {
	collapsed := !sidebarCollapsed(r)
	var req struct {
		Collapsed *bool `json:"collapsed"`
	}
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Collapsed != nil {
			collapsed = *req.Collapsed
		}
	}
	value := "0"
	if collapsed {
		value = "1"
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sidebarCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   365 * 24 * 60 * 60,
		Secure:   s.cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]any{"collapsed": collapsed})
}
