package httpapi

import (
	"net/http"
	"time"

	"github.com/R3E-Network/fortivo/internal/app/services/auth"
	"github.com/R3E-Network/fortivo/internal/httputil"
	"github.com/R3E-Network/fortivo/internal/middleware"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *handler) signup(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if !h.decode(w, r, &body) {
		return
	}
	session, err := h.app.Auth.Signup(r.Context(), body.Email, body.Password)
	if err != nil {
		h.fail(w, r, err, "signup_failed")
		return
	}
	h.setSession(w, session)
	httputil.WriteJSON(w, http.StatusCreated, session.User)
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if !h.decode(w, r, &body) {
		return
	}
	session, err := h.app.Auth.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		h.log.LogSecurityEvent(r.Context(), "login_failed", map[string]interface{}{"email": body.Email})
		h.fail(w, r, err, "login_failed")
		return
	}
	h.setSession(w, session)
	httputil.WriteJSON(w, http.StatusOK, session.User)
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	if token := middleware.TokenFromRequest(r, h.cfg.CookieName); token != "" {
		if err := h.app.Auth.Logout(r.Context(), token); err != nil {
			h.log.WithContext(r.Context()).WithError(err).Warn("token revocation failed")
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) me(w http.ResponseWriter, r *http.Request) {
	identity, err := h.app.Auth.Me(r.Context(), userID(r))
	if err != nil {
		h.fail(w, r, err, "failed_to_load_user")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, identity)
}

func (h *handler) devBootstrap(w http.ResponseWriter, r *http.Request) {
	identity, err := h.app.Auth.DevBootstrap(r.Context())
	if err != nil {
		h.fail(w, r, err, "bootstrap_failed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"userId": identity.ID,
		"email":  identity.Email,
	})
}

func (h *handler) setSession(w http.ResponseWriter, session auth.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.CookieName,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
