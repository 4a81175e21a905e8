package handler

import (
	"context"
	"errors"
	"net/http"

	appErrors "github.com/unclebandit/campaign-studio/internal/errors"
	"github.com/unclebandit/campaign-studio/internal/session"
)

const sessionCookie = "studio_session"

type sessionKey struct{}

// LoadSession attaches the operator's session to the request context,
// starting a new one when the cookie is missing or expired.
func (h *CampaignHandler) LoadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := h.lookupSession(r)
		if sess == nil {
			sess = session.New()
			if err := h.Sessions.Save(r.Context(), sess); err != nil {
				h.Logger.Error().Err(err).Msg("handler: failed to start session")
				http.Error(w, "session unavailable", http.StatusServiceUnavailable)
				return
			}
			h.setCookie(w, sess.ID)
		}
		ctx := context.WithValue(r.Context(), sessionKey{}, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireGate sends unverified operators to the login page unless no
// passphrase is configured.
func (h *CampaignHandler) RequireGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.Gate.Open() && !sessionFrom(r).Verified {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *CampaignHandler) lookupSession(r *http.Request) *session.Session {
	c, err := r.Cookie(sessionCookie)
	if err != nil || c.Value == "" {
		return nil
	}
	sess, err := h.Sessions.Get(r.Context(), c.Value)
	if err != nil {
		if !errors.Is(err, appErrors.ErrSessionNotFound) {
			h.Logger.Warn().Err(err).Msg("handler: session lookup failed")
		}
		return nil
	}
	return sess
}

func (h *CampaignHandler) setCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *CampaignHandler) save(r *http.Request, sess *session.Session) {
	if err := h.Sessions.Save(r.Context(), sess); err != nil {
		h.Logger.Warn().Err(err).Str("session_id", sess.ID).Msg("handler: failed to save session")
	}
}

func sessionFrom(r *http.Request) *session.Session {
	if sess, ok := r.Context().Value(sessionKey{}).(*session.Session); ok {
		return sess
	}
	return session.New()
}
