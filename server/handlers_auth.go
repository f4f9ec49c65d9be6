package server

import (
	"net/http"
	"time"

	"github.com/pkg/errors"

	errs "github.com/corebrain/go-session-service/internal/errors"
)

// LoginHandler starts the login flow: it remembers where the caller was
// headed and sends the browser to the identity provider.
func (s *Server) LoginHandler() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := s.sessionID(w, r)
		if err != nil {
			http.Error(w, "Unable to start sign-in. Please try again.", http.StatusInternalServerError)
			return
		}

		authURL, err := s.sessions.Login(r.Context(), sessionID, r.URL.Query().Get("provider"), r.URL.Query().Get("next"))
		if err != nil {
			s.logger.Error().Err(err).Msg("login start failed")
			http.Error(w, "Unable to start sign-in. Please try again.", http.StatusInternalServerError)
			return
		}
		http.Redirect(w, r, authURL, http.StatusFound)
	}
}

// CallbackHandler finishes the login flow. The identity provider may
// deliver the same code more than once; the session manager makes the
// exchange idempotent, so a duplicate delivery still lands on the success
// path. Any failure surfaces as one message with a retry route.
func (s *Server) CallbackHandler() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		code := r.FormValue("code")
		if code == "" {
			s.callbackFailed(w, r, errors.New("missing authorization code"))
			return
		}

		sessionID, err := s.sessionID(w, r)
		if err != nil {
			s.callbackFailed(w, r, err)
			return
		}

		ok, err := s.sessions.HandleCallback(r.Context(), sessionID, code)
		if err != nil || !ok {
			s.callbackFailed(w, r, err)
			return
		}
		metricCodeExchanges.WithLabelValues("success").Inc()

		next := s.sessions.ConsumeRedirectPath(r.Context(), sessionID)
		if next == "" {
			next = "/"
		}
		http.Redirect(w, r, next, http.StatusFound)
	}
}

func (s *Server) callbackFailed(w http.ResponseWriter, r *http.Request, err error) {
	metricCodeExchanges.WithLabelValues("failure").Inc()
	s.logger.Warn().Err(err).Msg("authentication callback failed")
	http.Redirect(w, r, RouteAuthLogin+"?error=callback_failed", http.StatusFound)
}

// LogoutHandler revokes the session locally and remotely, then sends the
// browser through the provider's logout round trip.
func (s *Server) LogoutHandler() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := s.currentSessionID(r)
		if sessionID == "" {
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}

		logoutURL, err := s.sessions.Logout(r.Context(), sessionID, r.FormValue("return"))
		if err != nil {
			s.logger.Error().Err(err).Msg("logout failed")
			http.Error(w, "Unable to sign out. Please try again.", http.StatusInternalServerError)
			return
		}
		http.Redirect(w, r, logoutURL, http.StatusFound)
	}
}

// LogoutCallbackHandler completes the provider logout round trip.
func (s *Server) LogoutCallbackHandler() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		next := "/"
		if sessionID := s.currentSessionID(r); sessionID != "" {
			next = s.sessions.CompleteLogout(r.Context(), sessionID)
		}
		http.Redirect(w, r, next, http.StatusFound)
	}
}

// SessionHandler reports the caller's session: authentication, state
// machine position, user identity, and current entitlement tier.
func (s *Server) SessionHandler() func(w http.ResponseWriter, r *http.Request) {
	type sessionResponse struct {
		Authenticated bool   `json:"authenticated"`
		State         string `json:"state"`
		ServiceToken  bool   `json:"service_token"`
		User          any    `json:"user,omitempty"`
		Tier          string `json:"tier,omitempty"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := s.currentSessionID(r)
		if sessionID == "" {
			writeJSON(w, http.StatusOK, sessionResponse{State: string(s.sessions.StateOf(""))})
			return
		}

		sess, err := s.sessions.Bootstrap(r.Context(), sessionID)
		if err != nil {
			s.logger.Error().Err(err).Msg("session bootstrap failed")
			writeJSONError(w, http.StatusInternalServerError, "session lookup failed")
			return
		}

		resp := sessionResponse{State: string(s.sessions.StateOf(sessionID))}
		if sess.IsAuthenticated() {
			resp.Authenticated = true
			resp.ServiceToken = sess.HasServiceToken(time.Now())
			resp.User = sess.User
			if record, ok := s.entitlements.Current(sessionID); ok {
				resp.Tier = string(record.Tier)
			}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// RefreshHandler re-derives the service token from the current provider
// token. A session whose provider token is gone gets a 401; the client's
// recovery is a fresh login.
func (s *Server) RefreshHandler() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := s.currentSessionID(r)
		if sessionID == "" {
			writeJSONError(w, http.StatusUnauthorized, "not authenticated")
			return
		}

		if err := s.sessions.RefreshAPIToken(r.Context(), sessionID); err != nil {
			metricTokenRefreshes.WithLabelValues("failure").Inc()
			if errors.Is(err, errs.ErrMissingOrExpiredToken) {
				writeJSONError(w, http.StatusUnauthorized, "session expired, sign in again")
				return
			}
			s.logger.Warn().Err(err).Msg("service token refresh failed")
			writeJSONError(w, http.StatusBadGateway, "token refresh failed")
			return
		}
		metricTokenRefreshes.WithLabelValues("success").Inc()
		writeJSON(w, http.StatusOK, map[string]bool{"refreshed": true})
	}
}
