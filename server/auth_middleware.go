package server

import (
	"net/http"
	"net/url"
	"time"

	"github.com/corebrain/go-session-service/entitlement"
	"github.com/corebrain/go-session-service/guard"
)

// GuardMiddleware applies the access rules to navigable routes: public
// routes pass, unauthenticated requests go to login with their intended
// path remembered, and product routes without a licensed product go to the
// subscribe flow.
func (s *Server) GuardMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.URL.Path
		if s.IsPublicRoute(route) {
			next.ServeHTTP(w, r)
			return
		}

		sessionID, err := s.sessionID(w, r)
		if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		sess, err := s.sessions.Bootstrap(r.Context(), sessionID)
		if err != nil {
			s.logger.Error().Err(err).Msg("session bootstrap failed")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		var record *entitlement.Record
		if sess.IsAuthenticated() {
			record = s.entitlementRecord(r, sessionID, sess.ServiceToken, sess.User.ID, sess.HasServiceToken(time.Now()))
		}

		decision := guard.Decide(route, sess.IsAuthenticated(), record, s.IsPublicRoute)
		if decision.Allow {
			next.ServeHTTP(w, r)
			return
		}

		metricGuardRedirects.WithLabelValues(decision.RedirectTo).Inc()
		if decision.RedirectTo == guard.LoginRoute {
			if err := s.sessions.RememberPath(r.Context(), sessionID, route); err != nil {
				s.logger.Warn().Err(err).Msg("failed to remember intended path")
			}
			http.Redirect(w, r, guard.LoginRoute+"?next="+url.QueryEscape(route), http.StatusFound)
			return
		}
		http.Redirect(w, r, decision.RedirectTo, http.StatusFound)
	})
}

// entitlementRecord returns the session's cached record, fetching it once
// when the session can talk to billing. A degraded session without a
// service token falls back to the free record.
func (s *Server) entitlementRecord(r *http.Request, sessionID, serviceToken, userID string, hasServiceToken bool) *entitlement.Record {
	if record, ok := s.entitlements.Current(sessionID); ok {
		return record
	}
	if !hasServiceToken {
		return entitlement.FreeRecord()
	}
	return s.entitlements.Fetch(r.Context(), sessionID, serviceToken, userID)
}
