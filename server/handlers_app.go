package server

import "net/http"

// HealthHandler reports liveness.
func (s *Server) HealthHandler() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// HomeHandler is the public landing route.
func (s *Server) HomeHandler() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"service": s.config.GetAppName(),
			"login":   RouteAuthLogin,
		})
	}
}

// SubscribePageHandler is where product requests without a licensed
// product land. Public so that it is reachable mid-signup.
func (s *Server) SubscribePageHandler() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"message":      "A subscription is required for product areas.",
			"subscription": RouteSubscription,
		})
	}
}

// ProductAreaHandler serves the guarded product namespace. The guard has
// already established an authenticated session holding at least one
// product by the time this runs.
func (s *Server) ProductAreaHandler() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		product := r.PathValue("product")
		sessionID := s.currentSessionID(r)
		if product != "" && !s.entitlements.HasProduct(sessionID, product) {
			http.Redirect(w, r, RouteSubscribe, http.StatusFound)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"product": product})
	}
}
