package server

import (
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/corebrain/go-session-service/entitlement"
	"github.com/corebrain/go-session-service/internal/config"
	"github.com/corebrain/go-session-service/session"
)

type Server struct {
	env          string // Environment (e.g., "DEV", "PROD")
	mux          *http.ServeMux
	routes       []string
	config       config.Config
	logger       zerolog.Logger
	sessions     *session.Manager
	entitlements *entitlement.Provider
	publicRoutes map[string]bool
}

func New(cfg config.Config, logger zerolog.Logger, sessions *session.Manager, entitlements *entitlement.Provider) (*Server, error) {
	if sessions == nil {
		return nil, fmt.Errorf("[Server New] session manager is required")
	}
	if entitlements == nil {
		return nil, fmt.Errorf("[Server New] entitlement provider is required")
	}

	s := &Server{
		mux:          http.NewServeMux(),
		config:       cfg,
		logger:       logger.With().Str("component", "server").Logger(),
		sessions:     sessions,
		entitlements: entitlements,
		publicRoutes: defaultPublicRoutes(),
	}
	s.env = cfg.GetEnv()

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// IsPublicRoute reports whether a path needs no authentication at all.
func (s *Server) IsPublicRoute(path string) bool {
	if s.publicRoutes[path] {
		return true
	}
	return strings.HasPrefix(path, "/auth/") || path == RouteMetrics
}

func defaultPublicRoutes() map[string]bool {
	return map[string]bool{
		"/":            true,
		RouteSubscribe: true,
		RouteHealth:    true,
	}
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Printf("[%-19s] %s\n", displayMethod, path)
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
