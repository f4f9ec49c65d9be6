package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) initRoutes() {
	// Operational
	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())
	s.RegisterRouteHandler("GET "+RouteMetrics, promhttp.Handler())

	// Auth flow
	s.RegisterRouteFunc("GET "+RouteAuthLogin, s.LoginHandler())
	s.RegisterRouteFunc("GET "+RouteAuthCallback, s.CallbackHandler())
	s.RegisterRouteFunc("POST "+RouteAuthCallback, s.CallbackHandler())
	s.RegisterRouteFunc("GET "+RouteAuthLogout, s.LogoutHandler())
	s.RegisterRouteFunc("POST "+RouteAuthLogout, s.LogoutHandler())
	s.RegisterRouteFunc("GET "+RouteAuthLogoutCallback, s.LogoutCallbackHandler())
	s.RegisterRouteFunc("GET "+RouteAuthSession, s.SessionHandler())
	s.RegisterRouteFunc("POST "+RouteAuthRefresh, s.RefreshHandler())

	// Subscription API
	s.RegisterRouteFunc("GET "+RouteSubscription, s.GetSubscriptionHandler())
	s.RegisterRouteFunc("POST "+RouteSubscriptionPlan, s.ChangePlanHandler())
	s.RegisterRouteFunc("POST "+RouteSubscriptionCancel, s.CancelSubscriptionHandler())
	s.RegisterRouteFunc("POST "+RouteSubscriptionPayment, s.PaymentHandler())
	s.RegisterRouteFunc("GET "+RouteSubscriptionBilling, s.BillingHistoryHandler())

	// App routes go through the access guard
	s.RegisterRouteFunc("GET /{$}", s.HomeHandler())
	s.RegisterRouteFunc("GET "+RouteSubscribe, s.SubscribePageHandler())
	s.RegisterRouteHandler("GET "+RouteProducts+"{product}", s.guarded(s.ProductAreaHandler()))
	s.RegisterRouteHandler("GET "+RouteProducts+"{product}/{rest...}", s.guarded(s.ProductAreaHandler()))
}

func (s *Server) guarded(handler func(http.ResponseWriter, *http.Request)) http.Handler {
	return ChainMiddleware(http.HandlerFunc(handler),
		s.RecoverMiddleware,
		s.LoggingMiddleware,
		s.GuardMiddleware,
	)
}
