package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Auth Routes
	RouteAuthLogin          = "/auth/login"
	RouteAuthCallback       = "/auth/callback"
	RouteAuthLogout         = "/auth/logout"
	RouteAuthLogoutCallback = "/auth/logout/callback"
	RouteAuthSession        = "/auth/session"
	RouteAuthRefresh        = "/auth/refresh"

	// Subscription API Routes
	RouteSubscription        = "/api/subscription"
	RouteSubscriptionPlan    = "/api/subscription/plan"
	RouteSubscriptionCancel  = "/api/subscription/cancel"
	RouteSubscriptionPayment = "/api/subscription/payment"
	RouteSubscriptionBilling = "/api/subscription/billing"

	// App Routes
	RouteSubscribe = "/subscribe"
	RouteProducts  = "/products/"

	// Operational Routes
	RouteHealth  = "/healthz"
	RouteMetrics = "/metrics"
)
