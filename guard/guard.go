// Package guard makes the per-request access decision from session and
// entitlement state. It is purely functional: persisting the intended path
// before forcing login is the caller's side effect.
package guard

import (
	"strings"

	"github.com/corebrain/go-session-service/entitlement"
)

const (
	// LoginRoute is where unauthenticated requests are sent.
	LoginRoute = "/auth/login"
	// SubscribeRoute is where product requests without any licensed
	// product are sent.
	SubscribeRoute = "/subscribe"
	// ProductPrefix marks the product namespace.
	ProductPrefix = "/products/"
)

// Decision is the outcome for one request. RedirectTo is set exactly when
// Allow is false.
type Decision struct {
	Allow      bool
	RedirectTo string
}

func allow() Decision             { return Decision{Allow: true} }
func redirect(to string) Decision { return Decision{RedirectTo: to} }

// IsProductRoute reports whether the route is under the product namespace.
func IsProductRoute(route string) bool {
	return strings.HasPrefix(route, ProductPrefix)
}

// Decide applies the access rules in order:
//  1. public routes are allowed unconditionally;
//  2. unauthenticated requests are sent to the login flow;
//  3. product-namespace requests with an empty product set are sent to the
//     subscribe flow;
//  4. everything else is allowed — an authenticated session always has an
//     entitlement record (the provider synthesizes a free one), and
//     fine-grained feature gating happens inside the destination.
func Decide(route string, isAuthenticated bool, record *entitlement.Record, isPublicRoute func(string) bool) Decision {
	if isPublicRoute != nil && isPublicRoute(route) {
		return allow()
	}
	if !isAuthenticated {
		return redirect(LoginRoute)
	}
	if IsProductRoute(route) && (record == nil || !record.HasProducts()) {
		return redirect(SubscribeRoute)
	}
	return allow()
}
