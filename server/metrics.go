package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricCodeExchanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "corebrain",
		Subsystem: "session",
		Name:      "code_exchanges_total",
		Help:      "Authorization-code callback outcomes.",
	}, []string{"result"})

	metricTokenRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "corebrain",
		Subsystem: "session",
		Name:      "service_token_refreshes_total",
		Help:      "Service token refresh outcomes.",
	}, []string{"result"})

	metricServiceTokenBridges = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "corebrain",
		Subsystem: "session",
		Name:      "service_token_bridges_total",
		Help:      "Service token bridge attempts.",
	}, []string{"result"})

	metricGuardRedirects = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "corebrain",
		Subsystem: "session",
		Name:      "guard_redirects_total",
		Help:      "Access-guard redirects by target.",
	}, []string{"target"})
)

// ObserveBridge records a service-token bridge attempt. Wired into the
// session manager as a bridge hook.
func ObserveBridge(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	metricServiceTokenBridges.WithLabelValues(result).Inc()
}
