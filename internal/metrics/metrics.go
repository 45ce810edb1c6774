package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTPRequests counts API requests by route and status class.
var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "regadmin_http_requests_total",
	Help: "API requests handled, by route and status code.",
}, []string{"route", "status"})

// ProviderFallbacks counts reads that degraded to placeholder data.
var ProviderFallbacks = promauto.NewCounter(prometheus.CounterOpts{
	Name: "regadmin_provider_fallbacks_total",
	Help: "Registration reads served placeholder data after a provider failure.",
})

// PollBatches counts non-empty change batches seen by the poller.
var PollBatches = promauto.NewCounter(prometheus.CounterOpts{
	Name: "regadmin_poll_batches_total",
	Help: "Non-empty change batches delivered by the change poller.",
})

// TokenRefreshes counts cloud access-token exchanges.
var TokenRefreshes = promauto.NewCounter(prometheus.CounterOpts{
	Name: "regadmin_token_refreshes_total",
	Help: "Access token credential exchanges against the cloud API.",
})
