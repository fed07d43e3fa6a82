package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionRefreshes counts per-source session fetches by outcome
	SessionRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediasnap_session_refresh_total",
		Help: "Session fetches against upstream servers, by source and result.",
	}, []string{"source", "result"})

	// ActiveSessions tracks the size of the last merged session snapshot
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mediasnap_active_sessions",
		Help: "Number of sessions in the last merged snapshot.",
	})

	// Captures counts finished captures by type and terminal status
	Captures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediasnap_captures_total",
		Help: "Captures reaching a terminal status, by type and status.",
	}, []string{"type", "status"})

	// ProxyRequests counts thumbnail proxy fetches by source and result
	ProxyRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediasnap_proxy_requests_total",
		Help: "Thumbnail proxy fetches, by source and result.",
	}, []string{"source", "result"})
)
