package querycache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	hitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "querycache",
		Name:      "hits_total",
		Help:      "Total number of fresh cache hits by entity and operation.",
	}, []string{"entity", "op"})

	missesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "querycache",
		Name:      "misses_total",
		Help:      "Total number of cache misses by entity and operation.",
	}, []string{"entity", "op"})

	expiredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "querycache",
		Name:      "expired_total",
		Help:      "Total number of entries dropped on access because their TTL had passed.",
	}, []string{"entity", "op"})

	invalidationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "querycache",
		Name:      "invalidations_total",
		Help:      "Total number of entity-wide invalidations.",
	}, []string{"entity"})
)
