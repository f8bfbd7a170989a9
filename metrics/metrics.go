// Package metrics exposes Prometheus collectors for the HTTP layer and the social graph.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chamran"

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route, method and status.",
	}, []string{"route", "method", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route and method.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})

	cascadeSteps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cascade_steps_total",
		Help:      "Cascade delete steps by step name and outcome.",
	}, []string{"step", "outcome"})

	followChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "follow_changes_total",
		Help:      "Follow edge mutations that changed state.",
	}, []string{"action"})
)

// Outcomes recorded for cascade steps.
const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
)

// Middleware records request count and latency. Unmatched routes are grouped under "unmatched".
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the default registry.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

// CascadeStep counts one cascade step outcome.
func CascadeStep(step, outcome string) {
	cascadeSteps.WithLabelValues(step, outcome).Inc()
}

// FollowChanged counts a follow or unfollow that changed the graph.
func FollowChanged(action string) {
	followChanges.WithLabelValues(action).Inc()
}
