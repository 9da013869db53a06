// Prometheus instrumentation for HTTP traffic and admin authentication.
//
// Labels are kept to a bounded set:
//
//   - method: HTTP method verb (GET, POST, ...)
//   - path:   the registered Gin route (e.g. /api/v1/user/:id), or "unmatched"
//   - status: numeric status code as a string (e.g. "200", "404")
//   - reason: why AdminAuth rejected a request
//
// Collectors register with the default registry in init and are safe for
// concurrent use.

package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// unmatchedPath labels requests that matched no registered route.
const unmatchedPath = "unmatched"

// HTTP collectors. The path label is the registered route pattern
// (c.FullPath()), never the raw URL, so user ids and photo keys do not
// create series.
var (
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	// no status label, to keep the histogram small
	httpLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	httpInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_inflight",
			Help: "Current number of in-flight HTTP requests.",
		},
	)

	// Buckets span small JSON bodies up to QR PNGs and staff photos.
	httpRespSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_response_size_bytes",
			Help: "Size of HTTP responses in bytes.",
			Buckets: []float64{
				200, 500, 1 << 10, 5 << 10,
				25 << 10, 100 << 10, 500 << 10,
				1 << 20, 2 << 20, 5 << 20,
			},
		},
		[]string{"method", "path"},
	)

	// adminAuthFailures is labelled by reason: malformed, unknown_session, lookup_error.
	adminAuthFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loyalty_admin_auth_failures_total",
			Help: "Rejected admin API requests, by reason.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(httpReqs, httpLat, httpInflight, httpRespSize, adminAuthFailures)
}

// Metrics returns middleware that instruments every request passing through
// the engine. For each request it records:
//
//   - http_requests_total{method,path,status}, incremented once the handler
//     chain has finished
//   - http_request_duration_seconds{method,path}, wall time spent in the chain
//   - http_requests_inflight, raised for the lifetime of the request
//   - http_response_size_bytes{method,path}, skipped when nothing was written
//
// The path label comes from c.FullPath(), so /user/1 and /user/2 share the
// /user/:id series; requests that matched no route use "unmatched". Mount it
// before the routes it should observe and expose the collectors with
// gin.WrapH(promhttp.Handler()).
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpInflight.Inc()
		defer httpInflight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = unmatchedPath
		}
		method := c.Request.Method

		httpReqs.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpLat.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		// -1 when nothing was written
		if size := c.Writer.Size(); size >= 0 {
			httpRespSize.WithLabelValues(method, path).Observe(float64(size))
		}
	}
}
