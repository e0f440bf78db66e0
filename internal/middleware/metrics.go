package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/neogan74/droppy-api/internal/metrics"
)

// otherPath labels requests to paths that are not served, keeping label
// cardinality bounded when clients probe random URLs.
const otherPath = "other"

// MetricsMiddleware tracks HTTP request metrics. Only paths listed in
// knownPaths are used as the path label verbatim.
func MetricsMiddleware(knownPaths ...string) fiber.Handler {
	known := make(map[string]struct{}, len(knownPaths))
	for _, p := range knownPaths {
		known[p] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		metrics.HTTPRequestsInFlight.Inc()
		defer metrics.HTTPRequestsInFlight.Dec()

		start := time.Now()
		err := c.Next()
		duration := time.Since(start).Seconds()

		status := strconv.Itoa(c.Response().StatusCode())
		path := pathLabel(c.Path(), known)

		metrics.HTTPRequestsTotal.WithLabelValues(c.Method(), path, status).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Method(), path, status).Observe(duration)

		return err
	}
}

func pathLabel(path string, known map[string]struct{}) string {
	if _, ok := known[path]; ok {
		return path
	}
	return otherPath
}
