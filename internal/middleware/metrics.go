package middleware

import (
	"strconv"
	"sync"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts failed Redis commands by command name.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "project0_redis_errors_total",
		Help: "Total number of failed Redis commands",
	}, []string{"command"})

	// ActiveWebSockets is the number of open notification sockets.
	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "project0_active_websockets",
		Help: "Number of active WebSocket connections",
	})

	// HTTPResponses counts responses by route template and status class.
	HTTPResponses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "project0_http_responses_total",
		Help: "Total HTTP responses by route and status class",
	}, []string{"route", "class"})
)

var (
	promOnce      sync.Once
	promSingleton *fiberprometheus.FiberPrometheus
)

// InitMetrics returns the process-wide fiberprometheus instance.
// Repeated calls return the same instance so collectors are registered once.
func InitMetrics(serviceName string) *fiberprometheus.FiberPrometheus {
	promOnce.Do(func() {
		promSingleton = fiberprometheus.New(serviceName)
	})
	return promSingleton
}

// MetricsMiddleware records request metrics through fiberprometheus plus a
// per-route status-class counter.
func MetricsMiddleware(p *fiberprometheus.FiberPrometheus) fiber.Handler {
	base := p.Middleware
	return func(c *fiber.Ctx) error {
		err := base(c)

		route := c.Route().Path
		if route == "" {
			route = "unmatched"
		}
		class := strconv.Itoa(c.Response().StatusCode()/100) + "xx"
		HTTPResponses.WithLabelValues(route, class).Inc()
		return err
	}
}
