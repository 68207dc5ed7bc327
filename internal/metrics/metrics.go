package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "appsso"

var (
	tokensIssued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_issued_total",
			Help:      "Token pairs issued, by reason (login, refresh).",
		},
		[]string{"reason"},
	)

	tokenVerifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_verifications_total",
			Help:      "Access and refresh token verifications, by kind and result.",
		},
		[]string{"kind", "result"},
	)

	tokenRevocations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_revocations_total",
			Help:      "Token pair revocations, by reason.",
		},
		[]string{"reason"},
	)

	logins = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Federated login attempts, by provider and result.",
		},
		[]string{"provider", "result"},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latencies in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

var initOnce sync.Once

// Init registers the collectors in the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			tokensIssued,
			tokenVerifications,
			tokenRevocations,
			logins,
			httpRequestsTotal,
			httpRequestDuration,
		)
	})
}

func TokenIssued(reason string) {
	tokensIssued.WithLabelValues(reason).Inc()
}

func TokenVerified(kind, result string) {
	tokenVerifications.WithLabelValues(kind, result).Inc()
}

func TokenRevoked(reason string) {
	tokenRevocations.WithLabelValues(reason).Inc()
}

func Login(provider, result string) {
	logins.WithLabelValues(provider, result).Inc()
}

// Instrument records request counts and latencies per matched route.
func Instrument() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		start := time.Now()
		err := ctx.Next()

		status := ctx.Response().StatusCode()
		if e, ok := err.(*fiber.Error); ok {
			status = e.Code
		}
		route := ctx.Route().Path
		labels := []string{ctx.Method(), route, strconv.Itoa(status)}
		httpRequestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(labels...).Inc()
		return err
	}
}
