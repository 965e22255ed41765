package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sharepass_http_requests_total",
		Help: "Количество HTTP-запросов по методу и статусу.",
	}, []string{"method", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sharepass_http_request_duration_seconds",
		Help:    "Время обработки HTTP-запроса.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})
)

// Metrics собирает счётчики и гистограммы запросов для /metrics.
// Лейбл path не используется: у файловых маршрутов высокая кардинальность.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrap := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrap, r)
		httpRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(wrap.status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	})
}
