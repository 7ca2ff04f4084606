// metrics — счётчики и гистограммы сервиса для Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "copilot_auth"

// Способы выпуска пары токенов (label method).
const (
	MethodRegister   = "register"
	MethodLogin      = "login"
	MethodRefresh    = "refresh"
	MethodFederation = "federation"
)

// Metrics объединяет коллекторы сервиса. Нулевой указатель допустим:
// все методы на nil ничего не делают.
type Metrics struct {
	registry *prometheus.Registry

	sessionsIssued *prometheus.CounterVec
	replays        prometheus.Counter
	authFailures   *prometheus.CounterVec
	cacheWrites    *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New создаёт отдельный реестр с коллекторами сервиса, процесса и рантайма.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		sessionsIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_issued_total",
			Help:      "Token pairs issued, by method.",
		}, []string{"method"}),
		replays: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_replays_total",
			Help:      "Refresh tokens presented after rotation; each one wipes the user's whitelist.",
		}),
		authFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_failures_total",
			Help:      "Rejected authentication attempts, by reason.",
		}, []string{"reason"}),
		cacheWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_cache_writes_total",
			Help:      "Provider token cache writes, by result.",
		}, []string{"result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests, by route pattern, method and status code.",
		}, []string{"route", "method", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency, by route pattern and method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.sessionsIssued,
		m.replays,
		m.authFailures,
		m.cacheWrites,
		m.httpRequests,
		m.httpDuration,
	)

	return m
}

// Handler отдаёт метрики в формате Prometheus.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}

	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) SessionIssued(method string) {
	if m == nil {
		return
	}
	m.sessionsIssued.WithLabelValues(method).Inc()
}

func (m *Metrics) ReplayDetected() {
	if m == nil {
		return
	}
	m.replays.Inc()
}

func (m *Metrics) AuthFailed(reason string) {
	if m == nil {
		return
	}
	m.authFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) CacheWrite(ok bool) {
	if m == nil {
		return
	}

	result := "ok"
	if !ok {
		result = "error"
	}
	m.cacheWrites.WithLabelValues(result).Inc()
}

// ObserveHTTP учитывает завершённый HTTP-запрос.
func (m *Metrics) ObserveHTTP(route, method, code string, seconds float64) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, code).Inc()
	m.httpDuration.WithLabelValues(route, method).Observe(seconds)
}
