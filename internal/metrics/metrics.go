// Package metrics registra las métricas Prometheus del servicio: tráfico
// HTTP, eventos de webhook, pushes de mensajería y estado del pool de Postgres.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce sync.Once
	registerErr  error

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpInflight        *prometheus.GaugeVec

	webhookEventsTotal *prometheus.CounterVec
	pushesTotal        *prometheus.CounterVec
	jobsTotal          *prometheus.CounterVec
	dispatchDuration   *prometheus.HistogramVec
)

// Config agrupa lo necesario para exponer /metrics.
type Config struct {
	Registry prometheus.Registerer
	PgPool   func() *pgxpool.Pool
}

// Register inicializa las métricas y devuelve el handler para /metrics.
func Register(cfg Config) (http.Handler, error) {
	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Número total de requests procesadas",
		}, []string{"method", "path", "status"})

		httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Latencia de los requests HTTP",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"})

		httpInflight = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Requests en vuelo por método y ruta",
		}, []string{"method", "path"})

		webhookEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Eventos de webhook recibidos por tipo y resultado",
		}, []string{"type", "result"}) // result: ok|error|panic

		pushesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "message_pushes_total",
			Help: "Pushes de mensajería por resultado",
		}, []string{"result"}) // result: success|failure

		jobsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "message_jobs_total",
			Help: "Jobs de envío por estado terminal",
		}, []string{"status"}) // status: completed|failed

		dispatchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "message_dispatch_duration_seconds",
			Help:    "Duración del fan-out completo de un job",
			Buckets: []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0},
		}, []string{"target_type"})

		for _, c := range []prometheus.Collector{
			httpRequestsTotal, httpRequestDuration, httpInflight,
			webhookEventsTotal, pushesTotal, jobsTotal, dispatchDuration,
		} {
			if err := registerCollector(registry, c); err != nil {
				registerErr = err
				return
			}
		}
	})
	if registerErr != nil {
		return nil, registerErr
	}

	if cfg.PgPool != nil {
		if err := registerCollector(registry, newPgPoolCollector(cfg.PgPool)); err != nil {
			return nil, err
		}
	}

	return promhttp.Handler(), nil
}

// WithHTTP instrumenta requests con contadores, latencia e inflight.
func WithHTTP(next http.Handler) http.Handler {
	if next == nil {
		return nil
	}
	if httpRequestsTotal == nil || httpRequestDuration == nil || httpInflight == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := strings.ToUpper(r.Method)
		path := normalizePath(r.URL.Path)

		httpInflight.WithLabelValues(method, path).Inc()
		start := time.Now()

		rec := &statusRecorder{ResponseWriter: w}
		defer func() {
			httpInflight.WithLabelValues(method, path).Dec()
			httpRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
		}()

		next.ServeHTTP(rec, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// RecordWebhookEvent registra un evento entrante y su resultado.
func RecordWebhookEvent(eventType, result string) {
	if webhookEventsTotal != nil {
		webhookEventsTotal.WithLabelValues(eventType, result).Inc()
	}
}

// RecordPush registra el resultado de un push individual.
func RecordPush(success bool) {
	if pushesTotal == nil {
		return
	}
	if success {
		pushesTotal.WithLabelValues("success").Inc()
	} else {
		pushesTotal.WithLabelValues("failure").Inc()
	}
}

// RecordJob registra el estado terminal de un job y la duración del fan-out.
func RecordJob(status, targetType string, d time.Duration) {
	if jobsTotal != nil {
		jobsTotal.WithLabelValues(status).Inc()
	}
	if dispatchDuration != nil {
		dispatchDuration.WithLabelValues(targetType).Observe(d.Seconds())
	}
}

func registerCollector(reg prometheus.Registerer, c prometheus.Collector) error {
	if err := reg.Register(c); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return nil
		}
		return err
	}
	return nil
}

// pgPoolCollector expone gauges del pool de Postgres.
type pgPoolCollector struct {
	pool func() *pgxpool.Pool

	acquiredDesc *prometheus.Desc
	idleDesc     *prometheus.Desc
	totalDesc    *prometheus.Desc
}

func newPgPoolCollector(pool func() *pgxpool.Pool) *pgPoolCollector {
	return &pgPoolCollector{
		pool:         pool,
		acquiredDesc: prometheus.NewDesc("pg_pool_acquired", "Conexiones adquiridas", nil, nil),
		idleDesc:     prometheus.NewDesc("pg_pool_idle", "Conexiones inactivas", nil, nil),
		totalDesc:    prometheus.NewDesc("pg_pool_total", "Conexiones totales", nil, nil),
	}
}

func (c *pgPoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.acquiredDesc
	ch <- c.idleDesc
	ch <- c.totalDesc
}

func (c *pgPoolCollector) Collect(ch chan<- prometheus.Metric) {
	pool := c.pool()
	if pool == nil {
		return
	}
	stat := pool.Stat()
	if stat == nil {
		return
	}
	ch <- prometheus.MustNewConstMetric(c.acquiredDesc, prometheus.GaugeValue, float64(stat.AcquiredConns()))
	ch <- prometheus.MustNewConstMetric(c.idleDesc, prometheus.GaugeValue, float64(stat.IdleConns()))
	ch <- prometheus.MustNewConstMetric(c.totalDesc, prometheus.GaugeValue, float64(stat.TotalConns()))
}

func normalizePath(p string) string {
	if p == "" || p == "/" {
		return "/"
	}
	clean := strings.SplitN(p, "?", 2)[0]
	segments := strings.Split(strings.Trim(clean, "/"), "/")
	var out []string
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		if isDynamicSegment(seg) {
			out = append(out, ":param")
		} else {
			out = append(out, seg)
		}
	}
	if len(out) == 0 {
		return "/"
	}
	return "/" + strings.Join(out, "/")
}

func isDynamicSegment(seg string) bool {
	if len(seg) > 48 {
		return true
	}
	if _, err := strconv.Atoi(seg); err == nil {
		return true
	}
	// Ids de LINE (U + 32 hex) y uuids.
	if len(seg) >= 24 && !strings.ContainsAny(seg, ".") {
		hasDigit := strings.IndexFunc(seg, func(r rune) bool { return r >= '0' && r <= '9' }) >= 0
		if hasDigit {
			return true
		}
	}
	return false
}
