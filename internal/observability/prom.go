package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

type Prom struct {
	RequestsTotal    *prometheus.CounterVec
	RequestsDuration *prometheus.HistogramVec
	InFlight         *prometheus.GaugeVec
	// DB
	DbQueryDuration *prometheus.HistogramVec
	DbErrorsTotal   *prometheus.CounterVec

	// Outbound mail
	MailDuration *prometheus.HistogramVec
	MailResults  *prometheus.CounterVec

	RateLimited  *prometheus.CounterVec
	CacheLookups *prometheus.CounterVec
}

func NewProm(reg prometheus.Registerer) *Prom {
	p := &Prom{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tourhub",
				Name:      "http_requests_total",
				Help:      "Total HTTP requests processed",
			},
			[]string{"method", "route", "status"},
		),
		RequestsDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "tourhub",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency distributions.",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"method", "route", "status"},
		),
		InFlight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "tourhub",
				Name:      "http_in_flight_requests",
				Help:      "Current number of in-flight HTTP requests.",
			},
			[]string{"method", "route"},
		),
		DbQueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "tourhub",
				Subsystem: "db",
				Name:      "query_duration_seconds",
				Help:      "Store operation latency by logical op.",
				Buckets:   []float64{0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.35, 0.5, 1, 2, 5},
			},
			[]string{"op", "status"},
		),
		DbErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tourhub",
				Subsystem: "db",
				Name:      "errors_total",
				Help:      "Store errors by logical op and class.",
			},
			[]string{"op", "class"},
		),
		MailDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "tourhub",
				Subsystem: "mail",
				Name:      "send_duration_seconds",
				Help:      "Outbound mail latency by provider and result.",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"provider", "result"},
		),
		MailResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tourhub",
				Subsystem: "mail",
				Name:      "results_total",
				Help:      "Outbound mail outcomes by provider and result.",
			},
			[]string{"provider", "result"}, // result=sent|failed|rejected
		),
		RateLimited: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tourhub",
				Name:      "rate_limited_total",
				Help:      "Requests rejected by the rate limiter.",
			},
			[]string{"route"},
		),
		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tourhub",
				Subsystem: "cache",
				Name:      "lookups_total",
				Help:      "Response cache lookups by result.",
			},
			[]string{"result"}, // result=hit|miss
		),
	}
	reg.MustRegister(p.RequestsTotal, p.RequestsDuration, p.InFlight, p.DbQueryDuration, p.DbErrorsTotal,
		p.MailDuration, p.MailResults, p.RateLimited, p.CacheLookups)

	return p
}

func (p *Prom) GinHandleMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()

		// route template is only available after routing; best effort:
		route := ctx.FullPath()

		if route == "" {
			route = "unmatched"
		}

		method := ctx.Request.Method
		p.InFlight.WithLabelValues(method, route).Inc()
		defer p.InFlight.WithLabelValues(method, route).Dec()
		ctx.Next()

		status := strconv.Itoa(ctx.Writer.Status())
		secs := time.Since(start).Seconds()

		p.RequestsTotal.WithLabelValues(method, route, status).Inc()
		p.RequestsDuration.WithLabelValues(method, route, status).Observe(secs)
	}
}

// ObserveMail records one delivery attempt.
func (p *Prom) ObserveMail(provider, result string, d time.Duration) {
	p.MailResults.WithLabelValues(provider, result).Inc()
	p.MailDuration.WithLabelValues(provider, result).Observe(d.Seconds())
}
