// Package metrics owns the Prometheus registry and the collectors the
// server exports on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Composition outcomes.
const (
	OutcomeCreated  = "created"
	OutcomeRejected = "rejected"
	OutcomeNotFound = "not_found"
	OutcomeFailed   = "failed"
)

type Registry struct {
	reg *prometheus.Registry

	httpRequests        *prometheus.CounterVec
	httpDuration        *prometheus.HistogramVec
	compositions        *prometheus.CounterVec
	compositionDuration prometheus.Histogram
	deliveries          *prometheus.CounterVec
}

func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clinicops_http_requests_total",
				Help: "HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "clinicops_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		compositions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clinicops_event_compositions_total",
				Help: "Event composition attempts by outcome",
			},
			[]string{"outcome"},
		),
		compositionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "clinicops_event_composition_duration_seconds",
				Help:    "Time spent validating and composing an event",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
			},
		),
		deliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clinicops_notification_deliveries_total",
				Help: "Notification deliveries by channel and result",
			},
			[]string{"channel", "result"},
		),
	}

	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.httpRequests,
		r.httpDuration,
		r.compositions,
		r.compositionDuration,
		r.deliveries,
	)
	return r
}

// Gatherer exposes the underlying registry for tests and custom exporters.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// ObserveComposition records one compose attempt. It is safe on a nil Registry.
func (r *Registry) ObserveComposition(outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.compositions.WithLabelValues(outcome).Inc()
	r.compositionDuration.Observe(d.Seconds())
}

// ObserveDelivery records one notification attempt. It is safe on a nil Registry.
func (r *Registry) ObserveDelivery(channel string, ok bool) {
	if r == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	r.deliveries.WithLabelValues(channel, result).Inc()
}

func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// Middleware counts requests by route template so ids do not explode label
// cardinality.
func (r *Registry) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else {
					status = http.StatusInternalServerError
				}
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			r.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			r.httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}
