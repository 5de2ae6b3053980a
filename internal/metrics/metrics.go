// Package metrics exposes Prometheus metrics for the intake service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker"

	"github.com/smart-order-intake/server/internal/intake/model"
)

const namespace = "order_intake"

// Registry owns a private Prometheus registry. A nil *Registry is a no-op.
type Registry struct {
	reg *prometheus.Registry

	RequestsTotal      *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
	OrdersTotal        *prometheus.CounterVec
	OrderValue         prometheus.Histogram
	OrderIssues        *prometheus.CounterVec
	ProcessingDuration prometheus.Histogram
	ExtractionsTotal   *prometheus.CounterVec
	ExtractionDuration prometheus.Histogram
	ExtractionCostUSD  prometheus.Counter
	BreakerState       *prometheus.GaugeVec
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests",
	}, []string{"method", "endpoint", "status"})
	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "endpoint"})
	orders := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orders_processed_total",
		Help:      "Processed orders by final status",
	}, []string{"status", "degraded"})
	orderValue := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "order_value",
		Help:      "Total value of processed orders",
		Buckets:   []float64{10, 50, 100, 500, 1000, 5000, 10000, 50000},
	})
	orderIssues := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "order_issues_total",
		Help:      "Order-level issues by kind",
	}, []string{"kind"})
	processing := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "processing_duration_seconds",
		Help:      "End-to-end email processing time",
		Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 20, 45, 90},
	})
	extractions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "extractions_total",
		Help:      "LLM extraction attempts by outcome",
	}, []string{"outcome"})
	extractionDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "extraction_duration_seconds",
		Help:      "LLM extraction time",
		Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 20, 45, 90},
	})
	cost := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "extraction_cost_usd_total",
		Help:      "Accumulated LLM cost in USD",
	})
	breaker := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "circuit_breaker_state",
		Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
	}, []string{"circuit_name"})

	r.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		requests, requestDuration, orders, orderValue, orderIssues, processing,
		extractions, extractionDuration, cost, breaker,
	)

	return &Registry{
		reg:                r,
		RequestsTotal:      requests,
		RequestDuration:    requestDuration,
		OrdersTotal:        orders,
		OrderValue:         orderValue,
		OrderIssues:        orderIssues,
		ProcessingDuration: processing,
		ExtractionsTotal:   extractions,
		ExtractionDuration: extractionDuration,
		ExtractionCostUSD:  cost,
		BreakerState:       breaker,
	}
}

func (r *Registry) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// ObserveOrder records one processed order.
func (r *Registry) ObserveOrder(order *model.Order, elapsed time.Duration) {
	if r == nil || order == nil {
		return
	}
	r.OrdersTotal.WithLabelValues(string(order.Status), strconv.FormatBool(order.Degraded)).Inc()
	r.OrderValue.Observe(order.TotalValue)
	r.ProcessingDuration.Observe(elapsed.Seconds())
	r.ExtractionCostUSD.Add(order.CostUSD)
	for _, is := range order.OverallIssues {
		n := is.Count
		if n < 1 {
			n = 1
		}
		r.OrderIssues.WithLabelValues(string(is.Kind)).Add(float64(n))
	}
}

// ObserveExtraction records one extraction attempt.
func (r *Registry) ObserveExtraction(outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.ExtractionsTotal.WithLabelValues(outcome).Inc()
	r.ExtractionDuration.Observe(elapsed.Seconds())
}

// ObserveBreakerState mirrors the breaker state into a gauge.
func (r *Registry) ObserveBreakerState(name string, state gobreaker.State) {
	if r == nil {
		return
	}
	r.BreakerState.WithLabelValues(name).Set(float64(state))
}

// Middleware records request counts and latency per route template.
func (r *Registry) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if r == nil {
			c.Next()
			return
		}
		start := time.Now()

		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		r.RequestsTotal.WithLabelValues(c.Request.Method, endpoint, strconv.Itoa(c.Writer.Status())).Inc()
		r.RequestDuration.WithLabelValues(c.Request.Method, endpoint).Observe(time.Since(start).Seconds())
	}
}
