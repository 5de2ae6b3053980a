package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smart-order-intake/server/internal/intake/model"
)

func scrape(t *testing.T, r *Registry) string {
	t.Helper()
	w := httptest.NewRecorder()
	r.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func TestObserveOrder(t *testing.T) {
	r := NewRegistry()

	r.ObserveOrder(&model.Order{
		Status:     model.StatusNeedsReview,
		TotalValue: 250,
		CostUSD:    0.0003,
		OverallIssues: []model.Issue{
			{Kind: model.IssueMOQNotMet, Count: 2},
		},
	}, 1500*time.Millisecond)

	body := scrape(t, r)
	assert.Contains(t, body, `order_intake_orders_processed_total{degraded="false",status="NEEDS_REVIEW"} 1`)
	assert.Contains(t, body, `order_intake_order_issues_total{kind="MOQ_NOT_MET"} 2`)
	assert.Contains(t, body, `order_intake_extraction_cost_usd_total 0.0003`)
	assert.Contains(t, body, `order_intake_processing_duration_seconds_count 1`)
}

func TestObserveExtractionAndBreaker(t *testing.T) {
	r := NewRegistry()

	r.ObserveExtraction("success", time.Second)
	r.ObserveExtraction("breaker_open", 0)
	r.ObserveBreakerState("llm-extraction", gobreaker.StateOpen)

	body := scrape(t, r)
	assert.Contains(t, body, `order_intake_extractions_total{outcome="success"} 1`)
	assert.Contains(t, body, `order_intake_extractions_total{outcome="breaker_open"} 1`)
	assert.Contains(t, body, `order_intake_circuit_breaker_state{circuit_name="llm-extraction"} 2`)
}

func TestNilRegistryIsNoop(t *testing.T) {
	var r *Registry
	r.ObserveOrder(&model.Order{}, time.Second)
	r.ObserveExtraction("success", time.Second)
	r.ObserveBreakerState("x", gobreaker.StateClosed)
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRegistry()

	router := gin.New()
	router.Use(r.Middleware())
	router.GET("/api/orders/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/orders/abc", nil))
	require.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	body := scrape(t, r)
	assert.Contains(t, body, `order_intake_http_requests_total{endpoint="/api/orders/:id",method="GET",status="404"} 1`)
	assert.Contains(t, body, `order_intake_http_requests_total{endpoint="unmatched",method="GET",status="404"} 1`)
	assert.Contains(t, body, "go_goroutines")
}
