// Package api is the HTTP surface of the intake service.
package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sony/gobreaker"

	"github.com/smart-order-intake/server/internal/core"
	errx "github.com/smart-order-intake/server/internal/core/error"
	"github.com/smart-order-intake/server/internal/intake/export"
	"github.com/smart-order-intake/server/internal/intake/model"
	"github.com/smart-order-intake/server/internal/metrics"
)

// OrderService is implemented by processing.Processor.
type OrderService interface {
	ProcessEmail(ctx context.Context, email string) (*model.Order, error)
	Order(ctx context.Context, id string) (*model.Order, error)
	Stats(ctx context.Context) (*model.OrderStats, error)
}

type CatalogSearcher interface {
	Search(query string) model.SearchResult
	Len() int
}

// BreakerStatus reports the extraction circuit breaker state.
type BreakerStatus interface {
	State() gobreaker.State
}

type Config struct {
	Orders  OrderService
	Catalog CatalogSearcher
	Forms   *export.FormBuilder
	Breaker BreakerStatus
	Metrics *metrics.Registry
}

type Handler struct {
	orders  OrderService
	catalog CatalogSearcher
	forms   *export.FormBuilder
	breaker BreakerStatus
	metrics *metrics.Registry
	now     func() time.Time
	started time.Time
}

var features = []string{
	"AI-powered email parsing",
	"Catalog tool lookups during extraction",
	"Fuzzy SKU matching",
	"Stock and MOQ validation",
	"Quantity recommendations",
	"Sales order form data",
	"JSON export",
}

func NewHandler(cfg Config) *Handler {
	return &Handler{
		orders:  cfg.Orders,
		catalog: cfg.Catalog,
		forms:   cfg.Forms,
		breaker: cfg.Breaker,
		metrics: cfg.Metrics,
		now:     time.Now,
		started: time.Now(),
	}
}

type processOrderRequest struct {
	EmailContent string `json:"email_content"`
	// accepted for older clients
	EmailContentCamel string `json:"emailContent"`
}

func (r processOrderRequest) email() string {
	if r.EmailContent != "" {
		return r.EmailContent
	}
	return r.EmailContentCamel
}

type generateFormRequest struct {
	OrderID string `json:"order_id" binding:"required"`
}

// OrderView is an order together with its review table.
type OrderView struct {
	Order  *model.Order  `json:"order"`
	Review export.Review `json:"review"`
}

type FormView struct {
	FormData     *export.SalesOrderForm `json:"form_data"`
	TemplateInfo export.TemplateInfo    `json:"template_info"`
}

type StatsView struct {
	Orders          *model.OrderStats `json:"orders"`
	CatalogProducts int               `json:"catalog_products"`
	BreakerState    string            `json:"extraction_breaker_state,omitempty"`
	UptimeSeconds   float64           `json:"uptime_seconds"`
	Version         string            `json:"version"`
	Features        []string          `json:"features"`
}

func (h *Handler) processOrder(c *gin.Context) {
	var req processOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errx.BadRequest("request body must be JSON with email_content"))
		return
	}

	order, err := h.orders.ProcessEmail(c.Request.Context(), req.email())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, OrderView{Order: order, Review: export.BuildReview(order)}, "Email processed successfully")
}

func (h *Handler) getOrder(c *gin.Context) {
	order, err := h.orders.Order(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, OrderView{Order: order, Review: export.BuildReview(order)}, "")
}

func (h *Handler) exportOrder(c *gin.Context) {
	order, err := h.orders.Order(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	b, err := export.MarshalOrder(order, h.now())
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+export.Filename(order.ID)+`"`)
	c.Data(http.StatusOK, "application/json; charset=utf-8", b)
}

func (h *Handler) generateForm(c *gin.Context) {
	var req generateFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errx.BadRequest("order_id is required"))
		return
	}
	order, err := h.orders.Order(c.Request.Context(), strings.TrimSpace(req.OrderID))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, FormView{
		FormData:     h.forms.Build(order),
		TemplateInfo: h.forms.TemplateInfo(),
	}, "Sales order form generated")
}

func (h *Handler) searchCatalog(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		respondError(c, errx.BadRequest("query parameter q is required"))
		return
	}
	respondOK(c, h.catalog.Search(q), "")
}

func (h *Handler) stats(c *gin.Context) {
	stats, err := h.orders.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	view := StatsView{
		Orders:          stats,
		CatalogProducts: h.catalog.Len(),
		UptimeSeconds:   h.now().Sub(h.started).Seconds(),
		Version:         core.Version,
		Features:        features,
	}
	if h.breaker != nil {
		view.BreakerState = h.breaker.State().String()
	}
	respondOK(c, view, "")
}

func (h *Handler) health(c *gin.Context) {
	respondOK(c, gin.H{
		"status":    "healthy",
		"service":   core.ServiceName,
		"version":   core.Version,
		"timestamp": h.now().UTC().Format(time.RFC3339),
	}, "Smart Order Intake API is running")
}
