package api

import (
	"time"

	"github.com/gin-gonic/gin"

	logx "github.com/smart-order-intake/server/pkg/logger"
)

// NewRouter wires middleware and routes.
func NewRouter(h *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(), h.metrics.Middleware())

	router.GET("/metrics", gin.WrapH(h.metrics.Handler()))

	api := router.Group("/api")
	api.GET("/health", h.health)
	api.GET("/stats", h.stats)
	api.POST("/process-order", h.processOrder)
	api.GET("/orders/:id", h.getOrder)
	api.GET("/orders/:id/export", h.exportOrder)
	api.POST("/generate-pdf", h.generateForm)
	api.GET("/catalog/search", h.searchCatalog)

	return router
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logx.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("HTTP request")
	}
}
