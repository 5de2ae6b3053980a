package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	errx "github.com/smart-order-intake/server/internal/core/error"
	logx "github.com/smart-order-intake/server/pkg/logger"
)

// Response is the JSON envelope of every API reply.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

func respondOK(c *gin.Context, data any, message string) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data, Message: message})
}

// respondError maps an AppError to the envelope. Client errors expose the
// underlying reason; server errors only the safe message.
func respondError(c *gin.Context, err error) {
	status := errx.StatusOf(err)
	resp := Response{Success: false, Error: errx.MessageOf(err)}

	var appErr *errx.AppError
	if status < http.StatusInternalServerError && errors.As(err, &appErr) && appErr.Err != nil {
		resp.Message = appErr.Err.Error()
	}
	if status >= http.StatusInternalServerError {
		logx.Error().Err(err).Str("path", c.FullPath()).Int("status", status).Msg("Request failed")
	}
	c.AbortWithStatusJSON(status, resp)
}
