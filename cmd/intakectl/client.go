package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/smart-order-intake/server/internal/api"
)

// client talks to a running intake server.
type client struct {
	http *resty.Client
}

func newClient(baseURL string, timeout time.Duration) *client {
	return &client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json").
			SetRetryCount(0),
	}
}

// processEmail submits raw email text and returns the raw "data" payload.
func (c *client) processEmail(email string) (json.RawMessage, error) {
	return c.post("/api/process-order", map[string]string{"email_content": email})
}

func (c *client) generateForm(orderID string) (json.RawMessage, error) {
	return c.post("/api/generate-pdf", map[string]string{"order_id": orderID})
}

func (c *client) post(path string, body any) (json.RawMessage, error) {
	var env struct {
		api.Response
		Data json.RawMessage `json:"data"`
	}
	resp, err := c.http.R().
		SetBody(body).
		SetResult(&env).
		SetError(&env).
		Post(path)
	if err != nil {
		return nil, fmt.Errorf("HTTP error: %w", err)
	}
	if resp.StatusCode() != http.StatusOK || !env.Success {
		msg := env.Error
		if env.Message != "" {
			msg += ": " + env.Message
		}
		if msg == "" {
			msg = resp.String()
		}
		return nil, fmt.Errorf("server returned status %d: %s", resp.StatusCode(), msg)
	}
	return env.Data, nil
}
