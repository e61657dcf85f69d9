// Package push delivers mobile push notifications through the external push
// gateway. The gateway resolves user ids to device tokens; this client only
// speaks HTTP to it.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"gestimmo_backend/platform/config"
	"gestimmo_backend/platform/logger"

	"github.com/google/uuid"
)

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     *logger.Logger
}

type pushRequest struct {
	UserID string            `json:"userId"`
	Title  string            `json:"title"`
	Body   string            `json:"body"`
	Data   map[string]string `json:"data,omitempty"`
}

// NewClient builds the push gateway client. Returns nil when no gateway is
// configured; a nil client silently drops sends.
func NewClient(cfg config.PushConfig, log *logger.Logger) *Client {
	if cfg.GetPushGatewayURL() == "" {
		return nil
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.GetPushGatewayURL(), "/"),
		apiKey:  cfg.GetPushGatewayKey(),
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     log,
	}
}

// Send pushes a notification to all of the user's registered devices.
func (c *Client) Send(ctx context.Context, userID uuid.UUID, title, body string, data map[string]string) error {
	if c == nil {
		return nil
	}

	payload := pushRequest{
		UserID: userID.String(),
		Title:  title,
		Body:   body,
		Data:   data,
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal push payload: %w", err)
	}

	url := fmt.Sprintf("%s/v1/push", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(raw))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("push request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("push gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	c.log.Info("push delivered", "userId", userID)
	return nil
}
