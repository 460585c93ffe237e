// Package wati sends WhatsApp template messages through the WATI HTTP API.
package wati

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/carhop-rentals/booking-verify-api/internal/platform/config"
	"github.com/carhop-rentals/booking-verify-api/internal/ports/out/messaging"
)

// DefaultTemplateName is used when neither the message nor the config names a template.
const DefaultTemplateName = "bookingconfirmation"

// ProviderError is a non-2xx answer from the provider.
type ProviderError struct {
	Status int
	Body   string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("whatsapp api returned %d: %s", e.Status, e.Body)
}

type requestBody struct {
	TemplateName  string            `json:"template_name"`
	BroadcastName string            `json:"broadcast_name"`
	Parameters    []messaging.Param `json:"parameters"`
	ChannelNumber string            `json:"channel_number"`
}

type Client struct {
	cfg  config.MessagingConfig
	http *http.Client
	log  *zap.Logger
}

func NewClient(cfg config.MessagingConfig, httpClient *http.Client, log *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{cfg: cfg, http: httpClient, log: log}
}

var _ messaging.Sender = (*Client)(nil)

func (c *Client) Send(ctx context.Context, m messaging.Message) (messaging.Response, error) {
	if !c.cfg.Configured() {
		c.log.Error("whatsapp configuration missing",
			zap.Bool("hasUrl", c.cfg.Endpoint != ""),
			zap.Bool("hasToken", c.cfg.AuthToken != ""),
			zap.Bool("hasChannel", c.cfg.ChannelNumber != ""),
		)
		return nil, config.ErrMessagingNotConfigured
	}
	if m.Recipient == "" {
		return nil, errors.New("whatsapp recipient is required")
	}

	template := m.TemplateName
	if template == "" {
		template = c.cfg.TemplateName
	}
	if template == "" {
		template = DefaultTemplateName
	}
	params := m.Params
	if params == nil {
		params = []messaging.Param{}
	}

	body, err := json.Marshal(requestBody{
		TemplateName:  template,
		BroadcastName: m.BroadcastName,
		Parameters:    params,
		ChannelNumber: c.cfg.ChannelNumber,
	})
	if err != nil {
		return nil, err
	}

	u, err := url.Parse(c.cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid WATI_API_URL: %w", err)
	}
	q := u.Query()
	q.Set("whatsappNumber", m.Recipient)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Authorization", "Bearer "+c.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/json-patch+json")

	c.log.Debug("whatsapp request",
		zap.String("template", template),
		zap.String("recipient", mask(m.Recipient)),
		zap.Int("parameters", len(params)),
	)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whatsapp request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read whatsapp response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ProviderError{Status: resp.StatusCode, Body: string(raw)}
	}

	out := messaging.Response{}
	if err := json.Unmarshal(raw, &out); err != nil {
		out = messaging.Response{"message": string(raw)}
	}
	return out, nil
}

func mask(n string) string {
	if len(n) <= 4 {
		return strings.Repeat("*", len(n))
	}
	return n[:4] + "****"
}
