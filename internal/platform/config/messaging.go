package config

import (
	"os"
	"strings"
	"time"
)

// MessagingConfig configures the WhatsApp template provider.
type MessagingConfig struct {
	Endpoint      string
	AuthToken     string
	ChannelNumber string
	// TemplateName is the fallback template when a caller does not name one.
	TemplateName string

	HTTPTimeout time.Duration
}

// Configured reports whether every value required to reach the provider is present.
func (c MessagingConfig) Configured() bool {
	return c.Endpoint != "" && c.AuthToken != "" && c.ChannelNumber != ""
}

// LoadMessagingConfigFromEnv never fails: an incomplete configuration is reported
// lazily by the sender as ErrMessagingNotConfigured.
func LoadMessagingConfigFromEnv() MessagingConfig {
	return MessagingConfig{
		Endpoint:      strings.TrimSpace(os.Getenv("WATI_API_URL")),
		AuthToken:     strings.TrimPrefix(strings.TrimSpace(os.Getenv("WATI_AUTH_TOKEN")), "Bearer "),
		ChannelNumber: strings.TrimSpace(os.Getenv("WATI_CHANNEL_NUMBER")),
		TemplateName:  strings.TrimSpace(os.Getenv("WATI_TEMPLATE_NAME")),
		HTTPTimeout:   10 * time.Second,
	}
}
