// Package alerting pushes webhook alerts (Slack, Discord, or a generic
// JSON endpoint) when rentals fail. Alerts are best effort and never block
// the rental path.
package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"
)

// AlertConfig holds alerting configuration.
type AlertConfig struct {
	// WebhookURL is a generic webhook endpoint (Slack, Discord, or custom)
	WebhookURL string
	// WebhookType determines the payload format: "slack", "discord", or "generic"
	WebhookType string
	// Enabled controls whether alerts are sent
	Enabled bool
	// Timeout for HTTP requests
	Timeout time.Duration
}

// DefaultAlertConfig returns config from environment variables.
func DefaultAlertConfig() AlertConfig {
	cfg := AlertConfig{
		WebhookURL:  os.Getenv("SPARTANBOT_ALERT_WEBHOOK_URL"),
		WebhookType: os.Getenv("SPARTANBOT_ALERT_WEBHOOK_TYPE"),
		Timeout:     10 * time.Second,
	}

	cfg.Enabled = cfg.WebhookURL != ""

	if cfg.WebhookType == "" {
		// Auto-detect from URL
		if strings.Contains(cfg.WebhookURL, "slack.com") {
			cfg.WebhookType = "slack"
		} else if strings.Contains(cfg.WebhookURL, "discord.com") {
			cfg.WebhookType = "discord"
		} else {
			cfg.WebhookType = "generic"
		}
	}

	return cfg
}

// Alerter sends alerts to the configured webhook.
type Alerter struct {
	cfg    AlertConfig
	client *http.Client
}

// NewAlerter creates a new alerter instance.
func NewAlerter(cfg AlertConfig) *Alerter {
	return &Alerter{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// RentalAlert describes a failed rental attempt.
type RentalAlert struct {
	Hashrate  float64
	Duration  time.Duration
	Selector  string
	Error     string
	Timestamp time.Time
}

// RentalFailed sends an alert about a rental that could not be executed.
func (a *Alerter) RentalFailed(ctx context.Context, alert RentalAlert) {
	if !a.cfg.Enabled {
		return
	}
	if alert.Timestamp.IsZero() {
		alert.Timestamp = time.Now()
	}

	var payload []byte
	var err error
	switch a.cfg.WebhookType {
	case "slack":
		payload, err = a.buildSlackPayload(alert)
	case "discord":
		payload, err = a.buildDiscordPayload(alert)
	default:
		payload, err = a.buildGenericPayload(alert)
	}
	if err != nil {
		log.Printf("alerting: build payload: %v", err)
		return
	}
	if err := a.post(ctx, payload); err != nil {
		log.Printf("alerting: send failed: %v", err)
	}
}

func alertText(alert RentalAlert) string {
	target := "any provider"
	if alert.Selector != "" {
		target = alert.Selector
	}
	return fmt.Sprintf("Rental of %.0f H/s for %s via %s failed: %s",
		alert.Hashrate, alert.Duration, target, alert.Error)
}

func (a *Alerter) buildSlackPayload(alert RentalAlert) ([]byte, error) {
	return json.Marshal(map[string]any{
		"text": ":warning: " + alertText(alert),
	})
}

func (a *Alerter) buildDiscordPayload(alert RentalAlert) ([]byte, error) {
	return json.Marshal(map[string]any{
		"content": alertText(alert),
	})
}

func (a *Alerter) buildGenericPayload(alert RentalAlert) ([]byte, error) {
	return json.Marshal(map[string]any{
		"event":     "rental_failed",
		"hashrate":  alert.Hashrate,
		"duration":  alert.Duration.String(),
		"selector":  alert.Selector,
		"error":     alert.Error,
		"timestamp": alert.Timestamp.Format(time.RFC3339),
	})
}

func (a *Alerter) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook status %d", resp.StatusCode)
	}
	return nil
}
