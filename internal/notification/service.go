// Package notification emails the operator when a rental executes. Sends
// are best effort: failures are logged and never fail the rental itself.
package notification

import (
	"context"
	"fmt"
	"log"
	"net/smtp"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/spartanbot/spartanbot/internal/config"
	"github.com/spartanbot/spartanbot/pkg/providers"
)

type Service struct {
	cfg config.Config
}

// New returns a Service, or nil when no recipient is configured so callers
// can skip wiring it entirely.
func New(cfg config.Config) *Service {
	if cfg.NotifyTo == "" || cfg.NotifyFrom == "" {
		return nil
	}
	return &Service{cfg: cfg}
}

// RentalExecuted sends a summary of the receipt to the configured recipient.
func (s *Service) RentalExecuted(ctx context.Context, receipt providers.RentalReceipt) {
	subject := fmt.Sprintf("SpartanBot rented %.0f H/s via %s", receipt.Hashrate, receipt.ProviderType)
	body := fmt.Sprintf(
		"Rental %s executed at %s.\nProvider: %s (%s)\nHashrate: %.0f H/s\nDuration: %s\nCost: %.8f BTC\n",
		receipt.RentalID,
		receipt.RentedAt.Format(time.RFC3339),
		receipt.ProviderType,
		receipt.ProviderUID,
		receipt.Hashrate,
		receipt.Duration,
		receipt.CostBTC,
	)

	var err error
	if s.cfg.SendgridAPIKey != "" {
		err = s.sendSendgrid(subject, body)
	} else if s.cfg.SMTPHost != "" {
		err = s.sendSMTP(subject, body)
	} else {
		return
	}
	if err != nil {
		log.Printf("notification: send failed: %v", err)
	}
}

func (s *Service) sendSendgrid(subject, body string) error {
	from := mail.NewEmail("SpartanBot", s.cfg.NotifyFrom)
	to := mail.NewEmail("", s.cfg.NotifyTo)
	message := mail.NewSingleEmail(from, subject, to, body, body)

	client := sendgrid.NewSendClient(s.cfg.SendgridAPIKey)
	resp, err := client.Send(message)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

func (s *Service) sendSMTP(subject, body string) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.SMTPHost, s.cfg.SMTPPort)
	msg := []byte(fmt.Sprintf("To: %s\r\nSubject: %s\r\n\r\n%s\r\n", s.cfg.NotifyTo, subject, body))

	var auth smtp.Auth
	if s.cfg.SMTPUsername != "" && s.cfg.SMTPPassword != "" {
		auth = smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	}
	return smtp.SendMail(addr, auth, s.cfg.NotifyFrom, []string{s.cfg.NotifyTo}, msg)
}
