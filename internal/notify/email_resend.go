package notify

import (
	"context"
	"fmt"
	"net/mail"
	"net/url"

	"github.com/resend/resend-go/v3"
	"github.com/wolfman30/mortgage-leads/pkg/logging"
)

// ResendSender sends emails via the Resend API.
type ResendSender struct {
	client *resend.Client
	from   Sender
	logger *logging.Logger
}

// ResendConfig holds configuration for Resend.
type ResendConfig struct {
	APIKey string
	From   Sender

	// BaseURL overrides the API endpoint. Empty uses the Resend default.
	BaseURL string
}

// NewResendSender creates a new Resend email sender.
func NewResendSender(cfg ResendConfig, logger *logging.Logger) (*ResendSender, error) {
	if cfg.APIKey == "" {
		return nil, nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.From.Name == "" {
		cfg.From.Name = DefaultBrand
	}
	client := resend.NewClient(cfg.APIKey)
	if cfg.BaseURL != "" {
		u, err := url.Parse(cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("notify: parse resend base url: %w", err)
		}
		client.BaseURL = u
	}
	return &ResendSender{client: client, from: cfg.From, logger: logger}, nil
}

// Send sends an email via Resend.
func (s *ResendSender) Send(ctx context.Context, msg EmailMessage) error {
	if s.client == nil {
		return fmt.Errorf("notify: resend client not configured")
	}

	to := msg.To
	if msg.ToName != "" {
		to = (&mail.Address{Name: msg.ToName, Address: msg.To}).String()
	}
	req := &resend.SendEmailRequest{
		From:    (&mail.Address{Name: s.from.Name, Address: s.from.Email}).String(),
		To:      []string{to},
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Body,
	}

	resp, err := s.client.Emails.SendWithContext(ctx, req)
	if err != nil {
		s.logger.Error("resend send failed", "error", err, "to", logging.MaskEmail(msg.To))
		return fmt.Errorf("notify: resend send failed: %w", err)
	}

	s.logger.Info("email sent via resend", "to", logging.MaskEmail(msg.To), "subject", msg.Subject, "id", resp.Id)
	return nil
}

var _ EmailSender = (*ResendSender)(nil)
