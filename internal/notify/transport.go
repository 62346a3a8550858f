package notify

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/wolfman30/mortgage-leads/pkg/logging"
)

// ErrNoTransport is returned on every send when no mail transport is configured.
var ErrNoTransport = errors.New("email configuration is missing: set SENDGRID_API_KEY, RESEND_API_KEY, SES_ENABLED or SMTP_HOST/SMTP_USER/SMTP_PASS")

// Transport names reported at startup.
const (
	TransportStub     = "stub"
	TransportSendGrid = "sendgrid"
	TransportResend   = "resend"
	TransportSES      = "ses"
	TransportSMTP     = "smtp"
	TransportNone     = "none"
)

// TransportConfig lists every transport's settings. The first configured one wins.
type TransportConfig struct {
	From   Sender
	DryRun bool

	SendGridAPIKey string
	ResendAPIKey   string
	SMTP           SMTPConfig

	// SESClient is non-nil when SES is enabled.
	SESClient *sesv2.Client
}

// ParseSender splits an address like `PrimeMortgage <noreply@primemortgage.ca>`.
func ParseSender(s string) (Sender, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(s))
	if err != nil {
		return Sender{}, fmt.Errorf("notify: parse sender %q: %w", s, err)
	}
	return Sender{Email: addr.Address, Name: addr.Name}, nil
}

// SelectTransport picks the mail transport. Managed relays win over a generic
// SMTP relay. With nothing configured the returned sender fails every call
// with ErrNoTransport.
func SelectTransport(cfg TransportConfig, logger *logging.Logger) (EmailSender, string, error) {
	if logger == nil {
		logger = logging.Default()
	}
	switch {
	case cfg.DryRun:
		return NewStubEmailSender(logger), TransportStub, nil
	case cfg.SendGridAPIKey != "":
		return NewSendGridSender(SendGridConfig{APIKey: cfg.SendGridAPIKey, From: cfg.From}, logger), TransportSendGrid, nil
	case cfg.ResendAPIKey != "":
		sender, err := NewResendSender(ResendConfig{APIKey: cfg.ResendAPIKey, From: cfg.From}, logger)
		if err != nil {
			return nil, "", err
		}
		return sender, TransportResend, nil
	case cfg.SESClient != nil:
		return NewSESSender(cfg.SESClient, SESConfig{From: cfg.From}, logger), TransportSES, nil
	case cfg.SMTP.Host != "" && cfg.SMTP.User != "" && cfg.SMTP.Pass != "":
		smtpCfg := cfg.SMTP
		smtpCfg.From = cfg.From
		return NewSMTPSender(smtpCfg, logger), TransportSMTP, nil
	default:
		return unconfiguredSender{}, TransportNone, nil
	}
}

type unconfiguredSender struct{}

func (unconfiguredSender) Send(context.Context, EmailMessage) error {
	return ErrNoTransport
}
