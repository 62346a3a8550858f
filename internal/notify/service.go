package notify

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/wolfman30/mortgage-leads/internal/leads"
	"github.com/wolfman30/mortgage-leads/internal/observability/metrics"
	"github.com/wolfman30/mortgage-leads/pkg/logging"
)

const (
	channelBusiness = "business"
	channelCustomer = "customer"
)

// Config addresses and brands the two lead emails.
type Config struct {
	BusinessEmail string
	BusinessPhone string
	Brand         string
}

// Service sends the business alert and the customer acknowledgment for new leads.
type Service struct {
	email   EmailSender
	cfg     Config
	logger  *logging.Logger
	metrics *metrics.LeadMetrics
}

// NewService creates a notification service.
func NewService(email EmailSender, cfg Config, logger *logging.Logger, m *metrics.LeadMetrics) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	if email == nil {
		email = unconfiguredSender{}
	}
	if cfg.Brand == "" {
		cfg.Brand = DefaultBrand
	}
	if cfg.BusinessPhone == "" {
		cfg.BusinessPhone = DefaultBusinessPhone
	}
	return &Service{
		email:   email,
		cfg:     cfg,
		logger:  logger.With("component", "notify"),
		metrics: m,
	}
}

// NotifyLead sends both emails concurrently and waits for both. One failing
// never cancels the other. The error is non-nil only when both failed.
func (s *Service) NotifyLead(ctx context.Context, lead leads.Lead) (leads.NotificationReport, error) {
	var report leads.NotificationReport

	var g errgroup.Group
	g.Go(func() error {
		report.BusinessErr = s.send(ctx, channelBusiness, func() (EmailMessage, error) {
			return BusinessAlert(lead, s.cfg.BusinessEmail, s.cfg.Brand)
		})
		return nil
	})
	g.Go(func() error {
		report.CustomerErr = s.send(ctx, channelCustomer, func() (EmailMessage, error) {
			return CustomerAcknowledgment(lead, s.cfg.Brand, s.cfg.BusinessPhone)
		})
		return nil
	})
	_ = g.Wait()

	report.BusinessSent = report.BusinessErr == nil
	report.CustomerSent = report.CustomerErr == nil

	if !report.BusinessSent && !report.CustomerSent {
		return report, &leads.Error{
			Kind: leads.KindNotify,
			Op:   "notify",
			Err: fmt.Errorf("failed to send emails: business: %w, customer: %w",
				report.BusinessErr, report.CustomerErr),
		}
	}
	return report, nil
}

func (s *Service) send(ctx context.Context, channel string, build func() (EmailMessage, error)) error {
	msg, err := build()
	if err == nil {
		if msg.To == "" {
			err = errors.New("notify: no recipient address")
		} else {
			err = s.email.Send(ctx, msg)
		}
	}
	s.metrics.ObserveNotification(channel, err == nil)
	if err != nil {
		s.logger.Error("failed to send lead email", "channel", channel, "error", err)
		return err
	}
	s.logger.Info("lead email sent", "channel", channel)
	return nil
}

var _ leads.Notifier = (*Service)(nil)
