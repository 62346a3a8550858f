package leads

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wolfman30/mortgage-leads/internal/observability/metrics"
	"github.com/wolfman30/mortgage-leads/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var leadsTracer = otel.Tracer("mortgage.internal.leads")

const (
	defaultStoreTimeout = 10 * time.Second
	defaultMailTimeout  = 10 * time.Second
)

// Notifier dispatches the business alert and the customer acknowledgment
// for a persisted lead. It returns an error only when both sends failed.
type Notifier interface {
	NotifyLead(ctx context.Context, lead Lead) (NotificationReport, error)
}

// NotificationReport records the outcome of each of the two sends.
type NotificationReport struct {
	BusinessSent bool
	CustomerSent bool
	BusinessErr  error
	CustomerErr  error
}

// Partial reports whether exactly one of the two sends succeeded.
func (r NotificationReport) Partial() bool {
	return r.BusinessSent != r.CustomerSent
}

// Delivered reports whether both sends succeeded.
func (r NotificationReport) Delivered() bool {
	return r.BusinessSent && r.CustomerSent
}

// Receipt is returned for an accepted submission.
type Receipt struct {
	LeadID       string
	Lead         Lead
	CellsWritten int64
	Notification NotificationReport
}

// ServiceConfig bounds the external calls and lets tests pin the clock and id source.
type ServiceConfig struct {
	StoreTimeout time.Duration
	MailTimeout  time.Duration
	Now          func() time.Time
	NewID        func() string
}

// Service runs the submission pipeline: validate, persist, then notify.
type Service struct {
	store    Store
	notifier Notifier
	cfg      ServiceConfig
	logger   *logging.Logger
	metrics  *metrics.LeadMetrics
}

// NewService wires the pipeline. notifier may be nil, in which case accepted
// leads are persisted without email.
func NewService(store Store, notifier Notifier, cfg ServiceConfig, logger *logging.Logger, m *metrics.LeadMetrics) *Service {
	if store == nil {
		panic("leads: store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = defaultStoreTimeout
	}
	if cfg.MailTimeout <= 0 {
		cfg.MailTimeout = defaultMailTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	return &Service{
		store:    store,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger.With("component", "leads"),
		metrics:  m,
	}
}

// Submit validates sub, appends it to the store and sends both emails.
// A validation failure returns ValidationErrors; a store failure returns a
// STORE_ERROR and no email is sent. Notification failures never fail the call.
func (s *Service) Submit(ctx context.Context, sub Submission) (*Receipt, error) {
	ctx, span := leadsTracer.Start(ctx, "leads.submit")
	defer span.End()

	valid, verrs := Validate(sub)
	if len(verrs) > 0 {
		s.metrics.ObserveSubmission("rejected")
		span.SetAttributes(attribute.StringSlice("mortgage.lead.invalid_fields", verrs.Fields()))
		span.SetStatus(codes.Error, string(KindValidation))
		s.logger.Info("lead rejected", "fields", verrs.Fields())
		return nil, verrs
	}

	lead := NewLead(valid, s.cfg.Now())
	span.SetAttributes(attribute.String("mortgage.lead.type", lead.Type))

	cells, err := s.persist(ctx, lead)
	if err != nil {
		s.metrics.ObserveSubmission("store_failed")
		span.RecordError(err)
		span.SetStatus(codes.Error, string(KindStore))
		s.logger.Error("failed to append lead", "error", err, "kind", KindOf(err))
		return nil, err
	}

	report := s.notify(ctx, lead)

	id := s.cfg.NewID()
	span.SetAttributes(attribute.String("mortgage.lead.id", id))
	s.metrics.ObserveSubmission("accepted")
	s.logger.Info("lead accepted",
		"lead_id", id,
		"email_hash", logging.HashValue(lead.Email),
		"type", lead.Type,
		"cells", cells,
		"business_sent", report.BusinessSent,
		"customer_sent", report.CustomerSent,
	)
	return &Receipt{
		LeadID:       id,
		Lead:         lead,
		CellsWritten: cells,
		Notification: report,
	}, nil
}

// List returns every stored lead when secret matches the admin secret.
func (s *Service) List(ctx context.Context, secret string) ([]Record, error) {
	ctx, span := leadsTracer.Start(ctx, "leads.list")
	defer span.End()

	listCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	records, err := s.store.List(listCtx, secret)
	if err != nil {
		span.RecordError(err)
		if KindOf(err) == KindAuth {
			return nil, err
		}
		return nil, tag(KindStore, "list", timeoutCause(listCtx, err, s.cfg.StoreTimeout))
	}
	span.SetAttributes(attribute.Int("mortgage.lead.count", len(records)))
	return records, nil
}

// persist appends under the store timeout. Caller cancellation is ignored;
// only the timeout bounds the write.
func (s *Service) persist(ctx context.Context, lead Lead) (int64, error) {
	ctx, span := leadsTracer.Start(ctx, "leads.persist")
	defer span.End()

	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.StoreTimeout)
	defer cancel()

	start := time.Now()
	cells, err := s.store.Append(storeCtx, lead)
	s.metrics.ObserveStoreLatency(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		return 0, tag(KindStore, "append", timeoutCause(storeCtx, err, s.cfg.StoreTimeout))
	}
	span.SetAttributes(attribute.Int64("mortgage.store.updated_cells", cells))
	return cells, nil
}

func (s *Service) notify(ctx context.Context, lead Lead) NotificationReport {
	if s.notifier == nil {
		return NotificationReport{}
	}
	ctx, span := leadsTracer.Start(ctx, "leads.notify")
	defer span.End()

	mailCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.MailTimeout)
	defer cancel()

	report, err := s.notifier.NotifyLead(mailCtx, lead)
	span.SetAttributes(
		attribute.Bool("mortgage.notify.business_sent", report.BusinessSent),
		attribute.Bool("mortgage.notify.customer_sent", report.CustomerSent),
	)
	switch {
	case err != nil:
		span.RecordError(err)
		s.logger.Error("failed to send lead notifications",
			"error", err,
			"kind", KindNotify,
			"business_error", errString(report.BusinessErr),
			"customer_error", errString(report.CustomerErr),
		)
	case report.Partial():
		s.logger.Warn("lead notification partially delivered",
			"business_sent", report.BusinessSent,
			"customer_sent", report.CustomerSent,
			"business_error", errString(report.BusinessErr),
			"customer_error", errString(report.CustomerErr),
		)
	}
	return report
}

// timeoutCause rewrites a deadline expiry into a descriptive error while
// keeping context.DeadlineExceeded in the chain.
func timeoutCause(ctx context.Context, err error, limit time.Duration) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("timed out after %s: %w", limit, err)
		}
		return fmt.Errorf("timed out after %s: %w (%w)", limit, context.DeadlineExceeded, err)
	}
	return err
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
