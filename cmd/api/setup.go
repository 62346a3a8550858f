package main

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/mortgage-leads/cmd/mainconfig"
	appconfig "github.com/wolfman30/mortgage-leads/internal/config"
	"github.com/wolfman30/mortgage-leads/internal/leads"
	"github.com/wolfman30/mortgage-leads/internal/notify"
	"github.com/wolfman30/mortgage-leads/internal/observability/metrics"
	"github.com/wolfman30/mortgage-leads/pkg/logging"
)

const fallbackSenderEmail = "noreply@primemortgage.ca"

// setupMetrics registers the lead metrics with runtime collectors on a private registry.
func setupMetrics() (http.Handler, *metrics.LeadMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewLeadMetrics(reg)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}), m
}

// setupStore connects to the spreadsheet. Missing credentials do not stop the
// server; every store call reports the configuration error instead.
func setupStore(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) leads.Store {
	sheetsCfg := leads.SheetsConfig{
		ServiceAccountEmail: cfg.GoogleServiceAccountEmail,
		PrivateKey:          cfg.GooglePrivateKey,
		SpreadsheetID:       cfg.GoogleSheetID,
		Range:               cfg.GoogleSheetRange,
		AdminSecret:         cfg.AdminSecret,
	}
	svc, err := leads.NewSheetsService(ctx, sheetsCfg)
	if err != nil {
		logger.Warn("lead store not configured; submissions will fail", "error", err)
		return leads.NewUnconfiguredStore(err, cfg.AdminSecret)
	}
	logger.Info("google sheets store configured", "spreadsheet_id", cfg.GoogleSheetID, "range", cfg.GoogleSheetRange)
	return leads.NewSheetsStore(svc, sheetsCfg, logger)
}

// setupMailer picks the mail transport. A nil sender means every send fails
// with notify.ErrNoTransport.
func setupMailer(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (notify.EmailSender, string) {
	from, err := notify.ParseSender(cfg.EmailFrom)
	if err != nil {
		logger.Warn("invalid EMAIL_FROM, using default sender", "error", err)
		from = notify.Sender{Email: fallbackSenderEmail, Name: notify.DefaultBrand}
	}

	sesClient, err := mainconfig.BuildSESClient(ctx, cfg)
	if err != nil {
		logger.Warn("failed to load AWS config, SES disabled", "error", err)
		sesClient = nil
	}

	sender, transport, err := notify.SelectTransport(notify.TransportConfig{
		From:           from,
		DryRun:         cfg.MailDryRun,
		SendGridAPIKey: cfg.SendGridAPIKey,
		ResendAPIKey:   cfg.ResendAPIKey,
		SMTP: notify.SMTPConfig{
			Host:   cfg.SMTPHost,
			Port:   cfg.SMTPPort,
			User:   cfg.SMTPUser,
			Pass:   cfg.SMTPPass,
			Secure: cfg.SMTPSecure,
		},
		SESClient: sesClient,
	}, logger)
	if err != nil {
		logger.Warn("mail transport failed to initialize; emails will fail", "error", err)
		return nil, notify.TransportNone
	}
	if transport == notify.TransportNone {
		logger.Warn("no mail transport configured; emails will fail", "error", notify.ErrNoTransport)
	}
	return sender, transport
}
