package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/wolfman30/mortgage-leads/pkg/logging"
)

const defaultSMTPTimeout = 30 * time.Second

// SMTPConfig holds configuration for a generic SMTP relay.
type SMTPConfig struct {
	Host string
	Port int
	User string
	Pass string
	From Sender

	// Secure selects implicit TLS (usually port 465). Otherwise STARTTLS is
	// negotiated when the server offers it.
	Secure bool

	// InsecureSkipVerify is only meant for tests against a local relay.
	InsecureSkipVerify bool
}

// SMTPSender delivers mail through an authenticated SMTP relay.
type SMTPSender struct {
	cfg    SMTPConfig
	logger *logging.Logger
	now    func() time.Time
}

// NewSMTPSender returns nil when no host is configured.
func NewSMTPSender(cfg SMTPConfig, logger *logging.Logger) *SMTPSender {
	if cfg.Host == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.From.Name == "" {
		cfg.From.Name = DefaultBrand
	}
	return &SMTPSender{cfg: cfg, logger: logger, now: time.Now}
}

// Send delivers msg. The context deadline bounds dialing and the whole session.
func (s *SMTPSender) Send(ctx context.Context, msg EmailMessage) error {
	data, err := s.buildMessage(msg)
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	tlsConf := &tls.Config{
		ServerName:         s.cfg.Host,
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: s.cfg.InsecureSkipVerify, //nolint:gosec
	}

	var conn net.Conn
	if s.cfg.Secure {
		dialer := &tls.Dialer{NetDialer: &net.Dialer{Timeout: defaultSMTPTimeout}, Config: tlsConf}
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	} else {
		dialer := &net.Dialer{Timeout: defaultSMTPTimeout}
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("notify: smtp dial: %w", err)
	}
	defer conn.Close()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultSMTPTimeout)
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("notify: smtp set deadline: %w", err)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if err := s.session(conn, tlsConf, msg.To, data); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w (%w)", ctxErr, err)
		}
		s.logger.Error("smtp send failed", "error", err, "to", logging.MaskEmail(msg.To), "host", s.cfg.Host)
		return fmt.Errorf("notify: smtp send failed: %w", err)
	}

	s.logger.Info("email sent via smtp", "to", logging.MaskEmail(msg.To), "subject", msg.Subject, "host", s.cfg.Host)
	return nil
}

func (s *SMTPSender) session(conn net.Conn, tlsConf *tls.Config, to string, data []byte) error {
	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return fmt.Errorf("new client: %w", err)
	}
	defer client.Close()

	if !s.cfg.Secure {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsConf); err != nil {
				return fmt.Errorf("starttls: %w", err)
			}
		}
	}

	if s.cfg.User != "" {
		if ok, _ := client.Extension("AUTH"); ok {
			if err := client.Auth(smtp.PlainAuth("", s.cfg.User, s.cfg.Pass, s.cfg.Host)); err != nil {
				return fmt.Errorf("auth: %w", err)
			}
		}
	}

	if err := client.Mail(s.cfg.From.Email); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("rcpt to: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("data start: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("data write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("data close: %w", err)
	}
	if err := client.Quit(); err != nil {
		return fmt.Errorf("quit: %w", err)
	}
	return nil
}

// buildMessage renders an RFC 5322 message with a multipart/alternative body.
func (s *SMTPSender) buildMessage(msg EmailMessage) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	to := &mail.Address{Name: msg.ToName, Address: msg.To}
	from := &mail.Address{Name: s.cfg.From.Name, Address: s.cfg.From.Email}
	headers := []struct{ key, value string }{
		{"From", from.String()},
		{"To", to.String()},
		{"Subject", mime.QEncoding.Encode("utf-8", subjectLine(msg.Subject))},
		{"Date", s.now().Format(time.RFC1123Z)},
		{"Message-ID", fmt.Sprintf("<%s@%s>", uuid.NewString(), senderDomain(s.cfg.From.Email))},
		{"MIME-Version", "1.0"},
		{"Content-Type", fmt.Sprintf("multipart/alternative; boundary=%q", mw.Boundary())},
	}
	var head bytes.Buffer
	for _, h := range headers {
		fmt.Fprintf(&head, "%s: %s\r\n", h.key, h.value)
	}
	head.WriteString("\r\n")

	parts := []struct{ contentType, body string }{
		{"text/plain; charset=utf-8", msg.Body},
	}
	if msg.HTML != "" {
		parts = append(parts, struct{ contentType, body string }{"text/html; charset=utf-8", msg.HTML})
	}
	for _, p := range parts {
		pw, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {p.contentType},
			"Content-Transfer-Encoding": {"quoted-printable"},
		})
		if err != nil {
			return nil, fmt.Errorf("notify: build mime part: %w", err)
		}
		qp := quotedprintable.NewWriter(pw)
		if _, err := qp.Write([]byte(p.body)); err != nil {
			return nil, fmt.Errorf("notify: encode mime part: %w", err)
		}
		if err := qp.Close(); err != nil {
			return nil, fmt.Errorf("notify: encode mime part: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("notify: close mime body: %w", err)
	}

	return append(head.Bytes(), buf.Bytes()...), nil
}

func senderDomain(addr string) string {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == '@' {
			return addr[i+1:]
		}
	}
	return "localhost"
}

var _ EmailSender = (*SMTPSender)(nil)
