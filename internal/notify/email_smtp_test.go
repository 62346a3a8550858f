package notify

import (
	"bufio"
	"context"
	"encoding/base64"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/mail"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeSMTPServer struct {
	ln   net.Listener
	mu   sync.Mutex
	auth string
	from string
	rcpt string
	data []byte
	// stall holds the connection open without a greeting.
	stall bool
}

func startFakeSMTP(t *testing.T, stall bool) *fakeSMTPServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &fakeSMTPServer{ln: ln, stall: stall}
	t.Cleanup(func() { _ = ln.Close() })
	go srv.serve()
	return srv
}

func (s *fakeSMTPServer) port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

func (s *fakeSMTPServer) serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.handle(conn)
	}
}

func (s *fakeSMTPServer) handle(conn net.Conn) {
	defer conn.Close()
	if s.stall {
		_, _ = io.Copy(io.Discard, conn)
		return
	}
	tp := textproto.NewConn(conn)
	_ = tp.PrintfLine("220 localhost ESMTP test")
	for {
		line, err := tp.ReadLine()
		if err != nil {
			return
		}
		cmd := strings.ToUpper(strings.SplitN(line, " ", 2)[0])
		switch cmd {
		case "EHLO", "HELO":
			_ = tp.PrintfLine("250-localhost")
			_ = tp.PrintfLine("250 AUTH PLAIN")
		case "AUTH":
			parts := strings.Fields(line)
			decoded, _ := base64.StdEncoding.DecodeString(parts[len(parts)-1])
			s.mu.Lock()
			s.auth = string(decoded)
			s.mu.Unlock()
			_ = tp.PrintfLine("235 2.7.0 Authentication successful")
		case "MAIL":
			s.mu.Lock()
			s.from = line
			s.mu.Unlock()
			_ = tp.PrintfLine("250 OK")
		case "RCPT":
			s.mu.Lock()
			s.rcpt = line
			s.mu.Unlock()
			_ = tp.PrintfLine("250 OK")
		case "DATA":
			_ = tp.PrintfLine("354 End data with <CR><LF>.<CR><LF>")
			data, err := tp.ReadDotBytes()
			if err != nil {
				return
			}
			s.mu.Lock()
			s.data = data
			s.mu.Unlock()
			_ = tp.PrintfLine("250 OK queued")
		case "QUIT":
			_ = tp.PrintfLine("221 Bye")
			return
		default:
			_ = tp.PrintfLine("502 Command not implemented")
		}
	}
}

func TestSMTPSender_Send(t *testing.T) {
	srv := startFakeSMTP(t, false)
	sender := NewSMTPSender(SMTPConfig{
		Host: "127.0.0.1",
		Port: srv.port(),
		User: "mailer",
		Pass: "hunter2",
		From: Sender{Email: "noreply@primemortgage.ca", Name: "PrimeMortgage"},
	}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := sender.Send(ctx, EmailMessage{
		To:      "jane@example.com",
		ToName:  "Jane Doe",
		Subject: "Thank You for Your Inquiry - PrimeMortgage",
		Body:    "Hello Jane Doe,",
		HTML:    "<p>Hello Jane Doe,</p>",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	srv.mu.Lock()
	defer srv.mu.Unlock()
	if srv.auth != "\x00mailer\x00hunter2" {
		t.Errorf("unexpected auth payload %q", srv.auth)
	}
	if !strings.Contains(srv.from, "<noreply@primemortgage.ca>") {
		t.Errorf("unexpected MAIL FROM %q", srv.from)
	}
	if !strings.Contains(srv.rcpt, "<jane@example.com>") {
		t.Errorf("unexpected RCPT TO %q", srv.rcpt)
	}

	parsed, err := mail.ReadMessage(strings.NewReader(string(srv.data)))
	if err != nil {
		t.Fatalf("parse message: %v", err)
	}
	if got := parsed.Header.Get("Subject"); got != "Thank You for Your Inquiry - PrimeMortgage" {
		t.Errorf("unexpected subject %q", got)
	}
	mediaType, params, err := mime.ParseMediaType(parsed.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/alternative" {
		t.Fatalf("unexpected content type %q: %v", parsed.Header.Get("Content-Type"), err)
	}
	mr := multipart.NewReader(parsed.Body, params["boundary"])
	var types []string
	for {
		part, err := mr.NextPart()
		if err != nil {
			break
		}
		types = append(types, part.Header.Get("Content-Type"))
		body, _ := io.ReadAll(part)
		if !strings.Contains(string(body), "Jane Doe") {
			t.Errorf("part %q missing recipient name: %q", part.Header.Get("Content-Type"), body)
		}
	}
	if len(types) != 2 || !strings.HasPrefix(types[0], "text/plain") || !strings.HasPrefix(types[1], "text/html") {
		t.Errorf("unexpected parts %v", types)
	}
}

func TestSMTPSender_SendHonorsDeadline(t *testing.T) {
	srv := startFakeSMTP(t, true)
	sender := NewSMTPSender(SMTPConfig{
		Host: "127.0.0.1",
		Port: srv.port(),
		User: "mailer",
		Pass: "hunter2",
		From: Sender{Email: "noreply@primemortgage.ca"},
	}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := sender.Send(ctx, EmailMessage{To: "jane@example.com", Subject: "s", Body: "b"})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if time.Since(start) > 3*time.Second {
		t.Fatalf("send did not respect the context deadline")
	}
}

func TestSMTPSender_DialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()

	sender := NewSMTPSender(SMTPConfig{Host: "127.0.0.1", Port: port, From: Sender{Email: "noreply@primemortgage.ca"}}, nil)
	if err := sender.Send(context.Background(), EmailMessage{To: "jane@example.com", Subject: "s", Body: "b"}); err == nil {
		t.Fatal("expected dial error")
	}
}

func TestSMTPSender_BuildMessageEncodesSubject(t *testing.T) {
	sender := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", From: Sender{Email: "noreply@primemortgage.ca"}}, nil)
	sender.now = func() time.Time { return time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC) }

	data, err := sender.buildMessage(EmailMessage{To: "jane@example.com", Subject: "Réponse\r\nBcc: evil@example.com", Body: "b"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	msg, err := mail.ReadMessage(bufio.NewReader(strings.NewReader(string(data))))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if msg.Header.Get("Bcc") != "" {
		t.Fatal("subject injected a header")
	}
	decoded, err := new(mime.WordDecoder).DecodeHeader(msg.Header.Get("Subject"))
	if err != nil {
		t.Fatalf("decode subject: %v", err)
	}
	if decoded != "Réponse Bcc: evil@example.com" {
		t.Errorf("unexpected subject %q", decoded)
	}
	if msg.Header.Get("Date") != "Tue, 05 Mar 2024 12:00:00 +0000" {
		t.Errorf("unexpected date %q", msg.Header.Get("Date"))
	}
}
