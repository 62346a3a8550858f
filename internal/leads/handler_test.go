package leads

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

type stubPipeline struct {
	err     error
	records []Record
}

func (p *stubPipeline) Submit(context.Context, Submission) (*Receipt, error) {
	return nil, p.err
}

func (p *stubPipeline) List(context.Context, string) ([]Record, error) {
	return p.records, p.err
}

func newTestHandler(store Store, notifier Notifier, cfg HandlerConfig) *Handler {
	svc := NewService(store, notifier, ServiceConfig{StoreTimeout: time.Second, MailTimeout: time.Second}, nil, nil)
	return NewHandler(svc, cfg, nil, nil)
}

func postJSON(h http.HandlerFunc, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/leads", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
	return body
}

const janeJSON = `{"name":"Jane Doe","email":"JANE@Example.com","phone":"(416) 555-0123","message":"Looking to refinance","type":"contact"}`

func TestSubmitLeadSuccess(t *testing.T) {
	store := NewMemoryStore("")
	notifier := &fakeNotifier{report: NotificationReport{BusinessSent: true, CustomerSent: true}}
	h := newTestHandler(store, notifier, HandlerConfig{})

	rec := postJSON(h.Submit, janeJSON, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["success"] != true || body["message"] != "Lead submitted successfully" {
		t.Fatalf("unexpected body %v", body)
	}
	if _, err := uuid.Parse(body["leadId"].(string)); err != nil {
		t.Fatalf("expected uuid leadId, got %v", body["leadId"])
	}

	if store.Len() != 1 {
		t.Fatalf("expected one row, got %d", store.Len())
	}
	if notifier.calls != 1 {
		t.Fatalf("expected one notification dispatch, got %d", notifier.calls)
	}
	lead := notifier.leads[0]
	if lead.Email != "jane@example.com" || lead.Type != "contact" || lead.SubmittedAt.IsZero() {
		t.Fatalf("unexpected lead %+v", lead)
	}
}

func TestSubmitLeadFormEncoded(t *testing.T) {
	store := NewMemoryStore("")
	h := newTestHandler(store, nil, HandlerConfig{})

	form := url.Values{
		"name":  {"Jane Doe"},
		"email": {"jane@example.com"},
		"phone": {"416-555-0123"},
	}
	req := httptest.NewRequest(http.MethodPost, "/api/leads", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.Submit(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if store.Len() != 1 {
		t.Fatalf("expected one row")
	}
}

func TestSubmitLeadStringifiesScalars(t *testing.T) {
	store := NewMemoryStore("s")
	h := newTestHandler(store, nil, HandlerConfig{})

	rec := postJSON(h.Submit, `{"name":"Jane Doe","email":"jane@example.com","phone":4165550123}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	records, _ := store.List(context.Background(), "s")
	if records[0].Phone != "4165550123" || records[0].Type != DefaultType {
		t.Fatalf("unexpected record %+v", records[0])
	}
}

func TestSubmitLeadValidationFailure(t *testing.T) {
	store := NewMemoryStore("")
	notifier := &fakeNotifier{}
	h := newTestHandler(store, notifier, HandlerConfig{})

	rec := postJSON(h.Submit, `{"name":"Jane Doe","email":"not-an-email","phone":"(416) 555-0123"}`, nil)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var body struct {
		Error   string       `json:"error"`
		Details []FieldError `json:"details"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error != "Validation failed" {
		t.Fatalf("unexpected error %q", body.Error)
	}
	if len(body.Details) != 1 || body.Details[0].Field != "email" || body.Details[0].Message != "Please provide a valid email address" {
		t.Fatalf("unexpected details %+v", body.Details)
	}
	if store.Len() != 0 || notifier.calls != 0 {
		t.Fatalf("expected no side effects")
	}
}

func TestSubmitLeadEmptyBodyIsValidationFailure(t *testing.T) {
	h := newTestHandler(NewMemoryStore(""), nil, HandlerConfig{})
	rec := postJSON(h.Submit, "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if decodeBody(t, rec)["error"] != "Validation failed" {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestSubmitLeadMalformedBody(t *testing.T) {
	h := newTestHandler(NewMemoryStore(""), nil, HandlerConfig{})
	for _, body := range []string{`{"name":`, `["Jane"]`, `"Jane"`} {
		rec := postJSON(h.Submit, body, nil)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", body, rec.Code)
		}
		if got := decodeBody(t, rec)["error"]; got != "Invalid request body" {
			t.Fatalf("%s: unexpected error %v", body, got)
		}
	}
}

func TestSubmitLeadPayloadTooLarge(t *testing.T) {
	h := newTestHandler(NewMemoryStore(""), nil, HandlerConfig{})

	big := `{"name":"Jane Doe","message":"` + strings.Repeat("x", 2048) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/leads", strings.NewReader(big))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	req.Body = http.MaxBytesReader(rec, req.Body, 1024)
	h.Submit(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
}

func TestSubmitLeadStoreFailure(t *testing.T) {
	notifier := &fakeNotifier{}
	h := newTestHandler(NewUnconfiguredStore(ErrMissingCredentials, ""), notifier, HandlerConfig{Production: true})

	rec := postJSON(h.Submit, janeJSON, nil)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["error"] != "Failed to save lead to database" {
		t.Fatalf("unexpected error %v", body["error"])
	}
	if body["details"] != ErrMissingCredentials.Error() {
		t.Fatalf("unexpected details %v", body["details"])
	}
	if notifier.calls != 0 {
		t.Fatalf("expected no notification after store failure")
	}
}

func TestSubmitLeadUnexpectedFailure(t *testing.T) {
	boom := errors.New("nil pointer somewhere")

	dev := NewHandler(&stubPipeline{err: boom}, HandlerConfig{}, nil, nil)
	rec := postJSON(dev.Submit, janeJSON, nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["error"] != "Internal server error" || body["details"] != boom.Error() {
		t.Fatalf("unexpected development body %v", body)
	}

	prod := NewHandler(&stubPipeline{err: boom}, HandlerConfig{Production: true}, nil, nil)
	rec = postJSON(prod.Submit, janeJSON, nil)
	body = decodeBody(t, rec)
	if _, ok := body["details"]; ok {
		t.Fatalf("expected no details in production, got %v", body)
	}
}

func TestSubmitLeadIdempotentReplay(t *testing.T) {
	store := NewMemoryStore("")
	notifier := &fakeNotifier{report: NotificationReport{BusinessSent: true, CustomerSent: true}}
	h := newTestHandler(store, notifier, HandlerConfig{Idempotency: NewMemoryIdempotencyStore(time.Hour, 0)})
	headers := map[string]string{IdempotencyKeyHeader: "form-abc"}

	first := postJSON(h.Submit, janeJSON, headers)
	second := postJSON(h.Submit, janeJSON, headers)

	if first.Code != http.StatusOK || second.Code != http.StatusOK {
		t.Fatalf("expected 200/200, got %d/%d", first.Code, second.Code)
	}
	if decodeBody(t, first)["leadId"] != decodeBody(t, second)["leadId"] {
		t.Fatalf("expected replayed leadId")
	}
	if second.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatalf("expected replay marker header")
	}
	if store.Len() != 1 || notifier.calls != 1 {
		t.Fatalf("expected a single row and dispatch, got %d rows and %d dispatches", store.Len(), notifier.calls)
	}
}

func TestSubmitLeadIdempotencyInFlight(t *testing.T) {
	idem := NewMemoryIdempotencyStore(time.Hour, 0)
	if _, err := idem.Claim(context.Background(), "form-abc", janeFingerprint()); err != nil {
		t.Fatalf("claim: %v", err)
	}
	store := NewMemoryStore("")
	h := newTestHandler(store, nil, HandlerConfig{Idempotency: idem})

	rec := postJSON(h.Submit, janeJSON, map[string]string{IdempotencyKeyHeader: "form-abc"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if store.Len() != 0 {
		t.Fatalf("expected no row for conflicting request")
	}
}

func TestSubmitLeadIdempotencyKeyReusedWithDifferentBody(t *testing.T) {
	store := NewMemoryStore("")
	notifier := &fakeNotifier{report: NotificationReport{BusinessSent: true, CustomerSent: true}}
	h := newTestHandler(store, notifier, HandlerConfig{Idempotency: NewMemoryIdempotencyStore(time.Hour, 0)})
	headers := map[string]string{IdempotencyKeyHeader: "form-abc"}

	if rec := postJSON(h.Submit, janeJSON, headers); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	other := `{"name":"John Smith","email":"john@example.com","phone":"416-555-0100"}`
	rec := postJSON(h.Submit, other, headers)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if rec.Header().Get("Idempotent-Replayed") != "" {
		t.Fatalf("expected no replay for a different submission")
	}
	if body := decodeBody(t, rec); body["leadId"] != nil {
		t.Fatalf("expected no leadId in mismatch response, got %v", body)
	}
	if store.Len() != 1 || notifier.calls != 1 {
		t.Fatalf("expected a single row and dispatch, got %d rows and %d dispatches", store.Len(), notifier.calls)
	}
}

func janeFingerprint() string {
	return Fingerprint(Submission{
		Name:    "Jane Doe",
		Email:   "JANE@Example.com",
		Phone:   "(416) 555-0123",
		Message: "Looking to refinance",
		Type:    "contact",
	})
}

func TestSubmitLeadIdempotencyReleasedOnFailure(t *testing.T) {
	store := NewMemoryStore("")
	h := newTestHandler(store, nil, HandlerConfig{Idempotency: NewMemoryIdempotencyStore(time.Hour, 0)})
	headers := map[string]string{IdempotencyKeyHeader: "form-abc"}

	if rec := postJSON(h.Submit, `{"name":"Jane Doe"}`, headers); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if rec := postJSON(h.Submit, janeJSON, headers); rec.Code != http.StatusOK {
		t.Fatalf("expected retry with same key to succeed, got %d", rec.Code)
	}
	if store.Len() != 1 {
		t.Fatalf("expected one row, got %d", store.Len())
	}
}

func TestSubmitLeadIdempotencyKeyTooLong(t *testing.T) {
	h := newTestHandler(NewMemoryStore(""), nil, HandlerConfig{Idempotency: NewMemoryIdempotencyStore(time.Hour, 0)})
	rec := postJSON(h.Submit, janeJSON, map[string]string{IdempotencyKeyHeader: strings.Repeat("k", MaxIdempotencyKeyLength+1)})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestListLeads(t *testing.T) {
	store := NewMemoryStore("s3cret")
	if _, err := store.Append(context.Background(), sampleLead()); err != nil {
		t.Fatalf("append: %v", err)
	}
	h := newTestHandler(store, nil, HandlerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/api/admin/leads", nil)
	req.Header.Set(AdminSecretHeader, "s3cret")
	rec := httptest.NewRecorder()
	h.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body ListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Count != 1 || len(body.Leads) != 1 || body.Leads[0].Name != "Jane Doe" {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestListLeadsUnauthorized(t *testing.T) {
	h := newTestHandler(NewMemoryStore("s3cret"), nil, HandlerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/api/admin/leads", nil)
	req.Header.Set(AdminSecretHeader, "guess")
	rec := httptest.NewRecorder()
	h.List(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if decodeBody(t, rec)["error"] != "Unauthorized" {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestListLeadsStoreFailure(t *testing.T) {
	h := newTestHandler(NewUnconfiguredStore(ErrMissingSpreadsheet, "s3cret"), nil, HandlerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/api/admin/leads", nil)
	req.Header.Set(AdminSecretHeader, "s3cret")
	rec := httptest.NewRecorder()
	h.List(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestListLeadsEmptyIsArray(t *testing.T) {
	h := NewHandler(&stubPipeline{}, HandlerConfig{}, nil, nil)
	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/admin/leads", nil))
	if strings.TrimSpace(rec.Body.String()) != `{"leads":[],"count":0}` {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}
