package leads

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/wolfman30/mortgage-leads/internal/http/respond"
	"github.com/wolfman30/mortgage-leads/internal/observability/metrics"
	"github.com/wolfman30/mortgage-leads/pkg/logging"
)

// AdminSecretHeader carries the shared secret for the admin read path.
const AdminSecretHeader = "X-Admin-Secret"

// IdempotencyKeyHeader lets a client make retries of one submission safe.
const IdempotencyKeyHeader = "Idempotency-Key"

const successMessage = "Lead submitted successfully"

// Pipeline is the submission workflow the handler drives.
type Pipeline interface {
	Submit(ctx context.Context, sub Submission) (*Receipt, error)
	List(ctx context.Context, secret string) ([]Record, error)
}

// HandlerConfig controls response detail and the optional idempotency extension.
type HandlerConfig struct {
	// Production hides internal error detail from generic 500 bodies.
	Production  bool
	Idempotency IdempotencyStore
}

// Handler handles HTTP requests for leads
type Handler struct {
	pipeline Pipeline
	cfg      HandlerConfig
	logger   *logging.Logger
	metrics  *metrics.LeadMetrics
}

// NewHandler creates a new leads handler
func NewHandler(pipeline Pipeline, cfg HandlerConfig, logger *logging.Logger, m *metrics.LeadMetrics) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		pipeline: pipeline,
		cfg:      cfg,
		logger:   logger.With("component", "leads_http"),
		metrics:  m,
	}
}

// SubmitResponse is the 200 body for an accepted lead.
type SubmitResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	LeadID  string `json:"leadId"`
}

// ListResponse is the 200 body for the admin read path.
type ListResponse struct {
	Leads []Record `json:"leads"`
	Count int      `json:"count"`
}

// Submit handles POST /api/leads requests
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	sub, err := decodeSubmission(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Error(w, http.StatusRequestEntityTooLarge, "Payload too large")
			return
		}
		h.logger.Warn("failed to decode lead submission", "error", err)
		respond.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
	if key == "" || h.cfg.Idempotency == nil {
		h.submit(w, r, sub, "", "")
		return
	}
	if len(key) > MaxIdempotencyKeyLength {
		respond.Error(w, http.StatusBadRequest, "Invalid Idempotency-Key header")
		return
	}

	fingerprint := Fingerprint(sub)
	claim, err := h.cfg.Idempotency.Claim(r.Context(), key, fingerprint)
	if err != nil {
		h.logger.Warn("idempotency store unavailable, processing without key", "error", err)
		h.submit(w, r, sub, "", "")
		return
	}
	switch claim.State {
	case ClaimInFlight:
		respond.Error(w, http.StatusConflict, "Submission already in progress")
	case ClaimMismatch:
		respond.Error(w, http.StatusUnprocessableEntity, "Idempotency-Key was already used with a different submission")
	case ClaimCompleted:
		h.metrics.ObserveSubmission("replayed")
		w.Header().Set("Idempotent-Replayed", "true")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(claim.Response)
	default:
		h.submit(w, r, sub, key, fingerprint)
	}
}

// submit runs the pipeline and writes the response. A non-empty key is
// completed on success and released on failure.
func (h *Handler) submit(w http.ResponseWriter, r *http.Request, sub Submission, key, fingerprint string) {
	receipt, err := h.pipeline.Submit(r.Context(), sub)
	if err != nil {
		if key != "" {
			if relErr := h.cfg.Idempotency.Release(context.WithoutCancel(r.Context()), key); relErr != nil {
				h.logger.Warn("failed to release idempotency key", "error", relErr)
			}
		}
		h.writeSubmitError(w, err)
		return
	}

	body, err := json.Marshal(SubmitResponse{
		Success: true,
		Message: successMessage,
		LeadID:  receipt.LeadID,
	})
	if err != nil {
		h.writeSubmitError(w, err)
		return
	}
	body = append(body, '\n')
	if key != "" {
		if err := h.cfg.Idempotency.Complete(context.WithoutCancel(r.Context()), key, fingerprint, body); err != nil {
			h.logger.Warn("failed to store idempotent response", "error", err, "lead_id", receipt.LeadID)
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (h *Handler) writeSubmitError(w http.ResponseWriter, err error) {
	var verrs ValidationErrors
	if errors.As(err, &verrs) {
		respond.JSON(w, http.StatusBadRequest, respond.ErrorBody{
			Error:   "Validation failed",
			Details: []FieldError(verrs),
		})
		return
	}

	switch KindOf(err) {
	case KindStore:
		respond.JSON(w, http.StatusInternalServerError, respond.ErrorBody{
			Error:   "Failed to save lead to database",
			Details: errorDetail(err),
		})
	default:
		h.metrics.ObserveSubmission("error")
		h.logger.Error("lead submission failed", "error", err, "kind", KindOf(err))
		body := respond.ErrorBody{Error: "Internal server error"}
		if !h.cfg.Production {
			body.Details = err.Error()
		}
		respond.JSON(w, http.StatusInternalServerError, body)
	}
}

// List handles GET /api/admin/leads requests
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.pipeline.List(r.Context(), r.Header.Get(AdminSecretHeader))
	if err != nil {
		if KindOf(err) == KindAuth {
			h.logger.Warn("admin lead listing rejected", "remote_addr", r.RemoteAddr)
			respond.Error(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		h.logger.Error("failed to list leads", "error", err, "kind", KindOf(err))
		respond.JSON(w, http.StatusInternalServerError, respond.ErrorBody{
			Error:   "Failed to retrieve leads",
			Details: errorDetail(err),
		})
		return
	}
	if records == nil {
		records = []Record{}
	}
	respond.JSON(w, http.StatusOK, ListResponse{Leads: records, Count: len(records)})
}

func errorDetail(err error) string {
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.Message()
	}
	return err.Error()
}

// decodeSubmission reads a JSON object or an urlencoded form. Scalar JSON
// values are stringified; nested values are dropped.
func decodeSubmission(r *http.Request) (Submission, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/x-www-form-urlencoded" {
		if err := r.ParseForm(); err != nil {
			return Submission{}, err
		}
		return Submission{
			Name:    r.PostForm.Get("name"),
			Email:   r.PostForm.Get("email"),
			Phone:   r.PostForm.Get("phone"),
			Message: r.PostForm.Get("message"),
			Type:    r.PostForm.Get("type"),
		}, nil
	}

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return Submission{}, err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return Submission{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return Submission{}, fmt.Errorf("decode json body: %w", err)
	}
	return Submission{
		Name:    stringField(fields["name"]),
		Email:   stringField(fields["email"]),
		Phone:   stringField(fields["phone"]),
		Message: stringField(fields["message"]),
		Type:    stringField(fields["type"]),
	}, nil
}

func stringField(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}
