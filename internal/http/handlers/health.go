package handlers

import (
	"net/http"
	"time"

	"github.com/wolfman30/mortgage-leads/internal/http/respond"
)

// HealthResponse is the liveness payload.
type HealthResponse struct {
	Status    string  `json:"status"`
	Timestamp string  `json:"timestamp"`
	Uptime    float64 `json:"uptime"`
}

// HealthHandler reports process liveness. It never touches the store or the
// mail transport.
type HealthHandler struct {
	started time.Time
	now     func() time.Time
}

// NewHealthHandler measures uptime from started.
func NewHealthHandler(started time.Time) *HealthHandler {
	return &HealthHandler{started: started, now: time.Now}
}

// HealthCheck returns a simple health check response.
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	respond.JSON(w, http.StatusOK, HealthResponse{
		Status:    "OK",
		Timestamp: now.UTC().Format(time.RFC3339),
		Uptime:    now.Sub(h.started).Seconds(),
	})
}
