package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/mortgage-leads/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/mortgage-leads/internal/http/middleware"
	"github.com/wolfman30/mortgage-leads/internal/http/respond"
	"github.com/wolfman30/mortgage-leads/internal/leads"
	"github.com/wolfman30/mortgage-leads/internal/observability/metrics"
	"github.com/wolfman30/mortgage-leads/pkg/logging"
)

// Rate limit scopes, also used as metric labels.
const (
	scopeAPI   = "api"
	scopeLeads = "leads"
)

const leadLimitMessage = "Too many submissions. Please try again later."

// Config holds router configuration
type Config struct {
	Logger        *logging.Logger
	Production    bool
	LeadsHandler  *leads.Handler
	HealthHandler *handlers.HealthHandler

	// AdminEnabled mounts GET /api/admin/leads. Set when ADMIN_SECRET is configured.
	AdminEnabled bool

	// MetricsHandler is mounted at /metrics when non-nil.
	MetricsHandler http.Handler
	Metrics        *metrics.LeadMetrics

	CORSAllowedOrigins []string

	// TrustProxy lets chi's RealIP rewrite RemoteAddr from proxy headers.
	// Off, the rate limits key on the socket address.
	TrustProxy bool

	// RateCounter is shared by both ceilings. Nil keeps counters in memory.
	RateCounter         httpmiddleware.Counter
	RateLimitWindow     time.Duration
	RateLimitMax        int64
	LeadRateLimitWindow time.Duration
	LeadRateLimitMax    int64
	MaxBodyBytes        int64
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	counter := cfg.RateCounter
	if counter == nil {
		counter = httpmiddleware.NewMemoryCounter()
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	if cfg.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(httpmiddleware.Recoverer(logger, !cfg.Production))
	r.Use(httpmiddleware.RequestLogger(logger, "/health"))
	useSecurityHeaders(r, cfg.Production)
	r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins, logger))

	// Set before Route so the /api subrouter inherits them.
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respond.Error(w, http.StatusNotFound, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respond.Error(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	// Public endpoints
	if cfg.HealthHandler != nil {
		r.Get("/health", cfg.HealthHandler.HealthCheck)
	}
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/api", func(api chi.Router) {
		api.Use(httpmiddleware.RateLimit(httpmiddleware.RateLimitConfig{
			Scope:   scopeAPI,
			Window:  cfg.RateLimitWindow,
			Max:     cfg.RateLimitMax,
			Counter: counter,
			Logger:  logger,
			Metrics: cfg.Metrics,
		}))

		if cfg.LeadsHandler != nil {
			api.With(
				httpmiddleware.RateLimit(httpmiddleware.RateLimitConfig{
					Scope:   scopeLeads,
					Window:  cfg.LeadRateLimitWindow,
					Max:     cfg.LeadRateLimitMax,
					Message: leadLimitMessage,
					Counter: counter,
					Logger:  logger,
					Metrics: cfg.Metrics,
				}),
				httpmiddleware.BodyLimit(cfg.MaxBodyBytes),
			).Post("/leads", cfg.LeadsHandler.Submit)

			if cfg.AdminEnabled {
				api.Get("/admin/leads", cfg.LeadsHandler.List)
			}
		}
	})

	return r
}
