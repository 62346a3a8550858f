package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/mortgage-leads/internal/http/respond"
	"github.com/wolfman30/mortgage-leads/internal/leads"
	"github.com/wolfman30/mortgage-leads/pkg/logging"
)

// Recoverer turns a handler panic into the generic 500 JSON body. The panic
// value is included as details only when exposeDetails is set.
func Recoverer(logger *logging.Logger, exposeDetails bool) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rvr := recover()
				if rvr == nil {
					return
				}
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}
				logger.Error("panic recovered",
					"panic", fmt.Sprint(rvr),
					"kind", leads.KindUnknown,
					"path", r.URL.Path,
					"request_id", chimw.GetReqID(r.Context()),
					"stack", string(debug.Stack()),
				)
				body := respond.ErrorBody{Error: "Internal server error"}
				if exposeDetails {
					body.Details = fmt.Sprint(rvr)
				}
				respond.JSON(w, http.StatusInternalServerError, body)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
