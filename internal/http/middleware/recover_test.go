package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wolfman30/mortgage-leads/pkg/logging"
)

func panicky() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("sheet client exploded")
	})
}

func TestRecovererHidesDetailsInProduction(t *testing.T) {
	var buf bytes.Buffer
	h := Recoverer(logging.NewWithWriter("info", &buf), false)(panicky())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/leads", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, rec.Body.String())
	assert.Contains(t, buf.String(), "panic recovered")
	assert.Contains(t, buf.String(), "UNKNOWN_ERROR")
}

func TestRecovererExposesDetailsInDevelopment(t *testing.T) {
	h := Recoverer(logging.NewWithWriter("error", &bytes.Buffer{}), true)(panicky())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/leads", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Internal server error","details":"sheet client exploded"}`, rec.Body.String())
}

func TestRecovererRepanicsOnAbort(t *testing.T) {
	h := Recoverer(logging.NewWithWriter("error", &bytes.Buffer{}), true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}
