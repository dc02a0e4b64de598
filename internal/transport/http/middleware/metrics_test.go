package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_CountsRouteStatusAndCode(t *testing.T) {
	m := NewMetrics()
	r := chi.NewRouter()
	r.Use(m.Instrument)
	r.Get("/account/{id}", func(w http.ResponseWriter, r *http.Request) {
		RecordCode(r, "get_account_success")
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", m.Handler())

	for i := 0; i < 2; i++ {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/account/u1", nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "/account/{id}", "200")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.codes.WithLabelValues("get_account_success")))

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `auth_responses_total{code="get_account_success"} 2`)
}

func TestRecordCode_OutsideInstrumentedRequest(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordCode(httptest.NewRequest(http.MethodGet, "/", nil), "x")
	})
}
