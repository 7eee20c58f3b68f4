package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/trips/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"1", "2", "3"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/trips/"+id, nil))
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "/trips/{id}", "404")))
}

func TestCountersAndHandler(t *testing.T) {
	m := New()
	m.IdleExpired()
	m.TripApproval(true)
	m.TripApproval(false)
	m.TripApproval(false)
	m.WatchOpened()
	m.WatchOpened()
	m.WatchClosed()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.idleExpirations))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.tripTransitions.WithLabelValues("already_approved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.watches))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.True(t, strings.Contains(string(body), "winchzone_idle_expirations_total 1"))
}
