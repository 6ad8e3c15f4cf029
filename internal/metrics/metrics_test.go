package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"go-account-service/internal/model"
)

func TestObserveOperation(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveOperation("login", nil, time.Millisecond)
	m.ObserveOperation("login", model.ErrInvalidCredentials, time.Millisecond)
	m.ObserveOperation("login", model.ErrInvalidCredentials, time.Millisecond)

	require.Equal(t, float64(1), testutil.ToFloat64(m.Operations.WithLabelValues("login", OutcomeSuccess)))
	require.Equal(t, float64(2), testutil.ToFloat64(m.Operations.WithLabelValues("login", "invalid_credentials")))
}

func TestObserveDispatch(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveDispatch("verification", nil)
	m.ObserveDispatch("verification", errors.New("smtp down"))

	require.Equal(t, float64(1), testutil.ToFloat64(m.Dispatches.WithLabelValues("verification", OutcomeSuccess)))
	require.Equal(t, float64(1), testutil.ToFloat64(m.Dispatches.WithLabelValues("verification", "failure")))
}

func TestOutcome(t *testing.T) {
	t.Parallel()

	require.Equal(t, "success", Outcome(nil))
	require.Equal(t, "invalid_token", Outcome(model.ErrInvalidToken))
	require.Equal(t, "internal_error", Outcome(errors.New("boom")))
}

func TestNilMetricsAreNoOps(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.ObserveOperation("login", nil, time.Second)
	m.ObserveDispatch("verification", nil)
	m.ObserveHTTP(http.MethodGet, "/health", http.StatusOK, time.Second)
	require.Nil(t, m.Registry())
}

func TestHandlerExposesCounters(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveHTTP(http.MethodPost, "/api/v1/auth/login", http.StatusOK, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "http_requests_total")
}
