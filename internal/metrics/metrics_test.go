package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLogin("google", "authenticate")
	c.RecordLogin("google", "authenticate")
	c.RecordCallback("google", "cancelled")
	c.RecordRateLimited("login")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.logins.WithLabelValues("google", "authenticate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.callbacks.WithLabelValues("google", "cancelled")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.rateLimited.WithLabelValues("login")))
}

func TestRecordProviderCall(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordProviderCall("google", "token", 20*time.Millisecond, nil)
	c.RecordProviderCall("google", "profile", time.Second, errors.New("boom"))

	assert.Equal(t, 2, testutil.CollectAndCount(c.providerLatency))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.providerErrors.WithLabelValues("google", "token")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.providerErrors.WithLabelValues("google", "profile")))
}

func TestHandlerServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordCallback("google", "success")

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "social_login_callbacks_total"))
}
