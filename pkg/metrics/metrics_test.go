package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorders(t *testing.T) {
	m := New()

	m.ObserveJob("text_generation", "success", 2*time.Second)
	m.ProviderCall("gemini", "generate", nil)
	m.ProviderCall("gemini", "generate", errors.New("boom"))
	m.AddCost("text-gen", decimal.RequireFromString("0.25"))
	m.AddCost("text-gen", decimal.Zero)
	m.BudgetDenied("monthly")
	m.CacheLookup(true)
	m.CacheLookup(false)
	m.CacheLookup(false)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobsTotal.WithLabelValues("text_generation", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderCalls.WithLabelValues("gemini", "generate", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderCalls.WithLabelValues("gemini", "generate", "error")))
	assert.InDelta(t, 0.25, testutil.ToFloat64(m.CostDollars.WithLabelValues("text-gen")), 1e-9)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BudgetDenials.WithLabelValues("monthly")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("miss")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveJob("x", "success", time.Second)
	m.ProviderCall("p", "op", nil)
	m.AddCost("text-gen", decimal.NewFromInt(1))
	m.BudgetDenied("daily")
	m.CacheLookup(true)
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.BudgetDenied("daily")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `postwright_budget_denials_total{reason="daily"} 1`)
}
