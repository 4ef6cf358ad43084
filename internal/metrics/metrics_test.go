package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketScreener/internal/model"
)

func TestObserveRun(t *testing.T) {
	m := New()
	m.ObserveOutcome(model.Rejected("A.JK", "score below threshold"))
	m.ObserveOutcome(model.Failed("B.JK", errors.New("boom")))
	m.ObserveOutcome(model.Failed("C.JK", errors.New("boom")))

	m.ObserveRun(&model.RunReport{
		StartedAt:  time.Unix(1_700_000_000, 0),
		Elapsed:    42 * time.Second,
		Regime:     model.RegimeSnapshot{Regime: model.RegimeBearish},
		Candidates: []*model.Candidate{{Symbol: "D.JK"}, {Symbol: "E.JK"}},
	})
	m.RunFailed()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Instruments.WithLabelValues("rejected")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Instruments.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues("fatal")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Candidates))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Regime.WithLabelValues("BEARISH")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Regime.WithLabelValues("BULLISH")))
	assert.Equal(t, 1.7e9, testutil.ToFloat64(m.LastRunUnix))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveOutcome(model.Rejected("A.JK", "x"))
		m.ObserveRun(&model.RunReport{})
		m.RunFailed()
		m.ObserveNotification("telegram", nil)
	})
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveNotification("telegram", errors.New("timeout"))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `screener_notifications_total{result="error",sink="telegram"} 1`), body)
	assert.Contains(t, body, "go_goroutines")
}
