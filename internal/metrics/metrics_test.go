package metrics

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserve(t *testing.T) {
	m := New()
	m.ObserveNative("ez:player", "getPlayerByXUID", nil)
	m.ObserveNative("ez:player", "getPlayerByXUID", errors.New("bad"))
	m.ObserveDelivery("joined", nil)
	m.ObserveDelivery("joined", errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.NativeCalls.WithLabelValues("ez:player", "getPlayerByXUID", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NativeCalls.WithLabelValues("ez:player", "getPlayerByXUID", "error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Deliveries.WithLabelValues("joined")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CallbackFailures.WithLabelValues("joined")))
}

func TestNilBridgeIsNoop(t *testing.T) {
	var m *Bridge
	assert.NotPanics(t, func() {
		m.ObserveNative("a", "b", nil)
		m.ObserveDelivery("c", errors.New("x"))
		m.TrackGauge("g", "h", func() float64 { return 1 })
	})
}

func TestHandlerExposesGauge(t *testing.T) {
	m := New()
	m.TrackGauge("ezbridge_players_online", "Players online", func() float64 { return 3 })

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "ezbridge_players_online 3")
}
