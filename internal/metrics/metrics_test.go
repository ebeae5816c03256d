package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/swifttype/internal/model"
)

func TestObserveScore(t *testing.T) {
	m := New()
	m.ObserveScore(model.Score{WPM: 55, Duration: 60})
	m.ObserveScore(model.Score{WPM: 40, Duration: 60})
	m.ObserveScore(model.Score{WPM: 70, Duration: 30})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.scoresSubmitted.WithLabelValues("60")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.scoresSubmitted.WithLabelValues("30")))
}

func TestWSGauge(t *testing.T) {
	m := New()
	m.SetWSClients(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.wsClients))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveRequest("GET", "/api/text", 200, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "swifttype_http_request_duration_seconds"))
	assert.True(t, strings.Contains(string(body), "swifttype_websocket_clients"))
}
