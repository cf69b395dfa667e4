package metric

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndUnregister(t *testing.T) {
	registry := NewRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_counter_total",
		Help: "test counter",
	})

	require.NoError(t, registry.Register("test", "test_counter_total", counter))

	// Duplicate registration is rejected.
	err := registry.Register("test", "test_counter_total", counter)
	assert.Error(t, err)

	assert.True(t, registry.Unregister("test", "test_counter_total"))
	assert.False(t, registry.Unregister("test", "test_counter_total"))

	// Re-registration after unregister succeeds.
	require.NoError(t, registry.Register("test", "test_counter_total", counter))
}

func TestCoreMetricsRecorders(t *testing.T) {
	registry := NewRegistry()
	core := registry.CoreMetrics()

	// Recorders must not panic and must be visible in the exposition output.
	core.RecordServiceStatus("recipes", 2)
	core.RecordHealthStatus("recipes", true)
	core.RecordRecipeIngested("stored")
	core.RecordDedupeOutcome(DedupeOutcomeStrictDuplicate)
	core.RecordSearch()
	core.RecordRerankOutcome("fallback")
	core.RecordEmbeddingCall(OutcomeOK)
	core.RecordJudgeCall("rerank", OutcomeError)
	core.RecordError("recipes", "provider")
	core.RecordNATSStatus(true)
	core.RecordNATSReconnect()

	recorder := httptest.NewRecorder()
	registry.Handler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, recorder.Code)
	body := recorder.Body.String()
	assert.Contains(t, body, "forkfolio_service_status")
	assert.Contains(t, body, "forkfolio_dedupe_outcomes_total")
	assert.Contains(t, body, "forkfolio_search_rerank_outcomes_total")
	assert.Contains(t, body, "forkfolio_provider_judge_calls_total")
}
