package pipeline

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestStageMetrics_RecordAndTotal(t *testing.T) {
	t.Parallel()

	m := newStageMetrics("gpt-4o-mini")
	m.record(StageQueryOptimization, 120*time.Millisecond, nil)
	m.record(StageEmbedding, 80*time.Millisecond, nil)
	m.record(StageGeneration, 800*time.Millisecond, errors.New("degraded"))

	if got := m.Stages[StageQueryOptimization]; got != 120 {
		t.Errorf("query_optimization: got %v ms, want 120", got)
	}
	if got := m.Total(); got != 1000 {
		t.Errorf("total: got %v ms, want 1000", got)
	}
	if m.Errors[StageGeneration] != "degraded" {
		t.Errorf("error marker: got %v", m.Errors)
	}
	if _, ok := m.Errors[StageEmbedding]; ok {
		t.Error("successful stage must not carry an error marker")
	}
}

func TestStageMetrics_SubMillisecondPrecision(t *testing.T) {
	t.Parallel()

	m := newStageMetrics("m")
	m.record(StageVectorSearch, 1500*time.Microsecond, nil)

	if got := m.Stages[StageVectorSearch]; got != 1.5 {
		t.Errorf("expected 1.5 ms, got %v", got)
	}
}

func TestStageMetrics_MarshalJSON(t *testing.T) {
	t.Parallel()

	m := newStageMetrics("llama3")
	m.record(StageQueryOptimization, 100*time.Millisecond, nil)
	m.record(StageSummary, 200*time.Millisecond, errors.New("timeout"))

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded struct {
		Stages  map[string]float64 `json:"stages"`
		Errors  map[string]string  `json:"errors"`
		TotalMS float64            `json:"total_ms"`
		Model   string             `json:"model"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if decoded.TotalMS != 300 {
		t.Errorf("total_ms: got %v, want 300", decoded.TotalMS)
	}
	if decoded.Model != "llama3" {
		t.Errorf("model: got %q", decoded.Model)
	}
	if decoded.Stages["query_optimization"] != 100 {
		t.Errorf("stages: got %v", decoded.Stages)
	}
	if decoded.Errors["summary_generation"] != "timeout" {
		t.Errorf("errors: got %v", decoded.Errors)
	}
}

func TestStageMetrics_MarshalJSON_OmitsEmptyErrors(t *testing.T) {
	t.Parallel()

	m := newStageMetrics("m")
	m.record(StageGeneration, time.Millisecond, nil)

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := decoded["errors"]; ok {
		t.Error("expected errors field omitted when no stage degraded")
	}
}

// ---------------------------------------------------------------------------
// Prometheus instrumentation
// ---------------------------------------------------------------------------

func TestMetrics_NilSafe(t *testing.T) {
	t.Parallel()

	// CLI paths run without Prometheus; the nil receiver must be a no-op.
	var m *Metrics
	m.observeStage(StageGeneration, time.Second, nil)
	m.observeRun()
}

func TestMetrics_StageErrorCounted(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.observeStage(StageEmbedding, 10*time.Millisecond, errors.New("down"))
	m.observeStage(StageGeneration, 10*time.Millisecond, nil)
	m.observeRun()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	var sawErrors, sawRuns bool
	for _, mf := range mfs {
		switch mf.GetName() {
		case "neon_pipeline_stage_errors_total":
			sawErrors = true
			metric := mf.GetMetric()
			if len(metric) != 1 {
				t.Fatalf("expected 1 error series, got %d", len(metric))
			}
			if metric[0].GetLabel()[0].GetValue() != string(StageEmbedding) {
				t.Errorf("error stage label: got %v", metric[0].GetLabel())
			}
		case "neon_pipeline_runs_total":
			sawRuns = true
			if v := mf.GetMetric()[0].GetCounter().GetValue(); v != 1 {
				t.Errorf("runs_total: got %v, want 1", v)
			}
		}
	}
	if !sawErrors {
		t.Error("neon_pipeline_stage_errors_total not found")
	}
	if !sawRuns {
		t.Error("neon_pipeline_runs_total not found")
	}
}
