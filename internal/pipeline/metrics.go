package pipeline

import (
	"encoding/json"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Stage identifies one step of the chat pipeline. Stage names are part of
// the API response contract and of the Prometheus label set — do not rename.
type Stage string

const (
	// StageQueryOptimization rewrites the user message into a search phrase.
	StageQueryOptimization Stage = "query_optimization"
	// StageEmbedding converts the optimized query into a dense vector.
	StageEmbedding Stage = "embedding_generation"
	// StageVectorSearch runs the similarity search against the vector store.
	StageVectorSearch Stage = "vector_db_search"
	// StageGeneration produces the grounded answer.
	StageGeneration Stage = "llm_generation"
	// StageSummary updates the rolling conversation summary.
	StageSummary Stage = "summary_generation"
)

// AllStages lists the pipeline stages in execution order.
var AllStages = []Stage{
	StageQueryOptimization,
	StageEmbedding,
	StageVectorSearch,
	StageGeneration,
	StageSummary,
}

// StageMetrics records the elapsed milliseconds of every stage attempted
// during one pipeline run, plus error markers for stages that fell back.
// The total is derived as the sum of the recorded stage durations — the
// stages run sequentially, so the sum is the meaningful pipeline latency
// and is deterministic with respect to the per-stage values.
type StageMetrics struct {
	// Stages maps each attempted stage to its elapsed milliseconds.
	Stages map[Stage]float64

	// Errors maps stages that degraded to their fallback to the error text.
	// Nil when every stage succeeded.
	Errors map[Stage]string

	// Model is the identifier of the chat model used for the LLM stages.
	Model string
}

// newStageMetrics returns an empty StageMetrics for the given model.
func newStageMetrics(model string) *StageMetrics {
	return &StageMetrics{
		Stages: make(map[Stage]float64, len(AllStages)),
		Model:  model,
	}
}

// record stores the elapsed duration for a stage, and the error marker when
// the stage degraded to its fallback.
func (m *StageMetrics) record(stage Stage, elapsed time.Duration, err error) {
	m.Stages[stage] = float64(elapsed.Microseconds()) / 1000.0
	if err != nil {
		if m.Errors == nil {
			m.Errors = make(map[Stage]string)
		}
		m.Errors[stage] = err.Error()
	}
}

// Total returns the sum of all recorded stage durations in milliseconds.
func (m *StageMetrics) Total() float64 {
	var total float64
	for _, ms := range m.Stages {
		total += ms
	}
	return total
}

// MarshalJSON renders the metrics with the derived total included, so API
// clients never have to re-sum the stages themselves.
func (m *StageMetrics) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Stages  map[Stage]float64 `json:"stages"`
		Errors  map[Stage]string  `json:"errors,omitempty"`
		TotalMS float64           `json:"total_ms"`
		Model   string            `json:"model"`
	}{
		Stages:  m.Stages,
		Errors:  m.Errors,
		TotalMS: m.Total(),
		Model:   m.Model,
	})
}

// Metrics holds the Prometheus instrumentation for the pipeline. A single
// instance is created at startup and shared by every request; tests inject
// a fresh prometheus.Registry so registrations stay hermetic.
type Metrics struct {
	// runsTotal counts completed pipeline runs.
	runsTotal prometheus.Counter

	// stageDurationSeconds records the latency of each pipeline stage.
	stageDurationSeconds *prometheus.HistogramVec

	// stageErrorsTotal counts stage executions that degraded to their fallback.
	stageErrorsTotal *prometheus.CounterVec
}

// NewMetrics registers the pipeline metrics against reg and returns the
// populated Metrics. promauto.With(reg) registers into the provided registry
// rather than the global default.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		runsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "neon",
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of completed pipeline runs.",
		}),

		stageDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "neon",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Latency of each pipeline stage, partitioned by stage name.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"stage"}),

		stageErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "neon",
			Subsystem: "pipeline",
			Name:      "stage_errors_total",
			Help:      "Number of stage executions that fell back due to an error, partitioned by stage name.",
		}, []string{"stage"}),
	}
}

// observeStage records one stage execution. Safe to call on a nil receiver
// so the pipeline works without Prometheus wired up (e.g. in the CLI).
func (m *Metrics) observeStage(stage Stage, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.stageDurationSeconds.WithLabelValues(string(stage)).Observe(elapsed.Seconds())
	if err != nil {
		m.stageErrorsTotal.WithLabelValues(string(stage)).Inc()
	}
}

// observeRun records one completed pipeline run. Nil-safe like observeStage.
func (m *Metrics) observeRun() {
	if m == nil {
		return
	}
	m.runsTotal.Inc()
}
