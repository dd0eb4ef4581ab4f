// Package pipeline implements the request-orchestration core of the chat
// backend: a user message is rewritten into a search-optimized query,
// embedded, matched against the equipment documentation vector store, and
// answered by a chat model constrained to the retrieved context, followed by
// an update of the rolling conversation summary.
//
// Every stage carries its own fallback so a run always produces a usable
// answer and summary: query optimization falls back to the raw message,
// embedding and retrieval degrade to an empty context, answer generation
// degrades to the model's raw text or an apology, and summarization keeps
// the prior summary. Per-stage latency is recorded in StageMetrics; the
// total is the sum of the stage durations, not a separately measured
// wall-clock span.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/sogacsa/neonagent/internal/budget"
	"github.com/sogacsa/neonagent/internal/logging"
	"github.com/sogacsa/neonagent/internal/retrieval"
)

// Generator is the single LLM call shape the pipeline consumes. Every eino
// ChatModel satisfies it; tests inject scripted fakes.
type Generator interface {
	// Generate performs one synchronous chat completion.
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// Config holds the dependencies and tuning knobs for constructing a Pipeline.
// The clients are constructed once at process start and shared read-only
// across requests — the pipeline holds no per-request mutable state.
type Config struct {
	// ChatModel is the LLM backend used for all three generation calls.
	ChatModel Generator

	// Embedder converts the optimized query into a dense vector. Its output
	// dimension must match the vector store's collection dimension.
	Embedder retrieval.Embedder

	// Store is the vector store queried for grounding context. May be nil
	// when retrieval is not configured; the pipeline then answers without
	// context.
	Store retrieval.VectorStore

	// ModelName identifies the chat model in StageMetrics.
	ModelName string

	// MatchCount is the number of documents requested per similarity search.
	// Defaults to 5 if zero.
	MatchCount int

	// Filter optionally constrains retrieval to matching document payloads.
	Filter retrieval.Filter

	// MaxContextTokens bounds the estimated token size of the retrieved
	// context block. Defaults to budget.DefaultMaxContextTokens if zero.
	MaxContextTokens int

	// OptimizerMaxTokens caps the query-optimization completion. Kept small
	// for latency — the output is one search phrase. Defaults to 50.
	OptimizerMaxTokens int

	// SummaryMaxTokens caps the summary completion. Defaults to 80, enough
	// headroom for the 40-word summary bound.
	SummaryMaxTokens int

	// Metrics is the optional Prometheus instrumentation. May be nil.
	Metrics *Metrics
}

// Pipeline orchestrates one sequential chat request. It is safe for
// concurrent use: each Run is an independent chain over shared read-only
// clients.
type Pipeline struct {
	chatModel          Generator
	embedder           retrieval.Embedder
	store              retrieval.VectorStore
	modelName          string
	matchCount         int
	filter             retrieval.Filter
	maxContextTokens   int
	optimizerMaxTokens int
	summaryMaxTokens   int
	metrics            *Metrics
}

// Result is the immutable outcome of one pipeline run.
type Result struct {
	// Answer is the grounded answer text. Never empty — worst case it is
	// the apology fallback.
	Answer string `json:"answer"`

	// Summary is the updated rolling summary, or the prior summary when
	// summarization failed.
	Summary string `json:"summary"`

	// Metrics holds the per-stage latency accounting for this run.
	Metrics *StageMetrics `json:"metrics"`
}

// New constructs a Pipeline from the provided Config.
func New(cfg *Config) (*Pipeline, error) {
	if cfg.ChatModel == nil {
		return nil, fmt.Errorf("pipeline: ChatModel must not be nil")
	}
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("pipeline: Embedder must not be nil")
	}

	matchCount := cfg.MatchCount
	if matchCount <= 0 {
		matchCount = 5
	}
	maxCtx := cfg.MaxContextTokens
	if maxCtx <= 0 {
		maxCtx = budget.DefaultMaxContextTokens
	}
	optMax := cfg.OptimizerMaxTokens
	if optMax <= 0 {
		optMax = 50
	}
	sumMax := cfg.SummaryMaxTokens
	if sumMax <= 0 {
		sumMax = 80
	}

	return &Pipeline{
		chatModel:          cfg.ChatModel,
		embedder:           cfg.Embedder,
		store:              cfg.Store,
		modelName:          cfg.ModelName,
		matchCount:         matchCount,
		filter:             cfg.Filter,
		maxContextTokens:   maxCtx,
		optimizerMaxTokens: optMax,
		summaryMaxTokens:   sumMax,
		metrics:            cfg.Metrics,
	}, nil
}

// Run executes the full pipeline for one user message and prior summary.
// It never returns an error: every stage failure is absorbed by that
// stage's fallback, and the degradations are visible in Result.Metrics.
// The caller is responsible for validating that message is non-empty
// before entering the pipeline.
func (p *Pipeline) Run(ctx context.Context, message, priorSummary string) *Result {
	log := logging.FromContext(ctx)
	m := newStageMetrics(p.modelName)

	optimized, err := runStage(p, m, StageQueryOptimization, func() (string, error) {
		return p.optimizeQuery(ctx, message, priorSummary)
	})
	if err != nil || optimized == "" {
		if err != nil {
			log.Warn("pipeline: query optimization failed, using raw message", slog.Any("error", err))
		}
		optimized = message
	}

	vector, err := runStage(p, m, StageEmbedding, func() ([]float32, error) {
		return p.embedQuery(ctx, optimized)
	})
	if err != nil {
		log.Warn("pipeline: embedding failed, skipping retrieval", slog.Any("error", err))
		vector = nil
	}

	contextBlock, err := runStage(p, m, StageVectorSearch, func() (string, error) {
		return p.retrieveContext(ctx, vector)
	})
	if err != nil {
		log.Warn("pipeline: retrieval failed, answering without context", slog.Any("error", err))
		contextBlock = ""
	}

	answer, err := runStage(p, m, StageGeneration, func() (string, error) {
		return p.generateAnswer(ctx, message, optimized, contextBlock)
	})
	if err != nil {
		log.Warn("pipeline: answer generation degraded to fallback", slog.Any("error", err))
	}

	summary, err := runStage(p, m, StageSummary, func() (string, error) {
		return p.summarize(ctx, priorSummary, message, answer)
	})
	if err != nil || summary == "" {
		if err != nil {
			log.Warn("pipeline: summarization failed, keeping prior summary", slog.Any("error", err))
		}
		summary = priorSummary
	}

	p.metrics.observeRun()

	return &Result{
		Answer:  answer,
		Summary: summary,
		Metrics: m,
	}
}

// runStage times fn, records the duration (and error marker, if any) into
// both the per-request StageMetrics and the process-wide Prometheus
// instrumentation, and passes the stage result through unchanged.
// A free function rather than a method because Go methods cannot be generic.
func runStage[T any](p *Pipeline, m *StageMetrics, stage Stage, fn func() (T, error)) (T, error) {
	start := time.Now()
	v, err := fn()
	elapsed := time.Since(start)
	m.record(stage, elapsed, err)
	p.metrics.observeStage(stage, elapsed, err)
	return v, err
}

// optimizeQuery asks the model for a single technical search phrase that
// covers the user's intent given the conversation history. The output token
// budget is kept tight — this call is tuned for latency.
func (p *Pipeline) optimizeQuery(ctx context.Context, message, priorSummary string) (string, error) {
	prompt := fmt.Sprintf(queryOptimizationPrompt, priorSummary, message)

	resp, err := p.chatModel.Generate(ctx,
		[]*schema.Message{schema.UserMessage(prompt)},
		model.WithMaxTokens(p.optimizerMaxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("optimize query: %w", err)
	}
	if resp == nil {
		return "", fmt.Errorf("optimize query: model returned nil message")
	}
	return strings.TrimSpace(resp.Content), nil
}

// embedQuery converts the optimized query into its embedding vector.
// On failure it returns a nil vector — downstream retrieval treats that as
// "skip the store call" rather than issuing a malformed query.
func (p *Pipeline) embedQuery(ctx context.Context, query string) ([]float32, error) {
	vectors, err := p.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, nil
	}
	return vectors[0], nil
}

// retrieveContext runs the similarity search and joins the matched chunk
// contents into the context block, in retrieval order, trimmed to the
// context token budget. An empty vector or an unconfigured store
// short-circuits to an empty context without touching the store.
func (p *Pipeline) retrieveContext(ctx context.Context, vector []float32) (string, error) {
	if len(vector) == 0 || p.store == nil {
		return "", nil
	}

	docs, err := p.store.Search(ctx, vector, p.matchCount, p.filter)
	if err != nil {
		return "", fmt.Errorf("vector search: %w", err)
	}

	chunks := make([]string, 0, len(docs))
	for _, doc := range docs {
		// A document with a missing content field contributes an empty
		// line, never a nil entry.
		chunks = append(chunks, doc.Content)
	}
	chunks = budget.TrimChunks(chunks, p.maxContextTokens)

	return strings.Join(chunks, "\n"), nil
}

// generateAnswer runs the grounded-QA call. The returned string is always
// usable: on success it is the extracted answer; on model failure it is an
// apology embedding the error description, with the error also returned so
// the caller can record the degradation.
func (p *Pipeline) generateAnswer(ctx context.Context, message, optimized, contextBlock string) (string, error) {
	messages := []*schema.Message{
		schema.SystemMessage(answerSystemPrompt),
		schema.UserMessage(fmt.Sprintf(answerUserPrompt, contextBlock, message, optimized)),
	}

	resp, err := p.chatModel.Generate(ctx, messages)
	if err != nil {
		apology := fmt.Sprintf(
			"Lo siento, ha ocurrido un error al generar la respuesta (%v). Por favor, inténtalo de nuevo.", err)
		return apology, fmt.Errorf("generate answer: %w", err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		err := fmt.Errorf("generate answer: model returned empty output")
		return "Lo siento, no he podido generar una respuesta. Por favor, inténtalo de nuevo.", err
	}

	return extractAnswer(resp.Content), nil
}

// summarize produces the updated rolling summary from the prior summary and
// the latest turn. The new summary replaces the prior one.
func (p *Pipeline) summarize(ctx context.Context, priorSummary, message, answer string) (string, error) {
	prompt := fmt.Sprintf(summaryPrompt, priorSummary, message, answer)

	resp, err := p.chatModel.Generate(ctx,
		[]*schema.Message{schema.UserMessage(prompt)},
		model.WithMaxTokens(p.summaryMaxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	if resp == nil {
		return "", fmt.Errorf("summarize: model returned nil message")
	}
	return strings.TrimSpace(resp.Content), nil
}
