package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/sogacsa/neonagent/internal/embedder"
	"github.com/sogacsa/neonagent/internal/pipeline"
	"github.com/sogacsa/neonagent/internal/provider"
	"github.com/sogacsa/neonagent/internal/retrieval"
)

// pipelineDeps bundles everything assembled by buildPipelineDeps so commands
// can wire pingers and servers around the same client instances the pipeline
// uses.
type pipelineDeps struct {
	// Pipe is the assembled chat pipeline.
	Pipe *pipeline.Pipeline
	// ChatModel is the LLM client shared with readiness pingers.
	ChatModel pipeline.Generator
	// Provider is the resolved provider configuration.
	Provider *provider.Config
	// Qdrant is the vector store connection, nil when retrieval is disabled.
	Qdrant *retrieval.QdrantStore
	// Close releases the store connection.
	Close func()
}

// buildPipelineDeps assembles the chat pipeline from environment
// configuration: chat model, embedder, and (optionally) the vector store.
func buildPipelineDeps(ctx context.Context, log *slog.Logger, metrics *pipeline.Metrics) (*pipelineDeps, error) {
	providerCfg := provider.ConfigFromEnv()
	chatModel, err := provider.New(ctx, providerCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise model provider: %w", err)
	}
	log.Info("provider initialised", slog.String("provider", string(providerCfg.Backend)))

	if err := embedder.ValidateForRAG(log); err != nil {
		return nil, err
	}
	emb, err := embedder.NewFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}

	qs, closeStore, err := buildVectorStore(ctx, log)
	if err != nil {
		return nil, err
	}

	// A nil *QdrantStore must stay a nil interface value inside the pipeline.
	var store retrieval.VectorStore
	if qs != nil {
		store = qs
	}

	pipe, err := pipeline.New(&pipeline.Config{
		ChatModel:        chatModel,
		Embedder:         emb,
		Store:            store,
		ModelName:        providerCfg.ModelName(),
		MatchCount:       getEnvInt("NEON_PIPELINE_TOP_K", 0),
		MaxContextTokens: getEnvInt("NEON_MAX_CONTEXT_TOKENS", 0),
		Metrics:          metrics,
	})
	if err != nil {
		closeStore()
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	return &pipelineDeps{
		Pipe:      pipe,
		ChatModel: chatModel,
		Provider:  providerCfg,
		Qdrant:    qs,
		Close:     closeStore,
	}, nil
}

// buildVectorStore connects to Qdrant when QDRANT_HOST is set. When it is
// not, retrieval is disabled: the returned store is nil and the pipeline
// answers without documentation context.
func buildVectorStore(ctx context.Context, log *slog.Logger) (*retrieval.QdrantStore, func(), error) {
	host := os.Getenv("QDRANT_HOST")
	if host == "" {
		log.Info("retrieval disabled", slog.String("reason", "QDRANT_HOST not set"))
		return nil, func() {}, nil
	}

	port := getEnvInt("QDRANT_PORT", 6334)
	collection := getEnvOrDefault("QDRANT_COLLECTION", "neon-docs")
	embBackend := getEnvOrDefault("EMBEDDING_PROVIDER", getEnvOrDefault("MODEL_PROVIDER", "ollama"))
	vectorSize := uint64(embedder.DefaultDimensions(embBackend)) //nolint:gosec // dimensions are bounded

	store, err := retrieval.NewQdrantStore(ctx, &retrieval.QdrantConfig{
		Host:       host,
		Port:       port,
		Collection: collection,
		VectorSize: vectorSize,
		APIKey:     os.Getenv("QDRANT_API_KEY"),
		UseTLS:     os.Getenv("QDRANT_TLS") == "true",
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", host, port, err)
	}

	log.Info("qdrant store ready",
		slog.String("host", host),
		slog.Int("port", port),
		slog.String("collection", collection),
	)
	return store, func() { _ = store.Close() }, nil
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
