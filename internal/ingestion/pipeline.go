// Package ingestion implements the documentation ingestion pipeline.
// It fetches technical equipment documentation (manuals, datasheets, safety
// sheets), chunks the content, embeds each chunk, and upserts the results
// into the vector store. This pipeline is invoked by the `neonagent ingest`
// CLI command.
package ingestion

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/sogacsa/neonagent/internal/retrieval"
)

// Source describes a documentation source to be ingested. Location may be an
// HTTP(S) URL or a local file path.
type Source struct {
	// Location is the HTTP(S) URL or local file path of the document.
	Location string

	// Manufacturer identifies the equipment manufacturer (e.g. "linde",
	// "atlas-copco", "generic").
	Manufacturer string

	// Category is the equipment category this doc covers (e.g. "compressor",
	// "dryer", "generator").
	Category string

	// DocType classifies the documentation kind (manual, datasheet, safety,
	// catalog).
	DocType string
}

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// ChunkSize is the maximum number of characters per document chunk.
	// Defaults to 1000 if zero.
	ChunkSize int

	// ChunkOverlap is the number of characters to overlap between consecutive chunks.
	// Defaults to 100 if zero.
	ChunkOverlap int

	// HTTPTimeout is the timeout for each documentation fetch request.
	// Defaults to 30s if zero.
	HTTPTimeout time.Duration

	// UserAgent is the HTTP User-Agent header sent with fetch requests.
	UserAgent string
}

// Pipeline orchestrates the fetch → chunk → embed → upsert flow for a set
// of documentation sources.
type Pipeline struct {
	// embedder converts text chunks into dense vector embeddings.
	embedder retrieval.Embedder

	// store persists the embedded chunks.
	store retrieval.VectorStore

	// cfg holds the resolved pipeline configuration.
	cfg *Config

	// httpClient is the HTTP client used for fetching documentation pages.
	httpClient *http.Client
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
func NewPipeline(embedder retrieval.Embedder, store retrieval.VectorStore, cfg *Config) (*Pipeline, error) {
	if embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("ingestion: store must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1000
	}
	if cfg.ChunkOverlap <= 0 {
		cfg.ChunkOverlap = 100
	}
	if cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = cfg.ChunkSize / 10
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "neonagent/1.0 (technical documentation ingestion)"
	}

	return &Pipeline{
		embedder: embedder,
		store:    store,
		cfg:      cfg,
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
	}, nil
}

// Ingest fetches, chunks, embeds, and stores all provided sources.
// It processes sources sequentially and returns the first error encountered.
// Progress is reported via the optional progress callback.
func (p *Pipeline) Ingest(ctx context.Context, sources []Source, progress func(msg string)) error {
	if progress == nil {
		progress = func(string) {}
	}

	for _, src := range sources {
		progress(fmt.Sprintf("loading %s", src.Location))

		content, err := p.load(ctx, src.Location)
		if err != nil {
			return fmt.Errorf("ingestion: load failed for %s: %w", src.Location, err)
		}

		chunks := p.chunk(content)
		if len(chunks) == 0 {
			progress(fmt.Sprintf("skipping empty source %s", src.Location))
			continue
		}
		progress(fmt.Sprintf("chunked %s into %d chunks", src.Location, len(chunks)))

		embeddings, err := p.embedder.Embed(ctx, chunks)
		if err != nil {
			return fmt.Errorf("ingestion: embedding failed for %s: %w", src.Location, err)
		}

		docs := make([]retrieval.Document, 0, len(chunks))
		for i, chunk := range chunks {
			id := chunkID(src.Location, i)
			doc := retrieval.Document{
				ID:      id,
				Content: chunk,
				Source:  src.Location,
				Metadata: map[string]string{
					"manufacturer": src.Manufacturer,
					"category":     src.Category,
					"doc_type":     src.DocType,
					"chunk_index":  fmt.Sprintf("%d", i),
				},
			}
			docs = append(docs, doc)
		}

		if err := p.store.Upsert(ctx, docs, embeddings); err != nil {
			return fmt.Errorf("ingestion: upsert failed for %s: %w", src.Location, err)
		}

		progress(fmt.Sprintf("ingested %d chunks from %s", len(chunks), src.Location))
	}

	return nil
}

// load retrieves the raw text content of a source. HTTP(S) locations are
// fetched over the network; anything else is treated as a local file path.
func (p *Pipeline) load(ctx context.Context, location string) (string, error) {
	if isHTTP(location) {
		return p.fetch(ctx, location)
	}
	data, err := os.ReadFile(location)
	if err != nil {
		return "", fmt.Errorf("reading file: %w", err)
	}
	return string(data), nil
}

// isHTTP reports whether location parses as an http or https URL.
func isHTTP(location string) bool {
	u, err := url.Parse(location)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// fetch retrieves the raw text content of a URL.
func (p *Pipeline) fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", p.cfg.UserAgent)
	req.Header.Set("Accept", "text/plain, text/html")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d for %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading body: %w", err)
	}

	return string(body), nil
}

// chunk splits text into overlapping chunks of cfg.ChunkSize characters.
func (p *Pipeline) chunk(text string) []string {
	text = strings.TrimSpace(text)
	if len(text) == 0 {
		return nil
	}

	var chunks []string
	size := p.cfg.ChunkSize
	overlap := p.cfg.ChunkOverlap

	for start := 0; start < len(text); start += size - overlap {
		end := start + size
		if end > len(text) {
			end = len(text)
		}
		chunks = append(chunks, text[start:end])
		if end == len(text) {
			break
		}
	}

	return chunks
}

// chunkID generates a deterministic ID for a document chunk based on its
// source location and chunk index. The ID is UUID-shaped because Qdrant only
// accepts UUIDs or unsigned integers as point IDs.
func chunkID(source string, index int) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s#%d", source, index)))
	return fmt.Sprintf("%x-%x-%x-%x-%x", h[0:4], h[4:6], h[6:8], h[8:10], h[10:16])
}
