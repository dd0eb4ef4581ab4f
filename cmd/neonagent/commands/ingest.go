package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sogacsa/neonagent/internal/embedder"
	"github.com/sogacsa/neonagent/internal/ingestion"
	"github.com/sogacsa/neonagent/internal/logging"
)

// NewIngestCmd constructs the `neonagent ingest` command, which runs the
// documentation ingestion pipeline to populate the vector store.
func NewIngestCmd() *cobra.Command {
	var manufacturer string
	var category string
	var docType string
	var sources []string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest equipment documentation into the vector store",
		Long: `Fetch and index technical equipment documentation into the Qdrant vector store.

Ingested documentation is the only knowledge the assistant answers from:
questions not covered by the indexed corpus are refused rather than guessed.

Required environment variables:
  QDRANT_HOST          Qdrant server hostname (default: localhost)
  QDRANT_PORT          Qdrant gRPC port (default: 6334)
  QDRANT_COLLECTION    Collection name (default: neon-docs)
  QDRANT_API_KEY       Optional API key for authenticated clusters
  MODEL_PROVIDER       Embedding backend: ollama, openai, azure (default: ollama)
  EMBEDDING_*          Provider-specific overrides (EMBEDDING_MODEL, EMBEDDING_DIMENSIONS, ...)

Metadata flags (--manufacturer, --category, --doc-type) are optional. When
omitted, metadata is auto-inferred from the URL or file name (e.g. a file
named manual-compresor-linde.txt resolves all three automatically). Explicit
flags override inference.

Examples:
  neonagent ingest --source https://docs.linde-engineering.com/manuals/compresor-gx7.html
  neonagent ingest --source /srv/docs/secador-fd120-datasheet.txt
  neonagent ingest --manufacturer kaeser --category dryer --source ./docs/csd-85.txt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if len(sources) == 0 {
				return fmt.Errorf("ingest: at least one --source is required")
			}

			if err := embedder.ValidateForRAG(log); err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			emb, err := embedder.NewFromEnv()
			if err != nil {
				return fmt.Errorf("ingest: failed to initialise embedder: %w", err)
			}
			log.Info("embedder initialised",
				slog.String("provider", getEnvOrDefault("EMBEDDING_PROVIDER", getEnvOrDefault("MODEL_PROVIDER", "ollama"))))

			if os.Getenv("QDRANT_HOST") == "" {
				return fmt.Errorf("ingest: QDRANT_HOST is required")
			}
			store, closeStore, err := buildVectorStore(ctx, log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer closeStore()

			ingestPipe, err := ingestion.NewPipeline(emb, store, nil)
			if err != nil {
				return fmt.Errorf("ingest: failed to create pipeline: %w", err)
			}

			manufacturerSet := cmd.Flags().Changed("manufacturer")
			categorySet := cmd.Flags().Changed("category")
			docTypeSet := cmd.Flags().Changed("doc-type")

			ingestSources := make([]ingestion.Source, 0, len(sources))
			for _, loc := range sources {
				inferred := ingestion.InferMetadata(loc)

				src := ingestion.Source{Location: loc}
				if manufacturerSet {
					src.Manufacturer = manufacturer
				} else {
					src.Manufacturer = inferred.Manufacturer
				}
				if categorySet {
					src.Category = category
				} else {
					src.Category = inferred.Category
				}
				if docTypeSet {
					src.DocType = docType
				} else {
					src.DocType = inferred.DocType
				}

				log.Info("source metadata",
					slog.String("source", loc),
					slog.String("manufacturer", src.Manufacturer),
					slog.String("category", src.Category),
					slog.String("doc_type", src.DocType),
				)
				ingestSources = append(ingestSources, src)
			}

			log.Info("starting ingestion", slog.Int("sources", len(ingestSources)))

			if err := ingestPipe.Ingest(ctx, ingestSources, func(msg string) {
				log.Info(msg)
			}); err != nil {
				return fmt.Errorf("ingest: pipeline failed: %w", err)
			}

			log.Info("ingestion complete", slog.Int("sources", len(ingestSources)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&manufacturer, "manufacturer", "m", "generic", "Equipment manufacturer label (linde, atlas-copco, kaeser, generic)")
	cmd.Flags().StringVarP(&category, "category", "c", "generic", "Equipment category (compressor, dryer, generator, boiler, pump)")
	cmd.Flags().StringVarP(&docType, "doc-type", "d", "manual", "Documentation type (manual, datasheet, safety, catalog)")
	cmd.Flags().StringArrayVarP(&sources, "source", "u", nil, "Documentation URL or file path to ingest (repeatable)")

	return cmd
}
