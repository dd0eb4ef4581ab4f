package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/sogacsa/neonagent/internal/logging"
	"github.com/sogacsa/neonagent/internal/pipeline"
	"github.com/sogacsa/neonagent/internal/server"
	"github.com/sogacsa/neonagent/internal/session"
	"github.com/sogacsa/neonagent/internal/tracing"
)

// NewServeCmd constructs the `neonagent serve` command, which starts the
// HTTP server exposing the chat API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the neonagent HTTP chat server",
		Long: `Start the neonagent HTTP server on localhost.

The server exposes POST /api/chat for retrieval-augmented question answering,
GET /api/health and /api/ready for probes, and GET /metrics for Prometheus.

Examples:
  neonagent serve
  neonagent serve --port 9090
  MODEL_PROVIDER=azure neonagent serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting", slog.String("provider", os.Getenv("MODEL_PROVIDER")))

			// Setup Langfuse tracing — opt-in, no-op if keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			// One registry serves both pipeline and HTTP server metrics so
			// /metrics exposes a single coherent view.
			reg := prometheus.NewRegistry()
			pipeMetrics := pipeline.NewMetrics(reg)

			deps, err := buildPipelineDeps(ctx, log, pipeMetrics)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer deps.Close()

			// Open the session store. NEON_SESSIONS_DB overrides the default
			// path (~/.neonagent/sessions.db). Set to "disabled" to disable.
			var sessions session.Store
			dbPath := os.Getenv("NEON_SESSIONS_DB")
			if dbPath != "disabled" {
				if dbPath == "" {
					dbPath, err = session.DefaultDBPath()
					if err != nil {
						log.Warn("sessions: could not resolve default DB path, disabling", slog.Any("error", err))
					}
				}
				if dbPath != "" {
					ss, ssErr := session.Open(dbPath)
					if ssErr != nil {
						log.Warn("sessions: failed to open store, disabling", slog.Any("error", ssErr))
					} else {
						sessions = ss
						defer func() { _ = ss.Close() }()
						log.Info("sessions: store opened", slog.String("path", dbPath))
					}
				}
			} else {
				log.Info("sessions: disabled via NEON_SESSIONS_DB=disabled")
			}

			pingers := []server.Pinger{
				server.NewLLMPinger(deps.ChatModel, string(deps.Provider.Backend)),
			}
			if deps.Qdrant != nil {
				pingers = append(pingers, server.NewQdrantPinger(deps.Qdrant.Client()))
			}

			srv, err := server.New(deps.Pipe, sessions, &server.Config{
				Host:            host,
				Port:            port,
				Logger:          log,
				Pingers:         pingers,
				APIKey:          os.Getenv("NEON_API_KEY"),
				MetricsRegistry: reg,
				MetricsGatherer: reg,
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}
