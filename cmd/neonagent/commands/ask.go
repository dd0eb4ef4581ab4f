package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sogacsa/neonagent/internal/logging"
	"github.com/sogacsa/neonagent/internal/pipeline"
)

// NewAskCmd constructs the `neonagent ask` command, which runs one chat turn
// against the documentation and prints the grounded answer to stdout.
func NewAskCmd() *cobra.Command {
	var summary string
	var showTimings bool

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question about the ingested equipment documentation",
		Long: `Ask a single question and get an answer grounded in the ingested
technical documentation.

Pass --summary to continue an earlier conversation: the rolling summary
printed by the previous invocation carries the context forward.

Examples:
  neonagent ask "¿Cada cuántas horas se cambia el aceite del compresor GX7?"
  neonagent ask --summary "Usuario pregunta por el compresor GX7" "¿y el filtro de aire?"
  neonagent ask --timings "presión máxima del secador FD120"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			deps, err := buildPipelineDeps(ctx, log, nil)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer deps.Close()

			question := strings.Join(args, " ")
			result := deps.Pipe.Run(ctx, question, summary)

			fmt.Println(result.Answer)
			if result.Summary != "" {
				fmt.Printf("\n-- resumen: %s\n", result.Summary)
			}

			if showTimings && result.Metrics != nil {
				fmt.Println()
				printTimings(result.Metrics)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&summary, "summary", "s", "", "Rolling summary from a previous turn")
	cmd.Flags().BoolVar(&showTimings, "timings", false, "Print per-stage latency after the answer")

	return cmd
}

// printTimings writes the per-stage latency table to stdout.
func printTimings(m *pipeline.StageMetrics) {
	stages := make([]string, 0, len(m.Stages))
	for s := range m.Stages {
		stages = append(stages, string(s))
	}
	sort.Strings(stages)

	fmt.Printf("model: %s\n", m.Model)
	for _, s := range stages {
		line := fmt.Sprintf("  %-22s %8.1f ms", s, m.Stages[pipeline.Stage(s)])
		if errMsg, ok := m.Errors[pipeline.Stage(s)]; ok {
			line += fmt.Sprintf("  (error: %s)", errMsg)
		}
		fmt.Println(line)
	}
	fmt.Printf("  %-22s %8.1f ms\n", "total", m.Total())
}
