// Command neonagent is the entry point for the Sogacsa-Linde technical
// documentation assistant. It provides a CLI interface (via Cobra) and an
// HTTP server exposing the retrieval-augmented chat API.
package main

import (
	"fmt"
	"os"

	"github.com/sogacsa/neonagent/cmd/neonagent/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
