// Command chatkb is the entry point for the chatkb knowledge-base backend.
// It provides a CLI interface (via Cobra) and an HTTP server that powers
// chatbots with retrieval-grounded question answering.
package main

import (
	"fmt"
	"os"

	"github.com/chatkb/chatkb/cmd/chatkb/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
