// Contexter packs a repository into a bounded-size context document.
//
// The pack holds a dependency graph, head/middle/tail excerpts of every
// included file chosen to fit a token budget, and run metrics, so that an
// agent can load a whole codebase in one read.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/Benny93/contexter-go/cmd"
	"github.com/Benny93/contexter-go/internal/config"
	"github.com/Benny93/contexter-go/internal/ingestion"
)

func main() {
	cli := cmd.NewCLI()

	if err := cli.Execute(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, ingestion.ErrGateFailed):
		return 3
	case config.IsConfigError(err), errors.Is(err, cmd.ErrUsage):
		return 2
	default:
		return 1
	}
}
