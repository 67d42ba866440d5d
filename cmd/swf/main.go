package main

import (
	"fmt"
	"io"
	"os"

	app "github.com/valter-silva-au/spec-workflow/internal"
	"github.com/valter-silva-au/spec-workflow/internal/cli"
)

// Set by goreleaser ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.SetVersionInfo(version, commit, date)
	cli.Setup = func(projectRoot string) (io.Closer, error) {
		a, err := app.NewApp(projectRoot)
		if err != nil {
			return nil, fmt.Errorf("initializing swf: %w", err)
		}
		return a, nil
	}

	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
