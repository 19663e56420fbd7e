// Package main provides the conductor CLI entrypoint.
//
// Usage:
//
//	conductor serve --config conductor.toml
//	conductor ingest --addr http://localhost:9000 <problem-dir> <problem-id> <revision-id>
//	conductor submit --addr http://localhost:9000 --invoker i1 --problem p1 --revision r1 --language cpp <submission-id>
//	conductor inspect --addr http://localhost:9000 <submission-id>
//	conductor version
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/purplesyringa/sunwalker-conductor/cli/cmd"
)

// commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	app := &cli.App{
		Name:  "conductor",
		Usage: "sunwalker judging conductor",
		Commands: []*cli.Command{
			cmd.ServeCommand(),
			cmd.IngestCommand(),
			cmd.SubmitCommand(),
			cmd.InspectCommand(),
			cmd.VersionCommand(commit),
		},
	}

	if err := app.Run(os.Args); err != nil {
		var exitCoder cli.ExitCoder
		if errors.As(err, &exitCoder) {
			if msg := exitCoder.Error(); msg != "" {
				fmt.Fprintln(os.Stderr, msg)
			}
			os.Exit(exitCoder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
