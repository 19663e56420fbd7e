package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

// Version is the conductor's build version, lockstep with the module.
const Version = "0.1.0"

// VersionCommand returns the version command.
func VersionCommand(commit string) *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Action: func(c *cli.Context) error {
			fmt.Printf("sunwalker-conductor %s (commit: %s)\n", Version, commit)
			return nil
		},
	}
}
