package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v2"
)

// InspectCommand returns the inspect command: a one-shot, read-only render
// of a single submission's current verdict table, fetched from a running
// conductor's admin surface (spec §9: the conductor has no persistent,
// out-of-process query store, so inspection always talks to a live daemon).
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Inspect a submission on a running conductor",
		ArgsUsage: "<submission-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "addr",
				Usage:    "base URL of the conductor's admin surface (e.g. http://localhost:9000)",
				Required: true,
			},
		},
		Action: inspectAction,
	}
}

type submissionView struct {
	SubmissionID string `json:"submission_id"`
	PendingTests int    `json:"pending_tests"`
	TotalTests   int    `json:"total_tests"`
	IgnoredTests int    `json:"ignored_tests"`
	Failed       bool   `json:"failed"`
	FailureKind  string `json:"failure_kind,omitempty"`
	FailureMsg   string `json:"failure_message,omitempty"`
}

func inspectAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("submission-id required", 1)
	}
	submissionID := c.Args().First()

	url := fmt.Sprintf("%s/submissions/%s", c.String("addr"), submissionID)
	resp, err := http.Get(url)
	if err != nil {
		return cli.Exit(fmt.Sprintf("inspect: %v", err), 1)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return cli.Exit(fmt.Sprintf("no such submission: %s", submissionID), 1)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return cli.Exit(fmt.Sprintf("inspect: unexpected status %d: %s", resp.StatusCode, body), 1)
	}

	var view submissionView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		return cli.Exit(fmt.Sprintf("inspect: decode response: %v", err), 1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "submission_id\t%s\n", view.SubmissionID)
	fmt.Fprintf(w, "tests_total\t%d\n", view.TotalTests)
	fmt.Fprintf(w, "tests_pending\t%d\n", view.PendingTests)
	fmt.Fprintf(w, "tests_ignored\t%d\n", view.IgnoredTests)
	if view.Failed {
		fmt.Fprintf(w, "failed\t%s: %s\n", view.FailureKind, view.FailureMsg)
	} else {
		fmt.Fprintf(w, "failed\tfalse\n")
	}
	return w.Flush()
}
