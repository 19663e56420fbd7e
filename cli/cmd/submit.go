package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/purplesyringa/sunwalker-conductor/types"
)

// dispatchRequest mirrors transport.dispatchRequest: the JSON body accepted
// by the conductor's POST /submissions admin route. Kept as a separate copy
// rather than importing transport, matching the CLI package's existing
// practice of owning its own view/request shapes (cli/cmd/inspect.go's
// submissionView).
type dispatchRequest struct {
	InvokerName      string                           `json:"invoker_name"`
	CompilationCore  uint64                           `json:"compilation_core"`
	SubmissionID     string                           `json:"submission_id"`
	ProblemID        string                           `json:"problem_id"`
	RevisionID       string                           `json:"revision_id"`
	Language         string                           `json:"language"`
	Files            map[string][]byte                `json:"files"`
	InvocationLimits map[string]types.InvocationLimit `json:"invocation_limits"`
}

// SubmitCommand returns the submit command: it dispatches a submission
// against a published revision on a running conductor, driving
// session.Conductor.AddSubmission (spec §4.6) from the command line.
func SubmitCommand() *cli.Command {
	return &cli.Command{
		Name:      "submit",
		Usage:     "Dispatch a submission to an invoker on a running conductor",
		ArgsUsage: "<submission-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "base URL of the conductor's admin surface", Required: true},
			&cli.StringFlag{Name: "invoker", Usage: "name of the invoker to dispatch to", Required: true},
			&cli.StringFlag{Name: "problem", Usage: "problem id of the published revision", Required: true},
			&cli.StringFlag{Name: "revision", Usage: "revision id of the published revision", Required: true},
			&cli.StringFlag{Name: "language", Usage: "submission source language", Required: true},
			&cli.Uint64Flag{Name: "compilation-core", Usage: "invoker core reserved for compilation"},
			&cli.StringSliceFlag{
				Name:  "file",
				Usage: "a submission file as archive-path=local-path, repeatable",
			},
		},
		Action: submitAction,
	}
}

func submitAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("submission-id required", 1)
	}
	submissionID := c.Args().First()

	files := make(map[string][]byte)
	for _, spec := range c.StringSlice("file") {
		archivePath, localPath, ok := strings.Cut(spec, "=")
		if !ok {
			return cli.Exit(fmt.Sprintf("submit: --file must be archive-path=local-path, got %q", spec), 1)
		}
		data, err := os.ReadFile(localPath)
		if err != nil {
			return cli.Exit(fmt.Sprintf("submit: failed to read %s: %v", localPath, err), 1)
		}
		files[archivePath] = data
	}

	req := dispatchRequest{
		InvokerName:     c.String("invoker"),
		CompilationCore: c.Uint64("compilation-core"),
		SubmissionID:    submissionID,
		ProblemID:       c.String("problem"),
		RevisionID:      c.String("revision"),
		Language:        c.String("language"),
		Files:           files,
	}
	body, err := json.Marshal(req)
	if err != nil {
		return cli.Exit(fmt.Sprintf("submit: encode request: %v", err), 1)
	}

	resp, err := http.Post(c.String("addr")+"/submissions", "application/json", bytes.NewReader(body))
	if err != nil {
		return cli.Exit(fmt.Sprintf("submit: %v", err), 1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		respBody, _ := io.ReadAll(resp.Body)
		return cli.Exit(fmt.Sprintf("submit: conductor rejected submission (status %d): %s", resp.StatusCode, respBody), 1)
	}

	fmt.Printf("dispatched %s\n", submissionID)
	return nil
}
