package cmd

import (
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/urfave/cli/v2"
)

// IngestCommand returns the ingest command: it tells a running conductor to
// read a Polygon problem package off its configured data.problems directory
// and publish it as a new revision, driving the conversion pipeline
// described in spec §4.1–§4.4 from the command line.
func IngestCommand() *cli.Command {
	return &cli.Command{
		Name:      "ingest",
		Usage:     "Convert and publish a Polygon problem package on a running conductor",
		ArgsUsage: "<problem-dir> <problem-id> <revision-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "addr",
				Usage:    "base URL of the conductor's admin surface (e.g. http://localhost:9000)",
				Required: true,
			},
		},
		Action: ingestAction,
	}
}

func ingestAction(c *cli.Context) error {
	if c.NArg() < 3 {
		return cli.Exit("usage: ingest <problem-dir> <problem-id> <revision-id>", 1)
	}
	problemDir := c.Args().Get(0)
	problemID := c.Args().Get(1)
	revisionID := c.Args().Get(2)

	endpoint := fmt.Sprintf("%s/problems/%s/revisions/%s?%s",
		c.String("addr"),
		url.PathEscape(problemID),
		url.PathEscape(revisionID),
		url.Values{"dir": {problemDir}}.Encode(),
	)

	resp, err := http.Post(endpoint, "application/octet-stream", nil)
	if err != nil {
		return cli.Exit(fmt.Sprintf("ingest: %v", err), 1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return cli.Exit(fmt.Sprintf("ingest: conductor rejected package (status %d): %s", resp.StatusCode, body), 1)
	}

	fmt.Printf("published %s/%s\n", problemID, revisionID)
	return nil
}
