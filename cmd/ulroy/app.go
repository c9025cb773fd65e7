package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ulroy-ai/ulroy-go"
	"github.com/ulroy-ai/ulroy-go/internal/json"
	"github.com/ulroy-ai/ulroy-go/internal/telemetry"

	"github.com/urfave/cli/v2"
)

const clientKey = "client"

// newApp builds the command tree. extra options are applied after the ones
// derived from flags.
func newApp(stdout, stderr io.Writer, extra ...ulroy.Option) *cli.App {
	return &cli.App{
		Name:      "ulroy",
		Usage:     "Manage Ulroy indexes, documents and tasks",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "api-key",
				Usage:   "Ulroy API key",
				EnvVars: []string{"ULROY_API_KEY"},
			},
			&cli.StringFlag{
				Name:    "base-url",
				Usage:   "Ulroy API base URL",
				Value:   ulroy.DefaultBaseURL,
				EnvVars: []string{"ULROY_BASE_URL"},
			},
			&cli.DurationFlag{
				Name:  "request-timeout",
				Usage: "timeout of a single HTTP request",
				Value: ulroy.DefaultRequestTimeout,
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "log every request to stderr",
			},
		},
		Before: func(c *cli.Context) error {
			key := c.String("api-key")
			if key == "" {
				return errors.New("an API key is required, set --api-key or ULROY_API_KEY")
			}
			opts := []ulroy.Option{
				ulroy.WithBaseURL(c.String("base-url")),
				ulroy.WithTimeout(c.Duration("request-timeout")),
				ulroy.WithUserAgent(ulroy.DefaultUserAgent + " cli"),
			}
			if c.Bool("debug") {
				opts = append(opts, ulroy.WithLogger(telemetry.NewLogger(c.App.ErrWriter, true)))
			}
			client, err := ulroy.New(key, append(opts, extra...)...)
			if err != nil {
				return err
			}
			c.App.Metadata[clientKey] = client
			return nil
		},
		After: func(c *cli.Context) error {
			if client, ok := c.App.Metadata[clientKey].(*ulroy.Client); ok {
				return client.Close()
			}
			return nil
		},
		Metadata: map[string]any{},
		Commands: []*cli.Command{
			indexCommand(),
			documentCommand(),
			taskCommand(),
		},
	}
}

func clientFrom(c *cli.Context) *ulroy.Client {
	return c.App.Metadata[clientKey].(*ulroy.Client)
}

func printJSON(c *cli.Context, v any) error {
	return json.Indent(c.App.Writer, v)
}

// requireArgs returns the first n positional arguments.
func requireArgs(c *cli.Context, names ...string) ([]string, error) {
	if c.NArg() < len(names) {
		return nil, fmt.Errorf("usage: %s %s", c.Command.HelpName, strings.Join(wrap(names), " "))
	}
	return c.Args().Slice()[:len(names)], nil
}

func wrap(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = "<" + n + ">"
	}
	return out
}

var listFlags = []cli.Flag{
	&cli.IntFlag{Name: "page", Value: 1},
	&cli.IntFlag{Name: "per-page", Value: 10},
	&cli.StringFlag{Name: "search", Usage: "filter by name"},
}

func listOptions(c *cli.Context) ulroy.ListOptions {
	return ulroy.ListOptions{
		Page:    c.Int("page"),
		PerPage: c.Int("per-page"),
		Search:  c.String("search"),
	}
}

var waitFlags = []cli.Flag{
	&cli.BoolFlag{Name: "wait", Usage: "block until the task completes or fails"},
	&cli.DurationFlag{Name: "poll-interval", Value: ulroy.DefaultPollInterval},
	&cli.DurationFlag{Name: "timeout", Usage: "give up waiting after this long", Value: ulroy.DefaultWaitTimeout},
}

func waitOptions(c *cli.Context) ulroy.WaitOption {
	return ulroy.WithWaitOptions(ulroy.WaitOptions{
		Wait:         c.Bool("wait"),
		PollInterval: c.Duration("poll-interval"),
		Timeout:      c.Duration("timeout"),
	})
}

func parseMetadata(raw string) (map[string]any, error) {
	if raw == "" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Decode(strings.NewReader(raw), &m); err != nil {
		return nil, fmt.Errorf("metadata must be a JSON object: %w", err)
	}
	return m, nil
}
