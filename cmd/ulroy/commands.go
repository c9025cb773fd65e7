package main

import (
	"os"

	"github.com/ulroy-ai/ulroy-go"

	"github.com/urfave/cli/v2"
)

func indexCommand() *cli.Command {
	return &cli.Command{
		Name:  "index",
		Usage: "Manage indexes",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List indexes",
				Flags: listFlags,
				Action: func(c *cli.Context) error {
					out, err := clientFrom(c).Indexes.List(c.Context, listOptions(c))
					if err != nil {
						return err
					}
					return printJSON(c, out)
				},
			},
			{
				Name:      "get",
				Usage:     "Show one index",
				ArgsUsage: "<index-id>",
				Action: func(c *cli.Context) error {
					args, err := requireArgs(c, "index-id")
					if err != nil {
						return err
					}
					out, err := clientFrom(c).Indexes.Get(c.Context, args[0])
					if err != nil {
						return err
					}
					return printJSON(c, out)
				},
			},
			{
				Name:  "create",
				Usage: "Create an index",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Required: true},
					&cli.StringFlag{Name: "description"},
					&cli.StringFlag{Name: "settings", Usage: "index settings as a JSON object"},
				},
				Action: func(c *cli.Context) error {
					settings, err := parseMetadata(c.String("settings"))
					if err != nil {
						return err
					}
					out, err := clientFrom(c).Indexes.Create(c.Context, ulroy.CreateIndexRequest{
						Name:        c.String("name"),
						Description: c.String("description"),
						Settings:    settings,
					})
					if err != nil {
						return err
					}
					return printJSON(c, out)
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete an index",
				ArgsUsage: "<index-id>",
				Action: func(c *cli.Context) error {
					args, err := requireArgs(c, "index-id")
					if err != nil {
						return err
					}
					out, err := clientFrom(c).Indexes.Delete(c.Context, args[0])
					if err != nil {
						return err
					}
					return printJSON(c, out)
				},
			},
			{
				Name:      "query",
				Usage:     "Run a similarity query",
				ArgsUsage: "<index-id> <text>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "k", Value: ulroy.DefaultTopK, Usage: "number of results"},
					&cli.BoolFlag{Name: "hybrid", Usage: "combine vector and full text scores"},
					&cli.Float64Flag{Name: "vector-weight", Value: 0.5},
					&cli.Float64Flag{Name: "text-weight", Value: 0.5},
					&cli.Float64Flag{Name: "min-text-score"},
				},
				Action: func(c *cli.Context) error {
					args, err := requireArgs(c, "index-id", "text")
					if err != nil {
						return err
					}
					indexes := clientFrom(c).Indexes
					var out []ulroy.QueryResult
					if c.Bool("hybrid") {
						out, err = indexes.HybridSearch(c.Context, args[0], ulroy.HybridSearchRequest{
							Text:         args[1],
							K:            c.Int("k"),
							VectorWeight: c.Float64("vector-weight"),
							TextWeight:   c.Float64("text-weight"),
							MinTextScore: c.Float64("min-text-score"),
						})
					} else {
						out, err = indexes.Query(c.Context, args[0], args[1], c.Int("k"))
					}
					if err != nil {
						return err
					}
					return printJSON(c, out)
				},
			},
			{
				Name:      "entries",
				Usage:     "List the entries of an index",
				ArgsUsage: "<index-id>",
				Flags: append([]cli.Flag{
					&cli.BoolFlag{Name: "include-deleted"},
				}, listFlags...),
				Action: func(c *cli.Context) error {
					args, err := requireArgs(c, "index-id")
					if err != nil {
						return err
					}
					out, err := clientFrom(c).Indexes.ListEntries(c.Context, args[0], listOptions(c), c.Bool("include-deleted"))
					if err != nil {
						return err
					}
					return printJSON(c, out)
				},
			},
			{
				Name:      "set-metadata",
				Usage:     "Replace the metadata of an entry",
				ArgsUsage: "<index-id> <primary-id> <json>",
				Action: func(c *cli.Context) error {
					args, err := requireArgs(c, "index-id", "primary-id", "json")
					if err != nil {
						return err
					}
					metadata, err := parseMetadata(args[2])
					if err != nil {
						return err
					}
					out, err := clientFrom(c).Indexes.UpdateMetadata(c.Context, args[0], args[1], metadata)
					if err != nil {
						return err
					}
					return printJSON(c, out)
				},
			},
			{
				Name:      "delete-entries",
				Usage:     "Delete entries by id",
				ArgsUsage: "<index-id> <entry-id>...",
				Flags:     waitFlags,
				Action: func(c *cli.Context) error {
					args, err := requireArgs(c, "index-id", "entry-id")
					if err != nil {
						return err
					}
					out, err := clientFrom(c).Indexes.DeleteEntries(c.Context, args[0], c.Args().Tail(), waitOptions(c))
					if err != nil {
						return err
					}
					return printJSON(c, out)
				},
			},
			{
				Name:      "purge",
				Usage:     "Delete every entry of an index",
				ArgsUsage: "<index-id>",
				Flags:     waitFlags,
				Action: func(c *cli.Context) error {
					args, err := requireArgs(c, "index-id")
					if err != nil {
						return err
					}
					out, err := clientFrom(c).Indexes.Purge(c.Context, args[0], waitOptions(c))
					if err != nil {
						return err
					}
					return printJSON(c, out)
				},
			},
		},
	}
}

func documentCommand() *cli.Command {
	return &cli.Command{
		Name:  "document",
		Usage: "Manage documents of an index",
		Subcommands: []*cli.Command{
			{
				Name:      "list",
				Usage:     "List documents",
				ArgsUsage: "<index-id>",
				Flags:     listFlags,
				Action: func(c *cli.Context) error {
					args, err := requireArgs(c, "index-id")
					if err != nil {
						return err
					}
					out, err := clientFrom(c).Documents.List(c.Context, args[0], listOptions(c))
					if err != nil {
						return err
					}
					return printJSON(c, out)
				},
			},
			{
				Name:      "get",
				Usage:     "Show one document",
				ArgsUsage: "<index-id> <document-id>",
				Action: func(c *cli.Context) error {
					args, err := requireArgs(c, "index-id", "document-id")
					if err != nil {
						return err
					}
					out, err := clientFrom(c).Documents.Get(c.Context, args[0], args[1])
					if err != nil {
						return err
					}
					return printJSON(c, out)
				},
			},
			{
				Name:      "add",
				Usage:     "Index a document",
				ArgsUsage: "<index-id>",
				Flags:     append(documentFlags(), waitFlags...),
				Action: func(c *cli.Context) error {
					args, err := requireArgs(c, "index-id")
					if err != nil {
						return err
					}
					doc, err := documentFromFlags(c)
					if err != nil {
						return err
					}
					out, err := clientFrom(c).Documents.Index(c.Context, args[0], doc, waitOptions(c))
					if err != nil {
						return err
					}
					return printJSON(c, out)
				},
			},
			{
				Name:      "update",
				Usage:     "Replace a stored document",
				ArgsUsage: "<index-id>",
				Flags:     append(documentFlags(), waitFlags...),
				Action: func(c *cli.Context) error {
					args, err := requireArgs(c, "index-id")
					if err != nil {
						return err
					}
					doc, err := documentFromFlags(c)
					if err != nil {
						return err
					}
					out, err := clientFrom(c).Documents.Update(c.Context, args[0], doc, waitOptions(c))
					if err != nil {
						return err
					}
					return printJSON(c, out)
				},
			},
			{
				Name:      "search",
				Usage:     "Search the documents of an index",
				ArgsUsage: "<index-id> <query>",
				Flags:     []cli.Flag{topKFlag()},
				Action: func(c *cli.Context) error {
					args, err := requireArgs(c, "index-id", "query")
					if err != nil {
						return err
					}
					out, err := clientFrom(c).Documents.Search(c.Context, args[0], args[1], c.Int("k"))
					if err != nil {
						return err
					}
					return printJSON(c, out)
				},
			},
			{
				Name:      "query",
				Usage:     "Search within one document",
				ArgsUsage: "<document-id> <query>",
				Flags:     []cli.Flag{topKFlag()},
				Action: func(c *cli.Context) error {
					args, err := requireArgs(c, "document-id", "query")
					if err != nil {
						return err
					}
					out, err := clientFrom(c).Documents.Query(c.Context, args[0], args[1], c.Int("k"))
					if err != nil {
						return err
					}
					return printJSON(c, out)
				},
			},
			{
				Name:      "research",
				Usage:     "Start a research task over a document",
				ArgsUsage: "<document-id> <query>",
				Flags:     append([]cli.Flag{topKFlag()}, waitFlags...),
				Action: func(c *cli.Context) error {
					args, err := requireArgs(c, "document-id", "query")
					if err != nil {
						return err
					}
					out, err := clientFrom(c).Documents.Research(c.Context, args[0], args[1], c.Int("k"), waitOptions(c))
					if err != nil {
						return err
					}
					return printJSON(c, out)
				},
			},
			{
				Name:      "query-research",
				Usage:     "Query the results of a research task",
				ArgsUsage: "<document-id> <research-id> <query>",
				Flags:     []cli.Flag{topKFlag()},
				Action: func(c *cli.Context) error {
					args, err := requireArgs(c, "document-id", "research-id", "query")
					if err != nil {
						return err
					}
					out, err := clientFrom(c).Documents.QueryResearch(c.Context, args[0], args[1], args[2], c.Int("k"))
					if err != nil {
						return err
					}
					return printJSON(c, out)
				},
			},
			{
				Name:      "delete",
				Usage:     "Remove a document",
				ArgsUsage: "<index-id> <document-id>",
				Flags:     waitFlags,
				Action: func(c *cli.Context) error {
					args, err := requireArgs(c, "index-id", "document-id")
					if err != nil {
						return err
					}
					out, err := clientFrom(c).Documents.Delete(c.Context, args[0], args[1], waitOptions(c))
					if err != nil {
						return err
					}
					return printJSON(c, out)
				},
			},
		},
	}
}

func taskCommand() *cli.Command {
	return &cli.Command{
		Name:  "task",
		Usage: "Inspect background tasks",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recent tasks",
				Flags: listFlags,
				Action: func(c *cli.Context) error {
					out, err := clientFrom(c).Tasks.List(c.Context, listOptions(c))
					if err != nil {
						return err
					}
					return printJSON(c, out)
				},
			},
			{
				Name:      "status",
				Usage:     "Show the status of tasks, optionally waiting for them",
				ArgsUsage: "<task-id>...",
				Flags:     waitFlags,
				Action: func(c *cli.Context) error {
					if _, err := requireArgs(c, "task-id"); err != nil {
						return err
					}
					tasks := clientFrom(c).Tasks
					if c.NArg() == 1 {
						out, err := tasks.Get(c.Context, c.Args().First(), waitOptions(c))
						if err != nil {
							return err
						}
						return printJSON(c, out)
					}
					if !c.Bool("wait") {
						out := make([]*ulroy.TaskStatus, 0, c.NArg())
						for _, id := range c.Args().Slice() {
							task, err := tasks.Get(c.Context, id)
							if err != nil {
								return err
							}
							out = append(out, task)
						}
						return printJSON(c, out)
					}
					out, err := tasks.WaitAll(c.Context, c.Args().Slice(), waitOptions(c))
					if perr := printJSON(c, out); perr != nil {
						return perr
					}
					return err
				},
			},
		},
	}
}

func topKFlag() cli.Flag {
	return &cli.IntFlag{Name: "k", Value: ulroy.DefaultTopK, Usage: "number of results"}
}

func documentFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "id", Required: true},
		&cli.StringFlag{Name: "name"},
		&cli.StringFlag{Name: "description"},
		&cli.StringFlag{Name: "content", Usage: "document text"},
		&cli.PathFlag{Name: "file", Usage: "read the document text from a file"},
		&cli.StringFlag{Name: "metadata", Usage: "metadata as a JSON object"},
	}
}

func documentFromFlags(c *cli.Context) (ulroy.Document, error) {
	content := c.String("content")
	if path := c.Path("file"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return ulroy.Document{}, err
		}
		content = string(raw)
	}
	metadata, err := parseMetadata(c.String("metadata"))
	if err != nil {
		return ulroy.Document{}, err
	}
	return ulroy.Document{
		ID:          c.String("id"),
		Name:        c.String("name"),
		Description: c.String("description"),
		Content:     content,
		Metadata:    metadata,
	}, nil
}
