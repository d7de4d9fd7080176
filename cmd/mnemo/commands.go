package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/starford/mnemo/internal"
	"github.com/starford/mnemo/internal/apperr"
	"github.com/starford/mnemo/internal/index"
	"github.com/starford/mnemo/internal/models"
	"github.com/starford/mnemo/internal/noteservice"
)

const modifiedLayout = "2006-01-02 15:04"

// withApp opens the application for the duration of one command.
func withApp(fn func(ctx context.Context, cmd *cli.Command, app *internal.App) error, opts ...internal.Option) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		app, err := openApp(cmd, opts...)
		if err != nil {
			return err
		}
		defer app.Close()
		return fn(ctx, cmd, app)
	}
}

func needArgs(cmd *cli.Command, names ...string) error {
	if cmd.NArg() < len(names) {
		return fmt.Errorf("usage: %s %s: %w", cmd.Name, strings.ToUpper(strings.Join(names, " ")), apperr.ErrInvalidInput)
	}
	return nil
}

func typeFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "type",
		Aliases: []string{"t"},
		Usage:   "Note type (project, concept, reference, insight, general)",
	}
}

func limitFlag() *cli.IntFlag {
	return &cli.IntFlag{
		Name:    "limit",
		Aliases: []string{"n"},
		Usage:   "Maximum number of results",
	}
}

func createCommand() *cli.Command {
	return &cli.Command{
		Name:      "create",
		Usage:     "Create a note",
		ArgsUsage: "TITLE",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "content", Usage: "Markdown body"},
			&cli.StringFlag{Name: "content-file", Usage: "Read the body from a file, - for stdin"},
			typeFlag(),
			&cli.StringSliceFlag{Name: "tag", Usage: "Tag (repeatable)"},
			&cli.StringSliceFlag{Name: "observation", Aliases: []string{"o"}, Usage: "Initial observation, [method] prefix allowed (repeatable)"},
		},
		Action: withApp(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
			if err := needArgs(cmd, "title"); err != nil {
				return err
			}
			content := cmd.String("content")
			if path := cmd.String("content-file"); path != "" {
				data, err := readInput(path)
				if err != nil {
					return err
				}
				content = string(data)
			}
			id, err := app.Service.Create(ctx, noteservice.CreateParams{
				Title:        strings.Join(cmd.Args().Slice(), " "),
				Content:      content,
				Type:         models.NoteType(cmd.String("type")),
				Tags:         cmd.StringSlice("tag"),
				Observations: cmd.StringSlice("observation"),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.Root().Writer, "Created note: %s\n", id)
			return nil
		}),
	}
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func readCommand() *cli.Command {
	return &cli.Command{
		Name:      "read",
		Usage:     "Print a note",
		ArgsUsage: "ID",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "markdown", Usage: "markdown, json or detail"},
		},
		Action: withApp(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
			if err := needArgs(cmd, "id"); err != nil {
				return err
			}
			format, err := noteservice.ParseFormat(cmd.String("format"))
			if err != nil {
				return err
			}
			out, err := app.Service.Read(ctx, cmd.Args().First(), format)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.Root().Writer, out)
			if !strings.HasSuffix(out, "\n") {
				fmt.Fprintln(cmd.Root().Writer)
			}
			return nil
		}),
	}
}

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Full-text search",
		ArgsUsage: "QUERY",
		Flags:     []cli.Flag{typeFlag(), limitFlag()},
		Action: withApp(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
			if err := needArgs(cmd, "query"); err != nil {
				return err
			}
			results, err := app.Service.Search(ctx, strings.Join(cmd.Args().Slice(), " "), index.SearchOptions{
				Type:  models.NoteType(cmd.String("type")),
				Limit: int(cmd.Int("limit")),
			})
			if err != nil {
				return err
			}
			printSummaries(cmd.Root().Writer, results)
			return nil
		}),
	}
}

func observeCommand() *cli.Command {
	return &cli.Command{
		Name:      "observe",
		Usage:     "Append an observation to a note",
		ArgsUsage: "ID TEXT",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "method", Aliases: []string{"m"}, Usage: "How the observation was made"},
		},
		Action: withApp(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
			if err := needArgs(cmd, "id", "text"); err != nil {
				return err
			}
			id := cmd.Args().First()
			text := strings.Join(cmd.Args().Tail(), " ")
			if err := app.Service.AppendObservation(ctx, id, text, cmd.String("method")); err != nil {
				return err
			}
			fmt.Fprintf(cmd.Root().Writer, "Added observation to %s\n", id)
			return nil
		}),
	}
}

func relateCommand() *cli.Command {
	return &cli.Command{
		Name:      "relate",
		Usage:     "Link two notes in both directions",
		ArgsUsage: "FROM TO TYPE",
		Action: withApp(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
			if err := needArgs(cmd, "from", "to", "type"); err != nil {
				return err
			}
			from, to, relType := cmd.Args().Get(0), cmd.Args().Get(1), cmd.Args().Get(2)
			if err := app.Service.Relate(ctx, from, to, relType); err != nil {
				return err
			}
			fmt.Fprintf(cmd.Root().Writer, "Created relation: %s --[%s]--> %s\n", from, relType, to)
			return nil
		}),
	}
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List notes, most recently modified first",
		Flags: []cli.Flag{typeFlag(), limitFlag()},
		Action: withApp(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
			results, err := app.Service.List(ctx, index.ListOptions{
				Type:  models.NoteType(cmd.String("type")),
				Limit: int(cmd.Int("limit")),
			})
			if err != nil {
				return err
			}
			printSummaries(cmd.Root().Writer, results)
			return nil
		}),
	}
}

func relatedCommand() *cli.Command {
	return &cli.Command{
		Name:      "related",
		Usage:     "Show the relations of a note",
		ArgsUsage: "ID",
		Action: withApp(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
			if err := needArgs(cmd, "id"); err != nil {
				return err
			}
			id := cmd.Args().First()
			edges, err := app.Service.Related(ctx, id)
			if err != nil {
				return err
			}
			w := cmd.Root().Writer
			if len(edges) == 0 {
				fmt.Fprintln(w, "No relations found")
				return nil
			}
			fmt.Fprintf(w, "Relations of %s:\n", id)
			for _, e := range edges {
				fmt.Fprintf(w, "  %s --[%s]--> %s\n", e.Source, e.Type, e.Target)
			}
			return nil
		}),
	}
}

func reindexCommand() *cli.Command {
	return &cli.Command{
		Name:  "reindex",
		Usage: "Reconcile the search index with the note files",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "force", Usage: "Reparse every file, not only changed ones"},
		},
		Action: withApp(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
			report, err := app.Service.Reindex(ctx, cmd.Bool("force"))
			if err != nil {
				return err
			}
			w := cmd.Root().Writer
			fmt.Fprintf(w, "Indexed %d notes, %d unchanged, %d removed\n",
				len(report.Indexed), report.Unchanged, len(report.Removed))
			for id, msg := range report.Failed {
				fmt.Fprintf(cmd.Root().ErrWriter, "Skipped %s: %s\n", id, msg)
			}
			return nil
		}),
	}
}

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Keep the index in sync with edits made outside mnemo",
		Action: withApp(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
			return app.Watch(ctx)
		}, internal.WithStartupSync()),
	}
}

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the note tools over MCP on stdin/stdout",
		Action: withApp(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
			return app.ServeMCP(ctx, os.Stdin, os.Stdout)
		}, internal.WithStartupSync()),
	}
}

func printSummaries(w io.Writer, results []index.Summary) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No notes found")
		return
	}
	fmt.Fprintf(w, "Found %d notes:\n", len(results))
	for i, r := range results {
		fmt.Fprintf(w, "%d. %s (%s) - %s\n", i+1, r.Title, r.ID, r.Type)
		if len(r.Tags) > 0 {
			fmt.Fprintf(w, "   Tags: %s\n", strings.Join(r.Tags, ", "))
		}
		fmt.Fprintf(w, "   Modified: %s\n", r.Modified.Local().Format(modifiedLayout))
	}
}

// describeError renders err for the terminal.
func describeError(err error) string {
	var perr *apperr.PartialRelationError
	switch {
	case errors.As(err, &perr):
		if perr.RolledBack {
			return fmt.Sprintf("Error: relation not created, %s could not be updated: %v", perr.To, perr.Err)
		}
		return fmt.Sprintf("Error: %s now links to %s but the reverse edge is missing; rerun relate to repair: %v", perr.From, perr.To, perr.Err)
	case errors.Is(err, apperr.ErrNotFound):
		return "Error: note not found: " + err.Error()
	case errors.Is(err, apperr.ErrIDCollision):
		return "Error: a note with this id already exists: " + err.Error()
	default:
		return "Error: " + err.Error()
	}
}
